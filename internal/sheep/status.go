// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package sheep

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	sigar "github.com/cloudfoundry/gosigar"

	log "github.com/golang/glog"
)

const statusTemplateStr = `
<!doctype html>
<html lang="en">
<head>
  <title>sheepdog daemon status</title>
  <style>
    caption {
      caption-side: top;
      text-align: left;
      font-weight: bold;
    }
    table.status {
      border-collapse: collapse;
    }
    table.status td, table.status th {
      border: 1px solid #DDD;
      text-align: left;
      padding: 4px 8px;
    }
    table.status th {
      background-color: #009900;
      color: white;
    }
    table.status tr:nth-child(even) {background-color: #F2F2F2;}
  </style>
</head>

<body>

<h3>sheepd</h3>

<table>
  <tr><td>Started:</td><td>{{.Started}}</td></tr>
  <tr><td>Load:</td><td>{{printf "%.2f %.2f %.2f" .Load.One .Load.Five .Load.Fifteen}}</td></tr>
  <tr><td>Memory:</td><td>{{.Mem.ActualUsed}} / {{.Mem.Total}}</td></tr>
  <tr><td>Disk space:</td><td>{{.TotalSpace}}</td></tr>
</table>

<p>

<table class="status">
  <caption>Work queues</caption>
  <tr><th>Name</th><th>Policy</th><th>Threads</th><th>Pending</th><th>Running</th></tr>
  {{range .Queues}}
  <tr><td>{{.Name}}</td><td>{{.Policy}}</td><td>{{.Threads}}</td><td>{{.Pending}}</td><td>{{.Running}}</td></tr>
  {{end}}
</table>

<p>

<table class="status">
  <caption>Disks</caption>
  <tr><th>Idx</th><th>Path</th><th>Size</th><th>Used</th></tr>
  {{range .Disks}}
  <tr><td>{{.Idx}}</td><td>{{.Path}}</td><td>{{.Size}}</td><td>{{.Used}}</td></tr>
  {{end}}
</table>

</body>
</html>
`

var statusTemplate = template.Must(template.New("status").Parse(statusTemplateStr))

// statusHandler renders the daemon status page.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem sigar.Mem
	if err := mem.Get(); err != nil {
		log.Errorf("failed to read memory stats: %s", err)
	}
	var load sigar.LoadAverage
	if err := load.Get(); err != nil {
		log.Errorf("failed to read load average: %s", err)
	}

	data := struct {
		Started    time.Time
		Mem        sigar.Mem
		Load       sigar.LoadAverage
		TotalSpace uint64
		Queues     interface{}
		Disks      interface{}
	}{
		Started:    s.started,
		Mem:        mem,
		Load:       load,
		TotalSpace: s.store.TotalSpace(),
		Queues:     s.dispatcher.Stats(),
		Disks:      s.store.Info(),
	}

	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, data); err != nil {
		log.Errorf("failed to render status page: %s", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	buf.WriteTo(w)
}
