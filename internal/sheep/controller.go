// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package sheep

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/core"
	"github.com/p1nky/sheepdog/internal/md"
)

type diskController struct {
	s *md.Store
}

// NewDiskController creates a new disk controller, listening on a unix socket
// based on the address in the config, plugging and unplugging disks of the
// given store.
func NewDiskController(cfg *Config, s *md.Store) *diskController {
	base := cfg.ControllerBase
	c := &diskController{s}

	if err := os.MkdirAll(base, 0700); err != nil {
		log.Fatalf("Couldn't create directory %q for disk controller: %s", base, err)
	}

	path := filepath.Join(base, cfg.Addr)
	os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		log.Fatalf("Could not listen on unix socket %q: %s", path, err)
	}

	m := http.NewServeMux()
	m.HandleFunc("/disk", c.disk)
	go http.Serve(l, m)

	return c
}

func (c *diskController) disk(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		c.info(w, r)
	case "POST":
		c.plugUnplug(w, r, true)
	case "DELETE":
		c.plugUnplug(w, r, false)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		fmt.Fprint(w, "Bad method (GET, POST or DELETE allowed)")
	}
}

func (c *diskController) info(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.s.Info()); err != nil {
		log.Errorf("failed to encode disk info: %s", err)
	}
}

func (c *diskController) plugUnplug(w http.ResponseWriter, r *http.Request, plug bool) {
	paths := r.URL.Query().Get("paths")
	if paths == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "Missing paths")
		return
	}

	var ret core.Error
	if plug {
		ret = c.s.Plug(paths)
	} else {
		ret = c.s.Unplug(paths)
	}

	switch ret {
	case core.NoError:
		fmt.Fprintf(w, "SUCCESS: %q", paths)
	case core.ErrUnknown:
		// No disks changed; not treated as an HTTP error so that admin
		// retries stay idempotent.
		fmt.Fprintf(w, "UNKNOWN: no disks changed for %q", paths)
	default:
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "%s: %q", ret, paths)
	}
}
