// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/codegangsta/cli"

	log "github.com/golang/glog"
)

var usage = `
	sheepctl is a tool to administer the multi-disk layer of a running sheepd
	daemon through its unix control socket. Disks can be plugged and unplugged
	at runtime; the daemon rebuilds its placement ring and kicks recovery on
	every change.

	The socket path is derived the same way the daemon derives it: a base
	directory plus the daemon's service address.
	`

type sheepCtl struct {
	app  *cli.App
	base string
	addr string
}

func newSheepCtl() *sheepCtl {
	s := &sheepCtl{}
	app := cli.NewApp()
	app.Name = "sheepctl"
	app.Usage = usage
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "base, b",
			Usage: "base directory of the daemon's control socket",
			Value: "/var/tmp/sheepdog",
		},
		cli.StringFlag{
			Name:  "addr, a",
			Usage: "service address of the daemon (names the socket)",
			Value: "localhost:59800",
		},
	}
	app.Before = func(c *cli.Context) error {
		s.base = c.GlobalString("base")
		s.addr = c.GlobalString("addr")
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "plug",
			Usage:     "add comma-separated storage paths to the multi-disk array",
			ArgsUsage: "<path,path,...>",
			Action:    s.plug,
		},
		{
			Name:      "unplug",
			Usage:     "remove comma-separated storage paths from the multi-disk array",
			ArgsUsage: "<path,path,...>",
			Action:    s.unplug,
		},
		{
			Name:   "info",
			Usage:  "show the live disks of the multi-disk array",
			Action: s.info,
		},
	}
	s.app = app
	return s
}

// client returns an http client that dials the daemon's unix socket no matter
// what host the request names.
func (s *sheepCtl) client() *http.Client {
	sock := filepath.Join(s.base, s.addr)
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			Dial: func(network, address string) (net.Conn, error) {
				return net.Dial("unix", sock)
			},
		},
	}
}

func (s *sheepCtl) do(method, paths string) error {
	u := "http://sheepd/disk"
	if paths != "" {
		u += "?paths=" + url.QueryEscape(paths)
	}
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("can't reach the daemon: %s", err)
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon replied %s: %s", resp.Status, body)
	}
	fmt.Println(string(body))
	return nil
}

func (s *sheepCtl) plug(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("plug wants exactly one comma-separated path list")
	}
	return s.do("POST", c.Args().First())
}

func (s *sheepCtl) unplug(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("unplug wants exactly one comma-separated path list")
	}
	return s.do("DELETE", c.Args().First())
}

func (s *sheepCtl) info(c *cli.Context) error {
	return s.do("GET", "")
}

func main() {
	if err := newSheepCtl().app.Run(os.Args); err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
}
