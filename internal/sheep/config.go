// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package sheep

import (
	"fmt"
	"strings"
)

// Config encapsulates parameters for the object daemon.
type Config struct {
	ObjPath        string   // Legacy single-disk object path, used while multi-disk is off.
	MDPaths        string   // Comma-separated storage paths for multi-disk placement.
	ControllerBase string   // Base directory for the admin unix socket.
	Addr           string   // Address for the status and metrics pages; also names the socket.
	Nodes          []string // Static cluster membership, feeds the DYNAMIC thread roof.
	MDQueue        string   // Name of the disk-eviction work queue.
	TraceWorkers   bool     // Whether to trace worker creation and retirement.
}

// MDPathList returns the configured storage paths as a slice.
func (c Config) MDPathList() []string {
	if c.MDPaths == "" {
		return nil
	}
	return strings.Split(c.MDPaths, ",")
}

// Validate validates the configuration object has reasonable (not obviously
// wrong) values.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("address of the daemon can not be empty")
	}
	if c.ObjPath == "" && c.MDPaths == "" {
		return fmt.Errorf("no storage path configured")
	}
	if c.MDQueue == "" {
		return fmt.Errorf("eviction queue name can not be empty")
	}
	return nil
}

// DefaultProdConfig specifies the default values for Config that is used for
// production.
var DefaultProdConfig = Config{
	ObjPath:        "/var/lib/sheepdog/obj",
	ControllerBase: "/var/tmp/sheepdog",
	Addr:           "localhost:59800",
	Nodes:          []string{"localhost"},
	MDQueue:        "md_recover",
	TraceWorkers:   false,
}

// DefaultTestConfig specifies the default values for Config that is used for
// testing.
var DefaultTestConfig = Config{
	ObjPath:        "/var/lib/sheepdog/obj",
	ControllerBase: "/var/tmp/sheepdog",
	Addr:           "localhost:59800",
	Nodes:          []string{"localhost"},
	MDQueue:        "md_recover",
	TraceWorkers:   true,
}
