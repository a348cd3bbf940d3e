// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"flag"
	"os"
	"strings"

	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/sheep"
)

/*

Configuring various parameters follows three steps:

  (1) Default config parameters are pulled from 'sheep.DefaultProdConfig'.

  (2) An optional configuration file (in json format) can be specified via the command-line flag '-sheepCfg' to override the default values.

  (3) Optional flags can be used to override each individual parameter set in the previous two steps, e.g., '-mdPaths="/d0,/d1"'.

*/

var (
	// Default configuration. This is the default configuration for production.
	cfg = sheep.DefaultProdConfig

	// Config file name.
	cfgFile = flag.String("sheepCfg", "", "configuration file for the daemon")

	// Daemon config parameters.
	addr           = flag.String("addr", "", "status and metrics address")
	objPath        = flag.String("objPath", "", "legacy single-disk object path")
	mdPaths        = flag.String("mdPaths", "", "comma-separated multi-disk storage paths")
	controllerBase = flag.String("controllerBase", "", "base dir for the admin socket")
	nodes          = flag.String("nodes", "", "comma-separated static cluster members")
	traceWorkers   = flag.Bool("traceWorkers", false, "whether to trace worker churn")
)

// Initialize config parameters. It first tries to read from the configuration
// file and then applies the command-line flags to override specified values.
func initConfig() {
	flag.Parse()

	// Read from configuration file.
	if "" != *cfgFile {
		f, err := os.Open(*cfgFile)
		if nil != err {
			log.Fatalf("couldn't open the provided config file: %s", err)
		}
		dec := json.NewDecoder(f)
		if err = dec.Decode(&cfg); nil != err {
			log.Fatalf("failed to decode the config file: %s", err)
		}
		f.Close()
	}

	// Override values from command-line flags.
	// NOTE: Because of how Go's flag package works, there is no way to tell
	// if a value is set by the user or not. Therefore, we use meaningless
	// default values to check whether a particular flag is set, and only
	// override the corresponding value if so.
	if "" != *addr {
		cfg.Addr = *addr
	}
	if "" != *objPath {
		cfg.ObjPath = *objPath
	}
	if "" != *mdPaths {
		cfg.MDPaths = *mdPaths
	}
	if "" != *controllerBase {
		cfg.ControllerBase = *controllerBase
	}
	if "" != *nodes {
		cfg.Nodes = strings.Split(*nodes, ",")
	}
	if *traceWorkers {
		cfg.TraceWorkers = true
	}
}

func main() {
	initConfig()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Failed to validate configurations: %v", err)
	}

	s, err := sheep.NewServer(&cfg)
	if err != nil {
		log.Fatalf("Failed to start the daemon: %s", err)
	}

	// Occupy main with the completion loop.
	s.Run()
}
