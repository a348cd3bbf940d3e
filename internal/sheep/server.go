// Copyright (c) 2018 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package sheep

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	log "github.com/golang/glog"

	"github.com/p1nky/sheepdog/internal/cluster"
	"github.com/p1nky/sheepdog/internal/event"
	"github.com/p1nky/sheepdog/internal/md"
	"github.com/p1nky/sheepdog/internal/work"
)

// Server assembles the daemon: the completion event loop, the work queue
// engine, the multi-disk store, and the admin surfaces.
type Server struct {
	cfg        *Config
	started    time.Time
	loop       *event.Loop
	dispatcher *work.Dispatcher
	membership *cluster.StaticMembership
	store      *md.Store
}

// NewServer wires the daemon together. All queues are created here, before
// the event loop starts, so queue registration never races with completion
// dispatch.
func NewServer(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	membership := cluster.NewStaticMembership(cfg.Nodes...)

	var tracer work.Tracer = work.NopTracer{}
	if cfg.TraceWorkers {
		tracer = NewWorkerTracer()
	}

	loop := event.NewLoop()
	dispatcher := work.NewDispatcher(membership, tracer)
	if err := dispatcher.Register(loop); err != nil {
		return nil, err
	}

	// Disk eviction is serialized: duplicate EIO reports for one path must
	// resolve one at a time.
	mdQueue := dispatcher.NewOrderedQueue(cfg.MDQueue)

	store := md.NewStore(cfg.ObjPath, cfg.MDPathList(), mdQueue, membership, NewRecoveryKicker())

	s := &Server{
		cfg:        cfg,
		started:    time.Now(),
		loop:       loop,
		dispatcher: dispatcher,
		membership: membership,
		store:      store,
	}

	NewDiskController(cfg, store)

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
			log.Errorf("status server on %s failed: %s", cfg.Addr, err)
		}
	}()

	return s, nil
}

// Store exposes the placement layer to request handlers.
func (s *Server) Store() *md.Store {
	return s.store
}

// Run occupies the calling goroutine with the completion event loop; that
// goroutine becomes the process's completion thread.
func (s *Server) Run() {
	log.Infof("sheepd serving on %s, %d bytes of disk space", s.cfg.Addr, s.store.TotalSpace())
	s.loop.Run()
}

// Stop terminates the completion loop.
func (s *Server) Stop() {
	s.loop.Stop()
}
