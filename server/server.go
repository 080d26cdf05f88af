// Package server exposes a running engine over Connect: real-time event
// insertion, run statistics and score rewind.
package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/orc/engine"
)

var log = commonlog.GetLogger("orc.server")

// OrcServer is the control server wrapping a running engine.
type OrcServer struct {
	worker *EngineWorker
	mux    *http.ServeMux
}

// ServerOption configures an OrcServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	paced  bool
	onDone func(engine.Stats, error)
}

// WithPacing runs control cycles in real time rather than back to back.
func WithPacing(paced bool) ServerOption {
	return func(c *serverConfig) { c.paced = paced }
}

// WithOnDone sets a function called each time a performance ends.
func WithOnDone(fn func(engine.Stats, error)) ServerOption {
	return func(c *serverConfig) { c.onDone = fn }
}

// New creates an OrcServer wrapping the given engine. The performance starts
// with Start.
func New(e *engine.Engine, opts ...ServerOption) *OrcServer {
	cfg := &serverConfig{paced: true}
	for _, opt := range opts {
		opt(cfg)
	}

	onDone := func(st engine.Stats, err error) {
		if err != nil {
			log.Errorf("run %s ended: %s", st.RunID, err)
		} else {
			log.Infof("run %s ended after %d cycles", st.RunID, st.Cycles)
		}
		if cfg.onDone != nil {
			cfg.onDone(st, err)
		}
	}

	s := &OrcServer{
		worker: NewEngineWorker(e, cfg.paced, onDone),
		mux:    http.NewServeMux(),
	}

	svc := NewEngineService(s.worker)
	codec := WithCBOR()
	s.mux.Handle(InsertEventProcedure, connect.NewUnaryHandler(InsertEventProcedure, svc.InsertEvent, codec))
	s.mux.Handle(StatsProcedure, connect.NewUnaryHandler(StatsProcedure, svc.Stats, codec))
	s.mux.Handle(RewindProcedure, connect.NewUnaryHandler(RewindProcedure, svc.Rewind, codec))
	return s
}

// Handler returns the HTTP handler serving the engine service.
func (s *OrcServer) Handler() http.Handler {
	return s.mux
}

// Worker returns the engine worker.
func (s *OrcServer) Worker() *EngineWorker {
	return s.worker
}

// Start begins the performance.
func (s *OrcServer) Start() {
	s.worker.Start()
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *OrcServer) ListenAndServe(addr string) error {
	log.Noticef("orc engine server listening on %s", addr)
	log.Noticef("  Connect (CBOR): http://%s%s", addr, InsertEventProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the server.
func (s *OrcServer) Stop() {
	s.worker.Stop()
}
