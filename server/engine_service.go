package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/orc/engine"
	"github.com/chazu/orc/wire"
)

// Procedure paths of the engine service.
const (
	EngineServiceName    = "orc.v1.EngineService"
	InsertEventProcedure = "/" + EngineServiceName + "/InsertEvent"
	StatsProcedure       = "/" + EngineServiceName + "/Stats"
	RewindProcedure      = "/" + EngineServiceName + "/Rewind"
)

// EngineService implements the EngineService Connect handlers.
type EngineService struct {
	worker *EngineWorker
}

// NewEngineService creates an EngineService.
func NewEngineService(worker *EngineWorker) *EngineService {
	return &EngineService{worker: worker}
}

// InsertEvent queues a real-time event. Rejected events are reported through
// the engine status code rather than as RPC errors.
func (s *EngineService) InsertEvent(
	ctx context.Context,
	req *connect.Request[wire.InsertRequest],
) (*connect.Response[wire.InsertResponse], error) {
	if req.Msg.Event.Opcode == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("event opcode is required"))
	}
	if req.Msg.Offset < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("negative offset %g", req.Msg.Offset))
	}

	e := s.worker.Engine()
	ev := req.Msg.Event.Engine()
	err := e.InsertScoreEvent(ev, req.Msg.Offset)
	resp := &wire.InsertResponse{
		Status: engine.StatusOf(err),
		RunID:  e.RunID().String(),
	}
	if err != nil {
		log.Debugf("rejected %s: %s", ev, err)
		resp.Message = err.Error()
	}
	return connect.NewResponse(resp), nil
}

// Stats reports the counters of the current run.
func (s *EngineService) Stats(
	ctx context.Context,
	req *connect.Request[wire.StatsRequest],
) (*connect.Response[wire.StatsResponse], error) {
	result, err := s.worker.Do(func(e *engine.Engine) any {
		return wire.FromStats(e.Stats(), e.CurTime())
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*wire.StatsResponse)), nil
}

// Rewind flushes pending events, ends every note and restarts the score.
func (s *EngineService) Rewind(
	ctx context.Context,
	req *connect.Request[wire.RewindRequest],
) (*connect.Response[wire.RewindResponse], error) {
	result, err := s.worker.Do(func(e *engine.Engine) any {
		e.Rewind()
		return &wire.RewindResponse{RunID: e.RunID().String(), CurTime: e.CurTime()}
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*wire.RewindResponse)), nil
}
