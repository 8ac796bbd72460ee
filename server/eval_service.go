package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/chazu/dbgeval/debuginfo"
	"github.com/chazu/dbgeval/eval"
	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/types"
	"github.com/chazu/dbgeval/wire"
)

// EvaluateProcedure is the full procedure name of Evaluate, shared by the
// gRPC and Connect transports.
const EvaluateProcedure = "/" + ServiceName + "/Evaluate"

// ServiceName is the RPC service name.
const ServiceName = "dbgeval.v1.Evaluator"

// errEmptyExpression is returned for a request without an expression.
var errEmptyExpression = errors.New("expression is required")

// EvalService evaluates expressions against one stopped target.
type EvalService struct {
	pool   *Pool
	scope  *debuginfo.Scope
	target bytecode.Target
}

// NewEvalService creates an EvalService.
func NewEvalService(pool *Pool, scope *debuginfo.Scope, target bytecode.Target) *EvalService {
	return &EvalService{
		pool:   pool,
		scope:  scope,
		target: target,
	}
}

// Evaluate is the Connect handler for EvaluateProcedure.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[wire.EvaluateRequest],
) (*connect.Response[wire.EvaluateResponse], error) {
	if req.Msg.Expression == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errEmptyExpression)
	}

	resp, err := s.Do(ctx, req.Msg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, connect.NewError(connect.CodeCanceled, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(resp), nil
}

// Do runs req on the worker pool. Compile and runtime failures are
// reported in the response; the error is reserved for pool failures.
func (s *EvalService) Do(ctx context.Context, req *wire.EvaluateRequest) (*wire.EvaluateResponse, error) {
	result, err := s.pool.Do(ctx, func(ev *eval.Evaluator) interface{} {
		return s.evaluate(ev, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*wire.EvaluateResponse), nil
}

// evaluate runs on a worker goroutine.
func (s *EvalService) evaluate(ev *eval.Evaluator, req *wire.EvaluateRequest) *wire.EvaluateResponse {
	resp := &wire.EvaluateResponse{ID: uuid.NewString()}

	evaluation, err := ev.Evaluate(req.Expression, s.target)
	c := evaluation.Compiled
	resp.Diagnostics = wire.Diagnostics(c.Errors)
	if c.OK() {
		resp.Type = types.String(s.scope.Types, c.Type)
	}
	if evaluation.Ran {
		resp.Status = evaluation.Result.Status.String()
	}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Value = eval.FormatValue(s.scope.Types, c.Type, evaluation.Result.Value)
	}

	if req.Disassemble && c.OK() {
		if c.ValueCode != nil {
			resp.Listing = bytecode.DisassembleCode(req.Expression, c.ValueCode)
		} else {
			resp.Listing = bytecode.DisassembleCode(req.Expression, c.Code)
		}
	}
	if req.Program && c.OK() {
		if data, perr := s.program(evaluation); perr != nil {
			log.Warningf("request %s: %s", resp.ID, perr)
		} else {
			resp.Program = data
		}
	}

	log.Debugf("request %s: %q -> %q %s", resp.ID, req.Expression, resp.Value, resp.Status)
	return resp
}

func (s *EvalService) program(evaluation *eval.Evaluation) ([]byte, error) {
	c := evaluation.Compiled
	p, err := wire.NewProgram(c, s.scope.ProcedureName(), s.scope.Arch, types.String(s.scope.Types, c.Type))
	if err != nil {
		return nil, err
	}
	data, err := wire.MarshalProgram(p)
	if err != nil {
		return nil, fmt.Errorf("encode program: %w", err)
	}
	return data, nil
}
