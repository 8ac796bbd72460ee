package server

import (
	"os"
	"testing"

	"github.com/chazu/dbgeval/debuginfo"
	"github.com/chazu/dbgeval/eval"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/target"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
//
// One scope, snapshot and worker pool are shared by every test. Tests
// that stop a pool create their own.
// ---------------------------------------------------------------------------

const testModule = 0x400000

var (
	testScope  *debuginfo.Scope
	testTarget *target.Snapshot
	testPool   *Pool
)

func TestMain(m *testing.M) {
	var err error
	testScope, err = debuginfo.Build(&debuginfo.Info{
		Arch:      "x64",
		Procedure: "app::run",
		Types: []debuginfo.TypeDecl{
			{Name: "Pair", Kind: "struct", Size: 16, Members: []debuginfo.MemberDecl{
				{Name: "a", Type: "long", Offset: 0},
				{Name: "b", Type: "long", Offset: 8},
			}},
		},
		Symbols: []debuginfo.SymbolDecl{
			{Scope: debuginfo.ScopeGlobal, Name: "g_pair", Type: "Pair", Offset: 0x10},
			{Scope: debuginfo.ScopeGlobal, Name: "g_pairs", Type: "Pair*", Offset: 0x20},
			{Scope: debuginfo.ScopeGlobal, Name: "g_count", Type: "int", Offset: 0x28},
		},
	})
	if err != nil {
		panic(err)
	}

	module := uint64(testModule)
	testTarget = target.New(regs.ArchX64)
	testTarget.SetBases(nil, &module, nil)
	testTarget.WriteUint(testModule+0x10, 8, 3)
	testTarget.WriteUint(testModule+0x18, 8, 4)
	testTarget.WriteUint(testModule+0x20, 8, testModule+0x10)
	testTarget.WriteUint(testModule+0x28, 4, 0)

	testPool = NewPool(newTestEvaluator(), 2)

	code := m.Run()

	testPool.Stop()
	os.Exit(code)
}

func newTestEvaluator() *eval.Evaluator {
	return eval.NewEvaluator(testScope.Context(), eval.WithArch(testScope.Arch))
}

// newTestEvalService creates an EvalService backed by the shared pool.
func newTestEvalService() *EvalService {
	return NewEvalService(testPool, testScope, testTarget)
}
