package modules

import (
	"context"
	"errors"
	"testing"

	testhelper "github.com/sansible/sansible/pkg/testing"
	"github.com/sansible/sansible/pkg/types"
)

var errPingConnFailed = errors.New("simulated connection failure")

func TestPingModule_Validate(t *testing.T) {
	module := NewPingModule()

	// Ping module doesn't require any arguments
	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
	}{
		{
			name:    "no arguments",
			args:    map[string]interface{}{},
			wantErr: false,
		},
		{
			name: "with extra arguments",
			args: map[string]interface{}{
				"extra": "value",
			},
			wantErr: false, // Should still be valid
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := module.ValidateArgs(tt.args)
			if tt.wantErr && err == nil {
				t.Error("Expected validation to fail, but it passed")
			} else if !tt.wantErr && err != nil {
				t.Errorf("Expected validation to pass, got error: %v", err)
			}
		})
	}
}

func TestPingModule_Run_Success(t *testing.T) {
	module := NewPingModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "Success",
			Args: map[string]interface{}{},
			Setup: func(h *testhelper.ModuleTestHelper) {
				h.GetConnection().ExpectCommand("echo pong", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "pong",
				})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertNotChanged(result)
				h.AssertMessage(result, "pong")
				h.AssertResultValue(result, "ping", "pong")
			},
		},
	})
}

func TestPingModule_Run_ConnectionFailed(t *testing.T) {
	module := NewPingModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "ConnectionFailed",
			Args: map[string]interface{}{},
			Setup: func(h *testhelper.ModuleTestHelper) {
				h.GetConnection().ExpectCommand("echo pong", &testhelper.CommandResponse{
					Error: errPingConnFailed,
				})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertFailure(result)
				h.AssertNotChanged(result)
				h.AssertMessage(result, "Connection test failed")
			},
		},
	})
}

func TestPingModule_Run_NotConnected(t *testing.T) {
	module := NewPingModule()
	ctx := context.Background()

	conn := testhelper.NewMockConnection(t)
	conn.SetConnected(false)

	hc := &types.HostContext{Host: &types.Host{Name: "test-host"}, Connection: conn}
	result, err := module.Run(ctx, conn, map[string]interface{}{}, hc)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Failed {
		t.Error("Expected result to be successful")
	}
	if result.Changed {
		t.Error("Expected result to show no changes")
	}
	if result.Msg != "pong" {
		t.Errorf("Expected message 'pong', got %q", result.Msg)
	}
	if result.Results["ping"] != "pong" {
		t.Errorf("Expected ping result 'pong', got %v", result.Results["ping"])
	}
}

func TestPingModule_Run_NilConnection(t *testing.T) {
	module := NewPingModule()
	ctx := context.Background()

	hc := &types.HostContext{Host: &types.Host{Name: "test-host"}}
	result, err := module.Run(ctx, nil, map[string]interface{}{}, hc)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Failed {
		t.Error("Expected result to be successful")
	}
	if result.Changed {
		t.Error("Expected result to show no changes")
	}
	if result.Msg != "pong" {
		t.Errorf("Expected message 'pong', got %q", result.Msg)
	}
	if result.Results["ping"] != "pong" {
		t.Errorf("Expected ping result 'pong', got %v", result.Results["ping"])
	}
}

func TestPingModule_Documentation(t *testing.T) {
	module := NewPingModule()
	doc := module.Documentation()

	if doc.Name != "ping" {
		t.Errorf("Expected name 'ping', got %s", doc.Name)
	}
	if len(doc.Parameters) != 0 {
		t.Error("Expected ping to have no parameters")
	}
	if len(doc.Examples) == 0 {
		t.Error("Expected ping to have examples")
	}
	if len(doc.Returns) == 0 {
		t.Error("Expected ping to document its returns")
	}
}
