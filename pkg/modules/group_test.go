package modules

import (
	"context"
	"strings"
	"testing"

	testhelper "github.com/sansible/sansible/pkg/testing"
	"github.com/sansible/sansible/pkg/types"
)

func TestGroupModule_Validate(t *testing.T) {
	module := NewGroupModule()

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
		errMsg  string
	}{
		{
			name:    "missing name",
			args:    map[string]interface{}{},
			wantErr: true,
			errMsg:  "required field is missing",
		},
		{
			name: "valid present state",
			args: map[string]interface{}{
				"name":  "testgroup",
				"state": "present",
			},
			wantErr: false,
		},
		{
			name: "valid absent state",
			args: map[string]interface{}{
				"name":  "testgroup",
				"state": "absent",
			},
			wantErr: false,
		},
		{
			name: "invalid state",
			args: map[string]interface{}{
				"name":  "testgroup",
				"state": "invalid",
			},
			wantErr: true,
			errMsg:  "must be one of",
		},
		{
			name: "with gid",
			args: map[string]interface{}{
				"name": "testgroup",
				"gid":  2001,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := module.ValidateArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected validation to fail, but it passed")
				} else if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected validation to pass, got error: %v", err)
			}
		})
	}
}

func TestGroupModule_Run_CreateGroup(t *testing.T) {
	module := NewGroupModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "CreateGroup",
			Args: map[string]interface{}{
				"name":  "testgroup",
				"state": "present",
				"gid":   2001,
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("getent group testgroup 2>/dev/null", &testhelper.CommandResponse{
					ExitCode: 2,
				}).SetMaxCalls(3)
				conn.ExpectCommand("groupadd -g 2001 testgroup", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "Group testgroup created")

				conn := h.GetConnection()
				conn.AssertCommandCalled("groupadd -g 2001 testgroup")
			},
		},
	})
}

func TestGroupModule_Run_RemoveGroup(t *testing.T) {
	module := NewGroupModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "RemoveGroup",
			Args: map[string]interface{}{
				"name":  "testgroup",
				"state": "absent",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("getent group testgroup 2>/dev/null", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "testgroup:x:2001:",
				})
				conn.ExpectCommand("groupdel testgroup", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "Group testgroup removed")
			},
		},
	})
}

func TestGroupModule_Run_UpdateGID(t *testing.T) {
	module := NewGroupModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "UpdateGID",
			Args: map[string]interface{}{
				"name":  "testgroup",
				"state": "present",
				"gid":   2002,
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("getent group testgroup 2>/dev/null", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "testgroup:x:2001:",
				}).SetMaxCalls(3)
				conn.ExpectCommand("groupmod -g 2002 testgroup", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "Group testgroup GID updated to 2002")

				conn := h.GetConnection()
				conn.AssertCommandCalled("groupmod -g 2002 testgroup")
			},
		},
	})
}

func TestGroupModule_GroupExists(t *testing.T) {
	module := NewGroupModule()
	ctx := context.Background()

	tests := []struct {
		name         string
		groupName    string
		response     *testhelper.CommandResponse
		expectExists bool
		expectGID    int
	}{
		{
			name:      "group exists",
			groupName: "testgroup",
			response: &testhelper.CommandResponse{
				ExitCode: 0, Stdout: "testgroup:x:2001:user1,user2",
			},
			expectExists: true,
			expectGID:    2001,
		},
		{
			name:      "group does not exist",
			groupName: "nogroup",
			response: &testhelper.CommandResponse{
				ExitCode: 2,
			},
			expectExists: false,
			expectGID:    0,
		},
		{
			name:      "malformed output",
			groupName: "badgroup",
			response: &testhelper.CommandResponse{
				ExitCode: 0, Stdout: "invalid",
			},
			expectExists: true,
			expectGID:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := testhelper.NewMockConnection(t)
			conn.ExpectCommand("getent group "+tt.groupName+" 2>/dev/null", tt.response)

			exists, gid := module.groupExists(ctx, conn, tt.groupName)
			if exists != tt.expectExists {
				t.Errorf("expected exists=%v, got %v", tt.expectExists, exists)
			}
			if gid != tt.expectGID {
				t.Errorf("expected gid=%d, got %d", tt.expectGID, gid)
			}

			conn.Verify()
		})
	}
}
