package modules

import (
	"strings"
	"testing"

	testhelper "github.com/sansible/sansible/pkg/testing"
	"github.com/sansible/sansible/pkg/types"
)

func TestUserModule_Validate(t *testing.T) {
	module := NewUserModule()

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
				"name":  "testuser",
				"state": "present",
			},
			wantErr: false,
		},
		{
			name: "valid absent state",
			args: map[string]interface{}{
				"name":  "testuser",
				"state": "absent",
			},
			wantErr: false,
		},
		{
			name: "invalid state",
			args: map[string]interface{}{
				"name":  "testuser",
				"state": "invalid",
			},
			wantErr: true,
			errMsg:  "must be one of",
		},
		{
			name: "with uid",
			args: map[string]interface{}{
				"name": "testuser",
				"uid":  1001,
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

func TestUserModule_Run_CreateUser(t *testing.T) {
	module := NewUserModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "CreateUser",
			Args: map[string]interface{}{
				"name":  "testuser",
				"state": "present",
				"uid":   1001,
				"shell": "/bin/bash",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("id testuser >/dev/null 2>&1", &testhelper.CommandResponse{ExitCode: 1})
				conn.ExpectCommand("useradd -u 1001 -s /bin/bash -m testuser", &testhelper.CommandResponse{ExitCode: 0})
				conn.ExpectCommand("getent passwd testuser", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "testuser:x:1001:1001::/home/testuser:/bin/bash",
				})
				conn.ExpectCommand("groups testuser 2>/dev/null | cut -d: -f2", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: " testuser",
				})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "User testuser created")
				h.AssertResultValue(result, "uid", "1001")
				h.AssertResultValue(result, "shell", "/bin/bash")
			},
		},
	})
}

func TestUserModule_Run_RemoveUser(t *testing.T) {
	module := NewUserModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "RemoveUser",
			Args: map[string]interface{}{
				"name":   "testuser",
				"state":  "absent",
				"remove": true,
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("id testuser >/dev/null 2>&1", &testhelper.CommandResponse{ExitCode: 0})
				conn.ExpectCommand("userdel -r testuser", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "User testuser removed")
			},
		},
	})
}

func TestUserModule_Run_UpdateUser(t *testing.T) {
	module := NewUserModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "UpdateUser",
			Args: map[string]interface{}{
				"name":  "testuser",
				"state": "present",
				"shell": "/bin/zsh",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("id testuser >/dev/null 2>&1", &testhelper.CommandResponse{ExitCode: 0})
				conn.ExpectCommand("getent passwd testuser", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "testuser:x:1001:1001::/home/testuser:/bin/bash",
				}).SetMaxCalls(2)
				conn.ExpectCommand("groups testuser 2>/dev/null | cut -d: -f2", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: " testuser",
				}).SetMaxCalls(2)
				conn.ExpectCommand("usermod -s /bin/zsh testuser", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "User testuser updated")

				conn := h.GetConnection()
				conn.AssertCommandCalled("usermod -s /bin/zsh testuser")
			},
		},
	})
}

func TestUserModule_ToInt(t *testing.T) {
	module := NewUserModule()

	tests := []struct {
		name     string
		input    interface{}
		expected int
		wantErr  bool
	}{
		{name: "int", input: 42, expected: 42, wantErr: false},
		{name: "int64", input: int64(42), expected: 42, wantErr: false},
		{name: "float64", input: float64(42), expected: 42, wantErr: false},
		{name: "string", input: "42", expected: 42, wantErr: false},
		{name: "invalid string", input: "invalid", expected: 0, wantErr: true},
		{name: "unsupported type", input: []int{42}, expected: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := module.toInt(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				if result != tt.expected {
					t.Errorf("Expected %d, got %d", tt.expected, result)
				}
			}
		})
	}
}
