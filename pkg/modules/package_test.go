package modules

import (
	"strings"
	"testing"

	testhelper "github.com/sansible/sansible/pkg/testing"
	"github.com/sansible/sansible/pkg/types"
)

func TestPackageModule_Validate(t *testing.T) {
	module := NewPackageModule()

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
				"name":  "nginx",
				"state": "present",
			},
			wantErr: false,
		},
		{
			name: "valid absent state",
			args: map[string]interface{}{
				"name":  "nginx",
				"state": "absent",
			},
			wantErr: false,
		},
		{
			name: "valid latest state",
			args: map[string]interface{}{
				"name":  "nginx",
				"state": "latest",
			},
			wantErr: false,
		},
		{
			name: "invalid state",
			args: map[string]interface{}{
				"name":  "nginx",
				"state": "invalid",
			},
			wantErr: true,
			errMsg:  "must be one of",
		},
		{
			name: "multiple packages",
			args: map[string]interface{}{
				"name": "git,vim,curl",
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

func TestPackageModule_Run_InstallPackage(t *testing.T) {
	module := NewPackageModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "InstallPackage",
			Args: map[string]interface{}{
				"name":  "nginx",
				"state": "present",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("which apt-get", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "/usr/bin/apt-get",
				})
				conn.ExpectCommand("dpkg -l nginx 2>/dev/null | grep -q '^ii'", &testhelper.CommandResponse{ExitCode: 1})
				conn.ExpectCommand("DEBIAN_FRONTEND=noninteractive apt-get install -y nginx", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessageContains(result, "state changed")
				h.AssertResultValue(result, "package_manager", "apt")
			},
		},
	})
}

func TestPackageModule_Run_RemovePackage(t *testing.T) {
	module := NewPackageModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "RemovePackage",
			Args: map[string]interface{}{
				"name":  "nginx",
				"state": "absent",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("which apt-get", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "/usr/bin/apt-get",
				})
				conn.ExpectCommand("dpkg -l nginx 2>/dev/null | grep -q '^ii'", &testhelper.CommandResponse{ExitCode: 0})
				conn.ExpectCommand("DEBIAN_FRONTEND=noninteractive apt-get remove -y nginx", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
			},
		},
	})
}

func TestPackageModule_Run_UpdateCache(t *testing.T) {
	module := NewPackageModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "UpdateCache",
			Args: map[string]interface{}{
				"name":         "nginx",
				"state":        "present",
				"update_cache": true,
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("which apt-get", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "/usr/bin/apt-get",
				})
				conn.ExpectCommand("apt-get update", &testhelper.CommandResponse{ExitCode: 0})
				conn.ExpectCommand("dpkg -l nginx 2>/dev/null | grep -q '^ii'", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result) // Changed because cache was updated
			},
		},
	})
}

func TestPackageModule_ParsePackageList(t *testing.T) {
	module := NewPackageModule()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "single package",
			input:    "nginx",
			expected: []string{"nginx"},
		},
		{
			name:     "comma separated",
			input:    "git,vim,curl",
			expected: []string{"git", "vim", "curl"},
		},
		{
			name:     "space separated",
			input:    "git vim curl",
			expected: []string{"git", "vim", "curl"},
		},
		{
			name:     "mixed separators",
			input:    "git, vim curl",
			expected: []string{"git", "vim", "curl"},
		},
		{
			name:     "with extra spaces",
			input:    "  git  ,  vim  ,  curl  ",
			expected: []string{"git", "vim", "curl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := module.parsePackageList(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, result)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, result)
				}
			}
		})
	}
}
