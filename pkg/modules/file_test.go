package modules

import (
	"strings"
	"testing"

	testhelper "github.com/sansible/sansible/pkg/testing"
	"github.com/sansible/sansible/pkg/types"
)

func TestFileModule_Validate(t *testing.T) {
	module := NewFileModule()

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
		errMsg  string
	}{
		{
			name:    "missing path",
			args:    map[string]interface{}{},
			wantErr: true,
			errMsg:  "required field is missing",
		},
		{
			name: "valid file state",
			args: map[string]interface{}{
				"path":  "/tmp/test",
				"state": "file",
			},
			wantErr: false,
		},
		{
			name: "valid directory state",
			args: map[string]interface{}{
				"path":  "/tmp/test",
				"state": "directory",
			},
			wantErr: false,
		},
		{
			name: "link state without src",
			args: map[string]interface{}{
				"path":  "/tmp/test",
				"state": "link",
			},
			wantErr: true,
			errMsg:  "required when state=link",
		},
		{
			name: "link state with src",
			args: map[string]interface{}{
				"path":  "/tmp/test",
				"state": "link",
				"src":   "/tmp/source",
			},
			wantErr: false,
		},
		{
			name: "invalid state",
			args: map[string]interface{}{
				"path":  "/tmp/test",
				"state": "invalid",
			},
			wantErr: true,
			errMsg:  "must be one of",
		},
		{
			name: "invalid mode",
			args: map[string]interface{}{
				"path": "/tmp/test",
				"mode": "invalid",
			},
			wantErr: true,
			errMsg:  "must be an octal number",
		},
		{
			name: "valid mode",
			args: map[string]interface{}{
				"path": "/tmp/test",
				"mode": "0755",
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

func TestFileModule_Run(t *testing.T) {
	module := NewFileModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	testCases := []testhelper.TestCase{
		{
			Name: "CreateDirectory",
			Args: map[string]interface{}{
				"path":  "/tmp/testdir",
				"state": "directory",
				"mode":  "0755",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("test -e /tmp/testdir && echo EXISTS || echo NOTEXISTS", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "NOTEXISTS",
				})
				conn.ExpectCommand("mkdir -p /tmp/testdir", &testhelper.CommandResponse{ExitCode: 0})
				conn.ExpectCommand("chmod 0755 /tmp/testdir", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "Directory created")
			},
		},
		{
			Name: "CreateFile",
			Args: map[string]interface{}{
				"path":  "/tmp/testfile",
				"state": "file",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("test -e /tmp/testfile && echo EXISTS || echo NOTEXISTS", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "NOTEXISTS",
				})
				conn.ExpectCommand("touch /tmp/testfile", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "File created")
			},
		},
		{
			Name: "CreateSymlink",
			Args: map[string]interface{}{
				"path":  "/tmp/testlink",
				"src":   "/tmp/source",
				"state": "link",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("test -e /tmp/testlink && echo EXISTS || echo NOTEXISTS", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "NOTEXISTS",
				})
				conn.ExpectCommand("ln -s /tmp/source /tmp/testlink", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "Link created")
			},
		},
		{
			Name: "RemoveFile",
			Args: map[string]interface{}{
				"path":  "/tmp/testfile",
				"state": "absent",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("test -e /tmp/testfile && echo EXISTS || echo NOTEXISTS", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "EXISTS",
				})
				conn.ExpectCommand("rm -rf /tmp/testfile", &testhelper.CommandResponse{ExitCode: 0})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "Path removed")
			},
		},
		{
			Name: "FileAlreadyExists",
			Args: map[string]interface{}{
				"path":  "/tmp/testfile",
				"state": "file",
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("test -e /tmp/testfile && echo EXISTS || echo NOTEXISTS", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "EXISTS",
				})
				conn.ExpectCommand("test -f /tmp/testfile && echo FILE || echo NOTFILE", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "FILE",
				})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertNotChanged(result)
				h.AssertMessage(result, "File already exists")
			},
		},
	}

	helper.RunTestCases(testCases)
}
