package modules

import (
	"context"
	"os"
	"strings"
	"testing"

	testhelper "github.com/sansible/sansible/pkg/testing"
	"github.com/sansible/sansible/pkg/types"
)

func TestTemplateModule_Validate(t *testing.T) {
	module := NewTemplateModule()

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
		errMsg  string
	}{
		{
			name:    "missing src",
			args:    map[string]interface{}{"dest": "/tmp/test"},
			wantErr: true,
			errMsg:  "required field is missing",
		},
		{
			name:    "missing dest",
			args:    map[string]interface{}{"src": "test.tmpl"},
			wantErr: true,
			errMsg:  "required field is missing",
		},
		{
			name: "valid args",
			args: map[string]interface{}{
				"src":  "test.tmpl",
				"dest": "/tmp/test",
			},
			wantErr: false,
		},
		{
			name: "with backup",
			args: map[string]interface{}{
				"src":    "test.tmpl",
				"dest":   "/tmp/test",
				"backup": true,
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

func TestTemplateModule_RenderTemplate(t *testing.T) {
	module := NewTemplateModule()

	tests := []struct {
		name     string
		template string
		vars     map[string]interface{}
		expected string
	}{
		{
			name:     "simple variable",
			template: "Hello {{.name}}!",
			vars:     map[string]interface{}{"name": "World"},
			expected: "Hello World!",
		},
		{
			name:     "multiple variables",
			template: "{{.greeting}} {{.name}}, port: {{.port}}",
			vars: map[string]interface{}{
				"greeting": "Hello",
				"name":     "Server",
				"port":     8080,
			},
			expected: "Hello Server, port: 8080",
		},
		{
			name:     "conditional",
			template: "Debug: {{if .debug}}enabled{{else}}disabled{{end}}",
			vars:     map[string]interface{}{"debug": true},
			expected: "Debug: enabled",
		},
		{
			name:     "range loop",
			template: "Items:{{range .items}} {{.}}{{end}}",
			vars:     map[string]interface{}{"items": []string{"a", "b", "c"}},
			expected: "Items: a b c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := module.renderTemplate(tt.template, tt.vars)
			if err != nil {
				t.Fatalf("renderTemplate() returned error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestTemplateModule_Run_NewFile(t *testing.T) {
	module := NewTemplateModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	tmpFile, err := os.CreateTemp("", "test*.tmpl")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte("Hello {{.name}}!")); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "NewFile",
			Args: map[string]interface{}{
				"src":  tmpFile.Name(),
				"dest": "/tmp/test.conf",
				"vars": map[string]interface{}{
					"name": "World",
				},
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("test -f /tmp/test.conf && echo EXISTS || echo NOTEXISTS", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "NOTEXISTS",
				})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertChanged(result)
				h.AssertMessage(result, "Template rendered and copied successfully")

				stat, err := h.GetConnection().Stat(context.Background(), "/tmp/test.conf")
				if err != nil {
					t.Fatalf("Stat() returned error: %v", err)
				}
				if !stat.Exists {
					t.Error("expected rendered content to be written to destination")
				}
				if stat.Size != int64(len("Hello World!")) {
					t.Errorf("expected written size %d, got %d", len("Hello World!"), stat.Size)
				}
			},
		},
	})
}

func TestTemplateModule_Run_ExistingFileSameContent(t *testing.T) {
	module := NewTemplateModule()
	helper := testhelper.NewModuleTestHelper(t, module)

	tmpFile, err := os.CreateTemp("", "test*.tmpl")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte("Hello {{.name}}!")); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	helper.RunTestCases([]testhelper.TestCase{
		{
			Name: "ExistingFileSameContent",
			Args: map[string]interface{}{
				"src":  tmpFile.Name(),
				"dest": "/tmp/test.conf",
				"vars": map[string]interface{}{
					"name": "World",
				},
			},
			Setup: func(h *testhelper.ModuleTestHelper) {
				conn := h.GetConnection()
				conn.ExpectCommand("test -f /tmp/test.conf && echo EXISTS || echo NOTEXISTS", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "EXISTS",
				})
				conn.ExpectCommand("cat /tmp/test.conf", &testhelper.CommandResponse{
					ExitCode: 0, Stdout: "Hello World!",
				})
			},
			Assertions: func(h *testhelper.ModuleTestHelper, result *types.ModuleResult) {
				h.AssertSuccess(result)
				h.AssertNotChanged(result)
				h.AssertMessage(result, "File already exists with same content")
			},
		},
	})
}

func TestTemplateModule_CalculateChecksum(t *testing.T) {
	module := NewTemplateModule()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "empty string",
			content:  "",
			expected: "00000000",
		},
		{
			name:     "simple string",
			content:  "Hello",
			expected: "000001f4",
		},
		{
			name:     "same content same checksum",
			content:  "test",
			expected: "000001c0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := module.calculateChecksum(tt.content)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}

	checksum1 := module.calculateChecksum("test content")
	checksum2 := module.calculateChecksum("test content")
	if checksum1 != checksum2 {
		t.Error("expected same content to produce same checksum")
	}

	checksum3 := module.calculateChecksum("different content")
	if checksum1 == checksum3 {
		t.Error("expected different content to produce different checksum")
	}
}
