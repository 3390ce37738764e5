package modules

import (
	"context"
	"testing"

	gotest "github.com/sansible/sansible/pkg/testing"
	"github.com/sansible/sansible/pkg/types"
)

func TestUnarchiveModule(t *testing.T) {
	t.Run("ModuleProperties", func(t *testing.T) {
		m := NewUnarchiveModule()
		if m.Name() != "unarchive" {
			t.Errorf("Expected module name 'unarchive', got %s", m.Name())
		}
	})

	t.Run("ValidationTests", func(t *testing.T) {
		m := NewUnarchiveModule()

		testCases := []struct {
			name    string
			args    map[string]interface{}
			wantErr bool
		}{
			{
				name: "ValidExtractTarGz",
				args: map[string]interface{}{
					"src":  "/tmp/archive.tar.gz",
					"dest": "/opt/app",
				},
				wantErr: false,
			},
			{
				name: "ValidExtractZip",
				args: map[string]interface{}{
					"src":  "/tmp/archive.zip",
					"dest": "/var/www",
				},
				wantErr: false,
			},
			{
				name: "ValidRemoteSource",
				args: map[string]interface{}{
					"src":        "https://example.com/archive.tar.gz",
					"dest":       "/opt/app",
					"remote_src": true,
				},
				wantErr: false,
			},
			{
				name: "ValidWithOwner",
				args: map[string]interface{}{
					"src":   "/tmp/archive.tar.gz",
					"dest":  "/opt/app",
					"owner": "appuser",
					"group": "appgroup",
				},
				wantErr: false,
			},
			{
				name: "MissingSrc",
				args: map[string]interface{}{
					"dest": "/opt/app",
				},
				wantErr: true,
			},
			{
				name: "MissingDest",
				args: map[string]interface{}{
					"src": "/tmp/archive.tar.gz",
				},
				wantErr: true,
			},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				err := m.ValidateArgs(tc.args)
				if (err != nil) != tc.wantErr {
					t.Errorf("ValidateArgs() error = %v, wantErr %v", err, tc.wantErr)
				}
			})
		}
	})

	t.Run("ExtractOperationTests", func(t *testing.T) {
		m := NewUnarchiveModule()
		helper := gotest.NewModuleTestHelper(t, m)
		conn := helper.GetConnection()
		ctx := context.Background()
		hc := &types.HostContext{Host: &types.Host{Name: "localhost"}, Connection: conn}

		t.Run("ExtractTarGz", func(t *testing.T) {
			// Destination does not exist yet
			conn.ExpectCommand("test -e /opt/app", &gotest.CommandResponse{
				ExitCode: 1,
			})
			conn.ExpectCommand("mkdir -p /opt/app", &gotest.CommandResponse{
				ExitCode: 0,
			})
			// List contents to report extracted files
			conn.ExpectCommand("tar -tzf /tmp/archive.tar.gz", &gotest.CommandResponse{
				Stdout:   "app/config.yaml\napp/bin/server",
				ExitCode: 0,
			})
			// Extract archive
			conn.ExpectCommand("tar -xzf /tmp/archive.tar.gz -C /opt/app", &gotest.CommandResponse{
				Stdout:   "",
				ExitCode: 0,
			})

			result, err := m.Run(ctx, conn, map[string]interface{}{
				"src":        "/tmp/archive.tar.gz",
				"dest":       "/opt/app",
				"list_files": true,
			}, hc)

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			helper.AssertSuccess(result)
			helper.AssertChanged(result)
			conn.Verify()
		})

		t.Run("ExtractZip", func(t *testing.T) {
			conn.Reset()
			// Destination already exists
			conn.ExpectCommand("test -e /var/www", &gotest.CommandResponse{
				ExitCode: 0,
			})
			conn.ExpectCommand("unzip -l /tmp/archive.zip", &gotest.CommandResponse{
				Stdout:   "  1024  2024-01-01 00:00   index.html",
				ExitCode: 0,
			})
			conn.ExpectCommand("unzip -o /tmp/archive.zip -d /var/www", &gotest.CommandResponse{
				Stdout:   "Archive:  /tmp/archive.zip\n  inflating: /var/www/index.html",
				ExitCode: 0,
			})

			result, err := m.Run(ctx, conn, map[string]interface{}{
				"src":        "/tmp/archive.zip",
				"dest":       "/var/www",
				"list_files": true,
			}, hc)

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			helper.AssertSuccess(result)
			helper.AssertChanged(result)
			conn.Verify()
		})
	})
}
