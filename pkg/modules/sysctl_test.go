package modules

import (
	"context"
	"testing"

	gotest "github.com/sansible/sansible/pkg/testing"
	"github.com/sansible/sansible/pkg/types"
)

func TestSysctlModule(t *testing.T) {
	t.Run("ModuleProperties", func(t *testing.T) {
		m := NewSysctlModule()
		if m.Name() != "sysctl" {
			t.Errorf("Expected module name 'sysctl', got %s", m.Name())
		}
	})

	t.Run("ValidationTests", func(t *testing.T) {
		m := NewSysctlModule()

		testCases := []struct {
			name    string
			args    map[string]interface{}
			wantErr bool
		}{
			{
				name: "ValidSetValue",
				args: map[string]interface{}{
					"name":  "net.ipv4.ip_forward",
					"value": "1",
					"state": "present",
				},
				wantErr: false,
			},
			{
				name: "ValidPersistent",
				args: map[string]interface{}{
					"name":       "kernel.panic",
					"value":      "10",
					"state":      "present",
					"persistent": true,
				},
				wantErr: false,
			},
			{
				name: "ValidRemove",
				args: map[string]interface{}{
					"name":  "net.ipv4.ip_forward",
					"state": "absent",
				},
				wantErr: false,
			},
			{
				name: "MissingName",
				args: map[string]interface{}{
					"value": "1",
					"state": "present",
				},
				wantErr: true,
			},
			{
				name: "MissingValueForPresent",
				args: map[string]interface{}{
					"name":  "net.ipv4.ip_forward",
					"state": "present",
				},
				wantErr: true,
			},
			{
				name: "InvalidState",
				args: map[string]interface{}{
					"name":  "net.ipv4.ip_forward",
					"value": "1",
					"state": "invalid",
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

	t.Run("SysctlSetTests", func(t *testing.T) {
		m := NewSysctlModule()
		helper := gotest.NewModuleTestHelper(t, m)
		conn := helper.GetConnection()
		ctx := context.Background()
		hc := &types.HostContext{Host: &types.Host{Name: "localhost"}, Connection: conn}

		t.Run("SetValue", func(t *testing.T) {
			// Check current running value
			conn.ExpectCommand("sysctl -n net.ipv4.ip_forward", &gotest.CommandResponse{
				Stdout:   "0",
				ExitCode: 0,
			})
			// Read the persisted config, parameter not present yet
			conn.ExpectCommand("cat /etc/sysctl.conf 2>/dev/null || true", &gotest.CommandResponse{
				Stdout:   "",
				ExitCode: 0,
			})
			// Set the running value
			conn.ExpectCommand("sysctl -w net.ipv4.ip_forward=1", &gotest.CommandResponse{
				Stdout:   "net.ipv4.ip_forward = 1",
				ExitCode: 0,
			})
			// Persist to the config file
			conn.ExpectCommand("mkdir -p /etc", &gotest.CommandResponse{ExitCode: 0})
			conn.ExpectCommandPattern(`(?s)cat > /etc/sysctl\.conf\.tmp\.\d+ << 'EOF'\n.*\nEOF`, &gotest.CommandResponse{ExitCode: 0})
			conn.ExpectCommandPattern(`mv /etc/sysctl\.conf\.tmp\.\d+ /etc/sysctl\.conf`, &gotest.CommandResponse{ExitCode: 0})
			// Reload
			conn.ExpectCommand("sysctl --system", &gotest.CommandResponse{ExitCode: 0})

			result, err := m.Run(ctx, conn, map[string]interface{}{
				"name":  "net.ipv4.ip_forward",
				"value": "1",
				"state": "present",
			}, hc)

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			helper.AssertSuccess(result)
			helper.AssertChanged(result)
			conn.Verify()
		})

		t.Run("ValueAlreadySet", func(t *testing.T) {
			conn.Reset()
			// Running value already matches
			conn.ExpectCommand("sysctl -n net.ipv4.ip_forward", &gotest.CommandResponse{
				Stdout:   "1",
				ExitCode: 0,
			})
			// Config file already has the same entry
			conn.ExpectCommand("cat /etc/sysctl.conf 2>/dev/null || true", &gotest.CommandResponse{
				Stdout:   "net.ipv4.ip_forward = 1",
				ExitCode: 0,
			})

			result, err := m.Run(ctx, conn, map[string]interface{}{
				"name":  "net.ipv4.ip_forward",
				"value": "1",
				"state": "present",
			}, hc)

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			helper.AssertSuccess(result)
			helper.AssertNotChanged(result)
			helper.AssertMessage(result, "Sysctl parameter is already in desired state")
			conn.Verify()
		})

		t.Run("SetPersistent", func(t *testing.T) {
			conn.Reset()
			conn.ExpectCommand("sysctl -n kernel.panic", &gotest.CommandResponse{
				Stdout:   "0",
				ExitCode: 0,
			})
			conn.ExpectCommand("cat /etc/sysctl.conf 2>/dev/null || true", &gotest.CommandResponse{
				Stdout:   "",
				ExitCode: 0,
			})
			conn.ExpectCommand("sysctl -w kernel.panic=10", &gotest.CommandResponse{
				Stdout:   "kernel.panic = 10",
				ExitCode: 0,
			})
			conn.ExpectCommand("mkdir -p /etc", &gotest.CommandResponse{ExitCode: 0})
			conn.ExpectCommandPattern(`(?s)cat > /etc/sysctl\.conf\.tmp\.\d+ << 'EOF'\n.*\nEOF`, &gotest.CommandResponse{ExitCode: 0})
			conn.ExpectCommandPattern(`mv /etc/sysctl\.conf\.tmp\.\d+ /etc/sysctl\.conf`, &gotest.CommandResponse{ExitCode: 0})
			conn.ExpectCommand("sysctl --system", &gotest.CommandResponse{ExitCode: 0})

			result, err := m.Run(ctx, conn, map[string]interface{}{
				"name":       "kernel.panic",
				"value":      "10",
				"state":      "present",
				"persistent": true,
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
