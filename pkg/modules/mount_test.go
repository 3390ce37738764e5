package modules

import (
	"context"
	"testing"

	gotest "github.com/sansible/sansible/pkg/testing"
	"github.com/sansible/sansible/pkg/types"
)

func TestMountModule(t *testing.T) {
	t.Run("ModuleProperties", func(t *testing.T) {
		m := NewMountModule()
		if m.Name() != "mount" {
			t.Errorf("Expected module name 'mount', got %s", m.Name())
		}
	})

	t.Run("ValidationTests", func(t *testing.T) {
		m := NewMountModule()

		testCases := []struct {
			name    string
			args    map[string]interface{}
			wantErr bool
		}{
			{
				name: "ValidMount",
				args: map[string]interface{}{
					"path":   "/mnt/data",
					"src":    "/dev/sdb1",
					"fstype": "ext4",
					"state":  "mounted",
				},
				wantErr: false,
			},
			{
				name: "ValidUnmount",
				args: map[string]interface{}{
					"path":  "/mnt/data",
					"state": "unmounted",
				},
				wantErr: false,
			},
			{
				name: "ValidRemount",
				args: map[string]interface{}{
					"path":  "/mnt/data",
					"state": "remounted",
				},
				wantErr: false,
			},
			{
				name: "ValidAbsent",
				args: map[string]interface{}{
					"path":  "/mnt/data",
					"state": "absent",
				},
				wantErr: false,
			},
			{
				name: "MissingPath",
				args: map[string]interface{}{
					"src":    "/dev/sdb1",
					"fstype": "ext4",
					"state":  "mounted",
				},
				wantErr: true,
			},
			{
				name: "MissingSrcForMount",
				args: map[string]interface{}{
					"path":   "/mnt/data",
					"fstype": "ext4",
					"state":  "mounted",
				},
				wantErr: true,
			},
			{
				name: "InvalidState",
				args: map[string]interface{}{
					"path":  "/mnt/data",
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

	t.Run("MountOperationTests", func(t *testing.T) {
		t.Run("MountFilesystem", func(t *testing.T) {
			m := NewMountModule()
			helper := gotest.NewModuleTestHelper(t, m)
			conn := helper.GetConnection()
			ctx := context.Background()
			hc := &types.HostContext{Host: &types.Host{Name: "localhost"}, Connection: conn}

			// No existing fstab entry
			conn.ExpectCommand("cat /etc/fstab", &gotest.CommandResponse{
				ExitCode: 0, Stdout: "",
			})
			conn.ExpectCommandPattern(`echo '.*' > /etc/fstab\.tmp\.\d+`, &gotest.CommandResponse{ExitCode: 0})
			conn.ExpectCommandPattern(`mv /etc/fstab\.tmp\.\d+ /etc/fstab`, &gotest.CommandResponse{ExitCode: 0})
			// Not currently mounted
			conn.ExpectCommand("mount | grep ' /mnt/data '", &gotest.CommandResponse{
				ExitCode: 1,
			})
			// Mount the filesystem
			conn.ExpectCommand("mount -t ext4 -o defaults /dev/sdb1 /mnt/data", &gotest.CommandResponse{ExitCode: 0})

			result, err := m.Run(ctx, conn, map[string]interface{}{
				"path":   "/mnt/data",
				"src":    "/dev/sdb1",
				"fstype": "ext4",
				"state":  "mounted",
			}, hc)

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			helper.AssertSuccess(result)
			helper.AssertChanged(result)
			conn.AssertCommandCalled("mount -t ext4 -o defaults /dev/sdb1 /mnt/data")
		})

		t.Run("AlreadyMounted", func(t *testing.T) {
			m := NewMountModule()
			helper := gotest.NewModuleTestHelper(t, m)
			conn := helper.GetConnection()
			ctx := context.Background()
			hc := &types.HostContext{Host: &types.Host{Name: "localhost"}, Connection: conn}

			conn.ExpectCommand("cat /etc/fstab", &gotest.CommandResponse{
				ExitCode: 0, Stdout: "/dev/sdb1 /mnt/data ext4 defaults 0 0",
			})
			conn.ExpectCommand("mount | grep ' /mnt/data '", &gotest.CommandResponse{
				ExitCode: 0, Stdout: "/dev/sdb1 on /mnt/data type ext4 (rw,relatime)",
			})

			result, err := m.Run(ctx, conn, map[string]interface{}{
				"path":   "/mnt/data",
				"src":    "/dev/sdb1",
				"fstype": "ext4",
				"state":  "mounted",
			}, hc)

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			helper.AssertSuccess(result)
			helper.AssertNotChanged(result)
			helper.AssertMessage(result, "Mount point is already in desired state")
		})

		t.Run("UnmountFilesystem", func(t *testing.T) {
			m := NewMountModule()
			helper := gotest.NewModuleTestHelper(t, m)
			conn := helper.GetConnection()
			ctx := context.Background()
			hc := &types.HostContext{Host: &types.Host{Name: "localhost"}, Connection: conn}

			conn.ExpectCommand("cat /etc/fstab", &gotest.CommandResponse{
				ExitCode: 0, Stdout: "/dev/sdb1 /mnt/data ext4 defaults 0 0",
			})
			conn.ExpectCommand("mount | grep ' /mnt/data '", &gotest.CommandResponse{
				ExitCode: 0, Stdout: "/dev/sdb1 on /mnt/data type ext4 (rw,relatime)",
			})
			conn.ExpectCommand("umount /mnt/data", &gotest.CommandResponse{ExitCode: 0})

			result, err := m.Run(ctx, conn, map[string]interface{}{
				"path":  "/mnt/data",
				"state": "unmounted",
			}, hc)

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			helper.AssertSuccess(result)
			helper.AssertChanged(result)
			conn.AssertCommandCalled("umount /mnt/data")
		})
	})
}
