package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
all:
  hosts:
    web1:
      ansible_host: 10.0.0.1
`), 0644))

	inv, err := Load(context.Background(), path)
	require.NoError(t, err)
	host, err := inv.GetHost("web1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", host.Address())
}

func TestLoadINIFileByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.ini")
	require.NoError(t, os.WriteFile(path, []byte("[web]\nweb1 ansible_host=10.0.0.2\n"), 0644))

	inv, err := Load(context.Background(), path)
	require.NoError(t, err)
	hosts, err := inv.GetHosts("web")
	require.NoError(t, err)
	assert.Len(t, hosts, 1)
}

func TestLoadDirectoryMergesChildren(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-web.ini"), []byte("[web]\nweb1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-db.yml"), []byte(`
all:
  children:
    db:
      hosts:
        db1: {}
`), 0644))

	inv, err := Load(context.Background(), dir)
	require.NoError(t, err)

	hosts, err := inv.GetHosts("all")
	require.NoError(t, err)
	assert.Len(t, hosts, 2)
}

func TestLoadAppliesHostVarsAndGroupVarsDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hosts.ini"), []byte("[web]\nweb1\n"), 0644))

	hostVarsDir := filepath.Join(dir, "host_vars")
	require.NoError(t, os.MkdirAll(hostVarsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(hostVarsDir, "web1.yml"), []byte("custom_var: from_host_vars\n"), 0644))

	groupVarsDir := filepath.Join(dir, "group_vars", "web")
	require.NoError(t, os.MkdirAll(groupVarsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(groupVarsDir, "main.yml"), []byte("http_port: 8080\n"), 0644))

	inv, err := Load(context.Background(), filepath.Join(dir, "hosts.ini"))
	require.NoError(t, err)

	vars, err := inv.GetHostVars("web1")
	require.NoError(t, err)
	assert.Equal(t, "from_host_vars", vars["custom_var"])
	assert.Equal(t, 8080, vars["http_port"])
}
