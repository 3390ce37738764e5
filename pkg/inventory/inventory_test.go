package inventory

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansible/sansible/pkg/types"
)

func TestNewStaticInventory(t *testing.T) {
	inv := NewStaticInventory()
	require.NotNil(t, inv)
	assert.Contains(t, inv.groups, "all")
	assert.Contains(t, inv.groups, "ungrouped")
}

func TestNewFromYAML(t *testing.T) {
	yamlData := `
all:
  hosts:
    web1:
      ansible_host: 192.168.1.10
      env: production
    web2:
      ansible_host: 192.168.1.11
  children:
    webservers:
      hosts:
        web1: {}
        web2: {}
      vars:
        http_port: 80
    databases:
      hosts:
        db1: {}
      vars:
        db_port: 5432
`

	inv, err := NewFromYAML([]byte(yamlData))
	require.NoError(t, err)

	assert.Len(t, inv.hosts, 3)

	web1, exists := inv.hosts["web1"]
	require.True(t, exists)
	assert.Equal(t, "192.168.1.10", web1.Address())

	// all, ungrouped, webservers, databases
	assert.Len(t, inv.groups, 4)

	hosts, err := inv.GetHosts("webservers")
	require.NoError(t, err)
	assert.Len(t, hosts, 2)
}

func TestNewFromYAMLNestedChildren(t *testing.T) {
	yamlData := `
all:
  children:
    datacenter:
      children:
        webservers:
          hosts:
            web1: {}
          vars:
            http_port: 80
      vars:
        region: us-west
`
	inv, err := NewFromYAML([]byte(yamlData))
	require.NoError(t, err)

	vars, err := inv.GetHostVars("web1")
	require.NoError(t, err)
	assert.Equal(t, "us-west", vars["region"])
	assert.Equal(t, 80, vars["http_port"])
}

func TestAddHost(t *testing.T) {
	inv := NewStaticInventory()

	host, err := inv.AddHost("test1", map[string]interface{}{"env": "test"}, "testgroup")
	require.NoError(t, err)
	assert.Equal(t, "test1", host.Name)
	assert.True(t, host.Groups["testgroup"])

	group, err := inv.GetGroup("testgroup")
	require.NoError(t, err)
	assert.Equal(t, "testgroup", group.Name)
}

func TestGetHosts(t *testing.T) {
	inv := NewStaticInventory()

	inv.AddHost("web1", map[string]interface{}{"ansible_host": "192.168.1.10"}, "webservers")
	inv.AddHost("web2", map[string]interface{}{"ansible_host": "192.168.1.11"}, "webservers")
	inv.AddHost("db1", map[string]interface{}{"ansible_host": "192.168.1.20"}, "databases")

	tests := []struct {
		pattern  string
		expected int
		desc     string
	}{
		{"*", 3, "all hosts"},
		{"", 3, "empty pattern (all hosts)"},
		{"web*", 2, "web hosts by wildcard"},
		{"webservers", 2, "hosts in webservers group"},
		{"databases", 1, "hosts in databases group"},
		{"nonexistent", 0, "nonexistent pattern"},
		{"webservers,databases", 3, "union"},
		{"all,!db1", 2, "difference"},
		{"webservers:&web1", 1, "intersection narrows to exact host"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result, err := inv.GetHosts(tt.pattern)
			require.NoError(t, err)
			assert.Len(t, result, tt.expected)
		})
	}
}

func TestGetHostsIntersection(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddHost("web1", nil, "webservers", "prod")
	inv.AddHost("web2", nil, "webservers")
	inv.AddHost("db1", nil, "databases", "prod")

	hosts, err := inv.GetHosts("webservers:&prod")
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "web1", hosts[0].Name)
}

func TestGetHostsGroupChildClosure(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddHost("web1", nil, "webservers")
	inv.AddHost("db1", nil, "databases")
	inv.LinkGroups("prod", "webservers")
	inv.LinkGroups("prod", "databases")

	hosts, err := inv.GetHosts("prod")
	require.NoError(t, err)
	assert.Len(t, hosts, 2)
}

func TestGetHost(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddHost("test1", map[string]interface{}{"ansible_host": "192.168.1.100"})

	retrieved, err := inv.GetHost("test1")
	require.NoError(t, err)
	assert.Equal(t, "test1", retrieved.Name)

	retrieved, err = inv.GetHost("192.168.1.100")
	require.NoError(t, err)
	assert.Equal(t, "test1", retrieved.Name)

	_, err = inv.GetHost("nonexistent")
	assert.ErrorIs(t, err, types.ErrHostNotFound)
}

func TestGetHostVars(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddGroupVars("webservers", map[string]interface{}{
		"http_port": 80,
		"env":       "production",
	})
	inv.AddHost("web1", map[string]interface{}{
		"ansible_host": "192.168.1.10",
		"ansible_user": "ubuntu",
		"env":          "staging", // overrides group var
		"server_role":  "frontend",
	}, "webservers")

	vars, err := inv.GetHostVars("web1")
	require.NoError(t, err)

	assert.Equal(t, "web1", vars["inventory_hostname"])
	assert.Equal(t, "192.168.1.10", vars["ansible_host"])
	assert.Equal(t, "ubuntu", vars["ansible_user"])
	assert.Equal(t, 80, vars["http_port"])
	assert.Equal(t, "staging", vars["env"])
	assert.Equal(t, "frontend", vars["server_role"])
}

func TestGetHostVarsAncestorGroups(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddGroupVars("datacenter", map[string]interface{}{"region": "us-west"})
	inv.LinkGroups("datacenter", "webservers")
	inv.AddHost("web1", nil, "webservers")

	vars, err := inv.GetHostVars("web1")
	require.NoError(t, err)
	assert.Equal(t, "us-west", vars["region"])
}

func TestExpandHostRange(t *testing.T) {
	tests := []struct {
		pattern  string
		expected []string
		desc     string
	}{
		{
			"web[1:3].example.com",
			[]string{"web1.example.com", "web2.example.com", "web3.example.com"},
			"range pattern",
		},
		{
			"db[01:03].local",
			[]string{"db01.local", "db02.local", "db03.local"},
			"zero-padded range pattern",
		},
		{
			"single.host",
			[]string{"single.host"},
			"single host pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result, err := expandHostRange(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExpandHostRangeMultipleSpans(t *testing.T) {
	result, err := expandHostRange("dc[1:2]-web[1:2].example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"dc1-web1.example.com",
		"dc1-web2.example.com",
		"dc2-web1.example.com",
		"dc2-web2.example.com",
	}, result)
}

func TestExpandHostRangeInvalid(t *testing.T) {
	_, err := expandHostRange("web[5:1].example.com")
	assert.Error(t, err)
}

func TestToYAMLAndSaveToFile(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddHost("web1", map[string]interface{}{"ansible_host": "192.168.1.10", "env": "test"}, "webservers")
	inv.AddGroupVars("webservers", map[string]interface{}{"http_port": 80})

	yamlData, err := inv.ToYAML()
	require.NoError(t, err)

	yamlStr := string(yamlData)
	assert.Contains(t, yamlStr, "web1")
	assert.Contains(t, yamlStr, "webservers")

	parsedInv, err := NewFromYAML(yamlData)
	require.NoError(t, err)
	assert.Len(t, parsedInv.hosts, 1)

	hosts, err := parsedInv.GetHosts("webservers")
	require.NoError(t, err)
	assert.Len(t, hosts, 1)
}

func TestRemoveHost(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddHost("web1", nil, "webservers")

	_, err := inv.GetHost("web1")
	require.NoError(t, err)

	require.NoError(t, inv.RemoveHost("web1"))

	_, err = inv.GetHost("web1")
	assert.ErrorIs(t, err, types.ErrHostNotFound)
}

func TestRemoveGroup(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddHost("web1", nil, "webservers")

	_, err := inv.GetGroup("webservers")
	require.NoError(t, err)

	require.NoError(t, inv.RemoveGroup("webservers"))

	_, err = inv.GetGroup("webservers")
	assert.ErrorIs(t, err, types.ErrGroupNotFound)

	host, err := inv.GetHost("web1")
	require.NoError(t, err)
	assert.False(t, host.Groups["webservers"])
}

func TestToYAMLContainsNoDuplicateTopLevel(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddHost("web1", nil, "webservers")
	data, err := inv.ToYAML()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(string(data)), "all:"))
}

func BenchmarkGetHosts(b *testing.B) {
	inv := NewStaticInventory()
	for i := 0; i < 1000; i++ {
		inv.AddHost(fmt.Sprintf("host%d", i), map[string]interface{}{
			"ansible_host": fmt.Sprintf("192.168.1.%d", i%254+1),
		}, "testgroup")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := inv.GetHosts("testgroup"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetHostVars(b *testing.B) {
	inv := NewStaticInventory()
	groupVars := make(map[string]interface{})
	for i := 0; i < 100; i++ {
		groupVars[fmt.Sprintf("var%d", i)] = fmt.Sprintf("value%d", i)
	}
	inv.AddGroupVars("testgroup", groupVars)

	hostVars := make(map[string]interface{})
	for i := 0; i < 50; i++ {
		hostVars[fmt.Sprintf("hostvar%d", i)] = fmt.Sprintf("hostvalue%d", i)
	}
	inv.AddHost("testhost", hostVars, "testgroup")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := inv.GetHostVars("testhost"); err != nil {
			b.Fatal(err)
		}
	}
}
