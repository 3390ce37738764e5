package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHostAddressDefaultsToName(t *testing.T) {
	h := &Host{Name: "web01"}
	assert.Equal(t, "web01", h.Address())
}

func TestHostAddressUsesAnsibleHost(t *testing.T) {
	h := &Host{Name: "web01", Vars: map[string]interface{}{"ansible_host": "10.0.0.5"}}
	assert.Equal(t, "10.0.0.5", h.Address())
}

func TestHostPortDefaultsToZero(t *testing.T) {
	h := &Host{Name: "web01"}
	assert.Equal(t, 0, h.Port())
}

func TestHostPortFromVars(t *testing.T) {
	h := &Host{Name: "web01", Vars: map[string]interface{}{"ansible_port": 2222}}
	assert.Equal(t, 2222, h.Port())
}

func TestHostConnectionTypeDefaultsToSSH(t *testing.T) {
	h := &Host{Name: "web01"}
	assert.Equal(t, ConnectionSSH, h.ConnectionType())
}

func TestHostConnectionTypeLocalhost(t *testing.T) {
	for _, name := range []string{"localhost", "127.0.0.1", "::1"} {
		h := &Host{Name: "control", Vars: map[string]interface{}{"ansible_host": name}}
		assert.Equal(t, ConnectionLocal, h.ConnectionType(), name)
	}
}

func TestHostConnectionTypeExplicit(t *testing.T) {
	h := &Host{Name: "win01", Vars: map[string]interface{}{"ansible_connection": "winrm"}}
	assert.Equal(t, ConnectionWinRM, h.ConnectionType())
}

func TestHostInventoryHostnameShort(t *testing.T) {
	h := &Host{Name: "web01.example.com"}
	assert.Equal(t, "web01.example.com", h.InventoryHostname())
	assert.Equal(t, "web01", h.InventoryHostnameShort())
}

func TestTaskHasTag(t *testing.T) {
	task := &Task{Tags: map[string]bool{"deploy": true}}
	assert.True(t, task.HasTag("deploy"))
	assert.False(t, task.HasTag("missing"))
}

func TestTaskHasTagNilMap(t *testing.T) {
	task := &Task{}
	assert.False(t, task.HasTag("anything"))
}

func TestHostContextEffectiveVarsOverlaysRegistered(t *testing.T) {
	hc := NewHostContext(&Host{Name: "h1"}, map[string]interface{}{"a": 1, "b": 2})
	hc.Registered["b"] = 3
	merged := hc.EffectiveVars()
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 3, merged["b"])
}

func TestTaskResultFailed(t *testing.T) {
	assert.True(t, TaskResult{Status: StatusFailed}.Failed())
	assert.True(t, TaskResult{Status: StatusUnreachable}.Failed())
	assert.False(t, TaskResult{Status: StatusOK}.Failed())
	assert.False(t, TaskResult{Status: StatusSkipped}.Failed())
}

func TestTaskResultCanonical(t *testing.T) {
	r := TaskResult{
		Status:  StatusChanged,
		Changed: true,
		RC:      0,
		Stdout:  "line1\nline2\n",
		Stderr:  "",
		Message: "done",
		Results: map[string]interface{}{"custom": "value"},
	}
	canon := r.Canonical()
	assert.Equal(t, true, canon["changed"])
	assert.Equal(t, []string{"line1", "line2"}, canon["stdout_lines"])
	assert.Equal(t, []string{}, canon["stderr_lines"])
	assert.Equal(t, false, canon["failed"])
	assert.Equal(t, "value", canon["custom"])
}

func TestHostStatsRecordAndMerge(t *testing.T) {
	s := &HostStats{}
	s.Record(StatusOK)
	s.Record(StatusChanged)
	s.Record(StatusFailed)
	s.Record(StatusSkipped)
	s.Record(StatusUnreachable)
	assert.Equal(t, HostStats{OK: 1, Changed: 1, Failed: 1, Skipped: 1, Unreachable: 1}, *s)

	other := &HostStats{OK: 2}
	s.Merge(*other)
	assert.Equal(t, 3, s.OK)
}

func TestPlaybookResultMergedStats(t *testing.T) {
	pr := &PlaybookResult{
		Plays: []PlayResult{
			{Stats: map[string]*HostStats{"h1": {OK: 1}}},
			{Stats: map[string]*HostStats{"h1": {OK: 1, Changed: 1}, "h2": {Failed: 1}}},
		},
	}
	merged := pr.MergedStats()
	assert.Equal(t, 2, merged["h1"].OK)
	assert.Equal(t, 1, merged["h1"].Changed)
	assert.Equal(t, 1, merged["h2"].Failed)
}

func TestModuleResultToTaskResultStatuses(t *testing.T) {
	start := time.Now()
	cases := []struct {
		name   string
		result ModuleResult
		want   TaskStatus
	}{
		{"ok", ModuleResult{}, StatusOK},
		{"changed", ModuleResult{Changed: true}, StatusChanged},
		{"failed", ModuleResult{Failed: true}, StatusFailed},
		{"skipped", ModuleResult{Skipped: true}, StatusSkipped},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr := c.result.ToTaskResult("h1", "task1", "command", start)
			assert.Equal(t, c.want, tr.Status)
			assert.Equal(t, "h1", tr.Host)
			assert.Equal(t, "task1", tr.TaskName)
		})
	}
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{}, SplitLines(""))
	assert.Equal(t, []string{"a"}, SplitLines("a"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\nb"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\nb\n"))
}

func TestConvertToBoolAnsibleTruthy(t *testing.T) {
	assert.True(t, ConvertToBool("yes"))
	assert.True(t, ConvertToBool("true"))
	assert.True(t, ConvertToBool("on"))
	assert.True(t, ConvertToBool(1))
	assert.False(t, ConvertToBool("no"))
	assert.False(t, ConvertToBool("false"))
	assert.False(t, ConvertToBool(""))
	assert.False(t, ConvertToBool(nil))
}

func TestDeepMergeInterfaceMapsNested(t *testing.T) {
	base := map[string]interface{}{
		"a": 1,
		"nested": map[string]interface{}{
			"x": 1,
			"y": 2,
		},
	}
	override := map[string]interface{}{
		"nested": map[string]interface{}{
			"y": 20,
			"z": 3,
		},
	}
	merged := DeepMergeInterfaceMaps(base, override)
	nested := merged["nested"].(map[string]interface{})
	assert.Equal(t, 1, nested["x"])
	assert.Equal(t, 20, nested["y"])
	assert.Equal(t, 3, nested["z"])
	assert.Equal(t, 1, merged["a"])
}

func TestLayeredVarsPrecedence(t *testing.T) {
	low := map[string]interface{}{"env": "default", "region": "us-east"}
	mid := map[string]interface{}{"env": "staging"}
	high := map[string]interface{}{"env": "prod"}
	merged := LayeredVars(low, mid, high)
	assert.Equal(t, "prod", merged["env"])
	assert.Equal(t, "us-east", merged["region"])
}
