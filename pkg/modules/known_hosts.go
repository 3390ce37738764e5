package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/sansible/sansible/pkg/types"
)

// KnownHostsModule adds or removes SSH host keys from a known_hosts file,
// grounded on original_source's builtin_known_hosts.py.
type KnownHostsModule struct {
	BaseModule
}

// NewKnownHostsModule creates a new known_hosts module instance
func NewKnownHostsModule() *KnownHostsModule {
	return &KnownHostsModule{
		BaseModule: BaseModule{name: "known_hosts"},
	}
}

func (m *KnownHostsModule) run(ctx context.Context, conn types.Connection, args map[string]interface{}, checkMode bool) (*Result, error) {
	name := m.GetStringArg(args, "name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	key := m.GetStringArg(args, "key", "")
	path := m.GetStringArg(args, "path", "")
	state := m.GetStringArg(args, "state", "present")

	if path == "" {
		r, err := m.execute(ctx, conn, "echo ~/.ssh/known_hosts", ExecOptions{})
		if err != nil {
			return nil, err
		}
		path = strings.TrimSpace(r.Message)
	}

	if state == "present" && key == "" {
		if checkMode {
			return m.CreateSuccessResult("", true, fmt.Sprintf("would add %s to %s (key would be fetched)", name, path), nil), nil
		}
		r, err := m.execute(ctx, conn, fmt.Sprintf("ssh-keyscan -H '%s' 2>/dev/null", name), ExecOptions{})
		if err != nil {
			return nil, err
		}
		rc, _ := r.Data["rc"].(int)
		if rc != 0 || strings.TrimSpace(r.Message) == "" {
			return m.CreateFailureResult("", fmt.Sprintf("failed to fetch SSH key for %s", name), nil, nil), nil
		}
		key = strings.TrimSpace(r.Message)
	}

	r, err := m.execute(ctx, conn, fmt.Sprintf("cat '%s' 2>/dev/null || true", path), ExecOptions{})
	if err != nil {
		return nil, err
	}
	lines := strings.Split(r.Message, "\n")

	hostPresent := false
	hostLineIdx := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}
		hosts := strings.Split(fields[0], ",")
		if types.StringSliceContains(hosts, name) || fields[0] == "["+name+"]" {
			hostPresent = true
			hostLineIdx = i
			break
		}
	}

	changed := false
	switch state {
	case "absent":
		if hostPresent {
			lines = append(lines[:hostLineIdx], lines[hostLineIdx+1:]...)
			changed = true
		}
	default:
		if !hostPresent {
			lines = append(lines, key)
			changed = true
		}
	}

	if checkMode {
		verb := "add"
		prep := "to"
		if state == "absent" {
			verb, prep = "remove", "from"
		}
		return m.CreateSuccessResult("", changed, fmt.Sprintf("would %s %s %s %s", verb, name, prep, path), nil), nil
	}

	if changed {
		dir := path[:strings.LastIndex(path, "/")+1]
		if _, err := m.execute(ctx, conn, fmt.Sprintf("mkdir -p '%s'", dir), ExecOptions{}); err != nil {
			return nil, err
		}
		newContent := strings.Join(lines, "\n")
		if newContent != "" && !strings.HasSuffix(newContent, "\n") {
			newContent += "\n"
		}
		escaped := strings.ReplaceAll(newContent, "'", `'"'"'`)
		r, err := m.execute(ctx, conn, fmt.Sprintf("printf '%%s' '%s' > '%s'", escaped, path), ExecOptions{})
		if err != nil {
			return nil, err
		}
		rc, _ := r.Data["rc"].(int)
		if rc != 0 {
			return m.CreateFailureResult("", fmt.Sprintf("failed to write known_hosts: %v", r.Data["stderr"]), nil, nil), nil
		}
	}

	verb := "already in"
	if changed {
		if state == "present" {
			verb = "added to"
		} else {
			verb = "removed from"
		}
	}
	return m.CreateSuccessResult("", changed, fmt.Sprintf("host %s %s %s", name, verb, path), map[string]interface{}{
		"name": name,
		"path": path,
	}), nil
}

// ValidateArgs checks that name is present.
func (m *KnownHostsModule) ValidateArgs(args map[string]interface{}) error {
	if _, ok := args["name"]; !ok {
		return types.NewValidationError("name", nil, "required field is missing")
	}
	if state, ok := args["state"].(string); ok && state != "present" && state != "absent" {
		return types.NewValidationError("state", state, "must be one of: present, absent")
	}
	return nil
}

// Documentation returns the module documentation
func (m *KnownHostsModule) Documentation() types.ModuleDoc {
	return types.ModuleDoc{
		Name:        "known_hosts",
		Description: "Add or remove SSH host keys from a known_hosts file",
		Parameters: map[string]types.ParamDoc{
			"name":      {Description: "Host name as it appears in known_hosts", Required: true, Type: "string"},
			"key":       {Description: "SSH public key line; fetched via ssh-keyscan when absent", Required: false, Type: "string"},
			"path":      {Description: "Path to the known_hosts file", Required: false, Type: "string", Default: "~/.ssh/known_hosts"},
			"state":     {Description: "Whether the entry should be present or absent", Required: false, Type: "string", Default: "present", Choices: []string{"present", "absent"}},
			"hash_host": {Description: "Accepted but not read; a given key is written as is, and a fetched key is hashed by ssh-keyscan -H", Required: false, Type: "bool", Default: false},
		},
	}
}

// Run adapts the module's internal logic to the registry contract.
func (m *KnownHostsModule) Run(ctx context.Context, conn types.Connection, args map[string]interface{}, hc *types.HostContext) (*types.ModuleResult, error) {
	checkMode := hc != nil && hc.CheckMode
	res, err := m.run(ctx, conn, args, checkMode)
	return toModuleResult(res), err
}

// Check runs the module in check mode explicitly (used when the scheduler
// dispatches based on hc.CheckMode rather than a separate Check call).
func (m *KnownHostsModule) Check(ctx context.Context, conn types.Connection, args map[string]interface{}, hc *types.HostContext) (*types.ModuleResult, error) {
	res, err := m.run(ctx, conn, args, true)
	return toModuleResult(res), err
}
