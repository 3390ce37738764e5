package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/sansible/sansible/pkg/types"
)

// scriptGroup is one compatible-shape group entry from a dynamic inventory
// script's --list output: {"hosts": [...], "children": [...], "vars": {...}}.
type scriptGroup struct {
	Hosts    []string               `json:"hosts,omitempty"`
	Children []string               `json:"children,omitempty"`
	Vars     map[string]interface{} `json:"vars,omitempty"`
}

// scriptMeta is the optional "_meta" key carrying per-host variables up
// front, sparing the loader one script invocation per host.
type scriptMeta struct {
	HostVars map[string]map[string]interface{} `json:"hostvars"`
}

// LoadExecutableScript loads a dynamic inventory from an executable script
// per spec §4.3: on POSIX, when path is a regular file with the executable
// bit set, it is invoked with --list and its stdout parsed as JSON in one
// of the compatible group shapes. A non-zero exit or invalid JSON raises a
// distinct inventory error rather than falling back to any other format.
func LoadExecutableScript(ctx context.Context, path string) (*StaticInventory, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, types.NewInventoryError(path, "failed to stat inventory script", err)
	}
	if info.IsDir() || info.Mode()&0111 == 0 {
		return nil, types.NewInventoryError(path, "inventory source is not an executable regular file", nil)
	}

	cmd := exec.CommandContext(ctx, path, "--list")
	output, err := cmd.Output()
	if err != nil {
		return nil, types.NewInventoryError(path, "inventory script exited with an error", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, types.NewInventoryError(path, "inventory script did not emit valid JSON", err)
	}

	var meta scriptMeta
	if metaRaw, ok := raw["_meta"]; ok {
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return nil, types.NewInventoryError(path, "invalid _meta.hostvars in inventory script output", err)
		}
		delete(raw, "_meta")
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	inv := NewStaticInventory()
	for _, name := range names {
		group, err := decodeScriptGroup(raw[name])
		if err != nil {
			return nil, types.NewInventoryError(path, fmt.Sprintf("invalid group %q in inventory script output", name), err)
		}
		for _, hostName := range group.Hosts {
			inv.AddHost(hostName, meta.HostVars[hostName], name)
		}
		inv.AddGroupVars(name, group.Vars)
		for _, child := range group.Children {
			inv.LinkGroups(name, child)
		}
	}
	inv.finalizeUngrouped()
	return inv, nil
}

// decodeScriptGroup accepts both the object shape ({"hosts": [...], ...})
// and the bare-array shorthand some scripts emit for a group with no vars
// or children.
func decodeScriptGroup(raw json.RawMessage) (scriptGroup, error) {
	var g scriptGroup
	if err := json.Unmarshal(raw, &g); err == nil {
		return g, nil
	}
	var hosts []string
	if err := json.Unmarshal(raw, &hosts); err != nil {
		return scriptGroup{}, err
	}
	return scriptGroup{Hosts: hosts}, nil
}
