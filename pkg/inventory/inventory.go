// Package inventory resolves static and dynamic inventory sources into a
// shared Host/Group graph and answers pattern queries against it.
package inventory

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sansible/sansible/pkg/types"
)

// StaticInventory implements the Inventory interface with static host and
// group data. Groups track their hosts indirectly, through each Host's own
// Groups set, rather than each group carrying a host list — mirroring
// types.Group's shape (Children/Parents only).
type StaticInventory struct {
	mu     sync.RWMutex
	hosts  map[string]*types.Host
	groups map[string]*types.Group
}

// NewStaticInventory returns an empty inventory with the two groups every
// inventory always has: "all" and "ungrouped".
func NewStaticInventory() *StaticInventory {
	return &StaticInventory{
		hosts: make(map[string]*types.Host),
		groups: map[string]*types.Group{
			"all":       types.NewGroup("all"),
			"ungrouped": types.NewGroup("ungrouped"),
		},
	}
}

// NewFromFile loads a YAML inventory file.
func NewFromFile(path string) (*StaticInventory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, types.NewInventoryError(path, "failed to open file", err)
	}
	defer file.Close()
	return NewFromReader(file)
}

// NewFromReader loads a YAML inventory from an io.Reader.
func NewFromReader(reader io.Reader) (*StaticInventory, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, types.NewInventoryError("reader", "failed to read data", err)
	}
	return NewFromYAML(data)
}

// NewFromYAML parses the recursive group → {hosts, vars, children} shape
// spec §4.3 describes (top level is the implicit "all" group's children).
func NewFromYAML(data []byte) (*StaticInventory, error) {
	var root map[string]yamlGroupNode
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, types.NewInventoryError("yaml", "failed to parse YAML", err)
	}

	inv := NewStaticInventory()
	if allNode, ok := root["all"]; ok {
		inv.loadGroupNode("all", allNode)
	} else {
		for name, node := range root {
			inv.loadGroupNode(name, node)
			inv.LinkGroups("all", name)
		}
	}
	inv.finalizeUngrouped()
	return inv, nil
}

// ensureGroupLocked returns the named group, creating it if absent. Caller
// must hold inv.mu for writing.
func (inv *StaticInventory) ensureGroupLocked(name string) *types.Group {
	if g, ok := inv.groups[name]; ok {
		return g
	}
	g := types.NewGroup(name)
	inv.groups[name] = g
	return g
}

// AddHost registers (or updates) a host and merges it into groupNames, plus
// always "all". A host added to no explicit group joins "ungrouped"; that
// membership is retracted later if the host is ever added to another group.
func (inv *StaticInventory) AddHost(name string, vars map[string]interface{}, groupNames ...string) (*types.Host, error) {
	if name == "" {
		return nil, types.NewValidationError("name", "", "host name cannot be empty")
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	host, ok := inv.hosts[name]
	if !ok {
		host = &types.Host{Name: name, Vars: make(map[string]interface{}), Groups: make(map[string]bool)}
		inv.hosts[name] = host
	}
	for k, v := range vars {
		host.Vars[k] = v
	}

	host.Groups["all"] = true
	if len(groupNames) == 0 {
		host.Groups["ungrouped"] = true
	} else {
		delete(host.Groups, "ungrouped")
		for _, g := range groupNames {
			inv.ensureGroupLocked(g)
			host.Groups[g] = true
		}
	}
	return host, nil
}

// LinkGroups records that child is nested under parent, maintaining both
// directions of the relation (types.Group stores Children and Parents
// separately; they must agree).
func (inv *StaticInventory) LinkGroups(parent, child string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	p := inv.ensureGroupLocked(parent)
	c := inv.ensureGroupLocked(child)
	p.Children[child] = true
	c.Parents[parent] = true
}

// AddGroupVars merges vars into the named group, creating it if absent.
func (inv *StaticInventory) AddGroupVars(name string, vars map[string]interface{}) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	g := inv.ensureGroupLocked(name)
	for k, v := range vars {
		g.Vars[k] = v
	}
}

// finalizeUngrouped drops "ungrouped" from any host that ended up in some
// other real group once the whole source has been loaded (a host can be
// declared under one group section and given vars under another later).
func (inv *StaticInventory) finalizeUngrouped() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, h := range inv.hosts {
		hasOther := false
		for g := range h.Groups {
			if g != "all" && g != "ungrouped" {
				hasOther = true
				break
			}
		}
		if hasOther {
			delete(h.Groups, "ungrouped")
		} else {
			h.Groups["ungrouped"] = true
		}
	}
}

// GetHost returns a specific host by inventory name or ansible_host address.
func (inv *StaticInventory) GetHost(name string) (*types.Host, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if host, exists := inv.hosts[name]; exists {
		return host, nil
	}
	for _, host := range inv.hosts {
		if host.Address() == name {
			return host, nil
		}
	}
	return nil, types.ErrHostNotFound
}

// GetGroup returns a specific group by name.
func (inv *StaticInventory) GetGroup(name string) (*types.Group, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	if group, exists := inv.groups[name]; exists {
		return group, nil
	}
	return nil, types.ErrGroupNotFound
}

// GetGroups returns every group in the inventory.
func (inv *StaticInventory) GetGroups() []types.Group {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	result := make([]types.Group, 0, len(inv.groups))
	for _, group := range inv.groups {
		result = append(result, *group)
	}
	return result
}

// GetHostVars resolves the variables visible to a host at query time,
// following spec §4.3's layering (low to high, role defaults excluded —
// those are layered in at play-load time instead): group "all", then the
// other groups the host belongs to including ancestors reached through
// nested children (unordered within this layer — resolved in sorted-name
// order for determinism), then the host's own vars.
func (inv *StaticInventory) GetHostVars(hostname string) (map[string]interface{}, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	host, exists := inv.hosts[hostname]
	if !exists {
		return nil, types.ErrHostNotFound
	}

	result := make(map[string]interface{})
	if all, ok := inv.groups["all"]; ok {
		result = types.DeepMergeInterfaceMaps(result, all.Vars)
	}

	for _, groupName := range inv.ancestorGroupNamesLocked(host.Groups) {
		if groupName == "all" {
			continue
		}
		if group, ok := inv.groups[groupName]; ok {
			result = types.DeepMergeInterfaceMaps(result, group.Vars)
		}
	}

	result = types.DeepMergeInterfaceMaps(result, host.Vars)

	result["inventory_hostname"] = host.InventoryHostname()
	result["inventory_hostname_short"] = host.InventoryHostnameShort()
	result["ansible_host"] = host.Address()
	if port := host.Port(); port != 0 {
		result["ansible_port"] = port
	}
	if user := host.User(); user != "" {
		result["ansible_user"] = user
	}

	return result, nil
}

// GetGroupVars returns a group's own variables (no layering).
func (inv *StaticInventory) GetGroupVars(groupname string) (map[string]interface{}, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	group, exists := inv.groups[groupname]
	if !exists {
		return nil, types.ErrGroupNotFound
	}
	result := make(map[string]interface{}, len(group.Vars))
	for k, v := range group.Vars {
		result[k] = v
	}
	return result, nil
}

// RemoveHost removes a host from the inventory and every group's roster.
func (inv *StaticInventory) RemoveHost(hostname string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if _, exists := inv.hosts[hostname]; !exists {
		return types.ErrHostNotFound
	}
	delete(inv.hosts, hostname)
	return nil
}

// RemoveGroup removes a group, unlinking it from every host and parent/child.
func (inv *StaticInventory) RemoveGroup(groupname string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if _, exists := inv.groups[groupname]; !exists {
		return types.ErrGroupNotFound
	}

	for _, host := range inv.hosts {
		delete(host.Groups, groupname)
	}
	for _, g := range inv.groups {
		delete(g.Children, groupname)
		delete(g.Parents, groupname)
	}
	delete(inv.groups, groupname)
	return nil
}

// yamlInventoryDoc is the export shape: a flat "all" group whose children
// map carries every other group, each with its own hosts/vars/children.
type yamlInventoryDoc struct {
	All yamlGroupNode `yaml:"all"`
}

// ToYAML exports the inventory, reconstructing nested children from the
// Parents/Children relation.
func (inv *StaticInventory) ToYAML() ([]byte, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	doc := yamlInventoryDoc{All: inv.exportGroupNodeLocked("all", map[string]bool{"all": true})}
	return yaml.Marshal(doc)
}

func (inv *StaticInventory) exportGroupNodeLocked(name string, visited map[string]bool) yamlGroupNode {
	node := yamlGroupNode{
		Hosts:    make(map[string]map[string]interface{}),
		Vars:     map[string]interface{}{},
		Children: make(map[string]yamlGroupNode),
	}
	if g, ok := inv.groups[name]; ok {
		for k, v := range g.Vars {
			node.Vars[k] = v
		}
		for child := range g.Children {
			if visited[child] {
				continue
			}
			visited[child] = true
			node.Children[child] = inv.exportGroupNodeLocked(child, visited)
		}
	}
	for hostName, h := range inv.hosts {
		if h.Groups[name] {
			node.Hosts[hostName] = h.Vars
		}
	}
	return node
}

// SaveToFile writes the inventory to path as YAML.
func (inv *StaticInventory) SaveToFile(path string) error {
	data, err := inv.ToYAML()
	if err != nil {
		return types.NewInventoryError(path, "failed to serialize inventory", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewInventoryError(path, "failed to create directory", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return types.NewInventoryError(path, "failed to write file", err)
	}
	return nil
}

var rangeSpanRegex = regexp.MustCompile(`^(.*?)\[(\d+):(\d+)\](.*)$`)

// expandHostRange expands a numeric range host-name pattern like
// "web[1:5].example.com" or "db[01:10].local" in ascending numeric order,
// preserving the declared zero-padded width, recursing to handle multiple
// range spans within one name (spec §4.3).
func expandHostRange(pattern string) ([]string, error) {
	matches := rangeSpanRegex.FindStringSubmatch(pattern)
	if matches == nil {
		return []string{pattern}, nil
	}

	prefix := matches[1]
	startStr := matches[2]
	endStr := matches[3]
	suffix := matches[4]

	start, err := types.ConvertToInt(startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid range start: %s", startStr)
	}
	end, err := types.ConvertToInt(endStr)
	if err != nil {
		return nil, fmt.Errorf("invalid range end: %s", endStr)
	}
	if start > end {
		return nil, fmt.Errorf("range start (%d) cannot be greater than end (%d)", start, end)
	}

	leadingZeros := len(startStr) > 1 && strings.HasPrefix(startStr, "0")
	width := len(startStr)

	var result []string
	for i := start; i <= end; i++ {
		var name string
		if leadingZeros {
			name = fmt.Sprintf("%s%0*d%s", prefix, width, i, suffix)
		} else {
			name = fmt.Sprintf("%s%d%s", prefix, i, suffix)
		}
		expanded, err := expandHostRange(name)
		if err != nil {
			return nil, err
		}
		result = append(result, expanded...)
	}
	return result, nil
}

// sortedGroupNames is a small helper used by callers needing deterministic
// iteration over a map[string]bool of group names.
func sortedGroupNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
