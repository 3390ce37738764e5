// Package vars implements the variable-precedence layering spec §3/§4.3
// describes: host/group inventory vars, play vars, role defaults/vars,
// vars_files, extra-vars, and registered results each sit at a distinct
// layer, merged low-to-high into the flat map templating and `when`
// evaluation see. Fact gathering itself lives in pkg/modules (the setup
// module), which talks to Connection directly and merges its own results
// under ansible_facts — this package only knows how to stack maps.
package vars

import (
	"sync"

	"github.com/sansible/sansible/pkg/types"
)

// Layer names. Their precedence is fixed by layerOrder below: role
// defaults < group < host < play < role vars < vars_files < extra-vars.
// Registered results are not a layer here; the scheduler adds them per
// task.
const (
	LayerGroup     = "group"
	LayerHost      = "host"
	LayerRoleDef   = "role_defaults"
	LayerPlay      = "play"
	LayerRoleVars  = "role_vars"
	LayerVarsFiles = "vars_files"
	LayerExtra     = "extra_vars"
)

// layerOrder fixes the merge order: each later name in this slice
// overrides any key set by an earlier one.
var layerOrder = []string{
	LayerRoleDef,
	LayerGroup,
	LayerHost,
	LayerPlay,
	LayerRoleVars,
	LayerVarsFiles,
	LayerExtra,
}

// VarManager accumulates named variable layers and flattens them into a
// single precedence-ordered map on demand. It is built once per play
// (group/play/vars_files/extra-vars are shared across hosts) and cloned
// per host to add the host-specific layers.
type VarManager struct {
	mu     sync.RWMutex
	layers map[string]map[string]interface{}
}

// NewVarManager creates an empty variable manager.
func NewVarManager() *VarManager {
	return &VarManager{
		layers: make(map[string]map[string]interface{}),
	}
}

// SetLayer replaces the named layer's contents wholesale.
func (vm *VarManager) SetLayer(name string, vars map[string]interface{}) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.layers[name] = vars
}

// MergeLayer deep-merges vars into the named layer, preserving existing
// keys vars doesn't mention.
func (vm *VarManager) MergeLayer(name string, vars map[string]interface{}) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.layers[name] = types.DeepMergeInterfaceMaps(vm.layers[name], vars)
}

// SetVar sets a single key in the named layer.
func (vm *VarManager) SetVar(layer, key string, value interface{}) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.layers[layer] == nil {
		vm.layers[layer] = make(map[string]interface{})
	}
	vm.layers[layer][key] = value
}

// Clone returns a new VarManager carrying a deep copy of every layer,
// used to give each host its own Host/Group layers without sharing
// mutable state with its siblings.
func (vm *VarManager) Clone() *VarManager {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	clone := NewVarManager()
	for name, layer := range vm.layers {
		clone.layers[name] = types.DeepMergeInterfaceMaps(nil, layer)
	}
	return clone
}

// Flatten merges every layer in precedence order into one map (spec
// §4.6.2's "effective vars" computation, minus registered results and
// loop vars, which the scheduler layers on top per-task).
func (vm *VarManager) Flatten() map[string]interface{} {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	result := make(map[string]interface{})
	for _, name := range layerOrder {
		if layer, ok := vm.layers[name]; ok {
			result = types.DeepMergeInterfaceMaps(result, layer)
		}
	}
	return result
}

// GetVar looks up key in the flattened view.
func (vm *VarManager) GetVar(key string) (interface{}, bool) {
	v, ok := vm.Flatten()[key]
	return v, ok
}

// MergeVars deep-merges override onto base without mutating either,
// kept as a free function for callers that just need the primitive
// without a VarManager instance (e.g. merging role RoleVars onto a
// task's Args before templating).
func MergeVars(base, override map[string]interface{}) map[string]interface{} {
	return types.DeepMergeInterfaceMaps(base, override)
}
