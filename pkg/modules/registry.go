// Package modules provides the module system architecture for sansible.
package modules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sansible/sansible/pkg/types"
)

// ModuleRegistry manages registered modules
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]types.Module
	aliases map[string]string
}

// NewModuleRegistry creates a new module registry
func NewModuleRegistry() *ModuleRegistry {
	registry := &ModuleRegistry{
		modules: make(map[string]types.Module),
		aliases: make(map[string]string),
	}

	// Register built-in modules
	registry.registerBuiltinModules()
	registry.registerBuiltinAliases()

	return registry
}

// RegisterAlias maps a Galaxy-style fully-qualified name (or any other
// alternate spelling) to an already-registered short module name.
func (r *ModuleRegistry) RegisterAlias(alias, shortName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = shortName
}

// registerBuiltinAliases wires the `ansible.builtin.*` collection name for
// every module this registry ships natively (spec §4.5: "Galaxy-style
// fully-qualified names are mapped to the short name when a native
// implementation exists").
func (r *ModuleRegistry) registerBuiltinAliases() {
	r.mu.RLock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		r.RegisterAlias("ansible.builtin."+name, name)
	}
}

// isFQCN reports whether name has the three-component
// "namespace.collection.module" shape (spec §4.4/§4.5/glossary).
func isFQCN(name string) bool {
	return strings.Count(name, ".") == 2
}

// Resolve implements the module-name resolution step of spec §4.4/§4.6.6:
// a registered short name resolves directly; a known alias (including the
// `ansible.builtin.*` collection) maps to its short name; any other
// three-component FQCN falls through to the passthrough module. Returns
// the resolved module and whether it was resolved natively (false means
// the passthrough module is standing in for an unimplemented FQCN).
func (r *ModuleRegistry) Resolve(name string) (module types.Module, native bool, err error) {
	if m, err := r.GetModule(name); err == nil {
		return m, true, nil
	}

	r.mu.RLock()
	alias, hasAlias := r.aliases[name]
	r.mu.RUnlock()
	if hasAlias {
		m, err := r.GetModule(alias)
		return m, err == nil, err
	}

	if isFQCN(name) {
		return NewPassthroughModule(name), false, nil
	}

	return nil, false, types.ErrModuleNotFound
}

// RegisterModule registers a module in the registry
func (r *ModuleRegistry) RegisterModule(module types.Module) error {
	if module == nil {
		return fmt.Errorf("module cannot be nil")
	}

	name := module.Name()
	if name == "" {
		return fmt.Errorf("module name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.modules[name] = module
	return nil
}

// GetModule retrieves a module by name
func (r *ModuleRegistry) GetModule(name string) (types.Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	module, exists := r.modules[name]
	if !exists {
		return nil, types.ErrModuleNotFound
	}

	return module, nil
}

// ListModules returns all registered module names
func (r *ModuleRegistry) ListModules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name := range r.modules {
		names = append(names, name)
	}

	return names
}

// GetModuleDocumentation returns documentation for a module
func (r *ModuleRegistry) GetModuleDocumentation(name string) (*types.ModuleDoc, error) {
	module, err := r.GetModule(name)
	if err != nil {
		return nil, err
	}

	doc := module.Documentation()
	return &doc, nil
}

// UnregisterModule removes a module from the registry
func (r *ModuleRegistry) UnregisterModule(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; !exists {
		return types.ErrModuleNotFound
	}

	delete(r.modules, name)
	return nil
}

// ValidateModuleArgs validates module arguments before execution
func (r *ModuleRegistry) ValidateModuleArgs(name string, args map[string]interface{}) error {
	module, err := r.GetModule(name)
	if err != nil {
		return err
	}

	return module.ValidateArgs(args)
}

// registerBuiltinModules registers all built-in modules
func (r *ModuleRegistry) registerBuiltinModules() {
	// Register ping module
	r.RegisterModule(NewPingModule())

	// Register command module
	r.RegisterModule(NewCommandModule())

	// Register copy module
	r.RegisterModule(NewCopyModule())

	// Register template module
	r.RegisterModule(NewTemplateModule())

	// Register file module
	r.RegisterModule(NewFileModule())

	// Register setup module (fact gathering)
	r.RegisterModule(NewSetupModule())

	// Register shell module
	r.RegisterModule(NewShellModule())

	// Register debug module
	r.RegisterModule(NewDebugModule())

	// Register service module
	r.RegisterModule(NewServiceModule())

	// Register package module
	r.RegisterModule(NewPackageModule())

	// Register user module
	r.RegisterModule(NewUserModule())

	// Register group module
	r.RegisterModule(NewGroupModule())

	// Register archive module
	r.RegisterModule(NewArchiveModule())

	// Register unarchive module
	r.RegisterModule(NewUnarchiveModule())

	// Register gem module
	r.RegisterModule(NewGemModule())

	// Register mount module
	r.RegisterModule(NewMountModule())

	// Register npm module
	r.RegisterModule(NewNpmModule())

	// Register pip module
	r.RegisterModule(NewPipModule())

	// Register sysctl module
	r.RegisterModule(NewSysctlModule())

	// Register iptables module
	r.RegisterModule(NewIPTablesModule())

	// Register find module
	r.RegisterModule(NewFindModule())

	// Register known_hosts module
	r.RegisterModule(NewKnownHostsModule())

	// Register include_vars module
	r.RegisterModule(NewIncludeVarsModule())
}

// DefaultModuleRegistry provides a default module registry instance
var DefaultModuleRegistry = NewModuleRegistry()
