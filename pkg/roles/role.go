// Package roles loads role directories (tasks/handlers/vars/defaults/meta)
// for the playbook loader (spec §4.4) to splice into a play. Role
// execution itself belongs to the scheduler; this package only resolves
// a role name to its raw, not-yet-lowered content.
package roles

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Role is a loaded-but-not-lowered role directory. Tasks/Handlers are
// raw decoded YAML (each entry a map, possibly a block/include/role
// pseudo-task) rather than types.Task, because the playbook loader's
// lowering pass — not this package — turns raw task maps into the fully
// lowered types.Task the scheduler consumes.
type Role struct {
	Name         string
	Path         string
	Tasks        []map[string]interface{}
	Handlers     []map[string]interface{}
	Defaults     map[string]interface{}
	Vars         map[string]interface{}
	Meta         *RoleMeta
	Files        []string
	Templates    []string
	Dependencies []RoleDependency
}

// RoleMeta is role metadata from meta/main.yml.
type RoleMeta struct {
	Author            string           `yaml:"author,omitempty"`
	Description       string           `yaml:"description,omitempty"`
	Company           string           `yaml:"company,omitempty"`
	License           string           `yaml:"license,omitempty"`
	MinAnsibleVersion string           `yaml:"min_ansible_version,omitempty"`
	Platforms         []Platform       `yaml:"platforms,omitempty"`
	Dependencies      []RoleDependency `yaml:"dependencies,omitempty"`
	Tags              []string         `yaml:"galaxy_tags,omitempty"`
}

// Platform is a supported-platform entry in role metadata.
type Platform struct {
	Name     string   `yaml:"name"`
	Versions []string `yaml:"versions,omitempty"`
}

// RoleDependency is one entry of meta/main.yml's dependencies list.
type RoleDependency struct {
	Role    string                 `yaml:"role"`
	Src     string                 `yaml:"src,omitempty"`
	Version string                 `yaml:"version,omitempty"`
	Vars    map[string]interface{} `yaml:"vars,omitempty"`
	Tags    []string               `yaml:"tags,omitempty"`
}

// Manager resolves role names to loaded Role values, searching paths in
// order. Spec §4.4: "searching, in order, <playbook_dir>/roles/<name>,
// then <cwd>/roles/<name>".
type Manager struct {
	searchPaths []string
	loaded      map[string]*Role
}

// NewManager creates a role manager. playbookDir is the directory
// containing the playbook file being loaded (empty if unknown); it is
// searched before the current working directory's roles/ subdirectory,
// and both before any additional paths the caller supplies.
func NewManager(playbookDir string, extraPaths ...string) *Manager {
	var searchPaths []string
	if playbookDir != "" {
		searchPaths = append(searchPaths, filepath.Join(playbookDir, "roles"))
	}
	searchPaths = append(searchPaths, "roles")
	searchPaths = append(searchPaths, extraPaths...)

	return &Manager{
		searchPaths: searchPaths,
		loaded:      make(map[string]*Role),
	}
}

// Load loads a role by name, searching paths in order and caching the
// result for subsequent lookups of the same name (role_vars/role_defaults
// are expected to be identical across every task that references it).
func (m *Manager) Load(name string) (*Role, error) {
	if role, ok := m.loaded[name]; ok {
		return role, nil
	}

	var rolePath string
	for _, base := range m.searchPaths {
		candidate := filepath.Join(base, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			rolePath = candidate
			break
		}
	}
	if rolePath == "" {
		return nil, fmt.Errorf("role %q not found in paths: %v", name, m.searchPaths)
	}

	role := &Role{Name: name, Path: rolePath}

	var err error
	if role.Tasks, err = loadTaskFile(filepath.Join(rolePath, "tasks", "main.yml")); err != nil {
		return nil, fmt.Errorf("loading tasks for role %q: %w", name, err)
	}
	if role.Handlers, err = loadTaskFile(filepath.Join(rolePath, "handlers", "main.yml")); err != nil {
		return nil, fmt.Errorf("loading handlers for role %q: %w", name, err)
	}
	if role.Vars, err = loadVarsFile(filepath.Join(rolePath, "vars", "main.yml")); err != nil {
		return nil, fmt.Errorf("loading vars for role %q: %w", name, err)
	}
	if role.Defaults, err = loadVarsFile(filepath.Join(rolePath, "defaults", "main.yml")); err != nil {
		return nil, fmt.Errorf("loading defaults for role %q: %w", name, err)
	}
	if role.Meta, err = loadMetaFile(filepath.Join(rolePath, "meta", "main.yml")); err != nil {
		return nil, fmt.Errorf("loading meta for role %q: %w", name, err)
	}
	if role.Meta != nil {
		role.Dependencies = role.Meta.Dependencies
	}

	role.Files = listFiles(filepath.Join(rolePath, "files"))
	role.Templates = listFiles(filepath.Join(rolePath, "templates"))

	m.loaded[name] = role
	return role, nil
}

// loadTaskFile decodes a tasks/main.yml or handlers/main.yml file as raw
// maps, deferring module-key recognition and block/include lowering to
// the playbook loader. A missing file is not an error: both are optional.
func loadTaskFile(path string) ([]map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tasks []map[string]interface{}
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// loadVarsFile decodes a vars/main.yml or defaults/main.yml file. A
// missing file yields an empty map, not an error.
func loadVarsFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	vars := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// loadMetaFile decodes meta/main.yml. A missing file yields nil, not an
// error: role dependencies are optional.
func loadMetaFile(path string) (*RoleMeta, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta RoleMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// listFiles lists relative paths of every regular file under dir,
// used for files/ and templates/ inventories a `copy`/`template` task
// can reference by role-relative name. Returns nil (not an error) for a
// directory that doesn't exist.
func listFiles(dir string) []string {
	var files []string
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(dir, path); relErr == nil {
			files = append(files, rel)
		}
		return nil
	})
	return files
}

// RolePath returns the filesystem path the role was loaded from.
func (m *Manager) RolePath(name string) (string, error) {
	role, err := m.Load(name)
	if err != nil {
		return "", err
	}
	return role.Path, nil
}

// RoleFile resolves a file by name within a role's files/templates
// subdirectory, verifying it exists.
func (m *Manager) RoleFile(name, subdir, fileName string) (string, error) {
	role, err := m.Load(name)
	if err != nil {
		return "", err
	}
	full := filepath.Join(role.Path, subdir, fileName)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("file %q not found in role %q %s directory", fileName, name, subdir)
	}
	return full, nil
}

// List returns every role name found across the search paths.
func (m *Manager) List() []string {
	seen := make(map[string]bool)
	for _, base := range m.searchPaths {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				seen[e.Name()] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}
