package inventory

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sansible/sansible/pkg/types"
)

// Load resolves path to one of the four inventory source shapes spec §4.3
// names — executable script, directory, YAML file, or INI file — parses
// it, then overlays any adjacent host_vars/ and group_vars/ directories.
func Load(ctx context.Context, path string) (*StaticInventory, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, types.NewInventoryError(path, "failed to stat inventory source", err)
	}

	var inv *StaticInventory
	switch {
	case info.IsDir():
		inv, err = loadDirectory(path)
	case info.Mode()&0111 != 0:
		inv, err = LoadExecutableScript(ctx, path)
	case strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml"):
		inv, err = NewFromFile(path)
	case strings.HasSuffix(path, ".ini") || strings.HasSuffix(path, ".cfg"):
		inv, err = LoadINIFile(path)
	default:
		inv, err = loadFileBySniffing(path)
	}
	if err != nil {
		return nil, err
	}

	if err := applyAdjacentVarsDirs(inv, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return inv, nil
}

// loadFileBySniffing is used for extensionless inventory files: YAML
// inventories parse as a mapping whose top key is typically "all", so a
// quick YAML-first attempt with an INI fallback covers both common cases.
func loadFileBySniffing(path string) (*StaticInventory, error) {
	if inv, err := NewFromFile(path); err == nil {
		return inv, nil
	}
	return LoadINIFile(path)
}

// loadDirectory parses every regular child file in sorted order, merging
// each into one inventory (spec §4.3: "each regular child file is parsed
// in sorted order as above").
func loadDirectory(dir string) (*StaticInventory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.NewInventoryError(dir, "failed to read inventory directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := NewStaticInventory()
	for _, name := range names {
		childPath := filepath.Join(dir, name)
		child, err := loadFileBySniffing(childPath)
		if err != nil {
			return nil, err
		}
		mergeInventory(merged, child)
	}
	return merged, nil
}

// mergeInventory folds src's hosts, groups, and relations into dst.
func mergeInventory(dst, src *StaticInventory) {
	src.mu.RLock()
	defer src.mu.RUnlock()

	groupNames := make([]string, 0, len(src.groups))
	for name := range src.groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		g := src.groups[name]
		dst.AddGroupVars(name, g.Vars)
		children := make([]string, 0, len(g.Children))
		for c := range g.Children {
			children = append(children, c)
		}
		sort.Strings(children)
		for _, c := range children {
			dst.LinkGroups(name, c)
		}
	}

	hostNames := make([]string, 0, len(src.hosts))
	for name := range src.hosts {
		hostNames = append(hostNames, name)
	}
	sort.Strings(hostNames)
	for _, name := range hostNames {
		h := src.hosts[name]
		groups := sortedGroupNames(h.Groups)
		var real []string
		for _, g := range groups {
			if g != "all" && g != "ungrouped" {
				real = append(real, g)
			}
		}
		dst.AddHost(name, h.Vars, real...)
	}
	dst.finalizeUngrouped()
}

// applyAdjacentVarsDirs overlays host_vars/ and group_vars/ found beside
// the source (spec §4.3): each file's stem names a host or group, and a
// directory of that name contributes the merged contents of every YAML
// file inside it.
func applyAdjacentVarsDirs(inv *StaticInventory, baseDir string) error {
	if err := applyVarsDir(filepath.Join(baseDir, "host_vars"), func(name string, vars map[string]interface{}) {
		inv.mu.Lock()
		if h, ok := inv.hosts[name]; ok {
			for k, v := range vars {
				h.Vars[k] = v
			}
		}
		inv.mu.Unlock()
	}); err != nil {
		return err
	}
	return applyVarsDir(filepath.Join(baseDir, "group_vars"), func(name string, vars map[string]interface{}) {
		inv.AddGroupVars(name, vars)
	})
}

func applyVarsDir(dir string, apply func(name string, vars map[string]interface{})) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return types.NewInventoryError(dir, "failed to read vars directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		entryPath := filepath.Join(dir, name)
		info, err := os.Stat(entryPath)
		if err != nil {
			return types.NewInventoryError(entryPath, "failed to stat vars entry", err)
		}
		stem := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		if info.IsDir() {
			vars, err := mergeYAMLFilesInDir(entryPath)
			if err != nil {
				return err
			}
			apply(stem, vars)
			continue
		}
		if !strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml") {
			continue
		}
		vars, err := readYAMLVars(entryPath)
		if err != nil {
			return err
		}
		apply(stem, vars)
	}
	return nil
}

func mergeYAMLFilesInDir(dir string) (map[string]interface{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.NewInventoryError(dir, "failed to read vars directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && (strings.HasSuffix(e.Name(), ".yml") || strings.HasSuffix(e.Name(), ".yaml")) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := make(map[string]interface{})
	for _, name := range names {
		vars, err := readYAMLVars(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		merged = types.DeepMergeInterfaceMaps(merged, vars)
	}
	return merged, nil
}

func readYAMLVars(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewInventoryError(path, "failed to read vars file", err)
	}
	var vars map[string]interface{}
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, types.NewInventoryError(path, "failed to parse vars file", err)
	}
	return vars, nil
}
