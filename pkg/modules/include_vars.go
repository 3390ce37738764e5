package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sansible/sansible/pkg/types"
)

// IncludeVarsModule loads variables from a control-node YAML/JSON file (or
// directory of files) into the running host's variables at task time,
// grounded on original_source's builtin_include_vars.py. It is distinct
// from vars_files, which is resolved at play-parse time.
type IncludeVarsModule struct {
	BaseModule
}

// NewIncludeVarsModule creates a new include_vars module instance
func NewIncludeVarsModule() *IncludeVarsModule {
	return &IncludeVarsModule{
		BaseModule: BaseModule{name: "include_vars"},
	}
}

func (m *IncludeVarsModule) run(args map[string]interface{}) (*Result, error) {
	filePath := m.GetStringArg(args, "file", "")
	if filePath == "" {
		filePath = m.GetStringArg(args, "_raw_params", "")
	}
	dirPath := m.GetStringArg(args, "dir", "")
	varName := m.GetStringArg(args, "name", "")

	if filePath == "" && dirPath == "" {
		return m.CreateFailureResult("", "either 'file' or 'dir' must be specified", nil, nil), nil
	}

	loaded := make(map[string]interface{})
	var filesLoaded []string

	if filePath != "" {
		vars, err := loadVarsFile(filePath)
		if err != nil {
			return m.CreateFailureResult("", fmt.Sprintf("could not load vars file: %s", filePath), nil, nil), nil
		}
		for k, v := range vars {
			loaded[k] = v
		}
		filesLoaded = append(filesLoaded, filePath)
	}

	if dirPath != "" {
		extensions := m.stringListArg(args, "extensions", []string{"yaml", "yml", "json"})
		pattern := m.GetStringArg(args, "files_matching", "")
		dirVars, dirFiles, err := loadVarsDir(dirPath, extensions, pattern)
		if err != nil {
			return m.CreateFailureResult("", fmt.Sprintf("could not load vars dir: %s", dirPath), nil, nil), nil
		}
		for k, v := range dirVars {
			loaded[k] = v
		}
		filesLoaded = append(filesLoaded, dirFiles...)
	}

	var resultVars map[string]interface{}
	if varName != "" {
		resultVars = map[string]interface{}{varName: loaded}
	} else {
		resultVars = loaded
	}

	return m.CreateSuccessResult("", false, fmt.Sprintf("loaded %d vars file(s)", len(filesLoaded)), map[string]interface{}{
		"ansible_included_var_files": filesLoaded,
		"ansible_facts":              resultVars,
	}), nil
}

func loadVarsFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	vars := make(map[string]interface{})
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &vars); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &vars); err != nil {
			if jerr := json.Unmarshal(data, &vars); jerr != nil {
				return nil, err
			}
		}
	}
	return vars, nil
}

func loadVarsDir(dir string, extensions []string, pattern string) (map[string]interface{}, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	result := make(map[string]interface{})
	var filesLoaded []string
	for _, name := range names {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
		if !allowed[ext] {
			continue
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, name); !ok {
				continue
			}
		}
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		vars, err := loadVarsFile(full)
		if err != nil {
			continue
		}
		for k, v := range vars {
			result[k] = v
		}
		filesLoaded = append(filesLoaded, full)
	}
	return result, filesLoaded, nil
}

func (m *IncludeVarsModule) stringListArg(args map[string]interface{}, key string, def []string) []string {
	v, exists := args[key]
	if !exists {
		return def
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, len(vv))
		for i, item := range vv {
			out[i] = types.ConvertToString(item)
		}
		return out
	default:
		return def
	}
}

// ValidateArgs requires either file or dir (or free-form _raw_params).
func (m *IncludeVarsModule) ValidateArgs(args map[string]interface{}) error {
	_, hasFile := args["file"]
	_, hasDir := args["dir"]
	_, hasRaw := args["_raw_params"]
	if !hasFile && !hasDir && !hasRaw {
		return types.NewValidationError("file", nil, "either 'file' or 'dir' must be specified")
	}
	return nil
}

// Documentation returns the module documentation
func (m *IncludeVarsModule) Documentation() types.ModuleDoc {
	return types.ModuleDoc{
		Name:        "include_vars",
		Description: "Load variables from a YAML or JSON file on the control node",
		Parameters: map[string]types.ParamDoc{
			"file":           {Description: "Path to a vars file", Required: false, Type: "string"},
			"dir":            {Description: "Path to a directory of vars files", Required: false, Type: "string"},
			"name":           {Description: "Variable name to nest loaded vars under", Required: false, Type: "string"},
			"files_matching": {Description: "Glob pattern restricting which files in dir are loaded", Required: false, Type: "string"},
			"extensions":     {Description: "File extensions considered when loading a directory", Required: false, Type: "list", Default: []string{"yaml", "yml", "json"}},
		},
		Returns: map[string]string{
			"ansible_facts":              "Loaded variables, merged into the host's vars",
			"ansible_included_var_files": "List of files that were loaded",
		},
	}
}

// Check reports the same result as Run: include_vars never touches remote
// state, so check mode and run mode are identical.
func (m *IncludeVarsModule) Check(ctx context.Context, conn types.Connection, args map[string]interface{}, hc *types.HostContext) (*types.ModuleResult, error) {
	return m.Run(ctx, conn, args, hc)
}

// Run adapts the module's internal logic to the registry contract.
func (m *IncludeVarsModule) Run(ctx context.Context, conn types.Connection, args map[string]interface{}, hc *types.HostContext) (*types.ModuleResult, error) {
	res, err := m.run(args)
	return toModuleResult(res), err
}
