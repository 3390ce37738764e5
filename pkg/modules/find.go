package modules

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sansible/sansible/pkg/types"
)

// FindModule searches a directory tree for files/dirs matching name, age,
// and size filters, grounded on original_source's builtin_find.py: it
// shells out to the remote `find` binary rather than walking the tree
// itself, since the search target is a remote host.
type FindModule struct {
	BaseModule
}

// NewFindModule creates a new find module instance
func NewFindModule() *FindModule {
	return &FindModule{
		BaseModule: BaseModule{name: "find"},
	}
}

func (m *FindModule) run(ctx context.Context, conn types.Connection, args map[string]interface{}) (*Result, error) {
	paths := m.GetSliceArg(args, "paths")
	if paths == nil {
		return nil, fmt.Errorf("paths is required")
	}

	patterns := m.stringListArg(args, "patterns", []string{"*"})
	excludes := m.stringListArg(args, "excludes", nil)
	fileType := m.GetStringArg(args, "file_type", "file")
	recurse := m.GetBoolArg(args, "recurse", false)
	hidden := m.GetBoolArg(args, "hidden", false)
	depth, _ := m.GetIntArg(args, "depth", -1)
	age := m.GetStringArg(args, "age", "")
	size := m.GetStringArg(args, "size", "")

	cmdParts := []string{"find"}
	for _, p := range paths {
		cmdParts = append(cmdParts, types.ConvertToString(p))
	}

	if depth >= 0 {
		cmdParts = append(cmdParts, "-maxdepth", strconv.Itoa(depth))
	} else if !recurse {
		cmdParts = append(cmdParts, "-maxdepth", "1")
	}

	switch fileType {
	case "file":
		cmdParts = append(cmdParts, "-type", "f")
	case "directory":
		cmdParts = append(cmdParts, "-type", "d")
	case "link":
		cmdParts = append(cmdParts, "-type", "l")
	}

	if !hidden {
		cmdParts = append(cmdParts, "!", "-name", ".*")
	}

	if len(patterns) > 0 && !(len(patterns) == 1 && patterns[0] == "*") {
		if len(patterns) == 1 {
			cmdParts = append(cmdParts, "-name", patterns[0])
		} else {
			cmdParts = append(cmdParts, "(")
			for i, p := range patterns {
				if i > 0 {
					cmdParts = append(cmdParts, "-o")
				}
				cmdParts = append(cmdParts, "-name", p)
			}
			cmdParts = append(cmdParts, ")")
		}
	}

	for _, ex := range excludes {
		cmdParts = append(cmdParts, "!", "-name", ex)
	}

	if age != "" {
		if ageArgs := parseFindAge(age); ageArgs != nil {
			cmdParts = append(cmdParts, ageArgs...)
		}
	}

	if size != "" {
		if sizeArgs := parseFindSize(size); sizeArgs != nil {
			cmdParts = append(cmdParts, sizeArgs...)
		}
	}

	cmdParts = append(cmdParts, "-printf", "%p\\n")

	cmd := strings.Join(cmdParts, " ")
	res, err := m.execute(ctx, conn, cmd, ExecOptions{})
	if err != nil {
		return nil, err
	}

	rc, _ := res.Data["rc"].(int)
	if rc != 0 && rc != 1 {
		return m.CreateFailureResult("", fmt.Sprintf("find command failed: %v", res.Data["stderr"]), nil, nil), nil
	}

	var files []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(res.Message), "\n") {
		if line != "" {
			files = append(files, map[string]interface{}{"path": line})
		}
	}

	return m.CreateSuccessResult("", false, fmt.Sprintf("found %d file(s)", len(files)), map[string]interface{}{
		"files":    files,
		"matched":  len(files),
		"examined": len(files),
	}), nil
}

var findAgePattern = regexp.MustCompile(`^([+-]?)(\d+)([smhdw]?)$`)

func parseFindAge(age string) []string {
	m := findAgePattern.FindStringSubmatch(age)
	if m == nil {
		return nil
	}
	sign, numStr, unit := m[1], m[2], m[3]
	num, _ := strconv.Atoi(numStr)

	var days float64
	switch unit {
	case "s":
		days = float64(num) / 86400
	case "m":
		days = float64(num) / 1440
	case "h":
		days = float64(num) / 24
	case "w":
		days = float64(num) * 7
	default:
		days = float64(num)
	}

	d := int(days)
	switch sign {
	case "-":
		return []string{"-mtime", fmt.Sprintf("-%d", d)}
	case "+":
		return []string{"-mtime", fmt.Sprintf("+%d", d)}
	default:
		return []string{"-mtime", strconv.Itoa(d)}
	}
}

var findSizePattern = regexp.MustCompile(`^([+-]?)(\d+)([bkmg]?)$`)

func parseFindSize(size string) []string {
	m := findSizePattern.FindStringSubmatch(strings.ToLower(size))
	if m == nil {
		return nil
	}
	sign, num, unit := m[1], m[2], m[3]
	findUnit := "c"
	switch unit {
	case "k":
		findUnit = "k"
	case "m":
		findUnit = "M"
	case "g":
		findUnit = "G"
	}
	return []string{"-size", fmt.Sprintf("%s%s%s", sign, num, findUnit)}
}

func (m *FindModule) stringListArg(args map[string]interface{}, key string, def []string) []string {
	v, exists := args[key]
	if !exists {
		return def
	}
	switch vv := v.(type) {
	case string:
		return []string{vv}
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

// ValidateArgs checks that paths is present.
func (m *FindModule) ValidateArgs(args map[string]interface{}) error {
	if _, ok := args["paths"]; !ok {
		return types.NewValidationError("paths", nil, "required field is missing")
	}
	if ft, ok := args["file_type"].(string); ok {
		valid := map[string]bool{"file": true, "directory": true, "link": true, "any": true}
		if !valid[ft] {
			return types.NewValidationError("file_type", ft, "must be one of: file, directory, link, any")
		}
	}
	return nil
}

// Documentation returns the module documentation
func (m *FindModule) Documentation() types.ModuleDoc {
	return types.ModuleDoc{
		Name:        "find",
		Description: "Find files and directories matching criteria",
		Parameters: map[string]types.ParamDoc{
			"paths":    {Description: "List of paths to search", Required: true, Type: "list"},
			"patterns": {Description: "Shell glob patterns to match filenames", Required: false, Type: "list"},
			"excludes": {Description: "Patterns to exclude from the results", Required: false, Type: "list"},
			"file_type": {
				Description: "Type of item to find", Required: false, Type: "string",
				Default: "file", Choices: []string{"file", "directory", "link", "any"},
			},
			"recurse": {Description: "Recurse into subdirectories", Required: false, Type: "bool", Default: false},
			"depth":   {Description: "Maximum recursion depth", Required: false, Type: "int"},
			"age":     {Description: "Age filter, e.g. '1d', '-1w', '+30m'", Required: false, Type: "string"},
			"size":    {Description: "Size filter, e.g. '1m', '-1g', '+100k'", Required: false, Type: "string"},
			"hidden":  {Description: "Include hidden files", Required: false, Type: "bool", Default: false},
		},
		Returns: map[string]string{
			"files":   "List of matched files, each with a path key",
			"matched": "Number of files matched",
		},
	}
}

// Run adapts the module's internal logic to the registry contract.
func (m *FindModule) Run(ctx context.Context, conn types.Connection, args map[string]interface{}, hc *types.HostContext) (*types.ModuleResult, error) {
	res, err := m.run(ctx, conn, args)
	return toModuleResult(res), err
}
