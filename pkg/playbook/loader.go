// Package playbook loads a playbook file into an ordered list of
// types.Play (spec §4.4): parsing the YAML shape, resolving vars_files
// and roles, and lowering block/rescue/always/include constructs into a
// single flat types.Task list per play. Execution belongs to the
// scheduler; this package only produces the data the scheduler walks.
package playbook

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sansible/sansible/pkg/modules"
	"github.com/sansible/sansible/pkg/roles"
	"github.com/sansible/sansible/pkg/types"
)

// playControlKeys are the recognized play-level keys (spec §4.4).
var playControlKeys = map[string]bool{
	"name": true, "hosts": true, "gather_facts": true, "connection": true,
	"environment": true, "tags": true, "vars": true, "vars_files": true,
	"pre_tasks": true, "tasks": true, "post_tasks": true, "roles": true,
	"handlers": true, "become": true, "become_user": true, "become_method": true,
}

// unsupportedTaskKeys fail with a dedicated error wherever they appear on
// a task (spec §4.4).
var unsupportedTaskKeys = []string{"async", "poll", "delegate_facts", "local_action", "include"}

// taskControlKeys are task-level keys that are modifiers, not the module
// key, and never confused with one during module-key detection.
var taskControlKeys = map[string]bool{
	"name": true, "when": true, "loop": true, "loop_var": true, "loop_control": true,
	"register": true, "ignore_errors": true, "changed_when": true, "failed_when": true,
	"environment": true, "tags": true, "notify": true, "listen": true,
	"delegate_to": true, "become": true, "become_user": true, "become_method": true,
	"vars": true,
	// block/rescue/always and the include family are handled by dedicated
	// lowering branches before module-key detection ever runs.
	"block": true, "rescue": true, "always": true,
	"include_tasks": true, "import_tasks": true, "include_role": true, "import_role": true,
}

// Loader loads playbook files, resolving roles and module names against
// the given registry.
type Loader struct {
	registry *modules.ModuleRegistry
	blockSeq int
}

// NewLoader creates a Loader that resolves module names (including
// ansible.builtin.* aliases and Galaxy FQCN passthrough) against registry.
func NewLoader(registry *modules.ModuleRegistry) *Loader {
	if registry == nil {
		registry = modules.DefaultModuleRegistry
	}
	return &Loader{registry: registry}
}

// LoadFile reads and lowers a playbook file into its ordered Plays.
func (l *Loader) LoadFile(path string) (*types.Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewPlaybookError(path, "", "", "failed to read playbook file", err)
	}
	return l.Load(data, path)
}

// Load lowers playbook YAML already read from path (source is used only
// for error messages and to resolve relative vars_files/roles/includes).
func (l *Loader) Load(data []byte, path string) (*types.Playbook, error) {
	var rawPlays []map[string]interface{}
	if err := yaml.Unmarshal(data, &rawPlays); err != nil {
		return nil, types.NewPlaybookError(path, "", "", "failed to parse YAML", err)
	}

	playbookDir := filepath.Dir(path)
	roleMgr := roles.NewManager(playbookDir)

	plays := make([]types.Play, 0, len(rawPlays))
	for _, raw := range rawPlays {
		play, err := l.lowerPlay(raw, playbookDir, roleMgr)
		if err != nil {
			return nil, err
		}
		plays = append(plays, play)
	}

	if len(plays) == 0 {
		return nil, types.NewPlaybookError(path, "", "", "playbook must contain at least one play", nil)
	}

	return &types.Playbook{Path: path, Plays: plays}, nil
}

func (l *Loader) lowerPlay(raw map[string]interface{}, playbookDir string, roleMgr *roles.Manager) (types.Play, error) {
	name, _ := raw["name"].(string)

	for key := range raw {
		if !playControlKeys[key] {
			return types.Play{}, types.NewUnsupportedFeatureError(key, "unrecognized play-level key")
		}
	}

	hosts, ok := raw["hosts"]
	if !ok {
		return types.Play{}, types.NewPlaybookError(playbookDir, name, "", "play must specify hosts", nil)
	}

	play := types.Play{
		Name:        name,
		Hosts:       stringifyHosts(hosts),
		GatherFacts: types.ConvertToBool(raw["gather_facts"]),
		Tags:        toTagSet(raw["tags"]),
	}
	if conn, ok := raw["connection"].(string); ok {
		play.Connection = conn
	}
	if env, ok := raw["environment"].(map[string]interface{}); ok {
		play.Environment = toStringMap(env)
	}
	if become, ok := raw["become"]; ok {
		play.Become = types.ConvertToBool(become)
		play.BecomeSet = true
	}
	if v, ok := raw["become_user"].(string); ok {
		play.BecomeUser = v
	}
	if v, ok := raw["become_method"].(string); ok {
		play.BecomeMethod = v
	}

	play.Vars, _ = raw["vars"].(map[string]interface{})
	if play.Vars == nil {
		play.Vars = map[string]interface{}{}
	}

	varsFiles := toStringList(raw["vars_files"])
	play.VarsFiles = varsFiles
	for _, vf := range varsFiles {
		merged, err := loadVarsFileMerge(resolvePath(playbookDir, vf))
		if err != nil {
			return types.Play{}, types.NewPlaybookError(playbookDir, name, "", fmt.Sprintf("loading vars_files %q", vf), err)
		}
		play.Vars = types.DeepMergeInterfaceMaps(play.Vars, merged)
	}

	ctx := &lowerCtx{playbookDir: playbookDir, roleMgr: roleMgr, loader: l}

	preTasks, err := ctx.lowerTaskList(toMapList(raw["pre_tasks"]))
	if err != nil {
		return types.Play{}, err
	}
	roleTasks, err := ctx.lowerRoles(toList(raw["roles"]))
	if err != nil {
		return types.Play{}, err
	}
	tasks, err := ctx.lowerTaskList(toMapList(raw["tasks"]))
	if err != nil {
		return types.Play{}, err
	}
	postTasks, err := ctx.lowerTaskList(toMapList(raw["post_tasks"]))
	if err != nil {
		return types.Play{}, err
	}

	// Final order: pre_tasks -> role tasks -> tasks -> post_tasks (§4.4).
	play.Tasks = make([]types.Task, 0, len(preTasks)+len(roleTasks)+len(tasks)+len(postTasks))
	play.Tasks = append(play.Tasks, preTasks...)
	play.Tasks = append(play.Tasks, roleTasks...)
	play.Tasks = append(play.Tasks, tasks...)
	play.Tasks = append(play.Tasks, postTasks...)

	handlers, err := ctx.lowerTaskList(toMapList(raw["handlers"]))
	if err != nil {
		return types.Play{}, err
	}
	play.Handlers = handlers

	return play, nil
}

// lowerCtx carries the state threaded through one play's lowering pass.
type lowerCtx struct {
	playbookDir string
	roleMgr     *roles.Manager
	loader      *Loader
}

// lowerRoles loads and lowers the play's `roles` list (spec §4.4: bare
// names or mappings with role/name plus extra vars; tags/when split out).
func (c *lowerCtx) lowerRoles(entries []interface{}) ([]types.Task, error) {
	var out []types.Task
	for _, entry := range entries {
		var roleName string
		var roleVars map[string]interface{}
		var roleTags []string
		var roleWhen string

		switch v := entry.(type) {
		case string:
			roleName = v
		case map[string]interface{}:
			if n, ok := v["role"].(string); ok {
				roleName = n
			} else if n, ok := v["name"].(string); ok {
				roleName = n
			}
			roleVars = map[string]interface{}{}
			for k, val := range v {
				switch k {
				case "role", "name":
				case "tags":
					roleTags = toStringList(val)
				case "when":
					roleWhen = joinWhen(val)
				default:
					roleVars[k] = val
				}
			}
		default:
			return nil, types.NewUnsupportedFeatureError("roles", fmt.Sprintf("unrecognized role entry %T", entry))
		}

		if roleName == "" {
			return nil, types.NewPlaybookError(c.playbookDir, "", "", "role entry missing name", nil)
		}

		role, err := c.roleMgr.Load(roleName)
		if err != nil {
			return nil, types.NewPlaybookError(c.playbookDir, "", "", fmt.Sprintf("loading role %q", roleName), err)
		}

		effectiveRoleVars := types.DeepMergeInterfaceMaps(role.Defaults, role.Vars)
		effectiveRoleVars = types.DeepMergeInterfaceMaps(effectiveRoleVars, roleVars)

		roleCtx := &lowerCtx{playbookDir: filepath.Join(role.Path, "tasks"), roleMgr: c.roleMgr, loader: c.loader}
		lowered, err := roleCtx.lowerTaskList(role.Tasks)
		if err != nil {
			return nil, err
		}
		for i := range lowered {
			lowered[i].Tags = unionTagSets(lowered[i].Tags, toTagSetFromSlice(roleTags))
			if roleWhen != "" {
				lowered[i].When = andJoin(roleWhen, lowered[i].When)
			}
			lowered[i].RoleVars = types.DeepMergeInterfaceMaps(effectiveRoleVars, lowered[i].RoleVars)
		}
		out = append(out, lowered...)
	}
	return out, nil
}

// lowerTaskList lowers a raw task-map list into a flat []types.Task,
// expanding block/rescue/always and include/role directives recursively.
func (c *lowerCtx) lowerTaskList(rawTasks []map[string]interface{}) ([]types.Task, error) {
	var out []types.Task
	for _, raw := range rawTasks {
		for _, key := range unsupportedTaskKeys {
			if _, present := raw[key]; present {
				return nil, types.NewUnsupportedFeatureError(key, "task-level control key is not supported")
			}
		}

		switch {
		case raw["block"] != nil:
			lowered, err := c.lowerBlock(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)

		case raw["include_tasks"] != nil || raw["import_tasks"] != nil:
			lowered, err := c.lowerInclude(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)

		case raw["include_role"] != nil || raw["import_role"] != nil:
			lowered, err := c.lowerIncludeRole(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)

		default:
			task, err := c.loader.normalizeTask(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, task)
		}
	}
	return out, nil
}

// lowerBlock expands one block/rescue/always entry (spec §4.4).
func (c *lowerCtx) lowerBlock(raw map[string]interface{}) ([]types.Task, error) {
	c.loader.blockSeq++
	blockName, _ := raw["name"].(string)
	if blockName == "" {
		blockName = fmt.Sprintf("block_%d", c.loader.blockSeq)
	}

	blockWhen := joinWhen(raw["when"])
	blockTags := toTagSet(raw["tags"])
	var blockBecome *bool
	if v, ok := raw["become"]; ok {
		b := types.ConvertToBool(v)
		blockBecome = &b
	}
	blockBecomeUser, _ := raw["become_user"].(string)

	applyBlockContext := func(tasks []types.Task, markRescue, markAlways bool) {
		for i := range tasks {
			tasks[i].BlockName = blockName
			tasks[i].IsRescue = markRescue
			tasks[i].IsAlways = markAlways
			if blockWhen != "" {
				tasks[i].When = andJoin(blockWhen, tasks[i].When)
			}
			tasks[i].Tags = unionTagSets(tasks[i].Tags, blockTags)
			if blockBecome != nil && !tasks[i].BecomeSet {
				tasks[i].Become = *blockBecome
				tasks[i].BecomeSet = true
				if blockBecomeUser != "" {
					tasks[i].BecomeUser = blockBecomeUser
				}
			}
		}
	}

	blockTasks, err := c.lowerTaskList(toMapList(raw["block"]))
	if err != nil {
		return nil, err
	}
	applyBlockContext(blockTasks, false, false)

	rescueTasks, err := c.lowerTaskList(toMapList(raw["rescue"]))
	if err != nil {
		return nil, err
	}
	applyBlockContext(rescueTasks, true, false)

	alwaysTasks, err := c.lowerTaskList(toMapList(raw["always"]))
	if err != nil {
		return nil, err
	}
	applyBlockContext(alwaysTasks, false, true)

	out := make([]types.Task, 0, len(blockTasks)+len(rescueTasks)+len(alwaysTasks))
	out = append(out, blockTasks...)
	out = append(out, rescueTasks...)
	out = append(out, alwaysTasks...)
	return out, nil
}

// lowerInclude splices include_tasks/import_tasks content (spec §4.4:
// "include-level when is AND-composed into every included task's when,
// include-level tags are unioned"). Both directives behave identically
// here: the distinction between static and dynamic inclusion only
// matters for re-evaluation timing, which this load-time loader doesn't
// model either way.
func (c *lowerCtx) lowerInclude(raw map[string]interface{}) ([]types.Task, error) {
	file, _ := raw["include_tasks"].(string)
	if file == "" {
		file, _ = raw["import_tasks"].(string)
	}
	if file == "" {
		return nil, types.NewPlaybookError(c.playbookDir, "", "", "include_tasks/import_tasks missing file name", nil)
	}

	data, err := os.ReadFile(resolvePath(c.playbookDir, file))
	if err != nil {
		return nil, types.NewPlaybookError(c.playbookDir, "", "", fmt.Sprintf("reading included tasks file %q", file), err)
	}
	var rawTasks []map[string]interface{}
	if err := yaml.Unmarshal(data, &rawTasks); err != nil {
		return nil, types.NewPlaybookError(c.playbookDir, "", "", fmt.Sprintf("parsing included tasks file %q", file), err)
	}

	lowered, err := c.lowerTaskList(rawTasks)
	if err != nil {
		return nil, err
	}

	includeWhen := joinWhen(raw["when"])
	includeTags := toTagSet(raw["tags"])
	includeVars, _ := raw["vars"].(map[string]interface{})

	for i := range lowered {
		if includeWhen != "" {
			lowered[i].When = andJoin(includeWhen, lowered[i].When)
		}
		lowered[i].Tags = unionTagSets(lowered[i].Tags, includeTags)
		if len(includeVars) > 0 {
			lowered[i].RoleVars = types.DeepMergeInterfaceMaps(includeVars, lowered[i].RoleVars)
		}
	}
	return lowered, nil
}

// lowerIncludeRole splices include_role/import_role content (spec §4.4).
func (c *lowerCtx) lowerIncludeRole(raw map[string]interface{}) ([]types.Task, error) {
	spec, ok := raw["include_role"]
	if !ok {
		spec = raw["import_role"]
	}

	var roleName string
	switch v := spec.(type) {
	case string:
		roleName = v
	case map[string]interface{}:
		if n, ok := v["name"].(string); ok {
			roleName = n
		}
	}
	if roleName == "" {
		return nil, types.NewPlaybookError(c.playbookDir, "", "", "include_role/import_role missing name", nil)
	}

	role, err := c.roleMgr.Load(roleName)
	if err != nil {
		return nil, types.NewPlaybookError(c.playbookDir, "", "", fmt.Sprintf("loading role %q", roleName), err)
	}

	effectiveRoleVars := types.DeepMergeInterfaceMaps(role.Defaults, role.Vars)
	roleCtx := &lowerCtx{playbookDir: role.Path, roleMgr: c.roleMgr, loader: c.loader}
	lowered, err := roleCtx.lowerTaskList(role.Tasks)
	if err != nil {
		return nil, err
	}
	for i := range lowered {
		lowered[i].RoleVars = types.DeepMergeInterfaceMaps(effectiveRoleVars, lowered[i].RoleVars)
	}
	return lowered, nil
}

// normalizeTask lowers one ordinary (non-block, non-include) raw task map
// into a types.Task (spec §4.4 "Task normalization").
func (l *Loader) normalizeTask(raw map[string]interface{}) (types.Task, error) {
	t := types.Task{}
	if name, ok := raw["name"].(string); ok {
		t.Name = name
	}
	t.When = joinWhen(raw["when"])
	if v, ok := raw["loop"]; ok {
		t.Loop = v
	}
	if v, ok := raw["loop_var"].(string); ok {
		t.LoopVar = v
	}
	if v, ok := raw["register"].(string); ok {
		t.Register = v
	}
	t.IgnoreErrors = types.ConvertToBool(raw["ignore_errors"])
	t.ChangedWhen = joinWhen(raw["changed_when"])
	t.FailedWhen = joinWhen(raw["failed_when"])
	if env, ok := raw["environment"].(map[string]interface{}); ok {
		t.Environment = toStringMap(env)
	}
	t.Tags = toTagSet(raw["tags"])
	t.Notify = toStringList(raw["notify"])
	t.Listen = toStringList(raw["listen"])
	if v, ok := raw["delegate_to"].(string); ok {
		t.DelegateTo = v
	}
	if v, ok := raw["become"]; ok {
		t.Become = types.ConvertToBool(v)
		t.BecomeSet = true
	}
	if v, ok := raw["become_user"].(string); ok {
		t.BecomeUser = v
	}
	if v, ok := raw["become_method"].(string); ok {
		t.BecomeMethod = v
	}
	if v, ok := raw["vars"].(map[string]interface{}); ok {
		t.RoleVars = v
	}

	moduleKey, moduleVal, err := l.findModuleKey(raw)
	if err != nil {
		return types.Task{}, err
	}
	t.Module = moduleKey

	switch v := moduleVal.(type) {
	case map[string]interface{}:
		t.Args = v
	case string:
		if args, ok := parseInlineArgs(v); ok {
			t.Args = args
		} else {
			t.RawParams = v
		}
	case nil:
		t.Args = map[string]interface{}{}
	default:
		t.Args = map[string]interface{}{"_raw": v}
	}
	return t, nil
}

// findModuleKey locates the single non-control key on a task map that
// names a module (registered short name, alias, or FQCN passthrough).
func (l *Loader) findModuleKey(raw map[string]interface{}) (string, interface{}, error) {
	for key, val := range raw {
		if taskControlKeys[key] {
			continue
		}
		if _, _, err := l.registry.Resolve(key); err != nil {
			return "", nil, types.NewUnsupportedFeatureError(key, "unrecognized module or control key")
		}
		return key, val, nil
	}
	return "", nil, fmt.Errorf("task has no module key: %v", raw)
}
