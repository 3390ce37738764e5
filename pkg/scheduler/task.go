package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sansible/sansible/pkg/types"
)

// executeTask implements the per-host task execution protocol (spec §4.6
// "Task execution protocol" steps 2-8) for one host that has already
// passed shouldRunOn.
func (s *Scheduler) executeTask(ctx context.Context, task types.Task, hc *types.HostContext, play types.Play) types.TaskResult {
	start := time.Now()

	effective := s.effectiveVars(hc, task)

	if task.When != "" {
		ok, err := s.Template.EvaluateWhen(task.When, effective)
		if err != nil {
			return failedResult(hc.Host.Name, task, fmt.Sprintf("when evaluation failed: %v", err), start)
		}
		if !ok {
			return skippedResult(hc.Host.Name, task)
		}
	}
	if task.IsRescue {
		if !hc.FailedBlocks[task.BlockName] || hc.RescuedBlocks[task.BlockName] {
			return skippedResult(hc.Host.Name, task)
		}
	}

	execCtx := hc
	execConn := hc.Connection
	if task.DelegateTo != "" {
		delegated, conn, err := s.resolveDelegate(ctx, task, hc, effective, play)
		if err != nil {
			return failedResult(hc.Host.Name, task, fmt.Sprintf("delegate_to failed: %v", err), start)
		}
		execCtx = delegated
		execConn = conn
	}

	var result types.TaskResult
	if task.Loop != nil {
		result = s.runLoopedTask(ctx, task, hc, execCtx, execConn, effective, start)
	} else {
		result = s.runSingleIteration(ctx, task, hc, execCtx, execConn, effective, task.Args, start)
	}

	s.postProcess(&result, task, hc, effective)
	return result
}

// effectiveVars computes context vars + registered results + role vars
// (spec §4.6 step 2/§4.6.2's "effective variable mapping").
func (s *Scheduler) effectiveVars(hc *types.HostContext, task types.Task) map[string]interface{} {
	merged := hc.EffectiveVars()
	if len(task.RoleVars) > 0 {
		merged = types.DeepMergeInterfaceMaps(task.RoleVars, merged)
	}
	return merged
}

// resolveDelegate renders delegate_to, resolves the delegate host (known
// inventory host or ad-hoc/localhost), and clones the context so
// templating still sees the original host's vars while the module runs
// against the delegate's connection (spec §4.6 step 3).
func (s *Scheduler) resolveDelegate(ctx context.Context, task types.Task, hc *types.HostContext, effective map[string]interface{}, play types.Play) (*types.HostContext, types.Connection, error) {
	rendered, err := s.Template.Render(task.DelegateTo, effective)
	if err != nil {
		return nil, nil, err
	}

	kind := types.ConnectionLocal
	if rendered != "localhost" && rendered != "127.0.0.1" {
		kind = types.ConnectionSSH
		if play.Connection != "" {
			kind = types.ConnectionKind(play.Connection)
		}
	}
	info := types.ConnectionInfo{Kind: kind, Host: rendered}
	conn, err := s.Connections.Get(ctx, info)
	if err != nil {
		return nil, nil, err
	}

	clone := *hc
	clone.DelegatedFrom = hc
	clone.Connection = conn
	return &clone, conn, nil
}

// runSingleIteration renders args, resolves the module, and dispatches to
// Check or Run (spec §4.6 steps 4/6).
func (s *Scheduler) runSingleIteration(ctx context.Context, task types.Task, hc, execCtx *types.HostContext, conn types.Connection, vars map[string]interface{}, rawArgs map[string]interface{}, start time.Time) types.TaskResult {
	rawArgs = withRawParams(rawArgs, task.RawParams)
	renderedArgs, err := s.renderArgs(rawArgs, vars)
	if err != nil {
		return failedResult(hc.Host.Name, task, fmt.Sprintf("rendering arguments failed: %v", err), start)
	}

	module, _, err := s.Registry.Resolve(task.Module)
	if err != nil {
		return failedResult(hc.Host.Name, task, fmt.Sprintf("resolving module %q: %v", task.Module, err), start)
	}
	if err := module.ValidateArgs(renderedArgs); err != nil {
		return failedResult(hc.Host.Name, task, fmt.Sprintf("invalid arguments: %v", err), start)
	}

	var modResult *types.ModuleResult
	if hc.CheckMode {
		modResult, err = module.Check(ctx, conn, renderedArgs, execCtx)
	} else {
		modResult, err = module.Run(ctx, conn, renderedArgs, execCtx)
	}
	if err != nil {
		return failedResult(hc.Host.Name, task, err.Error(), start)
	}
	return modResult.ToTaskResult(hc.Host.Name, task.Name, task.Module, start)
}

// withRawParams folds a task's free-form RawParams string (spec §4.4's
// "free-form string" task form, used by shell-family modules) into the
// `cmd` argument every such module reads, without overriding an
// explicitly-given `cmd` key.
func withRawParams(args map[string]interface{}, rawParams string) map[string]interface{} {
	if rawParams == "" {
		return args
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if _, ok := args["cmd"]; !ok {
		out := make(map[string]interface{}, len(args)+1)
		for k, v := range args {
			out[k] = v
		}
		out["cmd"] = rawParams
		return out
	}
	return args
}

// renderArgs recursively renders every string value in args through the
// templating engine (spec §4.6 step 4).
func (s *Scheduler) renderArgs(args map[string]interface{}, vars map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		rendered, err := s.Template.RenderValue(v, vars)
		if err != nil {
			return nil, err
		}
		out[k] = rendered
	}
	return out, nil
}

// runLoopedTask implements spec §4.6 step 5: render the loop expression,
// iterate sequentially, and combine results.
func (s *Scheduler) runLoopedTask(ctx context.Context, task types.Task, hc, execCtx *types.HostContext, conn types.Connection, vars map[string]interface{}, start time.Time) types.TaskResult {
	loopVarName := task.LoopVar
	if loopVarName == "" {
		loopVarName = "item"
	}

	renderedLoop, err := s.Template.RenderValue(task.Loop, vars)
	if err != nil {
		return failedResult(hc.Host.Name, task, fmt.Sprintf("rendering loop failed: %v", err), start)
	}
	items, ok := renderedLoop.([]interface{})
	if !ok {
		return failedResult(hc.Host.Name, task, "loop expression did not render to a list", start)
	}

	var sub []types.TaskResult
	changed := false
	failed := false
	var lastMsg string

	for i, item := range items {
		iterVars := types.DeepMergeInterfaceMaps(vars, map[string]interface{}{
			loopVarName: item,
			"ansible_loop": map[string]interface{}{
				"index":  i + 1,
				"index0": i,
				"first":  i == 0,
				"last":   i == len(items)-1,
				"length": len(items),
			},
		})
		r := s.runSingleIteration(ctx, task, hc, execCtx, conn, iterVars, task.Args, start)
		sub = append(sub, r)
		if r.Changed {
			changed = true
		}
		if r.Failed() {
			failed = true
			lastMsg = r.Message
			if !task.IgnoreErrors {
				break
			}
		}
	}

	status := types.StatusOK
	switch {
	case failed:
		status = types.StatusFailed
	case changed:
		status = types.StatusChanged
	}
	return types.TaskResult{
		Host:       hc.Host.Name,
		TaskName:   task.Name,
		ModuleName: task.Module,
		Status:     status,
		Changed:    changed,
		Message:    lastMsg,
		SubResults: sub,
		StartTime:  start,
		EndTime:    types.GetCurrentTime(),
	}
}

// postProcess implements spec §4.6 step 7-8: changed_when/failed_when
// overrides, ignore_errors demotion, register, notify, and failed/rescued
// block bookkeeping.
func (s *Scheduler) postProcess(result *types.TaskResult, task types.Task, hc *types.HostContext, vars map[string]interface{}) {
	resultView := types.DeepMergeInterfaceMaps(vars, map[string]interface{}{"result": result.Canonical()})

	if task.ChangedWhen != "" {
		if ok, err := s.Template.EvaluateWhen(task.ChangedWhen, resultView); err == nil {
			result.Changed = ok
			if ok && result.Status != types.StatusFailed {
				result.Status = types.StatusChanged
			} else if !ok && result.Status == types.StatusChanged {
				result.Status = types.StatusOK
			}
		}
	}
	if task.FailedWhen != "" {
		if ok, err := s.Template.EvaluateWhen(task.FailedWhen, resultView); err == nil {
			if ok {
				result.Status = types.StatusFailed
			} else if result.Status == types.StatusFailed {
				result.Status = types.StatusOK
			}
		}
	}

	if result.Failed() && task.IgnoreErrors {
		result.Status = types.StatusOK
		result.Message = "(ignored) " + result.Message
	}

	if task.Register != "" {
		hc.Registered[task.Register] = result.Canonical()
	}

	if result.Failed() {
		if result.Status == types.StatusUnreachable {
			hc.Unreachable = true
		}
		hc.Failed = true
		if task.BlockName != "" {
			hc.FailedBlocks[task.BlockName] = true
		}
		return
	}

	if task.IsRescue && task.BlockName != "" {
		hc.Failed = false
		hc.RescuedBlocks[task.BlockName] = true
	}

	if result.Changed && len(task.Notify) > 0 {
		for _, n := range task.Notify {
			hc.PendingHandlers[n] = true
		}
	}
}

func failedResult(host string, task types.Task, message string, start time.Time) types.TaskResult {
	return types.TaskResult{
		Host:       host,
		TaskName:   task.Name,
		ModuleName: task.Module,
		Status:     types.StatusFailed,
		Message:    message,
		StartTime:  start,
		EndTime:    types.GetCurrentTime(),
	}
}
