// Package scheduler implements the linear-strategy execution engine (spec
// §4.6): per-play host selection, context construction, connection
// establishment, fact gathering, the task loop with forks-bounded
// per-host fan-out, and the handler run phase. It replaces pkg/strategy's
// Free/Debug/HostPinned variants, which spec §4.6 never asks for — the
// spec names exactly one strategy, linear.
package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sansible/sansible/pkg/connection"
	"github.com/sansible/sansible/pkg/inventory"
	"github.com/sansible/sansible/pkg/modules"
	"github.com/sansible/sansible/pkg/template"
	"github.com/sansible/sansible/pkg/types"
)

// Options configures one Scheduler run (spec §6 CLI flags that reach the
// scheduler layer).
type Options struct {
	Forks     int
	Limit     string
	CheckMode bool
	DiffMode  bool
	Tags      []string
	SkipTags  []string
	ExtraVars map[string]interface{}
}

// maxHandlerDrainRounds bounds the "handlers notifying further handlers"
// loop (spec §4.6 step 6: "bounded by a limit to preclude infinite loops").
const maxHandlerDrainRounds = 50

// Scheduler runs Plays against an inventory using the linear strategy.
type Scheduler struct {
	Registry    *modules.ModuleRegistry
	Connections *connection.Cache
	Template    *template.Engine
	Events      types.EventCallback

	Options Options
}

// New creates a Scheduler. registry/connCache/tmpl default to fresh
// instances when nil so callers in tests don't need to wire every
// collaborator.
func New(registry *modules.ModuleRegistry, connCache *connection.Cache, tmpl *template.Engine, opts Options) *Scheduler {
	if registry == nil {
		registry = modules.DefaultModuleRegistry
	}
	if connCache == nil {
		connCache = connection.NewCache(connection.DefaultCacheConfig(), connection.NewManager())
	}
	if tmpl == nil {
		tmpl = template.NewEngine()
	}
	if opts.Forks <= 0 {
		opts.Forks = 5
	}
	return &Scheduler{Registry: registry, Connections: connCache, Template: tmpl, Options: opts}
}

func (s *Scheduler) emit(ev types.Event) {
	if s.Events != nil {
		s.Events(ev)
	}
}

// RunPlaybook runs every play in pb against inv in order, stopping at the
// first play whose error is non-nil (a play producing only host-level
// failures is not itself an error; see RunPlay).
func (s *Scheduler) RunPlaybook(ctx context.Context, pb *types.Playbook, inv *inventory.StaticInventory) (*types.PlaybookResult, error) {
	result := &types.PlaybookResult{Playbook: pb.Path}
	for _, play := range pb.Plays {
		playResult, err := s.RunPlay(ctx, play, inv)
		result.Plays = append(result.Plays, playResult)
		if err != nil {
			result.MergedStats()
			return result, err
		}
		select {
		case <-ctx.Done():
			result.MergedStats()
			return result, ctx.Err()
		default:
		}
	}
	result.MergedStats()
	return result, nil
}

// RunPlay executes one play's full lifecycle (spec §4.6 "Per play" steps
// 1-6).
func (s *Scheduler) RunPlay(ctx context.Context, play types.Play, inv *inventory.StaticInventory) (types.PlayResult, error) {
	s.emit(types.Event{Type: types.EventPlayStart, Play: play.Name})

	playResult := types.PlayResult{Play: play.Name, Stats: make(map[string]*types.HostStats)}

	hosts, err := s.selectHosts(inv, play.Hosts)
	if err != nil {
		return playResult, err
	}
	if len(hosts) == 0 {
		return playResult, nil
	}
	for _, h := range hosts {
		playResult.Hosts = append(playResult.Hosts, h.Name)
		playResult.Stats[h.Name] = &types.HostStats{}
	}

	contexts := make(map[string]*types.HostContext, len(hosts))
	for i := range hosts {
		h := &hosts[i]
		vars := s.buildPlayVars(h, inv, play)
		contexts[h.Name] = types.NewHostContext(h, vars)
		if play.BecomeSet {
			contexts[h.Name].Become = play.Become
			contexts[h.Name].BecomeUser = play.BecomeUser
			contexts[h.Name].BecomeMethod = play.BecomeMethod
		}
		contexts[h.Name].CheckMode = s.Options.CheckMode
		contexts[h.Name].DiffMode = s.Options.DiffMode
	}

	s.establishConnections(ctx, contexts, play)

	if play.GatherFacts {
		s.gatherFacts(ctx, contexts)
	}

	for _, task := range play.Tasks {
		if !taskSelected(task, s.Options.Tags, s.Options.SkipTags) {
			continue
		}
		results := s.runTaskAcrossHosts(ctx, task, contexts, hosts, play)
		for _, r := range results {
			playResult.Tasks = append(playResult.Tasks, r)
			playResult.Stats[r.Host].Record(r.Status)
		}
	}

	handlerResults := s.runHandlers(ctx, play, contexts, hosts)
	for _, r := range handlerResults {
		playResult.Tasks = append(playResult.Tasks, r)
		playResult.Stats[r.Host].Record(r.Status)
	}

	s.emit(types.Event{Type: types.EventPlayEnd, Play: play.Name})
	return playResult, nil
}

// selectHosts resolves the play's host pattern intersected with any
// run-level limit pattern (spec §4.6 step 1).
func (s *Scheduler) selectHosts(inv *inventory.StaticInventory, pattern string) ([]types.Host, error) {
	hosts, err := inv.GetHosts(pattern)
	if err != nil {
		return nil, err
	}
	if s.Options.Limit == "" {
		return hosts, nil
	}
	limited, err := inv.GetHosts(s.Options.Limit)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(limited))
	for _, h := range limited {
		allowed[h.Name] = true
	}
	out := hosts[:0:0]
	for _, h := range hosts {
		if allowed[h.Name] {
			out = append(out, h)
		}
	}
	return out, nil
}

// buildPlayVars layers host/group vars below play vars below extra-vars
// (spec §4.6 step 2; layer ordering per spec §4.3/§4.6.2).
func (s *Scheduler) buildPlayVars(h *types.Host, inv *inventory.StaticInventory, play types.Play) map[string]interface{} {
	hostVars, _ := inv.GetHostVars(h.Name)
	vars := types.DeepMergeInterfaceMaps(nil, hostVars)
	vars = types.DeepMergeInterfaceMaps(vars, play.Vars)
	vars = types.DeepMergeInterfaceMaps(vars, s.Options.ExtraVars)
	return vars
}

// establishConnections dials every host concurrently (bounded by forks),
// marking contexts unreachable on failure (spec §4.6 step 3).
func (s *Scheduler) establishConnections(ctx context.Context, contexts map[string]*types.HostContext, play types.Play) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Options.Forks)

	for _, hc := range contexts {
		hc := hc
		g.Go(func() error {
			info := connectionInfoFor(hc.Host, play)
			conn, err := s.Connections.Get(gctx, info)
			if err != nil {
				hc.Unreachable = true
				hc.Failed = true
				return nil
			}
			hc.Connection = conn
			return nil
		})
	}
	_ = g.Wait()
}

func connectionInfoFor(h *types.Host, play types.Play) types.ConnectionInfo {
	kind := h.ConnectionType()
	if play.Connection != "" {
		kind = types.ConnectionKind(play.Connection)
	}
	return types.ConnectionInfo{
		Kind: kind,
		Host: h.Address(),
		Port: h.Port(),
		User: h.User(),
		Vars: h.Vars,
	}
}

// gatherFacts runs the setup module per reachable host and merges
// ansible_facts into its vars, both nested and flattened (spec §4.6 step
// 4).
func (s *Scheduler) gatherFacts(ctx context.Context, contexts map[string]*types.HostContext) {
	setup, _, err := s.Registry.Resolve("setup")
	if err != nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Options.Forks)

	for _, hc := range contexts {
		hc := hc
		if hc.Unreachable {
			continue
		}
		g.Go(func() error {
			result, err := setup.Run(gctx, hc.Connection, map[string]interface{}{}, hc)
			if err != nil || result == nil {
				return nil
			}
			facts, _ := result.Results["ansible_facts"].(map[string]interface{})
			if facts == nil {
				return nil
			}
			hc.Vars["ansible_facts"] = facts
			hc.Vars = types.DeepMergeInterfaceMaps(hc.Vars, facts)
			return nil
		})
	}
	_ = g.Wait()
}

// taskSelected implements the --tags/--skip-tags filter: a tagged run
// includes only tasks carrying one of the requested tags, so untagged
// tasks do not run; skip-tags excludes any task carrying one of the
// skipped tags, taking priority.
func taskSelected(task types.Task, runTags, skipTags []string) bool {
	for _, t := range skipTags {
		if task.HasTag(t) {
			return false
		}
	}
	if len(runTags) == 0 {
		return true
	}
	if len(task.Tags) == 0 {
		return false
	}
	for _, t := range runTags {
		if task.HasTag(t) {
			return true
		}
	}
	return false
}

// runTaskAcrossHosts implements the task execution protocol's fan-out
// (spec §4.6 "Task execution protocol" step 1, "Forks semantics").
func (s *Scheduler) runTaskAcrossHosts(ctx context.Context, task types.Task, contexts map[string]*types.HostContext, hosts []types.Host, play types.Play) []types.TaskResult {
	s.emit(types.Event{Type: types.EventTaskStart, Task: task.Name})

	results := make([]types.TaskResult, len(hosts))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.Options.Forks)

	for i := range hosts {
		hc := contexts[hosts[i].Name]
		if !s.shouldRunOn(hc, task) {
			results[i] = skippedResult(hc.Host.Name, task)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, hc *types.HostContext) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.executeTask(ctx, task, hc, play)
		}(i, hc)
	}
	wg.Wait()

	for i := range results {
		s.emit(types.Event{Type: types.EventTaskResult, Task: task.Name, Host: results[i].Host, Result: &results[i]})
	}
	return results
}

// shouldRunOn implements spec §4.6 step 1's per-host eligibility check
// (failed contexts only run rescue/always tasks).
func (s *Scheduler) shouldRunOn(hc *types.HostContext, task types.Task) bool {
	if hc.Unreachable {
		return false
	}
	if !hc.Failed {
		return true
	}
	return task.IsRescue || task.IsAlways
}

func skippedResult(host string, task types.Task) types.TaskResult {
	return types.TaskResult{
		Host:       host,
		TaskName:   task.Name,
		ModuleName: task.Module,
		Status:     types.StatusSkipped,
	}
}

// runHandlers implements spec §4.6 step 6: the union of pending handler
// names across contexts, run in declaration order, drained until stable.
func (s *Scheduler) runHandlers(ctx context.Context, play types.Play, contexts map[string]*types.HostContext, hosts []types.Host) []types.TaskResult {
	var results []types.TaskResult

	for round := 0; round < maxHandlerDrainRounds; round++ {
		anyPending := false
		for _, handler := range play.Handlers {
			names := handlerNames(handler)
			due := make([]types.Host, 0, len(hosts))
			for i := range hosts {
				hc := contexts[hosts[i].Name]
				for _, n := range names {
					if hc.PendingHandlers[n] {
						due = append(due, hosts[i])
						break
					}
				}
			}
			if len(due) == 0 {
				continue
			}
			anyPending = true
			for _, n := range names {
				for _, h := range due {
					delete(contexts[h.Name].PendingHandlers, n)
				}
			}
			taskResults := s.runTaskAcrossHosts(ctx, handler, contexts, due, play)
			results = append(results, taskResults...)
		}
		if !anyPending {
			break
		}
	}
	return results
}

func handlerNames(handler types.Task) []string {
	if len(handler.Listen) > 0 {
		return handler.Listen
	}
	return []string{handler.Name}
}
