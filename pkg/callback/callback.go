// Package callback provides pluggable run reporters, grounded on the
// teacher's callback-plugin model but generalized to consume the uniform
// types.Event stream the scheduler emits (spec §4.8) instead of a set of
// individually typed hook methods.
package callback

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sansible/sansible/pkg/types"
)

// CallbackPlugin is notified of every event the scheduler emits. It is an
// alternative sink for types.EventCallback, usable in place of, or
// alongside, runner's own built-in progress reporting.
type CallbackPlugin interface {
	// Name returns the plugin name
	Name() string
	// Initialize sets up the plugin
	Initialize(config map[string]interface{}) error
	// HandleEvent is called for every event in the run
	HandleEvent(ev types.Event)
	// Finish is called once the run has ended, with final stats
	Finish(stats *RunStats)
	// SetOutput sets the output writer
	SetOutput(writer io.Writer)
}

// RunStats contains statistics for a run
type RunStats struct {
	StartTime  time.Time
	EndTime    time.Time
	TotalTasks int
	HostStats  map[string]*HostStats
}

// HostStats contains statistics for a single host
type HostStats struct {
	Host        string
	Ok          int
	Changed     int
	Unreachable int
	Failed      int
	Skipped     int
}

// CallbackManager fans a single types.Event stream out to any number of
// registered plugins, keeping the host/task bookkeeping plugins would
// otherwise each have to duplicate.
type CallbackManager struct {
	plugins []CallbackPlugin
	mu      sync.RWMutex
	stats   *RunStats
}

// NewCallbackManager creates a new callback manager
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		plugins: []CallbackPlugin{},
		stats: &RunStats{
			StartTime: time.Time{},
			HostStats: make(map[string]*HostStats),
		},
	}
}

// Register adds a callback plugin
func (cm *CallbackManager) Register(plugin CallbackPlugin) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.plugins = append(cm.plugins, plugin)
}

// HandleEvent updates run statistics and forwards the event to every
// registered plugin; assign it directly to a scheduler's Events field, or
// chain it alongside another types.EventCallback.
func (cm *CallbackManager) HandleEvent(ev types.Event) {
	cm.mu.Lock()
	if cm.stats.StartTime.IsZero() {
		cm.stats.StartTime = ev.Timestamp
	}

	switch ev.Type {
	case types.EventTaskStart:
		cm.stats.TotalTasks++
	case types.EventTaskResult:
		cm.recordResult(ev.Result)
	case types.EventRunEnd:
		cm.stats.EndTime = ev.Timestamp
	}
	plugins := append([]CallbackPlugin(nil), cm.plugins...)
	stats := cm.stats
	cm.mu.Unlock()

	for _, plugin := range plugins {
		plugin.HandleEvent(ev)
	}
	if ev.Type == types.EventRunEnd {
		for _, plugin := range plugins {
			plugin.Finish(stats)
		}
	}
}

func (cm *CallbackManager) recordResult(result *types.TaskResult) {
	if result == nil {
		return
	}
	hostStat, exists := cm.stats.HostStats[result.Host]
	if !exists {
		hostStat = &HostStats{Host: result.Host}
		cm.stats.HostStats[result.Host] = hostStat
	}

	switch {
	case result.Status == types.StatusUnreachable:
		hostStat.Unreachable++
	case result.Status == types.StatusSkipped:
		hostStat.Skipped++
	case result.Failed():
		hostStat.Failed++
	case result.Changed:
		hostStat.Changed++
		hostStat.Ok++
	default:
		hostStat.Ok++
	}
}

// DefaultCallback is the default stdout callback
type DefaultCallback struct {
	output io.Writer
	config map[string]interface{}
}

// NewDefaultCallback creates a new default callback
func NewDefaultCallback() *DefaultCallback {
	return &DefaultCallback{
		output: os.Stdout,
		config: make(map[string]interface{}),
	}
}

func (dc *DefaultCallback) Name() string { return "default" }

func (dc *DefaultCallback) Initialize(config map[string]interface{}) error {
	dc.config = config
	return nil
}

func (dc *DefaultCallback) SetOutput(writer io.Writer) { dc.output = writer }

func (dc *DefaultCallback) HandleEvent(ev types.Event) {
	switch ev.Type {
	case types.EventPlayStart:
		fmt.Fprintf(dc.output, "\nPLAY [%s] %s\n", ev.Play, strings.Repeat("*", maxInt(70-len(ev.Play), 3)))
	case types.EventTaskStart:
		fmt.Fprintf(dc.output, "\nTASK [%s] %s\n", ev.Task, strings.Repeat("*", maxInt(70-len(ev.Task), 3)))
	case types.EventTaskResult:
		if ev.Result == nil {
			return
		}
		status := "ok"
		if ev.Result.Failed() {
			status = "failed"
		} else if ev.Result.Changed {
			status = "changed"
		}
		fmt.Fprintf(dc.output, "%s: [%s] => %s\n", status, ev.Result.Host, ev.Result.Message)
	}
}

func (dc *DefaultCallback) Finish(stats *RunStats) {
	fmt.Fprintf(dc.output, "\nPLAY RECAP %s\n", strings.Repeat("*", 70))

	hosts := make([]string, 0, len(stats.HostStats))
	for host := range stats.HostStats {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	for _, host := range hosts {
		hs := stats.HostStats[host]
		fmt.Fprintf(dc.output, "%s : ok=%d changed=%d unreachable=%d failed=%d skipped=%d\n",
			host, hs.Ok, hs.Changed, hs.Unreachable, hs.Failed, hs.Skipped)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// JSONCallback buffers every event and emits one JSON document on Finish.
type JSONCallback struct {
	output  io.Writer
	results []interface{}
	mu      sync.Mutex
}

// NewJSONCallback creates a new JSON callback
func NewJSONCallback() *JSONCallback {
	return &JSONCallback{
		output:  os.Stdout,
		results: []interface{}{},
	}
}

func (jc *JSONCallback) Name() string { return "json" }

func (jc *JSONCallback) Initialize(config map[string]interface{}) error { return nil }

func (jc *JSONCallback) SetOutput(writer io.Writer) { jc.output = writer }

func (jc *JSONCallback) HandleEvent(ev types.Event) {
	jc.mu.Lock()
	defer jc.mu.Unlock()

	entry := map[string]interface{}{
		"event": string(ev.Type),
		"time":  ev.Timestamp.Unix(),
	}
	if ev.Play != "" {
		entry["play"] = ev.Play
	}
	if ev.Task != "" {
		entry["task"] = ev.Task
	}
	if ev.Result != nil {
		entry["host"] = ev.Result.Host
		entry["changed"] = ev.Result.Changed
		entry["failed"] = ev.Result.Failed()
		entry["message"] = ev.Result.Message
	}
	jc.results = append(jc.results, entry)
}

func (jc *JSONCallback) Finish(stats *RunStats) {
	jc.mu.Lock()
	defer jc.mu.Unlock()

	output := map[string]interface{}{
		"events": jc.results,
		"stats":  stats,
	}

	encoder := json.NewEncoder(jc.output)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

// ProfileTasksCallback tracks task execution time, the way ansible's
// profile_tasks callback does.
type ProfileTasksCallback struct {
	output     io.Writer
	taskTimes  map[string]time.Duration
	taskStarts map[string]time.Time
	mu         sync.Mutex
}

// NewProfileTasksCallback creates a new profile tasks callback
func NewProfileTasksCallback() *ProfileTasksCallback {
	return &ProfileTasksCallback{
		output:     os.Stdout,
		taskTimes:  make(map[string]time.Duration),
		taskStarts: make(map[string]time.Time),
	}
}

func (pc *ProfileTasksCallback) Name() string { return "profile_tasks" }

func (pc *ProfileTasksCallback) Initialize(config map[string]interface{}) error { return nil }

func (pc *ProfileTasksCallback) SetOutput(writer io.Writer) { pc.output = writer }

func (pc *ProfileTasksCallback) HandleEvent(ev types.Event) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	switch ev.Type {
	case types.EventTaskStart:
		pc.taskStarts[ev.Task] = ev.Timestamp
	case types.EventTaskResult:
		startTime, exists := pc.taskStarts[ev.Task]
		if !exists {
			return
		}
		duration := ev.Timestamp.Sub(startTime)
		pc.taskTimes[ev.Task] += duration
	}
}

func (pc *ProfileTasksCallback) Finish(stats *RunStats) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	fmt.Fprintf(pc.output, "\nTask Profiling %s\n", strings.Repeat("=", 60))

	type taskTime struct {
		name     string
		duration time.Duration
	}

	sorted := make([]taskTime, 0, len(pc.taskTimes))
	for name, duration := range pc.taskTimes {
		sorted = append(sorted, taskTime{name, duration})
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].duration > sorted[j].duration
	})

	for i, tt := range sorted {
		if i >= 20 {
			break
		}
		fmt.Fprintf(pc.output, "%-50s : %v\n", tt.name, tt.duration)
	}
}
