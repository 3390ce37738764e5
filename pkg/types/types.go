// Package types provides the core data model shared by every sansible
// component: hosts/groups/tasks/plays, per-host execution context, results,
// and the Connection/Module contracts that connections and modules
// implement.
package types

import (
	"context"
	"io"
	"time"
)

// ConnectionKind identifies a connection plugin.
type ConnectionKind string

const (
	ConnectionLocal ConnectionKind = "local"
	ConnectionSSH   ConnectionKind = "ssh"
	ConnectionWinRM ConnectionKind = "winrm"
)

// Host is a named target with a read-only variable mapping. Hosts are
// created during inventory parsing and are immutable thereafter; per-run
// mutation happens on HostContext, never on Host.
type Host struct {
	Name   string
	Vars   map[string]interface{}
	Groups map[string]bool // set of group names this host belongs to
}

// Var returns a host variable and whether it was present.
func (h *Host) Var(key string) (interface{}, bool) {
	if h.Vars == nil {
		return nil, false
	}
	v, ok := h.Vars[key]
	return v, ok
}

// Address returns ansible_host, defaulting to the host's name.
func (h *Host) Address() string {
	if v, ok := h.Var("ansible_host"); ok {
		return ConvertToString(v)
	}
	return h.Name
}

// Port returns ansible_port, or 0 if unset (connection picks its default).
func (h *Host) Port() int {
	if v, ok := h.Var("ansible_port"); ok {
		if p, err := ConvertToInt(v); err == nil {
			return p
		}
	}
	return 0
}

// User returns ansible_user, or "" if unset.
func (h *Host) User() string {
	if v, ok := h.Var("ansible_user"); ok {
		return ConvertToString(v)
	}
	return ""
}

// ConnectionType returns ansible_connection, defaulting to "ssh" unless
// the host's address is localhost, in which case it defaults to "local".
func (h *Host) ConnectionType() ConnectionKind {
	if v, ok := h.Var("ansible_connection"); ok {
		return ConnectionKind(ConvertToString(v))
	}
	addr := h.Address()
	if addr == "localhost" || addr == "127.0.0.1" || addr == "::1" {
		return ConnectionLocal
	}
	return ConnectionSSH
}

// InventoryHostname and InventoryHostnameShort are the computed variables
// exposed to templating at query time.
func (h *Host) InventoryHostname() string { return h.Name }
func (h *Host) InventoryHostnameShort() string {
	name := h.Name
	for i, c := range name {
		if c == '.' {
			return name[:i]
		}
	}
	return name
}

// Group is a named set of hosts plus variables plus child/parent relations.
// "all" and "ungrouped" always exist.
type Group struct {
	Name     string
	Vars     map[string]interface{}
	Children map[string]bool
	Parents  map[string]bool
}

// NewGroup returns an initialized, empty Group.
func NewGroup(name string) *Group {
	return &Group{
		Name:     name,
		Vars:     make(map[string]interface{}),
		Children: make(map[string]bool),
		Parents:  make(map[string]bool),
	}
}

// Task is a fully lowered unit of work. See spec §3.
type Task struct {
	Name         string
	Module       string
	Args         map[string]interface{}
	RawParams    string // free-form string form, stored for shell-family modules
	When         string
	Loop         interface{}
	LoopVar      string
	Register     string
	IgnoreErrors bool
	ChangedWhen  string
	FailedWhen   string
	Environment  map[string]string
	Tags         map[string]bool
	Notify       []string
	Listen       []string // handlers: names this handler answers to
	DelegateTo   string

	Become       bool
	BecomeSet    bool // whether Become was explicitly set on this task
	BecomeUser   string
	BecomeMethod string

	// RoleVars carries the owning role's vars/defaults, attached at load
	// time so the scheduler can merge them into per-host vars at the
	// correct precedence layer without threading role context separately.
	RoleVars map[string]interface{}

	// Block provenance, set by the loader's lowering pass.
	BlockName string
	IsRescue  bool
	IsAlways  bool
}

// HasTag reports whether the task carries tag t.
func (t *Task) HasTag(tag string) bool {
	return t.Tags != nil && t.Tags[tag]
}

// Play is a named host-pattern binding plus its flattened task list.
type Play struct {
	Name        string
	Hosts       string
	Tasks       []Task
	Handlers    []Task
	Vars        map[string]interface{}
	VarsFiles   []string
	GatherFacts bool
	Connection  string
	Environment map[string]string
	Tags        map[string]bool

	Become       bool
	BecomeSet    bool
	BecomeUser   string
	BecomeMethod string
}

// Playbook is an ordered list of plays parsed from one file.
type Playbook struct {
	Path  string
	Plays []Play
}

// HostContext is mutable per-host, per-run state. Created when a play
// binds to a host, discarded at play end; its Connection may outlive the
// context (cached at the Runner).
type HostContext struct {
	Host       *Host
	Vars       map[string]interface{}
	Registered map[string]interface{}
	Connection Connection

	CheckMode   bool
	DiffMode    bool
	Failed      bool
	Unreachable bool

	PendingHandlers map[string]bool
	FailedBlocks    map[string]bool
	RescuedBlocks   map[string]bool

	Become       bool
	BecomeUser   string
	BecomeMethod string

	// DelegatedFrom is set on a cloned context used to run a delegated
	// task: templating still sees the original host's Vars, but the
	// module executes against Connection, which belongs to the delegate.
	DelegatedFrom *HostContext
}

// NewHostContext seeds a context for host h with the given layered vars.
func NewHostContext(h *Host, vars map[string]interface{}) *HostContext {
	return &HostContext{
		Host:            h,
		Vars:            vars,
		Registered:      make(map[string]interface{}),
		PendingHandlers: make(map[string]bool),
		FailedBlocks:    make(map[string]bool),
		RescuedBlocks:   make(map[string]bool),
	}
}

// EffectiveVars returns context vars overlaid with registered results,
// the way the scheduler computes a task's templating view (spec §4.6.2).
func (hc *HostContext) EffectiveVars() map[string]interface{} {
	merged := DeepMergeInterfaceMaps(hc.Vars, nil)
	for k, v := range hc.Registered {
		merged[k] = v
	}
	return merged
}

// TaskStatus is the terminal state of one TaskResult.
type TaskStatus string

const (
	StatusOK          TaskStatus = "ok"
	StatusChanged     TaskStatus = "changed"
	StatusFailed      TaskStatus = "failed"
	StatusSkipped     TaskStatus = "skipped"
	StatusUnreachable TaskStatus = "unreachable"
)

// TaskResult is the immutable outcome of one task on one host.
type TaskResult struct {
	Host       string                 `json:"host"`
	TaskName   string                 `json:"task"`
	ModuleName string                 `json:"module,omitempty"`
	Status     TaskStatus             `json:"status"`
	Changed    bool                   `json:"changed"`
	RC         int                    `json:"rc"`
	Stdout     string                 `json:"stdout,omitempty"`
	Stderr     string                 `json:"stderr,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Results    map[string]interface{} `json:"results,omitempty"`
	SubResults []TaskResult           `json:"sub_results,omitempty"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time"`
}

// Failed reports whether the result represents an unhandled failure.
func (r TaskResult) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusUnreachable
}

// Canonical returns the map ansible exposes to `register`:
// changed, rc, stdout, stderr, stdout_lines, stderr_lines, failed, msg,
// plus whatever module-specific keys are in Results.
func (r TaskResult) Canonical() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Results)+8)
	for k, v := range r.Results {
		out[k] = v
	}
	out["changed"] = r.Changed
	out["rc"] = r.RC
	out["stdout"] = r.Stdout
	out["stderr"] = r.Stderr
	out["stdout_lines"] = SplitLines(r.Stdout)
	out["stderr_lines"] = SplitLines(r.Stderr)
	out["failed"] = r.Failed()
	out["msg"] = r.Message
	return out
}

// HostStats is running per-status totals for a host; mergeable.
type HostStats struct {
	OK          int `json:"ok"`
	Changed     int `json:"changed"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Unreachable int `json:"unreachable"`
}

// Record folds one TaskResult's status into the stats.
func (s *HostStats) Record(status TaskStatus) {
	switch status {
	case StatusOK:
		s.OK++
	case StatusChanged:
		s.Changed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusUnreachable:
		s.Unreachable++
	}
}

// Merge adds o's counts onto s.
func (s *HostStats) Merge(o HostStats) {
	s.OK += o.OK
	s.Changed += o.Changed
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.Unreachable += o.Unreachable
}

// PlayResult aggregates one play's execution.
type PlayResult struct {
	Play  string                `json:"play"`
	Hosts []string              `json:"hosts"`
	Stats map[string]*HostStats `json:"stats"`
	Tasks []TaskResult          `json:"tasks"`
}

// PlaybookResult is the full outcome of running one playbook file.
type PlaybookResult struct {
	Playbook string                `json:"playbook"`
	Plays    []PlayResult          `json:"plays"`
	Stats    map[string]*HostStats `json:"stats"`
}

// MergedStats computes the across-play per-host totals.
func (pr *PlaybookResult) MergedStats() map[string]*HostStats {
	merged := make(map[string]*HostStats)
	for _, play := range pr.Plays {
		for host, st := range play.Stats {
			if _, ok := merged[host]; !ok {
				merged[host] = &HostStats{}
			}
			merged[host].Merge(*st)
		}
	}
	pr.Stats = merged
	return merged
}

// ModuleResult is what a Module.Run/Check returns; 1:1 convertible into
// a TaskResult by the scheduler.
type ModuleResult struct {
	Changed bool
	Failed  bool
	Skipped bool
	RC      int
	Stdout  string
	Stderr  string
	Msg     string
	Results map[string]interface{}
	Diff    *DiffResult
}

// ToTaskResult converts a ModuleResult into a TaskResult for host/task.
func (m *ModuleResult) ToTaskResult(host, taskName, moduleName string, start time.Time) TaskResult {
	status := StatusOK
	switch {
	case m.Skipped:
		status = StatusSkipped
	case m.Failed:
		status = StatusFailed
	case m.Changed:
		status = StatusChanged
	}
	results := m.Results
	if m.Diff != nil {
		if results == nil {
			results = make(map[string]interface{}, 1)
		}
		results["diff"] = m.Diff
	}
	return TaskResult{
		Host:       host,
		TaskName:   taskName,
		ModuleName: moduleName,
		Status:     status,
		Changed:    m.Changed,
		RC:         m.RC,
		Stdout:     m.Stdout,
		Stderr:     m.Stderr,
		Message:    m.Msg,
		Results:    results,
		StartTime:  start,
		EndTime:    GetCurrentTime(),
	}
}

// DiffResult is the before/after rendering a module attaches to its
// ModuleResult when the host context has DiffMode set (spec §4.5 check
// mode / --diff).
type DiffResult struct {
	Before      string
	After       string
	BeforeLines []string
	AfterLines  []string
	Prepared    bool
	Diff        string
}

// RunOptions parameterizes one Connection.Run call.
type RunOptions struct {
	Shell       bool
	Timeout     time.Duration
	WorkingDir  string
	Environment map[string]string
}

// RunResult is the outcome of Connection.Run.
type RunResult struct {
	RC     int
	Stdout string
	Stderr string
}

// FileStat is the outcome of Connection.Stat; nil if the path is absent.
type FileStat struct {
	Exists  bool
	IsFile  bool
	IsDir   bool
	IsLink  bool
	Size    int64
	ModTime time.Time
	Mode    uint32
}

// ConnectionInfo carries what a connection needs to Connect to a host.
type ConnectionInfo struct {
	Kind       ConnectionKind
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey string
	Timeout    time.Duration

	HostKeyChecking string // "true" | "false" | "accept-new"

	UseSSL     bool
	SkipVerify bool

	Vars map[string]interface{}
}

// Connection is the uniform capability every connection variant
// implements: local process spawn, SSH, or WinRM (spec §4.1). All
// operations may suspend.
type Connection interface {
	Connect(ctx context.Context, info ConnectionInfo) error
	Close() error
	IsConnected() bool

	Run(ctx context.Context, command string, opts RunOptions) (*RunResult, error)
	Put(ctx context.Context, local io.Reader, remote string, mode int) error
	Get(ctx context.Context, remote string) (io.ReadCloser, error)
	Mkdir(ctx context.Context, remote string, mode int) error
	Stat(ctx context.Context, remote string) (*FileStat, error)

	// WrapBecome prepends the platform's privilege-escalation prefix to
	// cmd when become is active; it is a no-op on Windows targets and
	// when become is not requested.
	WrapBecome(cmd string, become bool, becomeUser, becomeMethod string) string
}

// Module is the uniform contract every named module implements (spec
// §4.5). Check is optional; modules that don't override it get the
// default "would change" behavior from modules.BaseModule.
type Module interface {
	Name() string
	ValidateArgs(args map[string]interface{}) error
	Run(ctx context.Context, conn Connection, args map[string]interface{}, hc *HostContext) (*ModuleResult, error)
	Check(ctx context.Context, conn Connection, args map[string]interface{}, hc *HostContext) (*ModuleResult, error)
	Documentation() ModuleDoc
}

// PlatformAware lets a module declare which platforms it targets; a
// module not implementing this is assumed to run on all platforms.
type PlatformAware interface {
	Platforms() []string
}

// ModuleDoc documents a module's contract.
type ModuleDoc struct {
	Name        string
	Description string
	Parameters  map[string]ParamDoc
	Examples    []string
	Returns     map[string]string // result key -> description, for register/fact consumers
}

// ParamDoc documents one module parameter.
type ParamDoc struct {
	Description string
	Required    bool
	Default     interface{}
	Type        string
	Choices     []string
}

// EventType distinguishes reporting events (used by the callback/
// websocket reporters, C8).
type EventType string

const (
	EventPlayStart    EventType = "play_start"
	EventTaskStart    EventType = "task_start"
	EventTaskResult   EventType = "task_result"
	EventHandlerStart EventType = "handler_start"
	EventPlayEnd      EventType = "play_end"
	EventRunEnd       EventType = "run_end"
)

// Event is one reporting notification emitted by the scheduler/runner.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Play      string      `json:"play,omitempty"`
	Task      string      `json:"task,omitempty"`
	Host      string      `json:"host,omitempty"`
	Result    *TaskResult `json:"result,omitempty"`
}

// EventCallback receives Events as they occur.
type EventCallback func(Event)

// Logger is the structured logging contract used across packages.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}
