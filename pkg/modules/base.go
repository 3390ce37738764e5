package modules

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sansible/sansible/pkg/types"
)

// ExecOptions parameterizes BaseModule.execute; it is the module package's
// stand-in for a richer shell-family options struct than types.RunOptions
// carries (sudo/become-user live here, not on the connection layer).
type ExecOptions struct {
	WorkingDir string
	Timeout    time.Duration
	Sudo       bool
	User       string
	Env        map[string]string
}

// execute runs cmd through conn.Run, wrapping it with become when Sudo is
// set, and adapts types.RunResult into the module package's richer Result
// (stdout mirrored onto Message for modules that pattern-match output).
func (m *BaseModule) execute(ctx context.Context, conn types.Connection, cmd string, opts ExecOptions) (*Result, error) {
	runCmd := cmd
	if opts.Sudo {
		runCmd = conn.WrapBecome(cmd, true, opts.User, "sudo")
	}
	rr, err := conn.Run(ctx, runCmd, types.RunOptions{
		Shell:       true,
		WorkingDir:  opts.WorkingDir,
		Timeout:     opts.Timeout,
		Environment: opts.Env,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Success: rr.RC == 0,
		Message: strings.TrimSpace(rr.Stdout),
		Data: map[string]interface{}{
			"stdout":    rr.Stdout,
			"stderr":    rr.Stderr,
			"rc":        rr.RC,
			"exit_code": rr.RC,
		},
	}, nil
}

// Result is the module package's internal working result shape. It keeps
// the teacher's wider Result vocabulary (Data, Error, per-host bookkeeping)
// for module bodies to build up incrementally, and collapses to the
// spec's lean types.ModuleResult only at the Run/Check boundary.
type Result struct {
	Host       string
	Success    bool
	Changed    bool
	Message    string
	Data       map[string]interface{}
	Error      error
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	ModuleName string
	Diff       *types.DiffResult
	Simulated  bool
}

// toModuleResult collapses a Result into the types.ModuleResult the
// registry/scheduler contract expects.
func toModuleResult(r *Result) *types.ModuleResult {
	if r == nil {
		return &types.ModuleResult{Failed: true, Msg: "module returned no result"}
	}
	msg := r.Message
	if msg == "" && r.Error != nil {
		msg = r.Error.Error()
	}
	return &types.ModuleResult{
		Changed: r.Changed,
		Failed:  !r.Success,
		Msg:     msg,
		Results: r.Data,
		Diff:    r.Diff,
	}
}

// BaseModule provides common functionality for all modules
type BaseModule struct {
	name         string
	doc          types.ModuleDoc
	capabilities *types.ModuleCapability
}

// NewBaseModule creates a new base module
func NewBaseModule(name string, doc types.ModuleDoc) *BaseModule {
	return &BaseModule{
		name: name,
		doc:  doc,
	}
}

// Name returns the module name
func (m *BaseModule) Name() string {
	return m.name
}

// Documentation returns module documentation
func (m *BaseModule) Documentation() types.ModuleDoc {
	return m.doc
}

// SetCapabilities records what the module supports; modules that care
// about declaring it call this from their constructor.
func (m *BaseModule) SetCapabilities(c *types.ModuleCapability) {
	m.capabilities = c
}

// Capabilities returns what was set via SetCapabilities, or
// types.DefaultCapabilities() for modules that never called it.
func (m *BaseModule) Capabilities() *types.ModuleCapability {
	if m.capabilities != nil {
		return m.capabilities
	}
	return types.DefaultCapabilities()
}

// Check is the default check-mode implementation spec §4.5 describes:
// modules that don't override it report what would change without
// touching remote state. Modules that need to inspect actual remote
// state to report an accurate "would change" verdict override Check.
func (m *BaseModule) Check(ctx context.Context, conn types.Connection, args map[string]interface{}, hc *types.HostContext) (*types.ModuleResult, error) {
	return &types.ModuleResult{Changed: true, Msg: "(check mode)"}, nil
}

// withCheckMode returns a shallow copy of args with "_check_mode" forced
// true, for modules whose internal run() already branches on
// CheckMode(args) to report what would change without applying it.
func withCheckMode(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out["_check_mode"] = true
	return out
}

// ValidateRequired validates that required parameters are present
func (m *BaseModule) ValidateRequired(args map[string]interface{}, required []string) error {
	return types.ValidateRequiredFields(args, required)
}

// ValidateTypes validates parameter types
func (m *BaseModule) ValidateTypes(args map[string]interface{}, fieldTypes map[string]string) error {
	return types.ValidateFieldTypes(args, fieldTypes)
}

// GetStringArg gets a string argument with optional default
func (m *BaseModule) GetStringArg(args map[string]interface{}, key string, defaultValue string) string {
	if value, exists := args[key]; exists {
		return types.ConvertToString(value)
	}
	return defaultValue
}

// GetBoolArg gets a boolean argument with optional default
func (m *BaseModule) GetBoolArg(args map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := args[key]; exists {
		return types.ConvertToBool(value)
	}
	return defaultValue
}

// GetIntArg gets an integer argument with optional default
func (m *BaseModule) GetIntArg(args map[string]interface{}, key string, defaultValue int) (int, error) {
	if value, exists := args[key]; exists {
		return types.ConvertToInt(value)
	}
	return defaultValue, nil
}

// GetMapArg gets a map argument
func (m *BaseModule) GetMapArg(args map[string]interface{}, key string) map[string]interface{} {
	if value, exists := args[key]; exists {
		if mapValue, ok := value.(map[string]interface{}); ok {
			return mapValue
		}
	}
	return nil
}

// GetSliceArg gets a slice argument
func (m *BaseModule) GetSliceArg(args map[string]interface{}, key string) []interface{} {
	if value, exists := args[key]; exists {
		if sliceValue, ok := value.([]interface{}); ok {
			return sliceValue
		}
		// Handle single value as slice
		return []interface{}{value}
	}
	return nil
}

// CreateResult creates a standardized module result
func (m *BaseModule) CreateResult(host string, success bool, changed bool, message string, data map[string]interface{}, err error) *Result {
	now := time.Now()
	result := &Result{
		Host:       host,
		Success:    success,
		Changed:    changed,
		Message:    message,
		Data:       data,
		Error:      err,
		StartTime:  now,
		EndTime:    now,
		Duration:   0,
		ModuleName: m.name,
	}

	if data == nil {
		result.Data = make(map[string]interface{})
	}

	return result
}

// CreateSuccessResult creates a successful result
func (m *BaseModule) CreateSuccessResult(host string, changed bool, message string, data map[string]interface{}) *Result {
	return m.CreateResult(host, true, changed, message, data, nil)
}

// CreateFailureResult creates a failed result
func (m *BaseModule) CreateFailureResult(host string, message string, err error, data map[string]interface{}) *Result {
	return m.CreateResult(host, false, false, message, data, err)
}

// CreateErrorResult creates an error result with module error
func (m *BaseModule) CreateErrorResult(host string, message string, err error) *Result {
	moduleErr := types.NewModuleError(m.name, host, message, err)
	return m.CreateResult(host, false, false, message, nil, moduleErr)
}

// ExecuteWithTiming wraps execution with timing information
func (m *BaseModule) ExecuteWithTiming(ctx context.Context, conn types.Connection, args map[string]interface{}, executeFunc func() (*Result, error)) (*Result, error) {
	startTime := time.Now()

	result, err := executeFunc()
	if err != nil {
		return result, err
	}

	endTime := time.Now()
	if result != nil {
		result.StartTime = startTime
		result.EndTime = endTime
		result.Duration = endTime.Sub(startTime)
	}

	return result, nil
}

// CheckMode determines if the module is running in check mode. Only a
// bool "_check_mode" counts; a value of any other type means false.
func (m *BaseModule) CheckMode(args map[string]interface{}) bool {
	v, ok := args["_check_mode"].(bool)
	return ok && v
}

// DiffMode determines if the module should show diffs
func (m *BaseModule) DiffMode(args map[string]interface{}) bool {
	return m.GetBoolArg(args, "_diff", false)
}

var expandVarPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// expandVariables does a minimal `{{ var }}` substitution against a flat
// vars map; used only for path expansion, not general templating (that's
// pkg/template's job).
func expandVariables(s string, vars map[string]interface{}) string {
	return expandVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := expandVarPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return types.ConvertToString(v)
		}
		return match
	})
}

// ExpandPath expands variables in a file path
func (m *BaseModule) ExpandPath(path string, vars map[string]interface{}) string {
	if vars == nil {
		return path
	}
	return expandVariables(path, vars)
}

// ValidateChoices validates that a parameter value is within allowed choices
func (m *BaseModule) ValidateChoices(args map[string]interface{}, param string, choices []string) error {
	if value, exists := args[param]; exists {
		strValue := types.ConvertToString(value)
		for _, choice := range choices {
			if strValue == choice {
				return nil
			}
		}
		return types.NewValidationError(param, value, fmt.Sprintf("value must be one of: %v", choices))
	}
	return nil
}

// ValidatePath validates and sanitizes a file path
func (m *BaseModule) ValidatePath(path string) (string, error) {
	if path == "" {
		return "", types.NewValidationError("path", path, "path cannot be empty")
	}

	sanitized := types.SanitizePath(path)
	if sanitized == "" {
		return "", types.NewValidationError("path", path, "invalid path")
	}

	return sanitized, nil
}

// GetHostFromConnection extracts host information from connection
func (m *BaseModule) GetHostFromConnection(conn types.Connection) string {
	// Try to get hostname from connection if it implements additional methods
	if hostProvider, ok := conn.(interface{ GetHostname() (string, error) }); ok {
		if hostname, err := hostProvider.GetHostname(); err == nil {
			return hostname
		}
	}

	// Fallback to a default value
	return "unknown"
}

// HandleTimeout handles command timeouts
func (m *BaseModule) HandleTimeout(ctx context.Context, timeout time.Duration, operation func(context.Context) (*Result, error)) (*Result, error) {
	if timeout > 0 {
		timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return operation(timeoutCtx)
	}
	return operation(ctx)
}

// LogDebug logs debug information (placeholder for future logging integration)
func (m *BaseModule) LogDebug(message string, args ...interface{}) {
	_ = fmt.Sprintf(message, args...)
}

// LogInfo logs informational messages
func (m *BaseModule) LogInfo(message string, args ...interface{}) {
	_ = fmt.Sprintf(message, args...)
}

// LogWarn logs warning messages
func (m *BaseModule) LogWarn(message string, args ...interface{}) {
	_ = fmt.Sprintf(message, args...)
}

// LogError logs error messages
func (m *BaseModule) LogError(message string, args ...interface{}) {
	_ = fmt.Sprintf(message, args...)
}

// ParseStateString parses state strings (present, absent, latest, etc.)
func (m *BaseModule) ParseStateString(state string) string {
	switch state {
	case "present", "installed", "enabled", "started", "running":
		return "present"
	case "absent", "removed", "uninstalled", "disabled", "stopped":
		return "absent"
	case "latest", "updated":
		return "latest"
	case "restarted", "reloaded":
		return state
	default:
		return "present" // default state
	}
}

// IsTruthy checks if a value is truthy (useful for conditions)
func (m *BaseModule) IsTruthy(value interface{}) bool {
	if value == nil {
		return false
	}
	return types.ConvertToBool(value)
}

// CreateCheckModeResult creates a result for check mode operations
func (m *BaseModule) CreateCheckModeResult(host string, changed bool, message string, data map[string]interface{}) *Result {
	result := m.CreateSuccessResult(host, changed, message, data)
	if result.Data == nil {
		result.Data = make(map[string]interface{})
	}
	result.Data["_check_mode"] = true
	return result
}

// Retry executes an operation with retries
func (m *BaseModule) Retry(ctx context.Context, maxRetries int, backoff time.Duration, operation func() (*Result, error)) (*Result, error) {
	var lastResult *Result
	var lastError error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				// Continue with retry
			case <-ctx.Done():
				return lastResult, ctx.Err()
			}
		}

		result, err := operation()
		if err == nil && result != nil && result.Success {
			return result, nil
		}

		lastResult = result
		lastError = err
		m.LogDebug("Module retry attempt %d/%d failed", attempt+1, maxRetries+1)
	}

	return lastResult, lastError
}
