package testing

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/sansible/sansible/pkg/types"
)

// CommandResponse represents the expected response from a command
type CommandResponse struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Error    error // set to simulate a connection-level failure (Run returning an error)
}

// CommandExpectation represents an expected command execution
type CommandExpectation struct {
	Command     string         // Exact command string
	Pattern     *regexp.Regexp // Regex pattern for command matching
	Response    *CommandResponse
	Called      bool
	CallCount   int
	MaxCalls    int // 0 means unlimited
	Environment map[string]string // Expected environment variables
}

// MockConnection implements types.Connection for testing
type MockConnection struct {
	t               *testing.T
	mu              sync.RWMutex
	expectations    []*CommandExpectation
	callOrder       []string
	connected       bool
	hostname        string
	strictOrder     bool
	defaultResponse *CommandResponse
	stats           map[string]*types.FileStat
}

// NewMockConnection creates a new mock connection for testing
func NewMockConnection(t *testing.T) *MockConnection {
	return &MockConnection{
		t:            t,
		expectations: make([]*CommandExpectation, 0),
		callOrder:    make([]string, 0),
		connected:    true,
		hostname:     "test-host",
		stats:        make(map[string]*types.FileStat),
	}
}

// ExpectCommand adds an expectation for an exact command
func (m *MockConnection) ExpectCommand(command string, response *CommandResponse) *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expectations = append(m.expectations, &CommandExpectation{
		Command:  command,
		Response: response,
		MaxCalls: 1,
	})
	return m
}

// ExpectCommandPattern adds an expectation for a command matching a regex pattern
func (m *MockConnection) ExpectCommandPattern(pattern string, response *CommandResponse) *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()

	regex, err := regexp.Compile(pattern)
	if err != nil {
		m.t.Fatalf("Invalid regex pattern %s: %v", pattern, err)
	}

	m.expectations = append(m.expectations, &CommandExpectation{
		Pattern:  regex,
		Response: response,
		MaxCalls: 1,
	})
	return m
}

// ExpectCommandRegex is an alias for ExpectCommandPattern for compatibility
func (m *MockConnection) ExpectCommandRegex(pattern string, response *CommandResponse) *MockConnection {
	return m.ExpectCommandPattern(pattern, response)
}

// ExpectCommandWithEnv adds an expectation for a command with environment variables
func (m *MockConnection) ExpectCommandWithEnv(command string, env map[string]string, response *CommandResponse) *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expectations = append(m.expectations, &CommandExpectation{
		Command:     command,
		Environment: env,
		Response:    response,
		MaxCalls:    1,
	})
	return m
}

// AllowMultipleCalls allows the last added expectation to be called multiple times
func (m *MockConnection) AllowMultipleCalls() *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.expectations) > 0 {
		m.expectations[len(m.expectations)-1].MaxCalls = 0 // Unlimited
	}
	return m
}

// SetMaxCalls sets the maximum number of calls for the last added expectation
func (m *MockConnection) SetMaxCalls(maxCalls int) *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.expectations) > 0 {
		m.expectations[len(m.expectations)-1].MaxCalls = maxCalls
	}
	return m
}

// Run implements types.Connection.Run
func (m *MockConnection) Run(ctx context.Context, command string, opts types.RunOptions) (*types.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callOrder = append(m.callOrder, command)

	for _, exp := range m.expectations {
		if m.matchesExpectation(exp, command, opts.Environment) {
			exp.Called = true
			exp.CallCount++

			if exp.MaxCalls > 0 && exp.CallCount > exp.MaxCalls {
				m.t.Errorf("Command '%s' called %d times, but max calls is %d", command, exp.CallCount, exp.MaxCalls)
				return nil, fmt.Errorf("too many calls to command: %s", command)
			}

			return respond(exp.Response)
		}
	}

	if m.defaultResponse != nil {
		return respond(m.defaultResponse)
	}

	m.t.Errorf("Unexpected command executed: %s", command)
	return nil, fmt.Errorf("unexpected command: %s", command)
}

// respond mirrors the real connections' Run contract: a non-zero exit code
// is a normal RunResult, not an error. Only Error simulates a connection
// failure (the command never completed).
func respond(resp *CommandResponse) (*types.RunResult, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &types.RunResult{RC: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}, nil
}

// matchesExpectation checks if a command matches an expectation
func (m *MockConnection) matchesExpectation(exp *CommandExpectation, command string, env map[string]string) bool {
	// Check command match
	var commandMatches bool
	if exp.Command != "" {
		commandMatches = exp.Command == command
	} else if exp.Pattern != nil {
		commandMatches = exp.Pattern.MatchString(command)
	}

	if !commandMatches {
		return false
	}

	// Check environment variables if specified
	if exp.Environment != nil {
		for key, expectedValue := range exp.Environment {
			if actualValue, exists := env[key]; !exists || actualValue != expectedValue {
				return false
			}
		}
	}

	return true
}

// Put implements types.Connection.Put
func (m *MockConnection) Put(ctx context.Context, local io.Reader, remote string, mode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, err := io.ReadAll(local)
	if err != nil {
		return err
	}

	m.callOrder = append(m.callOrder, fmt.Sprintf("put %d bytes to %s", len(content), remote))
	m.stats[remote] = &types.FileStat{Exists: true, IsFile: true, Size: int64(len(content)), Mode: uint32(mode)}
	return nil
}

// Get implements types.Connection.Get
func (m *MockConnection) Get(ctx context.Context, remote string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callOrder = append(m.callOrder, fmt.Sprintf("get %s", remote))
	return io.NopCloser(strings.NewReader("")), nil
}

// Mkdir implements types.Connection.Mkdir
func (m *MockConnection) Mkdir(ctx context.Context, remote string, mode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callOrder = append(m.callOrder, fmt.Sprintf("mkdir %s", remote))
	m.stats[remote] = &types.FileStat{Exists: true, IsDir: true, Mode: uint32(mode)}
	return nil
}

// Stat implements types.Connection.Stat
func (m *MockConnection) Stat(ctx context.Context, remote string) (*types.FileStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stat, ok := m.stats[remote]; ok {
		return stat, nil
	}
	return &types.FileStat{Exists: false}, nil
}

// ExpectStat preloads the result Stat(path) will return; use it to simulate
// remote filesystem state modules inspect before acting.
func (m *MockConnection) ExpectStat(path string, stat *types.FileStat) *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[path] = stat
	return m
}

// WrapBecome implements types.Connection.WrapBecome with the same shell
// shape the real connections use, so modules that assert on the wrapped
// command see a realistic string.
func (m *MockConnection) WrapBecome(cmd string, become bool, becomeUser, becomeMethod string) string {
	if !become {
		return cmd
	}
	user := becomeUser
	if user == "" {
		user = "root"
	}
	if becomeMethod == "su" {
		return fmt.Sprintf("su - %s -c %s", quoteArg(user), quoteArg(cmd))
	}
	return fmt.Sprintf("sudo -u %s -n -H sh -c %s", quoteArg(user), quoteArg(cmd))
}

func quoteArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// IsConnected implements types.Connection.IsConnected
func (m *MockConnection) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Connect implements types.Connection.Connect
func (m *MockConnection) Connect(ctx context.Context, info types.ConnectionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	if info.Host != "" {
		m.hostname = info.Host
	}
	return nil
}

// Close implements types.Connection.Close
func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// GetHostname implements optional hostname interface
func (m *MockConnection) GetHostname() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hostname, nil
}

// SetHostname sets the hostname returned by GetHostname
func (m *MockConnection) SetHostname(hostname string) *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostname = hostname
	return m
}

// SetConnected sets the connection status
func (m *MockConnection) SetConnected(connected bool) *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
	return m
}

// Verify checks that all expectations were met
func (m *MockConnection) Verify() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, exp := range m.expectations {
		if !exp.Called {
			command := exp.Command
			if command == "" && exp.Pattern != nil {
				command = exp.Pattern.String()
			}
			m.t.Errorf("Expectation %d was not met: expected command '%s' was not called", i, command)
		}
	}
}

// VerifyAllExpectationsMet is an alias for Verify for compatibility
func (m *MockConnection) VerifyAllExpectationsMet() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, exp := range m.expectations {
		if !exp.Called {
			command := exp.Command
			if command == "" && exp.Pattern != nil {
				command = exp.Pattern.String()
			}
			return fmt.Errorf("expectation %d was not met: expected command '%s' was not called", i, command)
		}
	}
	return nil
}

// GetCallOrder returns the order in which commands were called
func (m *MockConnection) GetCallOrder() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, len(m.callOrder))
	copy(result, m.callOrder)
	return result
}

// GetExecutionOrder is an alias for GetCallOrder for compatibility
func (m *MockConnection) GetExecutionOrder() []string {
	return m.GetCallOrder()
}

// GetCallCount returns the number of times a command was called
func (m *MockConnection) GetCallCount(command string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, call := range m.callOrder {
		if call == command {
			count++
		}
	}
	return count
}

// Reset clears all expectations and call history
func (m *MockConnection) Reset() *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expectations = make([]*CommandExpectation, 0)
	m.callOrder = make([]string, 0)
	m.strictOrder = false
	m.defaultResponse = nil
	m.stats = make(map[string]*types.FileStat)
	return m
}

// AssertCommandCalled asserts that a command was called at least once
func (m *MockConnection) AssertCommandCalled(command string) {
	if m.GetCallCount(command) == 0 {
		m.t.Errorf("Expected command '%s' to be called, but it wasn't", command)
	}
}

// AssertCommandNotCalled asserts that a command was never called
func (m *MockConnection) AssertCommandNotCalled(command string) {
	if count := m.GetCallCount(command); count > 0 {
		m.t.Errorf("Expected command '%s' to not be called, but it was called %d times", command, count)
	}
}

// AssertCommandCalledTimes asserts that a command was called exactly n times
func (m *MockConnection) AssertCommandCalledTimes(command string, times int) {
	if count := m.GetCallCount(command); count != times {
		m.t.Errorf("Expected command '%s' to be called %d times, but it was called %d times", command, times, count)
	}
}

// AssertCommandOrder asserts that commands were called in a specific order
func (m *MockConnection) AssertCommandOrder(commands ...string) {
	callOrder := m.GetCallOrder()

	if len(callOrder) < len(commands) {
		m.t.Errorf("Expected at least %d commands to be called, but only %d were called", len(commands), len(callOrder))
		return
	}

	for i := 0; i <= len(callOrder)-len(commands); i++ {
		match := true
		for j, expectedCmd := range commands {
			if callOrder[i+j] != expectedCmd {
				match = false
				break
			}
		}
		if match {
			return
		}
	}

	m.t.Errorf("Expected command sequence %v was not found in call order %v", commands, callOrder)
}

// CreateStandardSystemdMocks creates common systemd command mocks
func (m *MockConnection) CreateStandardSystemdMocks(serviceName string) *MockConnection {
	m.ExpectCommand(fmt.Sprintf("systemctl show %s", serviceName), &CommandResponse{
		ExitCode: 0,
		Stdout:   "LoadState=loaded\nActiveState=inactive\nSubState=dead\nUnitFileState=disabled\n",
	})

	m.ExpectCommand(fmt.Sprintf("systemctl start %s", serviceName), &CommandResponse{ExitCode: 0})
	m.ExpectCommand(fmt.Sprintf("systemctl stop %s", serviceName), &CommandResponse{ExitCode: 0})
	m.ExpectCommand(fmt.Sprintf("systemctl enable %s", serviceName), &CommandResponse{ExitCode: 0})
	m.ExpectCommand(fmt.Sprintf("systemctl disable %s", serviceName), &CommandResponse{ExitCode: 0})

	return m
}

// CreateFileOperationMocks creates common file operation mocks
func (m *MockConnection) CreateFileOperationMocks(filePath string) *MockConnection {
	m.ExpectCommand(fmt.Sprintf("test -f %s", filePath), &CommandResponse{ExitCode: 0})
	m.ExpectCommand(fmt.Sprintf("cat %s", filePath), &CommandResponse{ExitCode: 0, Stdout: "file content"})
	return m
}

// SimulateCommandFailure creates a mock that simulates command failure
func (m *MockConnection) SimulateCommandFailure(command string, exitCode int, stderr string) *MockConnection {
	return m.ExpectCommand(command, &CommandResponse{ExitCode: exitCode, Stderr: stderr})
}

// EnableStrictOrder enables strict command execution order checking
func (m *MockConnection) EnableStrictOrder() *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strictOrder = true
	return m
}

// ExpectCommandOrder adds an expectation for a command at a specific order position
func (m *MockConnection) ExpectCommandOrder(command string, order int, response *CommandResponse) *MockConnection {
	return m.ExpectCommand(command, response)
}

// SetDefaultCommandResponse sets the default response for unexpected commands
func (m *MockConnection) SetDefaultCommandResponse(response *CommandResponse) *MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResponse = response
	return m
}

// SimulatePermissionDenied creates a mock that simulates permission denied errors
func (m *MockConnection) SimulatePermissionDenied(command string) *MockConnection {
	return m.ExpectCommand(command, &CommandResponse{ExitCode: 1, Stderr: "Permission denied"})
}

// SimulateServiceNotFound creates a mock that simulates service not found errors
func (m *MockConnection) SimulateServiceNotFound(serviceName string) *MockConnection {
	return m.ExpectCommand(fmt.Sprintf("systemctl show %s", serviceName), &CommandResponse{
		ExitCode: 1,
		Stderr:   fmt.Sprintf("Unit %s.service could not be found.", serviceName),
	})
}
