package modules

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sansible/sansible/pkg/types"
)

// galaxyBinary is the PATH-resolved binary the passthrough module shells
// out to for FQCN modules with no native implementation (spec §4.5 last
// paragraph; original_source's galaxy/executor.py). Exported as a var so
// tests can stub it.
var galaxyBinary = "ansible-playbook"

// PassthroughModule executes a "namespace.collection.module" FQCN that
// has no native Go implementation by shelling out to a PATH-resolved
// ansible-compatible runtime on the control node, grounded on
// original_source's galaxy/executor.py and galaxy/win_executor.py. It
// requires a compatible runtime to be installed and is never available
// against Windows targets.
type PassthroughModule struct {
	BaseModule
	fqcn string
}

// NewPassthroughModule creates a passthrough module bound to a specific
// FQCN so it can be resolved and run without a second lookup.
func NewPassthroughModule(fqcn string) *PassthroughModule {
	return &PassthroughModule{
		BaseModule: BaseModule{name: fqcn},
		fqcn:       fqcn,
	}
}

// ValidateArgs accepts anything; the downstream runtime validates its own
// module's arguments.
func (m *PassthroughModule) ValidateArgs(args map[string]interface{}) error {
	return nil
}

// Documentation returns minimal documentation; the real contract lives in
// the external collection this FQCN belongs to.
func (m *PassthroughModule) Documentation() types.ModuleDoc {
	return types.ModuleDoc{
		Name:        m.fqcn,
		Description: fmt.Sprintf("Galaxy passthrough for %s (no native implementation)", m.fqcn),
	}
}

// Run shells out to the galaxy-compatible runtime, passing the FQCN and
// a JSON-ish argument string the way ansible's ad-hoc module invocation
// does; it refuses outright on Windows targets (spec.md §4.5).
func (m *PassthroughModule) Run(ctx context.Context, conn types.Connection, args map[string]interface{}, hc *types.HostContext) (*types.ModuleResult, error) {
	if hc != nil && hc.Host != nil && hc.Host.ConnectionType() == types.ConnectionWinRM {
		return &types.ModuleResult{Failed: true, Msg: fmt.Sprintf("galaxy passthrough module %s is not available on Windows targets", m.fqcn)}, nil
	}

	if _, err := exec.LookPath(galaxyBinary); err != nil {
		return &types.ModuleResult{Failed: true, Msg: fmt.Sprintf("passthrough module %s requires %s on PATH: %v", m.fqcn, galaxyBinary, err)}, nil
	}

	host := "localhost"
	if hc != nil && hc.Host != nil {
		host = hc.Host.Address()
	}

	argStr := formatInlineArgs(args)
	cmdLine := exec.CommandContext(ctx, galaxyBinary, "-m", m.fqcn, "-a", argStr, host)
	out, err := cmdLine.CombinedOutput()
	if err != nil {
		return &types.ModuleResult{Failed: true, Msg: fmt.Sprintf("passthrough module %s failed: %v: %s", m.fqcn, err, strings.TrimSpace(string(out)))}, nil
	}

	return &types.ModuleResult{Changed: true, Msg: strings.TrimSpace(string(out))}, nil
}

// formatInlineArgs renders args as ansible's `key=value ...` ad-hoc
// argument string.
func formatInlineArgs(args map[string]interface{}) string {
	parts := make([]string, 0, len(args))
	for k, v := range args {
		if strings.HasPrefix(k, "_") {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, types.ConvertToString(v)))
	}
	return strings.Join(parts, " ")
}
