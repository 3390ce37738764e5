// Package runner provides the top-level facade (spec §4.7): it wires the
// inventory, playbook loader, and scheduler together, owns the
// connection cache and the extra-vars mapping, and exposes a single
// synchronous entrypoint that drives the run and converts whatever
// happened into a stable exit code (spec §7).
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sansible/sansible/pkg/callback"
	"github.com/sansible/sansible/pkg/connection"
	"github.com/sansible/sansible/pkg/inventory"
	"github.com/sansible/sansible/pkg/modules"
	"github.com/sansible/sansible/pkg/playbook"
	"github.com/sansible/sansible/pkg/scheduler"
	"github.com/sansible/sansible/pkg/template"
	"github.com/sansible/sansible/pkg/types"
	"github.com/sansible/sansible/pkg/vault"
)

// Options configures a Runner. Forks/Limit/CheckMode/DiffMode/Tags/
// SkipTags/ExtraVars pass straight through to the scheduler; JSON,
// Verbosity, VaultPasswordFile, and Out/Err are reporting-layer-only
// concerns the scheduler doesn't need to know about.
type Options struct {
	Forks     int
	Limit     string
	CheckMode bool
	DiffMode  bool
	Tags      []string
	SkipTags  []string
	ExtraVars map[string]interface{}

	JSON              bool
	Verbosity         int
	VaultPasswordFile string

	// Profile enables the profile_tasks callback plugin (spec §4.8
	// reporting), printing a sorted task-duration table alongside the
	// normal progress output.
	Profile bool

	Out io.Writer
	Err io.Writer
}

// Runner is the C7 facade: one per invocation of the CLI entrypoint.
type Runner struct {
	scheduler *scheduler.Scheduler
	loader    *playbook.Loader

	json      bool
	verbosity int
	out       io.Writer
	errOut    io.Writer

	callback *callback.CallbackManager

	currentPlay string
}

// New builds a Runner with the shared default module registry, a fresh connection cache
// (local/SSH/WinRM plugins, per pkg/connection.NewManager), and
// templating engine, wired into a scheduler configured from opts.
func New(opts Options) *Runner {
	registry := modules.DefaultModuleRegistry
	connCache := connection.NewCache(connection.DefaultCacheConfig(), connection.NewManager())
	tmpl := template.NewEngine()

	sched := scheduler.New(registry, connCache, tmpl, scheduler.Options{
		Forks:     opts.Forks,
		Limit:     opts.Limit,
		CheckMode: opts.CheckMode,
		DiffMode:  opts.DiffMode,
		Tags:      opts.Tags,
		SkipTags:  opts.SkipTags,
		ExtraVars: opts.ExtraVars,
	})

	r := &Runner{
		scheduler: sched,
		loader:    playbook.NewLoader(registry),
		json:      opts.JSON,
		verbosity: opts.Verbosity,
		out:       opts.Out,
		errOut:    opts.Err,
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.errOut == nil {
		r.errOut = os.Stderr
	}
	if !r.json {
		sched.Events = r.reportEvent
	}
	if opts.Profile {
		cm := callback.NewCallbackManager()
		cm.Register(callback.NewProfileTasksCallback())
		r.callback = cm
		prevEvents := sched.Events
		sched.Events = func(ev types.Event) {
			if prevEvents != nil {
				prevEvents(ev)
			}
			cm.HandleEvent(ev)
		}
	}
	return r
}

// Run loads and executes every playbook in paths, in order, against inv,
// printing human-readable progress (or, in JSON mode, staying silent
// until the final document) and returns the process exit code per spec
// §7. It is the single synchronous entrypoint cmd/sansible calls.
func (r *Runner) Run(ctx context.Context, paths []string, inv *inventory.StaticInventory) int {
	var docs []*types.PlaybookResult
	anyHostFailed := false
	var runErr error

loop:
	for _, path := range paths {
		pb, err := r.loader.LoadFile(path)
		if err != nil {
			runErr = err
			break
		}

		result, err := r.scheduler.RunPlaybook(ctx, pb, inv)
		if result != nil {
			docs = append(docs, result)
			for _, stats := range result.MergedStats() {
				if stats.Failed > 0 || stats.Unreachable > 0 {
					anyHostFailed = true
				}
			}
		}
		if err != nil {
			runErr = err
			break loop
		}
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		default:
		}
	}

	if r.callback != nil {
		r.callback.HandleEvent(types.Event{Type: types.EventRunEnd, Timestamp: time.Now()})
	}

	if r.json {
		r.printJSON(docs)
	} else {
		r.printRecap(docs)
		if runErr != nil {
			fmt.Fprintf(r.errOut, "ERROR: %v\n", runErr)
		}
	}

	return int(types.ExitCodeFor(runErr, anyHostFailed))
}

func (r *Runner) printJSON(docs []*types.PlaybookResult) {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if len(docs) == 1 {
		_ = enc.Encode(docs[0])
		return
	}
	_ = enc.Encode(docs)
}

// ParseExtraVars folds one or more -e/--extra-vars CLI values into a
// single map, later values taking precedence over earlier ones, mirroring
// the source order the runner applies them in (spec §4.3's extra-vars
// layer is "whatever was supplied last wins" within that single layer).
// Each value is one of:
//   - "@path": a YAML/JSON file, transparently vault-decrypted if it is
//     vault-encrypted (requires vaultPasswordFile)
//   - "{...}": an inline JSON object
//   - "k=v k2=v2": whitespace-separated key=value pairs
func ParseExtraVars(values []string, vaultPasswordFile string) (map[string]interface{}, error) {
	merged := make(map[string]interface{})
	for _, v := range values {
		parsed, err := parseOneExtraVars(v, vaultPasswordFile)
		if err != nil {
			return nil, err
		}
		merged = types.DeepMergeInterfaceMaps(merged, parsed)
	}
	return merged, nil
}

func parseOneExtraVars(value, vaultPasswordFile string) (map[string]interface{}, error) {
	switch {
	case strings.HasPrefix(value, "@"):
		return loadExtraVarsFile(value[1:], vaultPasswordFile)
	case strings.HasPrefix(strings.TrimSpace(value), "{"):
		out := make(map[string]interface{})
		if err := json.Unmarshal([]byte(value), &out); err != nil {
			return nil, fmt.Errorf("parsing inline extra-vars JSON: %w", err)
		}
		return out, nil
	default:
		return parseKeyValueVars(value), nil
	}
}

func loadExtraVarsFile(path, vaultPasswordFile string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading extra-vars file %s: %w", path, err)
	}

	if vault.IsVaultFile(data) {
		if vaultPasswordFile == "" {
			return nil, fmt.Errorf("extra-vars file %s is vault-encrypted but no --vault-password-file was given", path)
		}
		mgr := vault.NewManager()
		if err := mgr.AddVaultFromFile(vault.DefaultVaultIDLabel, vaultPasswordFile); err != nil {
			return nil, fmt.Errorf("loading vault password: %w", err)
		}
		return mgr.DecryptYAMLFile(path)
	}

	out := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing extra-vars file %s: %w", path, err)
	}
	return out, nil
}

func parseKeyValueVars(value string) map[string]interface{} {
	out := make(map[string]interface{})
	for _, pair := range strings.Fields(value) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		out[key] = val
	}
	return out
}
