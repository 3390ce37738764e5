// Command sansible runs playbooks against an inventory, Ansible-style
// (spec §6): `sansible -i INVENTORY PLAYBOOK... [options]`.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sansible/sansible/pkg/inventory"
	"github.com/sansible/sansible/pkg/runner"
)

var (
	version = "dev"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("sansible", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		inventoryPath = fs.String("i", "", "inventory source (file, directory, or executable script)")
		limit         = fs.String("l", "", "further limit the play's host pattern")
		forks         = fs.Int("f", 5, "number of hosts to run in parallel")
		check         = fs.Bool("C", false, "run in check mode without making changes")
		diff          = fs.Bool("diff", false, "show file diffs when changing files")
		tags          = fs.String("t", "", "comma-separated list of tags to run")
		skipTags      = fs.String("skip-tags", "", "comma-separated list of tags to skip")
		jsonOutput    = fs.Bool("json", false, "emit one JSON result document instead of human-readable progress")
		profile       = fs.Bool("profile", false, "print a per-task duration table alongside progress output")
		vaultPassFile = fs.String("vault-password-file", "", "file containing the vault password for encrypted extra-vars files")
		verbose       = fs.Int("v", 0, "verbosity level (pass a higher number for more detail)")
		versionFlag   = fs.Bool("version", false, "print the version and exit")
	)
	fs.StringVar(inventoryPath, "inventory", "", "alias of -i")
	fs.StringVar(limit, "limit", "", "alias of -l")
	fs.IntVar(forks, "forks", 5, "alias of -f")
	fs.BoolVar(check, "check", false, "alias of -C")
	fs.StringVar(tags, "tags", "", "alias of -t")

	var extraVarsFlags stringSliceFlag
	fs.Var(&extraVarsFlags, "e", "extra variables: k=v, @file.yml, or inline JSON (repeatable)")
	fs.Var(&extraVarsFlags, "extra-vars", "alias of -e")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -i INVENTORY PLAYBOOK... [options]\n\n", fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *versionFlag {
		fmt.Println("sansible version", version)
		return 0
	}

	playbooks := fs.Args()
	if *inventoryPath == "" || len(playbooks) == 0 {
		fs.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inv, err := inventory.Load(ctx, *inventoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load inventory %s: %v\n", *inventoryPath, err)
		return 3
	}

	extraVars, err := runner.ParseExtraVars(extraVarsFlags.values, *vaultPassFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse extra-vars: %v\n", err)
		return 2
	}

	r := runner.New(runner.Options{
		Forks:             *forks,
		Limit:             *limit,
		CheckMode:         *check,
		DiffMode:          *diff,
		Tags:              splitCSV(*tags),
		SkipTags:          splitCSV(*skipTags),
		ExtraVars:         extraVars,
		JSON:              *jsonOutput,
		Verbosity:         *verbose,
		VaultPasswordFile: *vaultPassFile,
		Profile:           *profile,
	})

	return r.Run(ctx, playbooks, inv)
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// stringSliceFlag collects repeated -e/--extra-vars occurrences in order.
type stringSliceFlag struct {
	values []string
}

func (f *stringSliceFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(f.values, ",")
}

func (f *stringSliceFlag) Set(value string) error {
	f.values = append(f.values, value)
	return nil
}
