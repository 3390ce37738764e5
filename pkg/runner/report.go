package runner

import (
	"fmt"

	"github.com/sansible/sansible/pkg/types"
)

// reportEvent renders one scheduler event as a line of Ansible-style
// progress output. It is only ever wired as the scheduler's Events
// callback when JSON mode is off, and the scheduler calls it from a
// single goroutine at a time per play, so no locking is needed here.
func (r *Runner) reportEvent(ev types.Event) {
	switch ev.Type {
	case types.EventPlayStart:
		r.currentPlay = ev.Play
		fmt.Fprintf(r.out, "\nPLAY [%s] %s\n", ev.Play, dashes(72-len(ev.Play)))
	case types.EventTaskStart:
		fmt.Fprintf(r.out, "\nTASK [%s] %s\n", ev.Task, dashes(72-len(ev.Task)))
	case types.EventTaskResult:
		r.printTaskResult(ev.Result)
	}
}

func (r *Runner) printTaskResult(result *types.TaskResult) {
	if result == nil {
		return
	}
	switch result.Status {
	case types.StatusChanged:
		fmt.Fprintf(r.out, "changed: [%s]\n", result.Host)
	case types.StatusFailed:
		fmt.Fprintf(r.out, "failed: [%s] => %s\n", result.Host, result.Message)
	case types.StatusUnreachable:
		fmt.Fprintf(r.out, "unreachable: [%s] => %s\n", result.Host, result.Message)
	case types.StatusSkipped:
		if r.verbosity > 0 {
			fmt.Fprintf(r.out, "skipping: [%s]\n", result.Host)
		}
	default:
		if r.verbosity > 0 {
			fmt.Fprintf(r.out, "ok: [%s]\n", result.Host)
		}
	}
	if r.verbosity > 1 && result.Stdout != "" {
		fmt.Fprintf(r.out, "  stdout: %s\n", result.Stdout)
	}
}

// printRecap prints the "PLAY RECAP" block for every playbook run, one
// line per host, in the same shape the reference tool uses.
func (r *Runner) printRecap(docs []*types.PlaybookResult) {
	if len(docs) == 0 {
		return
	}
	fmt.Fprintf(r.out, "\nPLAY RECAP %s\n", dashes(62))
	for _, doc := range docs {
		stats := doc.MergedStats()
		for _, host := range sortedHostNames(stats) {
			s := stats[host]
			fmt.Fprintf(r.out, "%-24s : ok=%-4d changed=%-4d unreachable=%-4d failed=%-4d skipped=%-4d\n",
				host, s.OK, s.Changed, s.Unreachable, s.Failed, s.Skipped)
		}
	}
}

func sortedHostNames(stats map[string]*types.HostStats) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

func dashes(n int) string {
	if n < 0 {
		n = 0
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = '*'
	}
	return string(out)
}
