package inventory

import (
	"sort"
	"strings"

	"github.com/sansible/sansible/pkg/types"
)

// GetHosts resolves pattern against the inventory using the algebra spec
// §4.3 defines: `all`, a comma-separated union, `!p` set difference,
// `a:&b` intersection, a group name (its full child closure), or a single
// host name. Unknown tokens yield the empty set rather than an error,
// matching Ansible's own lenient behavior.
func (inv *StaticInventory) GetHosts(pattern string) ([]types.Host, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "all" || pattern == "*" {
		return inv.sortedHostsLocked(inv.allHostNamesLocked()), nil
	}

	result := make(map[string]bool)
	for _, term := range strings.Split(pattern, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		negate := strings.HasPrefix(term, "!")
		if negate {
			term = term[1:]
		}
		matched := inv.resolveTermLocked(term)
		if negate {
			for h := range matched {
				delete(result, h)
			}
		} else {
			for h := range matched {
				result[h] = true
			}
		}
	}

	return inv.sortedHostsLocked(result), nil
}

// resolveTermLocked resolves one comma-separated term, handling the `a:&b`
// intersection operator, under inv.mu already held for reading.
func (inv *StaticInventory) resolveTermLocked(term string) map[string]bool {
	if idx := strings.Index(term, ":&"); idx >= 0 {
		left := inv.resolveTermLocked(term[:idx])
		right := inv.resolveTermLocked(term[idx+2:])
		out := make(map[string]bool)
		for h := range left {
			if right[h] {
				out[h] = true
			}
		}
		return out
	}
	return inv.resolveSingleLocked(term)
}

func (inv *StaticInventory) resolveSingleLocked(term string) map[string]bool {
	if term == "all" {
		return inv.allHostNamesLocked()
	}

	if _, ok := inv.hosts[term]; ok {
		return map[string]bool{term: true}
	}

	if _, ok := inv.groups[term]; ok {
		return inv.hostsInGroupClosureLocked(term)
	}

	// Fall back to glob/regex matching against host names/addresses and
	// group names, for patterns like "web*" that name no exact host or
	// group.
	out := make(map[string]bool)
	matchedAny := false
	for name, host := range inv.hosts {
		if types.MatchPattern(term, name) || types.MatchPattern(term, host.Address()) {
			out[name] = true
			matchedAny = true
		}
	}
	for name := range inv.groups {
		if types.MatchPattern(term, name) {
			for h := range inv.hostsInGroupClosureLocked(name) {
				out[h] = true
			}
			matchedAny = true
		}
	}
	if !matchedAny {
		return map[string]bool{}
	}
	return out
}

// groupClosureLocked returns name plus every group reachable by walking
// DOWN the Children relation.
func (inv *StaticInventory) groupClosureLocked(name string) map[string]bool {
	visited := map[string]bool{name: true}
	var walk func(string)
	walk = func(n string) {
		g, ok := inv.groups[n]
		if !ok {
			return
		}
		for child := range g.Children {
			if !visited[child] {
				visited[child] = true
				walk(child)
			}
		}
	}
	walk(name)
	return visited
}

// hostsInGroupClosureLocked returns every host belonging to name or any of
// its descendant groups. types.Group carries no host list of its own, so
// membership is found by scanning each host's own Groups set.
func (inv *StaticInventory) hostsInGroupClosureLocked(name string) map[string]bool {
	closure := inv.groupClosureLocked(name)
	out := make(map[string]bool)
	for hostName, h := range inv.hosts {
		for g := range closure {
			if h.Groups[g] {
				out[hostName] = true
				break
			}
		}
	}
	return out
}

// ancestorGroupNamesLocked expands a host's direct group membership to
// include every ancestor reachable through types.Group.Parents, so a host
// nested several levels deep still picks up variables declared on groups
// above the ones it's listed under directly. Returned in sorted order for
// deterministic merge order within the layer.
func (inv *StaticInventory) ancestorGroupNamesLocked(direct map[string]bool) []string {
	visited := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		if g, ok := inv.groups[name]; ok {
			for parent := range g.Parents {
				visit(parent)
			}
		}
	}
	for name := range direct {
		visit(name)
	}
	return sortedGroupNames(visited)
}

func (inv *StaticInventory) allHostNamesLocked() map[string]bool {
	out := make(map[string]bool, len(inv.hosts))
	for name := range inv.hosts {
		out[name] = true
	}
	return out
}

func (inv *StaticInventory) sortedHostsLocked(names map[string]bool) []types.Host {
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	result := make([]types.Host, 0, len(sorted))
	for _, name := range sorted {
		result = append(result, *inv.hosts[name])
	}
	return result
}
