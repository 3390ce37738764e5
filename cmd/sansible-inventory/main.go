// Command sansible-inventory inspects an inventory source the same way
// the reference tool's companion inventory CLI does (spec §6):
// `sansible-inventory -i SOURCE [--list | --host NAME | --graph]`.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/sansible/sansible/pkg/inventory"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("sansible-inventory", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		source = fs.String("i", "", "inventory source (file, directory, or executable script)")
		list   = fs.Bool("list", false, "print all groups, their hosts and vars, as one JSON document")
		host   = fs.String("host", "", "print one host's variables as JSON")
		graph  = fs.Bool("graph", false, "print the group/host tree")
	)
	fs.StringVar(source, "inventory", "", "alias of -i")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -i SOURCE [--list | --host NAME | --graph]\n\n", fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *source == "" {
		fs.Usage()
		return 2
	}

	ctx := context.Background()
	inv, err := inventory.Load(ctx, *source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load inventory %s: %v\n", *source, err)
		return 3
	}

	switch {
	case *host != "":
		return printHostVars(inv, *host)
	case *graph:
		return printGraph(inv)
	default:
		return printList(inv)
	}
}

func printHostVars(inv *inventory.StaticInventory, name string) int {
	vars, err := inv.GetHostVars(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return encodeJSON(vars)
}

// printList emits the standard dynamic-inventory --list document: one
// entry per group naming its direct hosts and vars, plus a top-level
// "_meta.hostvars" map with every host's fully resolved variables.
func printList(inv *inventory.StaticInventory) int {
	doc := make(map[string]interface{})
	hostvars := make(map[string]interface{})

	for _, group := range inv.GetGroups() {
		hosts, err := inv.GetHosts(group.Name)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(hosts))
		for _, h := range hosts {
			names = append(names, h.Name)
		}
		sort.Strings(names)
		entry := map[string]interface{}{"hosts": names}
		if len(group.Vars) > 0 {
			entry["vars"] = group.Vars
		}
		if len(group.Children) > 0 {
			children := make([]string, 0, len(group.Children))
			for child := range group.Children {
				children = append(children, child)
			}
			sort.Strings(children)
			entry["children"] = children
		}
		doc[group.Name] = entry
	}

	allHosts, err := inv.GetHosts("all")
	if err != nil {
		return 1
	}
	for _, h := range allHosts {
		if vars, err := inv.GetHostVars(h.Name); err == nil {
			hostvars[h.Name] = vars
		}
	}
	doc["_meta"] = map[string]interface{}{"hostvars": hostvars}

	return encodeJSON(doc)
}

func printGraph(inv *inventory.StaticInventory) int {
	printGroupNode(inv, "all", 0, map[string]bool{})
	return 0
}

func printGroupNode(inv *inventory.StaticInventory, name string, depth int, visited map[string]bool) {
	if visited[name] {
		return
	}
	visited[name] = true

	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Printf("%s@%s:\n", indent, name)

	group, err := inv.GetGroup(name)
	if err != nil {
		return
	}
	children := make([]string, 0, len(group.Children))
	for child := range group.Children {
		children = append(children, child)
	}
	sort.Strings(children)
	for _, child := range children {
		printGroupNode(inv, child, depth+1, visited)
	}

	hosts, _ := inv.GetHosts(name)
	hostNames := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h.Groups[name] {
			hostNames = append(hostNames, h.Name)
		}
	}
	sort.Strings(hostNames)
	for _, h := range hostNames {
		fmt.Printf("%s  |--%s\n", indent, h)
	}
}

func encodeJSON(v interface{}) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}
