package inventory

import "sort"

// yamlGroupNode is the recursive decoding shape for one group in an
// Ansible-style YAML inventory: {hosts: {name: vars}, vars: {...},
// children: {child: {...}}}. children nest to arbitrary depth (spec
// §4.3), which is why this is a distinct type from types.Group rather
// than decoding straight into the domain model.
type yamlGroupNode struct {
	Hosts    map[string]map[string]interface{} `yaml:"hosts,omitempty"`
	Vars     map[string]interface{}            `yaml:"vars,omitempty"`
	Children map[string]yamlGroupNode          `yaml:"children,omitempty"`
}

// loadGroupNode registers name's hosts and vars, then recurses into its
// children, linking each as a child of name.
func (inv *StaticInventory) loadGroupNode(name string, node yamlGroupNode) {
	hostNames := make([]string, 0, len(node.Hosts))
	for hostName := range node.Hosts {
		hostNames = append(hostNames, hostName)
	}
	sort.Strings(hostNames)
	for _, hostName := range hostNames {
		inv.AddHost(hostName, node.Hosts[hostName], name)
	}
	inv.AddGroupVars(name, node.Vars)

	childNames := make([]string, 0, len(node.Children))
	for childName := range node.Children {
		childNames = append(childNames, childName)
	}
	sort.Strings(childNames)
	for _, childName := range childNames {
		inv.loadGroupNode(childName, node.Children[childName])
		inv.LinkGroups(name, childName)
	}
}
