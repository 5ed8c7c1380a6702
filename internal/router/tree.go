package router

import (
	"slices"
	"strings"
)

// cmdNode is one token of a command route. Groups have children and may
// also carry a command of their own.
type cmdNode struct {
	name     string
	cmd      *Command
	children map[string]*cmdNode
}

func newRoot() *cmdNode { return &cmdNode{children: map[string]*cmdNode{}} }

func splitRoute(route string) []string { return strings.Fields(route) }

// add creates the nodes along route and stores c at the last one.
func (n *cmdNode) add(route []string, c Command) *cmdNode {
	for _, tok := range route {
		next := n.children[tok]
		if next == nil {
			next = &cmdNode{name: tok, children: map[string]*cmdNode{}}
			n.children[tok] = next
		}
		n = next
	}
	n.cmd = &c
	return n
}

func (n *cmdNode) child(name string) (*cmdNode, bool) {
	c, ok := n.children[name]
	return c, ok
}

func (n *cmdNode) childNames() []string {
	names := make([]string, 0, len(n.children))
	for k := range n.children {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// walk resolves first and then as many leading args as match subcommands.
// It returns the deepest node, the matched path and the unconsumed args.
// Flags end the walk, so "/echo --reply fresh" runs echo with "fresh" as text.
func (n *cmdNode) walk(first string, args []string) (*cmdNode, []string, []string, bool) {
	cur, ok := n.child(first)
	if !ok {
		return nil, nil, args, false
	}
	path := []string{first}
	for ; len(args) > 0 && !strings.HasPrefix(args[0], "-"); args = args[1:] {
		next, ok := cur.child(args[0])
		if !ok {
			break
		}
		cur, path = next, append(path, args[0])
	}
	return cur, path, args, true
}

// summary is the node's own description, or a preview of its subcommands.
func (n *cmdNode) summary() string {
	if n == nil {
		return ""
	}
	if n.cmd != nil && strings.TrimSpace(n.cmd.Description) != "" {
		return strings.TrimSpace(n.cmd.Description)
	}
	kids := n.childNames()
	switch {
	case len(kids) == 0:
		return ""
	case len(kids) > 3:
		return "subcommands: " + strings.Join(kids[:3], ", ") + ", …"
	}
	return "subcommands: " + strings.Join(kids, ", ")
}

// ownerOnly reports whether the command, or every command in the group,
// is restricted to owners.
func (n *cmdNode) ownerOnly() bool {
	if n == nil {
		return false
	}
	if n.cmd != nil {
		return n.cmd.Access == AccessOwnerOnly
	}
	if len(n.children) == 0 {
		return false
	}
	for _, c := range n.children {
		if !c.ownerOnly() {
			return false
		}
	}
	return true
}
