// Package service builds the CollectionService tree (component D) from a root
// Manager declaration and its managed_class chain, and resolves a concrete URL
// path back into the chain of parent resources (component E).
//
// Grounded in napixd.services.Service/CollectionService
// (original_source/napixd/services.py).
package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/napix/napixd/internal/napix"
)

// Node is one level of the URL tree (spec §3, "CollectionService (node)").
// Built once at startup; immutable thereafter.
type Node struct {
	Parent    *Node
	Decl      napix.ManagerDecl
	AppendURL bool
	Config    napix.Conf
	Depth     int // 0 = root

	// CollectionURL ends with "/"; ResourceURL ends with the node's own
	// positional placeholder (no trailing slash).
	CollectionURL string
	ResourceURL   string

	// Children holds every node directly managed by this one, for OneChild
	// and ManyChildren alike. The managed-classes listing route is registered
	// only for a ManyChildren node with more than one child (HasMultipleManaged).
	Children []*Node

	// segment is this node's own URL prefix, before the trailing "/f{depth}"
	// placeholder: either "<name>/" (AppendURL) or "" (implicit mount / root).
	segment string

	// locks backs Lock: one *sync.Mutex per resource id, created lazily.
	locks sync.Map
}

// Lock acquires the per-resource serialization capability named in spec.md
// §5 ("the core exposes an optional Lock capability attached to a
// CollectionService so that action invocations on the same resource can be
// serialised"). It returns the unlock func; callers must defer it on every
// exit path.
func (n *Node) Lock(id string) func() {
	v, _ := n.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ErrCycle is returned by Build when a manager's managed_class chain cycles
// back onto one of its own ancestors.
type ErrCycle struct {
	ManagerName string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("cycle detected: %s is its own ancestor", e.ManagerName)
}

// ConfResolver narrows a root configuration document down to the subtree for
// one node's ancestor chain (spec §6, "Conf.for_manager"); see internal/config.
type ConfResolver func(chain []string) napix.Conf

// Build constructs the tree rooted at root. conf resolves each node's config
// subtree from the chain of manager names from the root down to that node
// (inclusive). Returns every node in the tree, root first, in the same
// pre-order the original's recursive _create_collection_service produces.
func Build(root napix.ManagerDecl, conf ConfResolver) ([]*Node, error) {
	var all []*Node
	seen := map[string]bool{}

	var recur func(parent *Node, decl napix.ManagerDecl, appendURL bool, chain []string) error
	recur = func(parent *Node, decl napix.ManagerDecl, appendURL bool, chain []string) error {
		if seen[decl.ManagerName] {
			return &ErrCycle{ManagerName: decl.ManagerName}
		}
		seen[decl.ManagerName] = true
		defer delete(seen, decl.ManagerName)

		node := &Node{
			Parent:    parent,
			Decl:      decl,
			AppendURL: appendURL,
			Config:    conf(chain),
		}
		if parent != nil {
			node.Depth = parent.Depth + 1
		}
		if appendURL {
			node.segment = decl.ManagerName + "/"
		}
		node.CollectionURL, node.ResourceURL = buildURLs(node)
		all = append(all, node)
		if parent != nil {
			parent.Children = append(parent.Children, node)
		}

		switch m := decl.Managed.(type) {
		case napix.NoChildren, nil:
			// leaf
		case napix.OneChild:
			childDecl := napix.ManagerDecl{ManagerName: m.Name, NewManager: m.Factory}
			if err := recur(node, childDecl, false, append(append([]string{}, chain...), m.Name)); err != nil {
				return err
			}
		case napix.ManyChildren:
			for _, c := range m.Children {
				childDecl := napix.ManagerDecl{ManagerName: c.Name, NewManager: c.Factory}
				if err := recur(node, childDecl, true, append(append([]string{}, chain...), c.Name)); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unknown ManagedClass variant %T", m)
		}
		return nil
	}

	if err := recur(nil, root, false, []string{root.ManagerName}); err != nil {
		return nil, err
	}
	return all, nil
}

// ancestors returns the chain from the root down to and including n.
func (n *Node) ancestors() []*Node {
	var chain []*Node
	for cur := n; cur != nil; cur = cur.Parent {
		chain = append([]*Node{cur}, chain...)
	}
	return chain
}

// buildURLs implements the §4.D formula:
//
//	collection_url = "/" + prefix_0 + ":f0/" + prefix_1 + ":f1/" + ... + prefix_d
//	resource_url   = collection_url + ":f{d}"
func buildURLs(n *Node) (collection, resource string) {
	chain := n.ancestors()
	var b strings.Builder
	b.WriteByte('/')
	last := len(chain) - 1
	for i, node := range chain {
		b.WriteString(node.segment)
		if i != last {
			fmt.Fprintf(&b, ":f%d/", i)
		}
	}
	collection = b.String()
	resource = fmt.Sprintf("%s:f%d", collection, last)
	return collection, resource
}

// HasMultipleManaged reports whether the node's managed-classes listing route
// should be registered (§4.G: "only registered if the node has multiple
// managed classes").
func (n *Node) HasMultipleManaged() bool {
	_, ok := n.Decl.Managed.(napix.ManyChildren)
	return ok && len(n.Children) > 1
}

// ManagedClassURLs returns, for a resource identified by the given ids (one per
// ancestor including n), the child collection URLs mounted under it.
func (n *Node) ManagedClassURLs(ids []string) []string {
	base := n.ResourceToken(ids)
	out := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, base+"/"+strings.TrimSuffix(c.segment, "/"))
	}
	return out
}

// ResourceToken renders the concrete URL for this node's resource given ids
// (one id per ancestor, root first), substituting each ":f{i}" placeholder.
func (n *Node) ResourceToken(ids []string) string {
	url := n.ResourceURL
	for i, id := range ids {
		url = strings.Replace(url, fmt.Sprintf(":f%d", i), id, 1)
	}
	return url
}

// CollectionToken renders the concrete collection URL given the ids of every
// ancestor (one fewer than a full resource token).
func (n *Node) CollectionToken(ids []string) string {
	url := n.CollectionURL
	for i, id := range ids {
		url = strings.Replace(url, fmt.Sprintf(":f%d", i), id, 1)
	}
	return url
}
