package service

import (
	"context"
	"fmt"

	"github.com/napix/napixd/internal/napix"
)

// Resolved is the outcome of walking a concrete URL's positional segments down
// to one node: a live Manager instance for every ancestor, paired with the id
// that addressed it (spec §3, "Path resolver... rebuilds the parent chain").
type Resolved struct {
	Node  *Node
	Chain []ResolvedAncestor
}

// ResolvedAncestor is one step of the rebuilt parent chain.
type ResolvedAncestor struct {
	Node     *Node
	Manager  napix.Manager
	ID       string
	Resource napix.Resource
}

// Leaf returns the last ancestor resolved, i.e. the manager instance the
// dispatcher should invoke the verb against.
func (r *Resolved) Leaf() ResolvedAncestor {
	return r.Chain[len(r.Chain)-1]
}

// Parent returns the resource pairing the requested node's manager factory
// expects, i.e. the second-to-last ancestor's resolved body, or nil at the
// root (Design Notes §9, Open Question 2: root's parent sentinel is nil, not
// an empty map).
func (r *Resolved) Parent() napix.Resource {
	if len(r.Chain) < 2 {
		return nil
	}
	return r.Chain[len(r.Chain)-2].Resource
}

// Resolve walks node's ancestor chain (root first), validating each id in turn
// against a freshly constructed Manager for that level and fetching every
// ancestor's resource (the leaf's is not fetched), using the previous level's
// fetched resource as the next manager's parent
// (original_source/napixd/services.py: BaseCollectionService.get_resource
// walking _services_stack). ids must have exactly one entry per ancestor.
func Resolve(ctx context.Context, node *Node, ids []string) (*Resolved, error) {
	chain := node.ancestors()
	if len(ids) != len(chain) {
		return nil, fmt.Errorf("resolve: expected %d ids, got %d", len(chain), len(ids))
	}

	out := &Resolved{Node: node}
	var parent napix.Resource // nil sentinel at the root
	last := len(chain) - 1

	for i, n := range chain {
		mgr := n.Decl.NewManager(parent)
		if mgr == nil {
			return nil, fmt.Errorf("resolve: %s.NewManager returned nil", n.Decl.ManagerName)
		}
		if err := configure(mgr, n); err != nil {
			return nil, err
		}

		id := ids[i]
		if validator, ok := mgr.(napix.IDValidator); ok {
			validated, err := validator.ValidateID(id)
			if err != nil {
				return nil, err
			}
			id = validated
		}

		// Only ancestors are pre-fetched to rebuild the parent chain (§4.E step
		// 1); the leaf's own resource is the dispatcher's concern — it is only
		// fetched when the invoked verb needs it (GET, or PUT's optional
		// existing-body lookup), not unconditionally here.
		if i == last {
			out.Chain = append(out.Chain, ResolvedAncestor{Node: n, Manager: mgr, ID: id})
			break
		}

		getter, ok := mgr.(napix.Getter)
		if !ok {
			return nil, fmt.Errorf("resolve: %s does not implement Getter", n.Decl.ManagerName)
		}
		resource, err := getter.GetResource(ctx, id)
		if err != nil {
			return nil, err
		}

		out.Chain = append(out.Chain, ResolvedAncestor{Node: n, Manager: mgr, ID: id, Resource: resource})
		parent = resource
	}
	return out, nil
}

// ResolveCollection is Resolve for a collection URL: every ancestor is
// resolved down to, but not including, node itself, and node's own manager is
// constructed (unfetched) against the resolved parent.
func ResolveCollection(ctx context.Context, node *Node, parentIDs []string) (napix.Manager, napix.Resource, []ResolvedAncestor, error) {
	chain := node.ancestors()
	if len(parentIDs) != len(chain)-1 {
		return nil, nil, nil, fmt.Errorf("resolve collection: expected %d parent ids, got %d", len(chain)-1, len(parentIDs))
	}

	var ancestors []ResolvedAncestor
	var parent napix.Resource

	for i := 0; i < len(chain)-1; i++ {
		n := chain[i]
		mgr := n.Decl.NewManager(parent)
		if err := configure(mgr, n); err != nil {
			return nil, nil, nil, err
		}
		id := parentIDs[i]
		if validator, ok := mgr.(napix.IDValidator); ok {
			validated, err := validator.ValidateID(id)
			if err != nil {
				return nil, nil, nil, err
			}
			id = validated
		}
		getter, ok := mgr.(napix.Getter)
		if !ok {
			return nil, nil, nil, fmt.Errorf("resolve collection: %s does not implement Getter", n.Decl.ManagerName)
		}
		resource, err := getter.GetResource(ctx, id)
		if err != nil {
			return nil, nil, nil, err
		}
		ancestors = append(ancestors, ResolvedAncestor{Node: n, Manager: mgr, ID: id, Resource: resource})
		parent = resource
	}

	mgr := node.Decl.NewManager(parent)
	if err := configure(mgr, node); err != nil {
		return nil, nil, nil, err
	}
	return mgr, parent, ancestors, nil
}

// configure calls Configure on mgr with its node's resolved subtree, if mgr
// implements napix.Configurer (Design Notes §9, Open Question 1: every node
// is configured with its own subtree config; since a fresh Manager is built
// per request — Go has no classmethod to configure once and share — Configure
// is invoked once per constructed instance, which is equivalent for the
// idempotent, request-independent config a subtree resolves to).
func configure(mgr napix.Manager, n *Node) error {
	if c, ok := mgr.(napix.Configurer); ok {
		return c.Configure(n.Config)
	}
	return nil
}
