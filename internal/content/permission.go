package content

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Actor is the acting user as seen by the content domain: enough identity to
// resolve authority without depending on the auth package.
type Actor struct {
	ID   uint
	Name string
	Role Role
}

// IsAdmin reports whether the actor holds the global ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// PrunedNode is one entry of a permission-filtered tree listing. Signpost
// ancestors appear with IsEditable false so a client can navigate down to an
// editable branch without seeing unrelated siblings.
type PrunedNode struct {
	Page       Page
	IsEditable bool
}

// PermissionResolver computes which pages a user may edit and produces a
// non-leaking, navigable view of the tree restricted to their authority.
type PermissionResolver struct {
	pages    PageRepository
	groups   GroupRepository
	resolver *Resolver
	logger   *logrus.Logger
}

// NewPermissionResolver wires the permission resolver with its dependencies.
func NewPermissionResolver(pages PageRepository, groups GroupRepository, resolver *Resolver, logger *logrus.Logger) (*PermissionResolver, error) {
	if pages == nil {
		return nil, eris.New("page repository is required")
	}
	if groups == nil {
		return nil, eris.New("group repository is required")
	}
	if resolver == nil {
		return nil, eris.New("tree resolver is required")
	}

	return &PermissionResolver{pages: pages, groups: groups, resolver: resolver, logger: logger}, nil
}

// EditableSet returns the internal ids of every page the actor may edit
// through group delegation: for each group where the actor holds ADMIN
// membership and that manages a page, the managed page plus its transitive
// descendants. Authority from multiple groups is unioned, never overridden.
//
// Global admins can edit everything; callers special-case IsAdmin instead of
// materializing the whole tree through this method.
func (p *PermissionResolver) EditableSet(ctx context.Context, actor Actor) (mapset.Set[uint], error) {
	editable := mapset.NewSet[uint]()

	roots, err := p.managedRoots(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return editable, nil
	}

	rootIDs := make([]string, 0, len(roots))
	for i := range roots {
		editable.Add(roots[i].ID)
		rootIDs = append(rootIDs, roots[i].ExternalID)
	}

	descendants, err := p.resolver.Descendants(ctx, rootIDs)
	if err != nil {
		return nil, eris.Wrap(err, "resolving editable descendants")
	}

	return editable.Union(descendants), nil
}

// EditableExternalIDs returns the external ids of the actor's editable set,
// for queries keyed by the business identifier such as the pending review
// listing.
func (p *PermissionResolver) EditableExternalIDs(ctx context.Context, actor Actor) ([]string, error) {
	roots, err := p.managedRoots(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(roots))
	for i := range roots {
		ids = append(ids, roots[i].ExternalID)
	}

	seen := mapset.NewSet[string](ids...)
	frontier := ids
	for len(frontier) > 0 {
		children, err := p.pages.ChildrenOf(ctx, frontier)
		if err != nil {
			return nil, eris.Wrap(err, "expanding editable external ids")
		}

		next := make([]string, 0, len(children))
		for i := range children {
			if !seen.Add(children[i].ExternalID) {
				continue
			}
			ids = append(ids, children[i].ExternalID)
			next = append(next, children[i].ExternalID)
		}
		frontier = next
	}

	return ids, nil
}

// CanEdit reports whether the actor may edit the given page.
func (p *PermissionResolver) CanEdit(ctx context.Context, externalID string, actor Actor) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}

	page, err := p.pages.GetByExternalID(ctx, externalID)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, eris.Wrapf(err, "fetching page for permission check: %s", externalID)
	}

	editable, err := p.EditableSet(ctx, actor)
	if err != nil {
		return false, err
	}

	return editable.Contains(page.ID), nil
}

// PrunedTree returns the children of the given parent restricted to what the
// actor may reach: editable pages plus the signpost ancestors leading down to
// them. A node's IsEditable flag is true only when the node itself is in the
// actor's editable set, not merely an ancestor of one.
func (p *PermissionResolver) PrunedTree(ctx context.Context, actor Actor, parentExternalID *string) ([]PrunedNode, error) {
	children, err := p.pages.GetChildren(ctx, parentExternalID)
	if err != nil {
		return nil, eris.Wrap(err, "listing children for pruned tree")
	}

	if actor.IsAdmin() {
		nodes := make([]PrunedNode, 0, len(children))
		for i := range children {
			nodes = append(nodes, PrunedNode{Page: children[i], IsEditable: true})
		}
		return nodes, nil
	}

	editable, err := p.EditableSet(ctx, actor)
	if err != nil {
		return nil, err
	}

	visible, err := p.visibleSet(ctx, actor, editable)
	if err != nil {
		return nil, err
	}

	nodes := make([]PrunedNode, 0, len(children))
	for i := range children {
		child := &children[i]
		if !visible.Contains(child.ID) {
			continue
		}
		nodes = append(nodes, PrunedNode{Page: *child, IsEditable: editable.Contains(child.ID)})
	}

	return nodes, nil
}

// visibleSet is the editable set plus the ancestors of each managed root.
// Every editable page's ancestors outside the subtree are exactly the
// ancestors of its root, so walking the roots covers all signposts.
func (p *PermissionResolver) visibleSet(ctx context.Context, actor Actor, editable mapset.Set[uint]) (mapset.Set[uint], error) {
	visible := editable.Clone()

	roots, err := p.managedRoots(ctx, actor)
	if err != nil {
		return nil, err
	}

	for i := range roots {
		ancestors, err := p.resolver.Ancestors(ctx, &roots[i])
		if err != nil {
			return nil, eris.Wrapf(err, "resolving signpost ancestors of %s", roots[i].ExternalID)
		}
		for j := range ancestors {
			visible.Add(ancestors[j].ID)
		}
	}

	return visible, nil
}

// managedRoots returns the pages at the root of each subtree the actor
// administers. Groups whose managed page is missing from the mirror are
// skipped; the next reconciliation pass resolves the discrepancy.
func (p *PermissionResolver) managedRoots(ctx context.Context, actor Actor) ([]Page, error) {
	groups, err := p.groups.AdminManagedGroups(ctx, actor.ID)
	if err != nil {
		return nil, eris.Wrap(err, "listing actor's managed groups")
	}

	externalIDs := make([]string, 0, len(groups))
	for i := range groups {
		if groups[i].ManagedPageExternalID == nil {
			continue
		}
		externalIDs = append(externalIDs, *groups[i].ManagedPageExternalID)
	}
	if len(externalIDs) == 0 {
		return nil, nil
	}

	pages, err := p.pages.GetByExternalIDs(ctx, externalIDs)
	if err != nil {
		return nil, eris.Wrap(err, "fetching managed root pages")
	}

	return pages, nil
}
