package content

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// maxAncestorDepth bounds the ancestor walk. The mirrored hierarchy is a few
// levels deep in practice; exceeding this means the parent pointers loop.
const maxAncestorDepth = 64

// Resolver traverses the parent-pointer relation in both directions. It works
// purely on the external-id edge, so it survives a full mirror rebuild.
type Resolver struct {
	pages  PageRepository
	logger *logrus.Logger
}

// NewResolver constructs a Resolver over the page repository.
func NewResolver(pages PageRepository, logger *logrus.Logger) (*Resolver, error) {
	if pages == nil {
		return nil, eris.New("page repository is required")
	}

	return &Resolver{pages: pages, logger: logger}, nil
}

// Ancestors returns the chain of pages above the given page, root first. The
// walk is bounded; a chain longer than maxAncestorDepth yields
// ErrCycleDetected rather than looping forever.
func (r *Resolver) Ancestors(ctx context.Context, page *Page) ([]Page, error) {
	if page == nil {
		return nil, eris.New("page is nil")
	}

	var ancestors []Page
	current := page

	for steps := 0; current.ParentExternalID != nil; steps++ {
		if steps >= maxAncestorDepth {
			err := eris.Wrapf(ErrCycleDetected, "ancestor walk from %s exceeded %d steps", page.ExternalID, maxAncestorDepth)
			if r.logger != nil {
				r.logger.WithFields(logrus.Fields{
					"external_id": page.ExternalID,
					"error":       err.Error(),
				}).Error("ancestor resolution aborted")
			}
			return nil, err
		}

		parent, err := r.pages.GetByExternalID(ctx, *current.ParentExternalID)
		if err != nil {
			if eris.Is(err, ErrNotFound) {
				// Dangling parent pointer: treat the walk as complete. The next
				// reconciliation pass prunes or repairs the edge.
				break
			}
			return nil, eris.Wrapf(err, "resolving ancestor of %s", current.ExternalID)
		}

		ancestors = append([]Page{*parent}, ancestors...)
		current = parent
	}

	return ancestors, nil
}

// Descendants computes the transitive closure of the is-child-of relation
// starting from the given roots, by iterative frontier expansion. The result
// holds internal page ids; a page reachable from more than one root appears
// once. The roots themselves are not included.
func (r *Resolver) Descendants(ctx context.Context, rootExternalIDs []string) (mapset.Set[uint], error) {
	ids := mapset.NewSet[uint]()
	seen := mapset.NewSet[string](rootExternalIDs...)
	frontier := rootExternalIDs

	for len(frontier) > 0 {
		children, err := r.pages.ChildrenOf(ctx, frontier)
		if err != nil {
			return nil, eris.Wrap(err, "expanding descendant frontier")
		}

		next := make([]string, 0, len(children))
		for i := range children {
			child := &children[i]
			if !seen.Add(child.ExternalID) {
				continue
			}
			ids.Add(child.ID)
			next = append(next, child.ExternalID)
		}

		frontier = next
	}

	return ids, nil
}

// PromoteToSectionIfNeeded repairs a parent's kind when it gains its first
// child between reconciliation passes: a parent still labeled ARTICLE with at
// least one child is flipped to SECTION immediately, so navigation reflects
// its structural role without waiting for the next batch run.
func (r *Resolver) PromoteToSectionIfNeeded(ctx context.Context, parentExternalID string) error {
	parent, err := r.pages.GetByExternalID(ctx, parentExternalID)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil
		}
		return eris.Wrapf(err, "fetching parent %s", parentExternalID)
	}

	if parent.Kind == KindSection {
		return nil
	}

	count, err := r.pages.CountChildren(ctx, parentExternalID)
	if err != nil {
		return eris.Wrapf(err, "counting children of %s", parentExternalID)
	}
	if count == 0 {
		return nil
	}

	if err := r.pages.UpdatePositionAndKind(ctx, parentExternalID, parent.ParentExternalID, KindSection); err != nil {
		return eris.Wrapf(err, "promoting %s to section", parentExternalID)
	}

	if r.logger != nil {
		r.logger.WithField("external_id", parentExternalID).Info("promoted page to section")
	}

	return nil
}
