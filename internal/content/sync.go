package content

import (
	"context"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"knowledgehub/app/internal/confluence"
)

// Reconciler brings the mirror into agreement with the external hierarchy.
// A pass is idempotent and re-runnable, but not safe to run concurrently
// with itself: callers must serialize invocations, and Run additionally
// refuses to overlap as a guard against stray triggers.
type Reconciler struct {
	external    confluence.Store
	pages       PageRepository
	roots       []string
	logger      *logrus.Logger
	running     atomic.Bool
}

// discoveredNode is one external page observed during the discovery walk,
// recorded in top-down order.
type discoveredNode struct {
	externalID       string
	parentExternalID *string
	hasChildren      bool
	listingFailed    bool
}

// NewReconciler constructs the reconciliation engine over the configured
// external root pages.
func NewReconciler(external confluence.Store, pages PageRepository, rootExternalIDs []string, logger *logrus.Logger) (*Reconciler, error) {
	if external == nil {
		return nil, eris.New("external store is required")
	}
	if pages == nil {
		return nil, eris.New("page repository is required")
	}
	if len(rootExternalIDs) == 0 {
		return nil, eris.New("at least one root external id is required")
	}

	return &Reconciler{
		external: external,
		pages:    pages,
		roots:    rootExternalIDs,
		logger:   logger,
	}, nil
}

// Running reports whether a pass is currently executing.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// Run executes one full reconciliation pass in three phases: discover the
// complete external tree, prune local pages that no longer exist externally,
// then reconcile structure top-down. Per-node external failures are logged
// and their subtrees skipped; the next pass retries them.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrReconcileInProgress
	}
	defer r.running.Store(false)

	r.logInfo(nil, "reconciliation pass started")

	discovered, degraded := r.discover(ctx)

	// A failed listing leaves that subtree undiscovered; pruning against an
	// incomplete picture would delete pages that are merely unreachable.
	if degraded {
		r.logWarn(nil, "discovery incomplete, skipping prune phase")
	} else if err := r.prune(ctx, discovered); err != nil {
		return eris.Wrap(err, "pruning orphaned pages")
	}

	created, updated := r.reconcile(ctx, discovered)

	r.logInfo(logrus.Fields{
		"discovered": len(discovered),
		"created":    created,
		"updated":    updated,
	}, "reconciliation pass complete")

	return nil
}

// discover walks the external hierarchy from the configured roots and
// returns every reachable node in top-down order. A failed child listing
// skips that subtree without aborting the pass; degraded reports whether any
// listing failed.
func (r *Reconciler) discover(ctx context.Context) (nodes []discoveredNode, degraded bool) {
	seen := mapset.NewSet[string]()

	var walk func(externalID string, parent *string)
	walk = func(externalID string, parent *string) {
		if !seen.Add(externalID) {
			return
		}

		children, err := r.external.GetChildren(ctx, externalID)
		if err != nil {
			r.logWarn(logrus.Fields{"external_id": externalID, "error": err.Error()},
				"listing children failed, skipping subtree")
			nodes = append(nodes, discoveredNode{
				externalID:       externalID,
				parentExternalID: parent,
				listingFailed:    true,
			})
			degraded = true
			return
		}

		nodes = append(nodes, discoveredNode{
			externalID:       externalID,
			parentExternalID: parent,
			hasChildren:      len(children) > 0,
		})

		for _, child := range children {
			parentID := externalID
			walk(child.ID, &parentID)
		}
	}

	for _, root := range r.roots {
		walk(root, nil)
	}

	return nodes, degraded
}

// prune removes every local page whose external id was not discovered, along
// with its submission. This must run before reconcile so that a page moved to
// a different parent is not mistaken for a re-creation.
func (r *Reconciler) prune(ctx context.Context, discovered []discoveredNode) error {
	localIDs, err := r.pages.ListExternalIDs(ctx)
	if err != nil {
		return eris.Wrap(err, "listing local external ids")
	}

	discoveredIDs := mapset.NewSet[string]()
	for _, node := range discovered {
		discoveredIDs.Add(node.externalID)
	}

	var orphans []string
	for _, id := range localIDs {
		if !discoveredIDs.Contains(id) {
			orphans = append(orphans, id)
		}
	}

	if len(orphans) == 0 {
		return nil
	}

	if err := r.pages.DeleteByExternalIDs(ctx, orphans); err != nil {
		return eris.Wrap(err, "deleting orphaned pages")
	}

	r.logInfo(logrus.Fields{"pruned": len(orphans)}, "pruned orphaned pages")
	return nil
}

// reconcile walks the discovered nodes top-down. Existing pages get only
// their structural fields refreshed; title, description and tags are curated
// content after initial import, and a routine sync must never discard
// administrator edits. Unknown pages are fetched in full and created.
func (r *Reconciler) reconcile(ctx context.Context, discovered []discoveredNode) (created, updated int) {
	for _, node := range discovered {
		// A node whose child listing failed has an unknown kind; touching it
		// could demote a section that still has children. Skip it entirely
		// and let the next pass retry.
		if node.listingFailed {
			continue
		}

		kind := KindArticle
		if node.hasChildren {
			kind = KindSection
		}

		local, err := r.pages.GetByExternalID(ctx, node.externalID)
		switch {
		case err == nil:
			if samePointer(local.ParentExternalID, node.parentExternalID) && local.Kind == kind {
				continue
			}
			if err := r.pages.UpdatePositionAndKind(ctx, node.externalID, node.parentExternalID, kind); err != nil {
				r.logWarn(logrus.Fields{"external_id": node.externalID, "error": err.Error()},
					"updating page structure failed")
				continue
			}
			updated++
		case eris.Is(err, ErrNotFound):
			if err := r.createFromExternal(ctx, node, kind); err != nil {
				r.logWarn(logrus.Fields{"external_id": node.externalID, "error": err.Error()},
					"creating mirrored page failed")
				continue
			}
			created++
		default:
			r.logWarn(logrus.Fields{"external_id": node.externalID, "error": err.Error()},
				"looking up mirrored page failed")
		}
	}

	return created, updated
}

func (r *Reconciler) createFromExternal(ctx context.Context, node discoveredNode, kind PageKind) error {
	snapshot, err := r.external.GetPage(ctx, node.externalID)
	if err != nil {
		return eris.Wrapf(err, "fetching snapshot of %s", node.externalID)
	}

	page := &Page{
		ExternalID:       node.externalID,
		ParentExternalID: node.parentExternalID,
		Title:            snapshot.Title,
		Slug:             Slugify(snapshot.Title),
		Description:      Excerpt(snapshot.BodyHTML),
		Kind:             kind,
		AuthorName:       snapshot.AuthorName,
		SourceUpdatedAt:  snapshot.UpdatedAt,
	}

	return r.pages.Create(ctx, page, ContentTags(snapshot.Labels))
}

func samePointer(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *Reconciler) logInfo(fields logrus.Fields, message string) {
	if r.logger == nil {
		return
	}
	if len(fields) > 0 {
		r.logger.WithFields(fields).Info(message)
		return
	}
	r.logger.Info(message)
}

func (r *Reconciler) logWarn(fields logrus.Fields, message string) {
	if r.logger == nil {
		return
	}
	r.logger.WithFields(fields).Warn(message)
}
