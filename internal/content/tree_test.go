package content

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
)

func TestNewResolverRequiresRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewResolver(nil, nil); err == nil {
		t.Fatalf("expected error when repository is nil")
	}
}

func TestAncestorsReturnsChainRootFirst(t *testing.T) {
	t.Parallel()

	repo, _ := setupContentDB(t)
	ctx := context.Background()

	mustCreatePage(t, repo, &Page{ExternalID: "top", Title: "Top", Slug: "top", Kind: KindSection})
	top := "top"
	mustCreatePage(t, repo, &Page{ExternalID: "mid", ParentExternalID: &top, Title: "Mid", Slug: "mid", Kind: KindSection})
	mid := "mid"
	mustCreatePage(t, repo, &Page{ExternalID: "leaf", ParentExternalID: &mid, Title: "Leaf", Slug: "leaf"})

	resolver, err := NewResolver(repo, silentLogger())
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}

	leaf, err := repo.GetByExternalID(ctx, "leaf")
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}

	ancestors, err := resolver.Ancestors(ctx, leaf)
	if err != nil {
		t.Fatalf("Ancestors returned error: %v", err)
	}
	if len(ancestors) != 2 {
		t.Fatalf("expected 2 ancestors, got %d", len(ancestors))
	}
	if ancestors[0].ExternalID != "top" || ancestors[1].ExternalID != "mid" {
		t.Fatalf("expected root-first order, got %s then %s", ancestors[0].ExternalID, ancestors[1].ExternalID)
	}
}

func TestAncestorsToleratesDanglingParent(t *testing.T) {
	t.Parallel()

	repo, _ := setupContentDB(t)
	ctx := context.Background()

	gone := "vanished"
	mustCreatePage(t, repo, &Page{ExternalID: "stranded", ParentExternalID: &gone, Title: "Stranded", Slug: "stranded"})

	resolver, err := NewResolver(repo, silentLogger())
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}

	page, err := repo.GetByExternalID(ctx, "stranded")
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}

	ancestors, err := resolver.Ancestors(ctx, page)
	if err != nil {
		t.Fatalf("expected dangling parent to end the walk, got %v", err)
	}
	if len(ancestors) != 0 {
		t.Fatalf("expected no ancestors, got %d", len(ancestors))
	}
}

func TestAncestorsDetectsCycle(t *testing.T) {
	t.Parallel()

	repo, _ := setupContentDB(t)
	ctx := context.Background()

	a, b := "a", "b"
	mustCreatePage(t, repo, &Page{ExternalID: a, ParentExternalID: &b, Title: "A", Slug: "a"})
	mustCreatePage(t, repo, &Page{ExternalID: b, ParentExternalID: &a, Title: "B", Slug: "b"})

	resolver, err := NewResolver(repo, silentLogger())
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}

	page, err := repo.GetByExternalID(ctx, a)
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}

	if _, err := resolver.Ancestors(ctx, page); !eris.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestDescendantsExcludesRootsAndDeduplicates(t *testing.T) {
	t.Parallel()

	repo, _ := setupContentDB(t)
	ctx := context.Background()

	mustCreatePage(t, repo, &Page{ExternalID: "root", Title: "Root", Slug: "root", Kind: KindSection})
	root := "root"
	mustCreatePage(t, repo, &Page{ExternalID: "c1", ParentExternalID: &root, Title: "C1", Slug: "c1", Kind: KindSection})
	mustCreatePage(t, repo, &Page{ExternalID: "c2", ParentExternalID: &root, Title: "C2", Slug: "c2"})
	c1 := "c1"
	mustCreatePage(t, repo, &Page{ExternalID: "g1", ParentExternalID: &c1, Title: "G1", Slug: "g1"})

	resolver, err := NewResolver(repo, silentLogger())
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}

	rootPage, err := repo.GetByExternalID(ctx, root)
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}

	// Overlapping roots: c1's subtree is already inside root's subtree.
	descendants, err := resolver.Descendants(ctx, []string{root, c1})
	if err != nil {
		t.Fatalf("Descendants returned error: %v", err)
	}
	if descendants.Cardinality() != 3 {
		t.Fatalf("expected 3 descendants, got %d", descendants.Cardinality())
	}
	if descendants.Contains(rootPage.ID) {
		t.Fatalf("roots must not appear in their own descendant set")
	}
}

func TestPromoteToSectionIfNeeded(t *testing.T) {
	t.Parallel()

	repo, _ := setupContentDB(t)
	ctx := context.Background()

	mustCreatePage(t, repo, &Page{ExternalID: "parent", Title: "Parent", Slug: "parent", Kind: KindArticle})
	parent := "parent"
	mustCreatePage(t, repo, &Page{ExternalID: "child", ParentExternalID: &parent, Title: "Child", Slug: "child"})
	mustCreatePage(t, repo, &Page{ExternalID: "lone", Title: "Lone", Slug: "lone", Kind: KindArticle})

	resolver, err := NewResolver(repo, silentLogger())
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}

	if err := resolver.PromoteToSectionIfNeeded(ctx, parent); err != nil {
		t.Fatalf("PromoteToSectionIfNeeded returned error: %v", err)
	}
	promoted, err := repo.GetByExternalID(ctx, parent)
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}
	if promoted.Kind != KindSection {
		t.Fatalf("expected parent promoted to SECTION, got %q", promoted.Kind)
	}

	if err := resolver.PromoteToSectionIfNeeded(ctx, "lone"); err != nil {
		t.Fatalf("PromoteToSectionIfNeeded returned error: %v", err)
	}
	lone, err := repo.GetByExternalID(ctx, "lone")
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}
	if lone.Kind != KindArticle {
		t.Fatalf("childless page must stay ARTICLE, got %q", lone.Kind)
	}

	if err := resolver.PromoteToSectionIfNeeded(ctx, "missing"); err != nil {
		t.Fatalf("missing parent must be a no-op, got %v", err)
	}
}
