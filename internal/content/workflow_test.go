package content

import (
	"context"
	"slices"
	"testing"

	"github.com/rotisserie/eris"

	"knowledgehub/app/internal/confluence"
)

type fakeNotifier struct {
	calls    int
	lastIDs  []uint
	lastMsg  string
	lastLink string
	err      error
}

func (f *fakeNotifier) NotifyUsers(_ context.Context, recipientIDs []uint, message, link string) error {
	f.calls++
	f.lastIDs = recipientIDs
	f.lastMsg = message
	f.lastLink = link
	return f.err
}

type fakeAdmins struct {
	ids []uint
	err error
}

func (f *fakeAdmins) AdminIDs(context.Context) ([]uint, error) {
	return f.ids, f.err
}

type workflowFixture struct {
	workflow    *Workflow
	store       *fakeStore
	pages       *GormPageRepository
	submissions *GormSubmissionRepository
	groups      *GormGroupRepository
	notifier    *fakeNotifier
}

// setupWorkflow wires the full authoring stack over a fake external store and
// a mirror holding a single root section with external id "parent". User 7 is
// the only global admin.
func setupWorkflow(t *testing.T) *workflowFixture {
	t.Helper()

	store := newFakeStore()
	repo, gormDB := setupContentDB(t)
	logger := silentLogger()

	submissions, err := NewSubmissionRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("NewSubmissionRepository returned error: %v", err)
	}
	groups, err := NewGroupRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("NewGroupRepository returned error: %v", err)
	}
	resolver, err := NewResolver(repo, logger)
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	permissions, err := NewPermissionResolver(repo, groups, resolver, logger)
	if err != nil {
		t.Fatalf("NewPermissionResolver returned error: %v", err)
	}

	notifier := &fakeNotifier{}
	admins := &fakeAdmins{ids: []uint{7}}

	workflow, err := NewWorkflow(store, repo, submissions, groups, resolver, permissions, notifier, admins, logger)
	if err != nil {
		t.Fatalf("NewWorkflow returned error: %v", err)
	}

	mustCreatePage(t, repo, &Page{ExternalID: "parent", Title: "Parent", Slug: "parent", Kind: KindSection})

	return &workflowFixture{
		workflow:    workflow,
		store:       store,
		pages:       repo,
		submissions: submissions,
		groups:      groups,
		notifier:    notifier,
	}
}

// seedPending mirrors a page under "parent" with a pending submission by
// author 5, bypassing the create flow.
func (f *workflowFixture) seedPending(t *testing.T, externalID string) {
	t.Helper()
	ctx := context.Background()

	parent := "parent"
	mustCreatePage(t, f.pages, &Page{ExternalID: externalID, ParentExternalID: &parent, Title: "Draft", Slug: "draft"})
	err := f.submissions.Create(ctx, &Submission{ExternalID: externalID, Title: "Draft", AuthorID: 5, Status: StatusPendingReview})
	if err != nil {
		t.Fatalf("seeding submission: %v", err)
	}

	f.store.pages[externalID] = &confluence.PageSnapshot{
		ID:       externalID,
		Title:    "Draft",
		ParentID: ptr("parent"),
		BodyHTML: "<p>Draft body.</p>",
		Labels:   []string{labelUnpublished},
	}
}

func ptr(s string) *string {
	return &s
}

var (
	globalAdmin = Actor{ID: 99, Name: "Admin", Role: RoleAdmin}
	author      = Actor{ID: 5, Name: "Author", Role: RoleMember}
)

func TestCreateRequiresParentAuthority(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)

	_, err := f.workflow.Create(context.Background(), CreateInput{
		Title:            "Unauthorized",
		ParentExternalID: "parent",
	}, author)
	if !eris.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(f.store.created) != 0 {
		t.Fatalf("forbidden create must not touch the external store, got %v", f.store.created)
	}
}

func TestCreateWritesExternalFirstThenMirrors(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	page, err := f.workflow.Create(ctx, CreateInput{
		Title:            "Welding Tips",
		BodyHTML:         "<p>Always wear a mask.</p>",
		ParentExternalID: "parent",
		Tags:             []string{"Welding Tips"},
	}, globalAdmin)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if len(f.store.created) != 1 || f.store.created[0] != page.ExternalID {
		t.Fatalf("expected one external page created, got %v", f.store.created)
	}

	labels := f.store.addedLabels[page.ExternalID]
	if !slices.Contains(labels, labelUnpublished) {
		t.Fatalf("expected unpublished label attached, got %v", labels)
	}
	if !slices.Contains(labels, "welding-tips") {
		t.Fatalf("expected slugged tag label attached, got %v", labels)
	}

	stored, err := f.pages.GetByExternalID(ctx, page.ExternalID)
	if err != nil {
		t.Fatalf("mirrored page missing: %v", err)
	}
	if stored.Kind != KindArticle || stored.AuthorName != "Admin" {
		t.Fatalf("unexpected mirrored page: %#v", stored)
	}
	if stored.ParentExternalID == nil || *stored.ParentExternalID != "parent" {
		t.Fatalf("expected parent edge, got %v", stored.ParentExternalID)
	}

	submission, err := f.submissions.GetByExternalID(ctx, page.ExternalID)
	if err != nil {
		t.Fatalf("submission missing: %v", err)
	}
	if submission.Status != StatusPendingReview || submission.AuthorID != globalAdmin.ID {
		t.Fatalf("unexpected submission: %#v", submission)
	}

	// The only other reviewer is global admin 7; the actor is excluded.
	if f.notifier.calls != 1 || !slices.Contains(f.notifier.lastIDs, uint(7)) {
		t.Fatalf("expected reviewer notification to admin 7, got %d %v", f.notifier.calls, f.notifier.lastIDs)
	}
	if slices.Contains(f.notifier.lastIDs, globalAdmin.ID) {
		t.Fatalf("actor must not be notified about their own submission")
	}
}

func TestCreateAllowedThroughGroupDelegation(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	group, err := f.groups.Create(ctx, "maintainers")
	if err != nil {
		t.Fatalf("creating group: %v", err)
	}
	if _, err := f.groups.Update(ctx, group.ID, "maintainers", ptr("parent")); err != nil {
		t.Fatalf("assigning managed page: %v", err)
	}
	if err := f.groups.AddMember(ctx, group.ID, author.ID, RoleAdmin); err != nil {
		t.Fatalf("adding admin member: %v", err)
	}

	if _, err := f.workflow.Create(ctx, CreateInput{
		Title:            "Delegated",
		ParentExternalID: "parent",
	}, author); err != nil {
		t.Fatalf("expected delegated create to succeed, got %v", err)
	}
}

func TestCreateCompensatesWhenMirrorWriteFails(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	// The fake store hands out ext-1 first; occupying that external id makes
	// the mirror insert fail on the unique index.
	mustCreatePage(t, f.pages, &Page{ExternalID: "ext-1", Title: "Squatter", Slug: "squatter"})

	_, err := f.workflow.Create(ctx, CreateInput{
		Title:            "Doomed",
		ParentExternalID: "parent",
	}, globalAdmin)
	if err == nil {
		t.Fatalf("expected mirror write failure")
	}

	if !slices.Contains(f.store.deleted, "ext-1") {
		t.Fatalf("expected compensating external delete, got %v", f.store.deleted)
	}
}

func TestCreateCompensatesWhenSubmissionWriteFails(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	// Occupying the submission's external id makes the submission insert
	// fail on the unique index after the page has already been mirrored.
	err := f.submissions.Create(ctx, &Submission{ExternalID: "ext-1", Title: "Squatter", AuthorID: 3})
	if err != nil {
		t.Fatalf("seeding submission: %v", err)
	}

	_, err = f.workflow.Create(ctx, CreateInput{
		Title:            "Doomed",
		ParentExternalID: "parent",
	}, globalAdmin)
	if err == nil {
		t.Fatalf("expected submission write failure")
	}

	// Without a submission record the page would count as published, so the
	// mirror row must be gone too.
	if _, err := f.pages.GetByExternalID(ctx, "ext-1"); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected compensating mirror delete, got %v", err)
	}
	if !slices.Contains(f.store.deleted, "ext-1") {
		t.Fatalf("expected compensating external delete, got %v", f.store.deleted)
	}
}

func TestApprovePublishesAndRefreshesMirror(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")
	f.store.pages["p1"].Title = "Fresh Title"
	f.store.pages["p1"].Labels = []string{labelUnpublished, "safety"}

	// Demote the parent so the approval has a promotion to repair.
	if err := f.pages.UpdatePositionAndKind(ctx, "parent", nil, KindArticle); err != nil {
		t.Fatalf("demoting parent: %v", err)
	}

	submission, err := f.workflow.Approve(ctx, "p1", globalAdmin)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if submission.Status != StatusPublished || submission.RejectionComment != nil {
		t.Fatalf("unexpected submission after approval: %#v", submission)
	}

	removed := f.store.removedLabels["p1"]
	if !slices.Contains(removed, labelUnpublished) || !slices.Contains(removed, labelRejected) {
		t.Fatalf("expected status labels removed, got %v", removed)
	}

	page, err := f.pages.GetByExternalID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}
	if page.Title != "Fresh Title" {
		t.Fatalf("expected mirror refreshed from snapshot, got %q", page.Title)
	}
	if len(page.Tags) != 1 || page.Tags[0].Name != "safety" {
		t.Fatalf("expected content labels mirrored as tags, got %#v", page.Tags)
	}

	parent, err := f.pages.GetByExternalID(ctx, "parent")
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}
	if parent.Kind != KindSection {
		t.Fatalf("expected parent promoted to SECTION, got %q", parent.Kind)
	}

	if f.notifier.lastIDs == nil || f.notifier.lastIDs[0] != uint(5) {
		t.Fatalf("expected author notified, got %v", f.notifier.lastIDs)
	}
}

func TestApproveRequiresPendingState(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")
	if _, err := f.submissions.UpdateStatus(ctx, "p1", StatusPublished, nil); err != nil {
		t.Fatalf("seeding published state: %v", err)
	}

	if _, err := f.workflow.Approve(ctx, "p1", globalAdmin); !eris.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRejectRequiresComment(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")

	if _, err := f.workflow.Reject(ctx, "p1", "   ", globalAdmin); err == nil {
		t.Fatalf("expected error for blank rejection comment")
	}
}

func TestRejectRecordsCommentAndSwapsLabels(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")

	submission, err := f.workflow.Reject(ctx, "p1", "Needs sources.", globalAdmin)
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if submission.Status != StatusRejected {
		t.Fatalf("expected REJECTED, got %q", submission.Status)
	}
	if submission.RejectionComment == nil || *submission.RejectionComment != "Needs sources." {
		t.Fatalf("expected comment stored, got %v", submission.RejectionComment)
	}

	if !slices.Contains(f.store.comments["p1"], "Needs sources.") {
		t.Fatalf("expected comment mirrored externally, got %v", f.store.comments["p1"])
	}
	if !slices.Contains(f.store.removedLabels["p1"], labelUnpublished) {
		t.Fatalf("expected unpublished label removed, got %v", f.store.removedLabels["p1"])
	}
	if !slices.Contains(f.store.addedLabels["p1"], labelRejected) {
		t.Fatalf("expected rejected label added, got %v", f.store.addedLabels["p1"])
	}

	if f.notifier.lastIDs == nil || f.notifier.lastIDs[0] != uint(5) {
		t.Fatalf("expected author notified, got %v", f.notifier.lastIDs)
	}
}

func TestResubmitPreservesRejectionComment(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")
	if _, err := f.workflow.Reject(ctx, "p1", "Too thin.", globalAdmin); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}

	submission, err := f.workflow.Resubmit(ctx, "p1", author)
	if err != nil {
		t.Fatalf("Resubmit returned error: %v", err)
	}
	if submission.Status != StatusPendingReview {
		t.Fatalf("expected PENDING_REVIEW, got %q", submission.Status)
	}
	if submission.RejectionComment == nil || *submission.RejectionComment != "Too thin." {
		t.Fatalf("resubmit must keep the previous comment, got %v", submission.RejectionComment)
	}

	if !slices.Contains(f.store.removedLabels["p1"], labelRejected) {
		t.Fatalf("expected rejected label removed, got %v", f.store.removedLabels["p1"])
	}
	if !slices.Contains(f.store.addedLabels["p1"], labelUnpublished) {
		t.Fatalf("expected unpublished label restored, got %v", f.store.addedLabels["p1"])
	}
}

func TestResubmitByStrangerForbidden(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")
	if _, err := f.workflow.Reject(ctx, "p1", "No.", globalAdmin); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}

	stranger := Actor{ID: 6, Name: "Stranger", Role: RoleMember}
	if _, err := f.workflow.Resubmit(ctx, "p1", stranger); !eris.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestResubmitRequiresRejectedState(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")

	if _, err := f.workflow.Resubmit(ctx, "p1", author); !eris.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAuthorEditResubmitsRejectedPage(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")
	if _, err := f.workflow.Reject(ctx, "p1", "Fix the intro.", globalAdmin); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}

	page, err := f.workflow.UpdateContent(ctx, UpdateInput{
		ExternalID: "p1",
		Title:      "Draft v2",
		BodyHTML:   "<p>Better intro.</p>",
	}, author)
	if err != nil {
		t.Fatalf("UpdateContent returned error: %v", err)
	}
	if page.Title != "Draft v2" {
		t.Fatalf("expected curated title updated, got %q", page.Title)
	}

	submission, err := f.submissions.GetByExternalID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}
	if submission.Status != StatusPendingReview {
		t.Fatalf("author edit of rejected page must resubmit, got %q", submission.Status)
	}
	if submission.Title != "Draft v2" {
		t.Fatalf("expected submission title synced, got %q", submission.Title)
	}
}

func TestEditLeavesPublishedSubmissionAlone(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")
	if _, err := f.submissions.UpdateStatus(ctx, "p1", StatusPublished, nil); err != nil {
		t.Fatalf("seeding published state: %v", err)
	}

	if _, err := f.workflow.UpdateContent(ctx, UpdateInput{
		ExternalID: "p1",
		Title:      "Touch-up",
		BodyHTML:   "<p>Minor fix.</p>",
	}, author); err != nil {
		t.Fatalf("UpdateContent returned error: %v", err)
	}

	submission, err := f.submissions.GetByExternalID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByExternalID returned error: %v", err)
	}
	if submission.Status != StatusPublished {
		t.Fatalf("editing a published page must not change its status, got %q", submission.Status)
	}
}

func TestDeleteRefusesSubtree(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")

	if err := f.workflow.Delete(ctx, "parent", globalAdmin); !eris.Is(err, ErrHasChildren) {
		t.Fatalf("expected ErrHasChildren, got %v", err)
	}

	if err := f.workflow.Delete(ctx, "p1", globalAdmin); err != nil {
		t.Fatalf("deleting leaf: %v", err)
	}
	if err := f.workflow.Delete(ctx, "parent", globalAdmin); err != nil {
		t.Fatalf("deleting emptied parent: %v", err)
	}
}

func TestDeleteToleratesMissingExternalPage(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	ctx := context.Background()

	f.seedPending(t, "p1")
	f.store.deleteErr = confluence.ErrNotFound

	if err := f.workflow.Delete(ctx, "p1", globalAdmin); err != nil {
		t.Fatalf("expected delete to tolerate a missing external page, got %v", err)
	}
	if _, err := f.pages.GetByExternalID(ctx, "p1"); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected local page removed, got %v", err)
	}
}
