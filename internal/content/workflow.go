package content

import (
	"context"
	"io"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"knowledgehub/app/internal/confluence"
)

// Status labels mirrored onto the external store so its native UI shows the
// review state of managed pages.
const (
	labelUnpublished = "status-unpublished"
	labelRejected    = "status-rejected"
)

// Notifier delivers notifications to users. Implemented by the notify
// package; declared here so the workflow stays decoupled from its transport.
type Notifier interface {
	NotifyUsers(ctx context.Context, recipientIDs []uint, message, link string) error
}

// AdminDirectory resolves the global administrators, who review every
// submission regardless of group delegation.
type AdminDirectory interface {
	AdminIDs(ctx context.Context) ([]uint, error)
}

// Attachment is one staged upload accompanying a page body.
type Attachment struct {
	FileName string
	Data     io.Reader
}

// CreateInput describes a new page submission.
type CreateInput struct {
	Title            string
	BodyHTML         string
	ParentExternalID string
	Tags             []string
	Attachments      []Attachment
}

// UpdateInput describes an edit to an existing managed page.
type UpdateInput struct {
	ExternalID  string
	Title       string
	BodyHTML    string
	Tags        []string
	Attachments []Attachment
}

// Workflow drives the managed authoring lifecycle: page creation in the
// external store, the submission review state machine, and the label and
// notification choreography around it. The external store is written first
// on every operation; the mirror follows.
type Workflow struct {
	external    confluence.Store
	pages       PageRepository
	submissions SubmissionRepository
	groups      GroupRepository
	resolver    *Resolver
	permissions *PermissionResolver
	notifier    Notifier
	admins      AdminDirectory
	logger      *logrus.Logger
}

// NewWorkflow wires the authoring workflow with its dependencies. The
// notifier and admin directory are optional; without them the workflow runs
// silently.
func NewWorkflow(
	external confluence.Store,
	pages PageRepository,
	submissions SubmissionRepository,
	groups GroupRepository,
	resolver *Resolver,
	permissions *PermissionResolver,
	notifier Notifier,
	admins AdminDirectory,
	logger *logrus.Logger,
) (*Workflow, error) {
	if external == nil {
		return nil, eris.New("external store is required")
	}
	if pages == nil {
		return nil, eris.New("page repository is required")
	}
	if submissions == nil {
		return nil, eris.New("submission repository is required")
	}
	if groups == nil {
		return nil, eris.New("group repository is required")
	}
	if resolver == nil {
		return nil, eris.New("tree resolver is required")
	}
	if permissions == nil {
		return nil, eris.New("permission resolver is required")
	}

	return &Workflow{
		external:    external,
		pages:       pages,
		submissions: submissions,
		groups:      groups,
		resolver:    resolver,
		permissions: permissions,
		notifier:    notifier,
		admins:      admins,
		logger:      logger,
	}, nil
}

// Create authors a new page under the given parent: the page is created in
// the external store first, then mirrored locally with a PENDING_REVIEW
// submission. If the mirror write fails the external page is deleted again,
// so the two sides never drift on creation.
func (w *Workflow) Create(ctx context.Context, in CreateInput, actor Actor) (*Page, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, eris.New("title is required")
	}
	if strings.TrimSpace(in.ParentExternalID) == "" {
		return nil, eris.New("parent external id is required")
	}

	allowed, err := w.permissions.CanEdit(ctx, in.ParentExternalID, actor)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, eris.Wrapf(ErrForbidden, "no authority over parent %s", in.ParentExternalID)
	}

	storageBody, err := ToStorageFormat(in.BodyHTML)
	if err != nil {
		return nil, eris.Wrap(err, "translating page body")
	}

	snapshot, err := w.external.CreatePage(ctx, title, in.ParentExternalID, storageBody)
	if err != nil {
		return nil, w.externalErr(err, "creating external page")
	}

	w.uploadAttachments(ctx, snapshot.ID, in.Attachments)

	if err := w.external.AddLabel(ctx, snapshot.ID, labelUnpublished); err != nil {
		w.logWarn(logrus.Fields{"external_id": snapshot.ID, "error": err.Error()},
			"attaching review label failed")
	}
	for _, tag := range in.Tags {
		if err := w.external.AddLabel(ctx, snapshot.ID, Slugify(tag)); err != nil {
			w.logWarn(logrus.Fields{"external_id": snapshot.ID, "tag": tag, "error": err.Error()},
				"attaching tag label failed")
		}
	}

	parent := in.ParentExternalID
	page := &Page{
		ExternalID:       snapshot.ID,
		ParentExternalID: &parent,
		Title:            title,
		Slug:             Slugify(title),
		Description:      Excerpt(in.BodyHTML),
		Kind:             KindArticle,
		AuthorName:       actor.Name,
		SourceUpdatedAt:  snapshot.UpdatedAt,
	}

	if err := w.pages.Create(ctx, page, in.Tags); err != nil {
		// Roll the external side back rather than leaving an unmirrored page.
		if delErr := w.external.DeletePage(ctx, snapshot.ID); delErr != nil {
			w.logWarn(logrus.Fields{"external_id": snapshot.ID, "error": delErr.Error()},
				"compensating external delete failed")
		}
		return nil, eris.Wrap(err, "mirroring created page")
	}

	submission := &Submission{
		ExternalID: snapshot.ID,
		Title:      title,
		AuthorID:   actor.ID,
		Status:     StatusPendingReview,
	}
	if err := w.submissions.Create(ctx, submission); err != nil {
		// A mirrored page without a submission record reads as published,
		// so the page comes back out of both sides.
		if delErr := w.pages.Delete(ctx, snapshot.ID); delErr != nil {
			w.logWarn(logrus.Fields{"external_id": snapshot.ID, "error": delErr.Error()},
				"compensating mirror delete failed")
		}
		if delErr := w.external.DeletePage(ctx, snapshot.ID); delErr != nil {
			w.logWarn(logrus.Fields{"external_id": snapshot.ID, "error": delErr.Error()},
				"compensating external delete failed")
		}
		return nil, eris.Wrap(err, "recording submission")
	}

	w.notifyReviewers(ctx, page, actor,
		"New submission awaiting review: "+title, "/review/"+snapshot.ID)

	return page, nil
}

// Approve publishes a pending submission: the review labels come off, the
// mirror is refreshed from a fresh external snapshot, and the parent's kind
// is repaired if this was its first child.
func (w *Workflow) Approve(ctx context.Context, externalID string, actor Actor) (*Submission, error) {
	if err := w.requireAuthority(ctx, externalID, actor); err != nil {
		return nil, err
	}

	submission, err := w.submissions.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if submission.Status != StatusPendingReview {
		return nil, eris.Wrapf(ErrInvalidTransition, "cannot approve submission in state %s", submission.Status)
	}

	w.removeStatusLabels(ctx, externalID)

	snapshot, err := w.external.GetPage(ctx, externalID)
	if err != nil {
		return nil, w.externalErr(err, "fetching approved page")
	}
	children, err := w.external.GetChildren(ctx, externalID)
	if err != nil {
		return nil, w.externalErr(err, "listing approved page children")
	}

	kind := KindArticle
	if len(children) > 0 {
		kind = KindSection
	}

	err = w.pages.SyncFromExternal(ctx, externalID, snapshot.Title, Excerpt(snapshot.BodyHTML),
		snapshot.AuthorName, kind, ContentTags(snapshot.Labels), snapshot.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "refreshing mirror for approved page")
	}

	updated, err := w.submissions.UpdateStatus(ctx, externalID, StatusPublished, nil)
	if err != nil {
		return nil, err
	}

	if snapshot.ParentID != nil {
		if err := w.resolver.PromoteToSectionIfNeeded(ctx, *snapshot.ParentID); err != nil {
			w.logWarn(logrus.Fields{"external_id": *snapshot.ParentID, "error": err.Error()},
				"promoting parent to section failed")
		}
	}

	w.notifyAuthor(ctx, updated, "Your submission was published: "+updated.Title, "/articles/"+externalID)

	return updated, nil
}

// Reject sends a pending submission back to its author with a comment. The
// comment is mirrored into the external store so the feedback lives next to
// the content.
func (w *Workflow) Reject(ctx context.Context, externalID, comment string, actor Actor) (*Submission, error) {
	if err := w.requireAuthority(ctx, externalID, actor); err != nil {
		return nil, err
	}

	submission, err := w.submissions.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if submission.Status != StatusPendingReview {
		return nil, eris.Wrapf(ErrInvalidTransition, "cannot reject submission in state %s", submission.Status)
	}

	trimmed := strings.TrimSpace(comment)
	if trimmed == "" {
		return nil, eris.New("rejection comment is required")
	}

	if err := w.external.AddComment(ctx, externalID, trimmed); err != nil {
		w.logWarn(logrus.Fields{"external_id": externalID, "error": err.Error()},
			"posting rejection comment failed")
	}
	w.swapLabels(ctx, externalID, labelUnpublished, labelRejected)

	updated, err := w.submissions.UpdateStatus(ctx, externalID, StatusRejected, &trimmed)
	if err != nil {
		return nil, err
	}

	w.notifyAuthor(ctx, updated, "Your submission was rejected: "+updated.Title, "/my-submissions")

	return updated, nil
}

// Resubmit puts a rejected submission back into the review queue. The
// previous rejection comment stays on the record for context.
func (w *Workflow) Resubmit(ctx context.Context, externalID string, actor Actor) (*Submission, error) {
	submission, err := w.submissions.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if submission.AuthorID != actor.ID && !actor.IsAdmin() {
		return nil, eris.Wrapf(ErrForbidden, "submission %s belongs to another author", externalID)
	}
	if submission.Status != StatusRejected {
		return nil, eris.Wrapf(ErrInvalidTransition, "cannot resubmit submission in state %s", submission.Status)
	}

	return w.resubmit(ctx, submission)
}

func (w *Workflow) resubmit(ctx context.Context, submission *Submission) (*Submission, error) {
	w.swapLabels(ctx, submission.ExternalID, labelRejected, labelUnpublished)

	updated, err := w.submissions.UpdateStatus(ctx, submission.ExternalID, StatusPendingReview, nil)
	if err != nil {
		return nil, err
	}

	if page, pageErr := w.pages.GetByExternalID(ctx, submission.ExternalID); pageErr == nil {
		w.notifyReviewers(ctx, page, Actor{ID: submission.AuthorID},
			"Submission resubmitted for review: "+updated.Title, "/review/"+submission.ExternalID)
	}

	return updated, nil
}

// UpdateContent edits a managed page: the external body and title are
// replaced, the mirror's curated fields follow, and a rejected submission
// edited by its own author goes back to the review queue automatically.
// Published submissions are unaffected by edits.
func (w *Workflow) UpdateContent(ctx context.Context, in UpdateInput, actor Actor) (*Page, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, eris.New("title is required")
	}

	submission, subErr := w.submissions.GetByExternalID(ctx, in.ExternalID)
	if subErr != nil && !eris.Is(subErr, ErrNotFound) {
		return nil, subErr
	}

	isAuthor := subErr == nil && submission.AuthorID == actor.ID
	if !isAuthor {
		if err := w.requireAuthority(ctx, in.ExternalID, actor); err != nil {
			return nil, err
		}
	}

	storageBody, err := ToStorageFormat(in.BodyHTML)
	if err != nil {
		return nil, eris.Wrap(err, "translating page body")
	}

	snapshot, err := w.external.UpdatePage(ctx, in.ExternalID, title, storageBody)
	if err != nil {
		return nil, w.externalErr(err, "updating external page")
	}

	w.uploadAttachments(ctx, in.ExternalID, in.Attachments)

	err = w.pages.UpdateCuratedFields(ctx, in.ExternalID, title, Excerpt(in.BodyHTML), in.Tags, snapshot.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "updating mirrored page")
	}

	if subErr == nil {
		if err := w.submissions.UpdateTitle(ctx, in.ExternalID, title); err != nil {
			w.logWarn(logrus.Fields{"external_id": in.ExternalID, "error": err.Error()},
				"syncing submission title failed")
		}
		if submission.Status == StatusRejected && isAuthor {
			if _, err := w.resubmit(ctx, submission); err != nil {
				return nil, eris.Wrap(err, "resubmitting edited page")
			}
		}
	}

	return w.pages.GetByExternalID(ctx, in.ExternalID)
}

// Delete removes a managed page from both sides. Pages with children cannot
// be deleted; the subtree has to be dismantled leaf-first.
func (w *Workflow) Delete(ctx context.Context, externalID string, actor Actor) error {
	if err := w.requireAuthority(ctx, externalID, actor); err != nil {
		return err
	}

	children, err := w.pages.CountChildren(ctx, externalID)
	if err != nil {
		return err
	}
	if children > 0 {
		return eris.Wrapf(ErrHasChildren, "page %s has %d children", externalID, children)
	}

	if err := w.external.DeletePage(ctx, externalID); err != nil && !eris.Is(err, confluence.ErrNotFound) {
		return w.externalErr(err, "deleting external page")
	}

	return w.pages.Delete(ctx, externalID)
}

func (w *Workflow) requireAuthority(ctx context.Context, externalID string, actor Actor) error {
	allowed, err := w.permissions.CanEdit(ctx, externalID, actor)
	if err != nil {
		return err
	}
	if !allowed {
		return eris.Wrapf(ErrForbidden, "no authority over page %s", externalID)
	}
	return nil
}

func (w *Workflow) removeStatusLabels(ctx context.Context, externalID string) {
	for _, label := range []string{labelUnpublished, labelRejected} {
		if err := w.external.RemoveLabel(ctx, externalID, label); err != nil {
			w.logWarn(logrus.Fields{"external_id": externalID, "label": label, "error": err.Error()},
				"removing status label failed")
		}
	}
}

func (w *Workflow) swapLabels(ctx context.Context, externalID, remove, add string) {
	if err := w.external.RemoveLabel(ctx, externalID, remove); err != nil {
		w.logWarn(logrus.Fields{"external_id": externalID, "label": remove, "error": err.Error()},
			"removing status label failed")
	}
	if err := w.external.AddLabel(ctx, externalID, add); err != nil {
		w.logWarn(logrus.Fields{"external_id": externalID, "label": add, "error": err.Error()},
			"adding status label failed")
	}
}

func (w *Workflow) uploadAttachments(ctx context.Context, externalID string, attachments []Attachment) {
	for _, attachment := range attachments {
		if err := w.external.UploadAttachment(ctx, externalID, attachment.FileName, attachment.Data); err != nil {
			w.logWarn(logrus.Fields{"external_id": externalID, "file": attachment.FileName, "error": err.Error()},
				"uploading attachment failed")
		}
	}
}

// notifyReviewers resolves who reviews content at the page's position: ADMIN
// members of every group managing the page or one of its ancestors, plus the
// global administrators. The acting user is excluded.
func (w *Workflow) notifyReviewers(ctx context.Context, page *Page, actor Actor, message, link string) {
	if w.notifier == nil {
		return
	}

	recipients := mapset.NewSet[uint]()

	if w.admins != nil {
		adminIDs, err := w.admins.AdminIDs(ctx)
		if err != nil {
			w.logWarn(logrus.Fields{"error": err.Error()}, "resolving global admins failed")
		}
		recipients.Append(adminIDs...)
	}

	externalIDs := []string{page.ExternalID}
	ancestors, err := w.resolver.Ancestors(ctx, page)
	if err != nil {
		w.logWarn(logrus.Fields{"external_id": page.ExternalID, "error": err.Error()},
			"resolving reviewer ancestors failed")
	}
	for i := range ancestors {
		externalIDs = append(externalIDs, ancestors[i].ExternalID)
	}

	managing, err := w.groups.GroupsManaging(ctx, externalIDs)
	if err != nil {
		w.logWarn(logrus.Fields{"external_id": page.ExternalID, "error": err.Error()},
			"resolving managing groups failed")
	}
	if len(managing) > 0 {
		groupIDs := make([]uint, 0, len(managing))
		for i := range managing {
			groupIDs = append(groupIDs, managing[i].ID)
		}
		memberIDs, err := w.groups.AdminMemberIDs(ctx, groupIDs)
		if err != nil {
			w.logWarn(logrus.Fields{"external_id": page.ExternalID, "error": err.Error()},
				"resolving group reviewers failed")
		}
		recipients.Append(memberIDs...)
	}

	recipients.Remove(actor.ID)
	if recipients.Cardinality() == 0 {
		return
	}

	if err := w.notifier.NotifyUsers(ctx, recipients.ToSlice(), message, link); err != nil {
		w.logWarn(logrus.Fields{"external_id": page.ExternalID, "error": err.Error()},
			"notifying reviewers failed")
	}
}

func (w *Workflow) notifyAuthor(ctx context.Context, submission *Submission, message, link string) {
	if w.notifier == nil {
		return
	}

	if err := w.notifier.NotifyUsers(ctx, []uint{submission.AuthorID}, message, link); err != nil {
		w.logWarn(logrus.Fields{"external_id": submission.ExternalID, "error": err.Error()},
			"notifying author failed")
	}
}

func (w *Workflow) externalErr(err error, message string) error {
	switch {
	case eris.Is(err, confluence.ErrNotFound):
		return eris.Wrap(ErrNotFound, message)
	case eris.Is(err, confluence.ErrUnavailable):
		return eris.Wrap(ErrExternalUnavailable, message)
	default:
		return eris.Wrap(err, message)
	}
}

func (w *Workflow) logWarn(fields logrus.Fields, message string) {
	if w.logger == nil {
		return
	}
	w.logger.WithFields(fields).Warn(message)
}
