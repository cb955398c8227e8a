package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"knowledgehub/app/internal/content"
)

type treeInput struct {
	Parent string `query:"parent" maxLength:"64"`
}

type treeOutput struct {
	Body struct {
		Nodes []treeNodeView `json:"nodes"`
	}
}

type createPageInput struct {
	Body struct {
		Title            string   `json:"title" minLength:"1" maxLength:"512"`
		BodyHTML         string   `json:"bodyHtml"`
		ParentExternalID string   `json:"parentExternalId" minLength:"1" maxLength:"64"`
		Tags             []string `json:"tags,omitempty"`
		AttachmentIDs    []string `json:"attachmentIds,omitempty"`
	}
}

type updatePageInput struct {
	ExternalID string `path:"externalID" maxLength:"64"`
	Body       struct {
		Title         string   `json:"title" minLength:"1" maxLength:"512"`
		BodyHTML      string   `json:"bodyHtml"`
		Tags          []string `json:"tags,omitempty"`
		AttachmentIDs []string `json:"attachmentIds,omitempty"`
	}
}

type pageOutput struct {
	Body pageView
}

type rejectInput struct {
	ExternalID string `path:"externalID" maxLength:"64"`
	Body       struct {
		Comment string `json:"comment" minLength:"1"`
	}
}

type submissionOutput struct {
	Body submissionView
}

type submissionListOutput struct {
	Body struct {
		Submissions []submissionView `json:"submissions"`
	}
}

type syncOutput struct {
	Status int
	Body   struct {
		Started bool `json:"started"`
	}
}

func (s *Server) registerCMSRoutes() {
	huma.Get(s.api, "/api/cms/tree", s.treeHandler, func(op *huma.Operation) {
		op.Summary = "Permission-filtered content tree"
	})
	huma.Post(s.api, "/api/cms/pages", s.createPageHandler, func(op *huma.Operation) {
		op.Summary = "Create a page submission"
		op.DefaultStatus = 201
	})
	huma.Put(s.api, "/api/cms/pages/{externalID}", s.updatePageHandler, func(op *huma.Operation) {
		op.Summary = "Edit a page"
	})
	huma.Delete(s.api, "/api/cms/pages/{externalID}", s.deletePageHandler, func(op *huma.Operation) {
		op.Summary = "Delete a page"
		op.DefaultStatus = 204
	})
	huma.Post(s.api, "/api/cms/pages/{externalID}/approve", s.approveHandler, func(op *huma.Operation) {
		op.Summary = "Approve a pending submission"
	})
	huma.Post(s.api, "/api/cms/pages/{externalID}/reject", s.rejectHandler, func(op *huma.Operation) {
		op.Summary = "Reject a pending submission"
	})
	huma.Post(s.api, "/api/cms/pages/{externalID}/resubmit", s.resubmitHandler, func(op *huma.Operation) {
		op.Summary = "Resubmit a rejected submission"
	})
	huma.Get(s.api, "/api/cms/submissions/pending", s.pendingHandler, func(op *huma.Operation) {
		op.Summary = "Review queue"
	})
	huma.Get(s.api, "/api/cms/submissions/mine", s.mySubmissionsHandler, func(op *huma.Operation) {
		op.Summary = "Own submissions"
	})
	huma.Post(s.api, "/api/cms/sync", s.syncHandler, func(op *huma.Operation) {
		op.Summary = "Trigger a synchronization pass"
		op.DefaultStatus = 202
	})
}

func (s *Server) treeHandler(ctx context.Context, input *treeInput) (*treeOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	var parent *string
	if input.Parent != "" {
		parent = &input.Parent
	}

	nodes, err := s.permissions.PrunedTree(ctx, user.Actor(), parent)
	if err != nil {
		s.recordError(ctx, err, "building pruned tree", logrus.Fields{"user": user.Username})
		return nil, mapError(err)
	}

	out := &treeOutput{}
	out.Body.Nodes = make([]treeNodeView, 0, len(nodes))
	for i := range nodes {
		out.Body.Nodes = append(out.Body.Nodes, treeNodeView{
			pageView:   toPageView(&nodes[i].Page),
			IsEditable: nodes[i].IsEditable,
		})
	}

	return out, nil
}

func (s *Server) createPageHandler(ctx context.Context, input *createPageInput) (*pageOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	attachments, release, err := s.stagedAttachments(input.Body.AttachmentIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := s.workflow.Create(ctx, content.CreateInput{
		Title:            input.Body.Title,
		BodyHTML:         input.Body.BodyHTML,
		ParentExternalID: input.Body.ParentExternalID,
		Tags:             input.Body.Tags,
		Attachments:      attachments,
	}, user.Actor())
	if err != nil {
		s.recordError(ctx, err, "creating page", logrus.Fields{"user": user.Username})
		return nil, mapError(err)
	}

	return &pageOutput{Body: toPageView(page)}, nil
}

func (s *Server) updatePageHandler(ctx context.Context, input *updatePageInput) (*pageOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	attachments, release, err := s.stagedAttachments(input.Body.AttachmentIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := s.workflow.UpdateContent(ctx, content.UpdateInput{
		ExternalID:  input.ExternalID,
		Title:       input.Body.Title,
		BodyHTML:    input.Body.BodyHTML,
		Tags:        input.Body.Tags,
		Attachments: attachments,
	}, user.Actor())
	if err != nil {
		s.recordError(ctx, err, "updating page", logrus.Fields{"external_id": input.ExternalID})
		return nil, mapError(err)
	}

	return &pageOutput{Body: toPageView(page)}, nil
}

func (s *Server) deletePageHandler(ctx context.Context, input *externalIDInput) (*struct{}, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.workflow.Delete(ctx, input.ExternalID, user.Actor()); err != nil {
		s.recordError(ctx, err, "deleting page", logrus.Fields{"external_id": input.ExternalID})
		return nil, mapError(err)
	}

	return nil, nil
}

func (s *Server) approveHandler(ctx context.Context, input *externalIDInput) (*submissionOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	submission, err := s.workflow.Approve(ctx, input.ExternalID, user.Actor())
	if err != nil {
		s.recordError(ctx, err, "approving submission", logrus.Fields{"external_id": input.ExternalID})
		return nil, mapError(err)
	}

	return &submissionOutput{Body: toSubmissionView(submission)}, nil
}

func (s *Server) rejectHandler(ctx context.Context, input *rejectInput) (*submissionOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	submission, err := s.workflow.Reject(ctx, input.ExternalID, input.Body.Comment, user.Actor())
	if err != nil {
		s.recordError(ctx, err, "rejecting submission", logrus.Fields{"external_id": input.ExternalID})
		return nil, mapError(err)
	}

	return &submissionOutput{Body: toSubmissionView(submission)}, nil
}

func (s *Server) resubmitHandler(ctx context.Context, input *externalIDInput) (*submissionOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	submission, err := s.workflow.Resubmit(ctx, input.ExternalID, user.Actor())
	if err != nil {
		s.recordError(ctx, err, "resubmitting submission", logrus.Fields{"external_id": input.ExternalID})
		return nil, mapError(err)
	}

	return &submissionOutput{Body: toSubmissionView(submission)}, nil
}

// pendingHandler returns the review queue: everything for global admins, the
// managed slice of the tree for group admins.
func (s *Server) pendingHandler(ctx context.Context, _ *struct{}) (*submissionListOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	var submissions []content.Submission
	if user.Role == content.RoleAdmin {
		submissions, err = s.submissions.ListPending(ctx)
	} else {
		var editable []string
		editable, err = s.permissions.EditableExternalIDs(ctx, user.Actor())
		if err == nil {
			submissions, err = s.submissions.ListPendingForPages(ctx, editable)
		}
	}
	if err != nil {
		s.recordError(ctx, err, "listing pending submissions", logrus.Fields{"user": user.Username})
		return nil, mapError(err)
	}

	out := &submissionListOutput{}
	out.Body.Submissions = toSubmissionViews(submissions)
	return out, nil
}

func (s *Server) mySubmissionsHandler(ctx context.Context, _ *struct{}) (*submissionListOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByAuthor(ctx, user.ID)
	if err != nil {
		s.recordError(ctx, err, "listing own submissions", logrus.Fields{"user": user.Username})
		return nil, mapError(err)
	}

	out := &submissionListOutput{}
	out.Body.Submissions = toSubmissionViews(submissions)
	return out, nil
}

// syncHandler starts a reconciliation pass in the background. The pass
// serializes against the scheduled job through the reconciler's own guard.
func (s *Server) syncHandler(ctx context.Context, _ *struct{}) (*syncOutput, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	if s.reconciler.Running() {
		return nil, mapError(content.ErrReconcileInProgress)
	}

	go func() {
		if err := s.reconciler.Run(context.Background()); err != nil {
			s.recordError(context.Background(), err, "manual synchronization failed", nil)
		}
	}()

	out := &syncOutput{Status: 202}
	out.Body.Started = true
	return out, nil
}

// stagedAttachments resolves staged upload ids into open attachments. The
// release function closes the files and discards the staged copies.
func (s *Server) stagedAttachments(ids []string) ([]content.Attachment, func(), error) {
	if len(ids) == 0 || s.uploads == nil {
		return nil, func() {}, nil
	}

	attachments := make([]content.Attachment, 0, len(ids))
	var closers []func()

	release := func() {
		for _, close := range closers {
			close()
		}
	}

	for _, id := range ids {
		file, name, err := s.uploads.Open(id)
		if err != nil {
			release()
			return nil, nil, huma.Error400BadRequest("unknown attachment id")
		}

		id := id
		closers = append(closers, func() {
			_ = file.Close()
			s.uploads.Remove(id)
		})
		attachments = append(attachments, content.Attachment{FileName: name, Data: file})
	}

	return attachments, release, nil
}
