package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"knowledgehub/app/internal/content"
)

type externalIDInput struct {
	ExternalID string `path:"externalID" maxLength:"64"`
}

type nodeListOutput struct {
	Body struct {
		Nodes []pageView `json:"nodes"`
	}
}

type articleOutput struct {
	Body struct {
		pageView
		BodyHTML    string     `json:"bodyHtml"`
		ReadMinutes int        `json:"readMinutes"`
		Breadcrumbs []pageView `json:"breadcrumbs"`
	}
}

type listLimitInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"50" default:"6"`
}

type pageListOutput struct {
	Body struct {
		Pages []pageView `json:"pages"`
	}
}

type tagListOutput struct {
	Body struct {
		Tags   []tagView      `json:"tags"`
		Groups []tagGroupView `json:"groups"`
	}
}

func (s *Server) registerKnowledgeRoutes() {
	huma.Get(s.api, "/api/knowledge/nodes", s.rootsHandler, func(op *huma.Operation) {
		op.Summary = "List root nodes"
	})
	huma.Get(s.api, "/api/knowledge/nodes/{externalID}/children", s.childrenHandler, func(op *huma.Operation) {
		op.Summary = "List children of a node"
	})
	huma.Get(s.api, "/api/knowledge/pages/{externalID}", s.articleHandler, func(op *huma.Operation) {
		op.Summary = "Read an article"
	})
	huma.Get(s.api, "/api/knowledge/recent", s.recentHandler, func(op *huma.Operation) {
		op.Summary = "Most recently updated articles"
	})
	huma.Get(s.api, "/api/knowledge/popular", s.popularHandler, func(op *huma.Operation) {
		op.Summary = "Most viewed articles"
	})
	huma.Get(s.api, "/api/knowledge/tags", s.tagsHandler, func(op *huma.Operation) {
		op.Summary = "List tags and tag groups"
	})
}

func (s *Server) rootsHandler(ctx context.Context, _ *struct{}) (*nodeListOutput, error) {
	pages, err := s.pages.GetChildren(ctx, nil)
	if err != nil {
		s.recordError(ctx, err, "listing root nodes", nil)
		return nil, mapError(err)
	}

	pages, err = s.visiblePages(ctx, pages)
	if err != nil {
		s.recordError(ctx, err, "filtering root nodes", nil)
		return nil, mapError(err)
	}

	out := &nodeListOutput{}
	out.Body.Nodes = toPageViews(pages)
	return out, nil
}

func (s *Server) childrenHandler(ctx context.Context, input *externalIDInput) (*nodeListOutput, error) {
	if _, err := s.pages.GetByExternalID(ctx, input.ExternalID); err != nil {
		return nil, mapError(err)
	}

	pages, err := s.pages.GetChildren(ctx, &input.ExternalID)
	if err != nil {
		s.recordError(ctx, err, "listing children", logrus.Fields{"external_id": input.ExternalID})
		return nil, mapError(err)
	}

	pages, err = s.visiblePages(ctx, pages)
	if err != nil {
		s.recordError(ctx, err, "filtering children", logrus.Fields{"external_id": input.ExternalID})
		return nil, mapError(err)
	}

	out := &nodeListOutput{}
	out.Body.Nodes = toPageViews(pages)
	return out, nil
}

// visiblePages drops unpublished pages the requester may not see from a
// listing. An unpublished page stays listed for its author, for global
// admins, and for users with edit authority over it. Pages without a
// submission record were bulk-imported and count as published.
func (s *Server) visiblePages(ctx context.Context, pages []content.Page) ([]content.Page, error) {
	if len(pages) == 0 {
		return pages, nil
	}

	user := UserFromContext(ctx)
	if user != nil && user.Role == content.RoleAdmin {
		return pages, nil
	}

	externalIDs := make([]string, 0, len(pages))
	for i := range pages {
		externalIDs = append(externalIDs, pages[i].ExternalID)
	}

	unpublished, err := s.submissions.ListUnpublishedForPages(ctx, externalIDs)
	if err != nil {
		return nil, err
	}
	if len(unpublished) == 0 {
		return pages, nil
	}

	hidden := make(map[string]struct{}, len(unpublished))
	for i := range unpublished {
		if user != nil && unpublished[i].AuthorID == user.ID {
			continue
		}
		hidden[unpublished[i].ExternalID] = struct{}{}
	}

	if user != nil && len(hidden) > 0 {
		editable, err := s.permissions.EditableExternalIDs(ctx, user.Actor())
		if err != nil {
			return nil, err
		}
		for _, externalID := range editable {
			delete(hidden, externalID)
		}
	}
	if len(hidden) == 0 {
		return pages, nil
	}

	visible := make([]content.Page, 0, len(pages))
	for i := range pages {
		if _, ok := hidden[pages[i].ExternalID]; ok {
			continue
		}
		visible = append(visible, pages[i])
	}

	return visible, nil
}

// articleHandler serves an article: curated metadata from the mirror, the
// live body from the external store. Pending and rejected pages stay visible
// only to their author and to users with edit authority.
func (s *Server) articleHandler(ctx context.Context, input *externalIDInput) (*articleOutput, error) {
	page, err := s.pages.GetByExternalID(ctx, input.ExternalID)
	if err != nil {
		return nil, mapError(err)
	}

	if err := s.checkReadVisibility(ctx, page); err != nil {
		return nil, err
	}

	snapshot, err := s.external.GetPage(ctx, input.ExternalID)
	if err != nil {
		s.recordError(ctx, err, "fetching article body", logrus.Fields{"external_id": input.ExternalID})
		return nil, mapError(content.ErrExternalUnavailable)
	}

	ancestors, err := s.resolver.Ancestors(ctx, page)
	if err != nil {
		s.recordError(ctx, err, "resolving breadcrumbs", logrus.Fields{"external_id": input.ExternalID})
		return nil, mapError(err)
	}

	if err := s.pages.IncrementViews(ctx, input.ExternalID); err != nil {
		s.recordError(ctx, err, "incrementing views", logrus.Fields{"external_id": input.ExternalID})
	}

	out := &articleOutput{}
	out.Body.pageView = toPageView(page)
	out.Body.BodyHTML = snapshot.BodyHTML
	out.Body.ReadMinutes = content.ReadMinutes(snapshot.BodyHTML)
	out.Body.Breadcrumbs = toPageViews(ancestors)

	return out, nil
}

// checkReadVisibility hides unpublished content from readers who are neither
// the author nor an editor of the page. Pages without a submission record
// were bulk-imported and count as published.
func (s *Server) checkReadVisibility(ctx context.Context, page *content.Page) error {
	submission, err := s.submissions.GetByExternalID(ctx, page.ExternalID)
	if eris.Is(err, content.ErrNotFound) {
		return nil
	}
	if err != nil {
		return mapError(err)
	}
	if submission.Status == content.StatusPublished {
		return nil
	}

	user := UserFromContext(ctx)
	if user == nil {
		return huma.Error404NotFound("not found")
	}
	if submission.AuthorID == user.ID {
		return nil
	}

	allowed, err := s.permissions.CanEdit(ctx, page.ExternalID, user.Actor())
	if err != nil {
		return mapError(err)
	}
	if !allowed {
		return huma.Error404NotFound("not found")
	}

	return nil
}

func (s *Server) recentHandler(ctx context.Context, input *listLimitInput) (*pageListOutput, error) {
	pages, err := s.pages.Recent(ctx, input.Limit)
	if err != nil {
		s.recordError(ctx, err, "listing recent articles", nil)
		return nil, mapError(err)
	}

	pages, err = s.visiblePages(ctx, pages)
	if err != nil {
		s.recordError(ctx, err, "filtering recent articles", nil)
		return nil, mapError(err)
	}

	out := &pageListOutput{}
	out.Body.Pages = toPageViews(pages)
	return out, nil
}

func (s *Server) popularHandler(ctx context.Context, input *listLimitInput) (*pageListOutput, error) {
	pages, err := s.pages.Popular(ctx, input.Limit)
	if err != nil {
		s.recordError(ctx, err, "listing popular articles", nil)
		return nil, mapError(err)
	}

	pages, err = s.visiblePages(ctx, pages)
	if err != nil {
		s.recordError(ctx, err, "filtering popular articles", nil)
		return nil, mapError(err)
	}

	out := &pageListOutput{}
	out.Body.Pages = toPageViews(pages)
	return out, nil
}

func (s *Server) tagsHandler(ctx context.Context, _ *struct{}) (*tagListOutput, error) {
	tags, err := s.pages.ListTags(ctx)
	if err != nil {
		s.recordError(ctx, err, "listing tags", nil)
		return nil, mapError(err)
	}

	groups, err := s.tags.ListGroups(ctx)
	if err != nil {
		s.recordError(ctx, err, "listing tag groups", nil)
		return nil, mapError(err)
	}

	out := &tagListOutput{}
	out.Body.Tags = make([]tagView, 0, len(tags))
	for i := range tags {
		out.Body.Tags = append(out.Body.Tags, tagView{
			ID:         tags[i].ID,
			Name:       tags[i].Name,
			Slug:       tags[i].Slug,
			TagGroupID: tags[i].TagGroupID,
		})
	}
	out.Body.Groups = make([]tagGroupView, 0, len(groups))
	for i := range groups {
		out.Body.Groups = append(out.Body.Groups, tagGroupView{
			ID:          groups[i].ID,
			Name:        groups[i].Name,
			Description: groups[i].Description,
			Order:       groups[i].Order,
		})
	}

	return out, nil
}
