package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"
)

type createTagGroupInput struct {
	Body struct {
		Name        string `json:"name" minLength:"1" maxLength:"255"`
		Description string `json:"description,omitempty"`
		Order       int    `json:"order,omitempty"`
	}
}

type updateTagGroupInput struct {
	TagGroupID uint `path:"tagGroupID"`
	Body       struct {
		Name        string `json:"name" minLength:"1" maxLength:"255"`
		Description string `json:"description,omitempty"`
		Order       int    `json:"order,omitempty"`
	}
}

type tagGroupIDInput struct {
	TagGroupID uint `path:"tagGroupID"`
}

type tagGroupOutput struct {
	Body tagGroupView
}

type assignTagInput struct {
	TagID uint `path:"tagID"`
	Body  struct {
		TagGroupID *uint `json:"tagGroupId"`
	}
}

func (s *Server) registerTagRoutes() {
	huma.Post(s.api, "/api/tags/groups", s.createTagGroupHandler, func(op *huma.Operation) {
		op.Summary = "Create a tag group"
		op.DefaultStatus = 201
	})
	huma.Put(s.api, "/api/tags/groups/{tagGroupID}", s.updateTagGroupHandler, func(op *huma.Operation) {
		op.Summary = "Update a tag group"
	})
	huma.Delete(s.api, "/api/tags/groups/{tagGroupID}", s.deleteTagGroupHandler, func(op *huma.Operation) {
		op.Summary = "Delete a tag group"
		op.DefaultStatus = 204
	})
	huma.Put(s.api, "/api/tags/{tagID}", s.assignTagHandler, func(op *huma.Operation) {
		op.Summary = "Assign a tag to a group"
	})
}

func (s *Server) createTagGroupHandler(ctx context.Context, input *createTagGroupInput) (*tagGroupOutput, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	group, err := s.tags.CreateGroup(ctx, input.Body.Name, input.Body.Description, input.Body.Order)
	if err != nil {
		s.recordError(ctx, err, "creating tag group", nil)
		return nil, mapError(err)
	}

	return &tagGroupOutput{Body: tagGroupView{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		Order:       group.Order,
	}}, nil
}

func (s *Server) updateTagGroupHandler(ctx context.Context, input *updateTagGroupInput) (*tagGroupOutput, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	group, err := s.tags.UpdateGroup(ctx, input.TagGroupID, input.Body.Name, input.Body.Description, input.Body.Order)
	if err != nil {
		s.recordError(ctx, err, "updating tag group", logrus.Fields{"tag_group_id": input.TagGroupID})
		return nil, mapError(err)
	}

	return &tagGroupOutput{Body: tagGroupView{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		Order:       group.Order,
	}}, nil
}

func (s *Server) deleteTagGroupHandler(ctx context.Context, input *tagGroupIDInput) (*struct{}, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	if err := s.tags.DeleteGroup(ctx, input.TagGroupID); err != nil {
		s.recordError(ctx, err, "deleting tag group", logrus.Fields{"tag_group_id": input.TagGroupID})
		return nil, mapError(err)
	}

	return nil, nil
}

func (s *Server) assignTagHandler(ctx context.Context, input *assignTagInput) (*struct{}, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	if err := s.tags.AssignTag(ctx, input.TagID, input.Body.TagGroupID); err != nil {
		s.recordError(ctx, err, "assigning tag", logrus.Fields{"tag_id": input.TagID})
		return nil, mapError(err)
	}

	return nil, nil
}
