package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"knowledgehub/app/internal/content"
)

type createGroupInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"255"`
	}
}

type updateGroupInput struct {
	GroupID uint `path:"groupID"`
	Body    struct {
		Name                  string  `json:"name" minLength:"1" maxLength:"255"`
		ManagedPageExternalID *string `json:"managedPageExternalId,omitempty"`
	}
}

type groupIDInput struct {
	GroupID uint `path:"groupID"`
}

type groupOutput struct {
	Body groupView
}

type groupListOutput struct {
	Body struct {
		Groups []groupView `json:"groups"`
	}
}

type memberInput struct {
	GroupID uint `path:"groupID"`
	Body    struct {
		UserID uint   `json:"userId"`
		Role   string `json:"role,omitempty" enum:"ADMIN,MEMBER"`
	}
}

type memberPathInput struct {
	GroupID uint `path:"groupID"`
	UserID  uint `path:"userID"`
}

func (s *Server) registerGroupRoutes() {
	huma.Get(s.api, "/api/groups", s.listGroupsHandler, func(op *huma.Operation) {
		op.Summary = "List groups"
	})
	huma.Post(s.api, "/api/groups", s.createGroupHandler, func(op *huma.Operation) {
		op.Summary = "Create a group"
		op.DefaultStatus = 201
	})
	huma.Get(s.api, "/api/groups/{groupID}", s.getGroupHandler, func(op *huma.Operation) {
		op.Summary = "Fetch a group"
	})
	huma.Put(s.api, "/api/groups/{groupID}", s.updateGroupHandler, func(op *huma.Operation) {
		op.Summary = "Update a group"
	})
	huma.Delete(s.api, "/api/groups/{groupID}", s.deleteGroupHandler, func(op *huma.Operation) {
		op.Summary = "Delete a group"
		op.DefaultStatus = 204
	})
	huma.Post(s.api, "/api/groups/{groupID}/members", s.addMemberHandler, func(op *huma.Operation) {
		op.Summary = "Add a group member"
		op.DefaultStatus = 201
	})
	huma.Put(s.api, "/api/groups/{groupID}/members", s.updateMemberHandler, func(op *huma.Operation) {
		op.Summary = "Change a member's role"
	})
	huma.Delete(s.api, "/api/groups/{groupID}/members/{userID}", s.removeMemberHandler, func(op *huma.Operation) {
		op.Summary = "Remove a group member"
		op.DefaultStatus = 204
	})
}

func (s *Server) listGroupsHandler(ctx context.Context, _ *struct{}) (*groupListOutput, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	groups, err := s.groups.List(ctx)
	if err != nil {
		s.recordError(ctx, err, "listing groups", nil)
		return nil, mapError(err)
	}

	out := &groupListOutput{}
	out.Body.Groups = make([]groupView, 0, len(groups))
	for i := range groups {
		out.Body.Groups = append(out.Body.Groups, toGroupView(&groups[i]))
	}
	return out, nil
}

func (s *Server) createGroupHandler(ctx context.Context, input *createGroupInput) (*groupOutput, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	group, err := s.groups.Create(ctx, input.Body.Name)
	if err != nil {
		s.recordError(ctx, err, "creating group", nil)
		return nil, mapError(err)
	}

	return &groupOutput{Body: toGroupView(group)}, nil
}

func (s *Server) getGroupHandler(ctx context.Context, input *groupIDInput) (*groupOutput, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	group, err := s.groups.GetByID(ctx, input.GroupID)
	if err != nil {
		return nil, mapError(err)
	}

	return &groupOutput{Body: toGroupView(group)}, nil
}

// updateGroupHandler renames a group and reassigns the page it manages. The
// managed page must exist in the mirror before delegation points at it.
func (s *Server) updateGroupHandler(ctx context.Context, input *updateGroupInput) (*groupOutput, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	if input.Body.ManagedPageExternalID != nil {
		if _, err := s.pages.GetByExternalID(ctx, *input.Body.ManagedPageExternalID); err != nil {
			return nil, mapError(err)
		}
	}

	group, err := s.groups.Update(ctx, input.GroupID, input.Body.Name, input.Body.ManagedPageExternalID)
	if err != nil {
		s.recordError(ctx, err, "updating group", logrus.Fields{"group_id": input.GroupID})
		return nil, mapError(err)
	}

	return &groupOutput{Body: toGroupView(group)}, nil
}

func (s *Server) deleteGroupHandler(ctx context.Context, input *groupIDInput) (*struct{}, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	if err := s.groups.Delete(ctx, input.GroupID); err != nil {
		s.recordError(ctx, err, "deleting group", logrus.Fields{"group_id": input.GroupID})
		return nil, mapError(err)
	}

	return nil, nil
}

func (s *Server) addMemberHandler(ctx context.Context, input *memberInput) (*struct{}, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	if s.users != nil {
		if _, err := s.users.GetByID(ctx, input.Body.UserID); err != nil {
			return nil, mapError(err)
		}
	}

	err := s.groups.AddMember(ctx, input.GroupID, input.Body.UserID, content.Role(input.Body.Role))
	if err != nil {
		s.recordError(ctx, err, "adding group member", logrus.Fields{"group_id": input.GroupID})
		return nil, mapError(err)
	}

	return nil, nil
}

func (s *Server) updateMemberHandler(ctx context.Context, input *memberInput) (*struct{}, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	err := s.groups.UpdateMemberRole(ctx, input.GroupID, input.Body.UserID, content.Role(input.Body.Role))
	if err != nil {
		s.recordError(ctx, err, "updating member role", logrus.Fields{"group_id": input.GroupID})
		return nil, mapError(err)
	}

	return nil, nil
}

func (s *Server) removeMemberHandler(ctx context.Context, input *memberPathInput) (*struct{}, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	if err := s.groups.RemoveMember(ctx, input.GroupID, input.UserID); err != nil {
		s.recordError(ctx, err, "removing group member", logrus.Fields{"group_id": input.GroupID})
		return nil, mapError(err)
	}

	return nil, nil
}
