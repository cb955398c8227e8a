package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"

	"knowledgehub/app/internal/auth"
	"knowledgehub/app/internal/content"
)

type registerInput struct {
	Body struct {
		Username string `json:"username" minLength:"3" maxLength:"64"`
		Name     string `json:"name" maxLength:"255"`
		Password string `json:"password" minLength:"8"`
		Role     string `json:"role,omitempty" enum:"ADMIN,MEMBER"`
	}
}

type registerOutput struct {
	Body userView
}

type loginInput struct {
	Body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
}

type loginOutput struct {
	Body struct {
		AccessToken string   `json:"accessToken"`
		TokenType   string   `json:"tokenType"`
		User        userView `json:"user"`
	}
}

type meOutput struct {
	Body userView
}

func (s *Server) registerAuthRoutes() {
	huma.Post(s.api, "/api/auth/register", s.registerHandler, func(op *huma.Operation) {
		op.Summary = "Register a new account"
	})
	huma.Post(s.api, "/api/auth/token", s.loginHandler, func(op *huma.Operation) {
		op.Summary = "Exchange credentials for a bearer token"
	})
	huma.Get(s.api, "/api/auth/me", s.meHandler, func(op *huma.Operation) {
		op.Summary = "Current user"
	})
}

func (s *Server) registerHandler(ctx context.Context, input *registerInput) (*registerOutput, error) {
	role := content.RoleMember
	// Only an authenticated admin may create further admins.
	if input.Body.Role == string(content.RoleAdmin) {
		actor := UserFromContext(ctx)
		if actor == nil || actor.Role != content.RoleAdmin {
			return nil, huma.Error403Forbidden("only administrators may assign the ADMIN role")
		}
		role = content.RoleAdmin
	}

	user, err := s.auth.Register(ctx, input.Body.Username, input.Body.Name, input.Body.Password, role)
	if err != nil {
		s.recordError(ctx, err, "registering user", nil)
		return nil, mapError(err)
	}

	return &registerOutput{Body: toUserView(user)}, nil
}

func (s *Server) loginHandler(ctx context.Context, input *loginInput) (*loginOutput, error) {
	user, token, err := s.auth.Login(ctx, input.Body.Username, input.Body.Password)
	if err != nil {
		if !eris.Is(err, auth.ErrInvalidCredentials) {
			s.recordError(ctx, err, "logging in", nil)
		}
		return nil, mapError(err)
	}

	out := &loginOutput{}
	out.Body.AccessToken = token
	out.Body.TokenType = "bearer"
	out.Body.User = toUserView(user)

	return out, nil
}

func (s *Server) meHandler(ctx context.Context, _ *struct{}) (*meOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	return &meOutput{Body: toUserView(user)}, nil
}

func (s *Server) requireUser(ctx context.Context) (*auth.User, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	return user, nil
}

func (s *Server) requireAdmin(ctx context.Context) (*auth.User, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if user.Role != content.RoleAdmin {
		return nil, huma.Error403Forbidden("administrator access required")
	}
	return user, nil
}
