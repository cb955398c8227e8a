package http

import (
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"

	"knowledgehub/app/internal/auth"
	"knowledgehub/app/internal/content"
	"knowledgehub/app/internal/notify"
)

// mapError translates domain sentinels into HTTP errors. Anything unmatched
// becomes a 500 with a generic message; the detail stays in the logs.
func mapError(err error) error {
	switch {
	case eris.Is(err, content.ErrNotFound), eris.Is(err, notify.ErrNotFound), eris.Is(err, auth.ErrNotFound):
		return huma.Error404NotFound("not found")
	case eris.Is(err, content.ErrForbidden):
		return huma.Error403Forbidden("you do not have authority over this content")
	case eris.Is(err, content.ErrHasChildren):
		return huma.Error409Conflict("page still has children")
	case eris.Is(err, content.ErrInvalidTransition):
		return huma.Error409Conflict("submission is not in a state that allows this action")
	case eris.Is(err, content.ErrReconcileInProgress):
		return huma.Error409Conflict("a synchronization pass is already running")
	case eris.Is(err, content.ErrExternalUnavailable):
		return huma.NewError(stdhttp.StatusBadGateway, "the content store is temporarily unavailable")
	case eris.Is(err, auth.ErrInvalidCredentials):
		return huma.Error401Unauthorized("incorrect username or password")
	case eris.Is(err, auth.ErrInvalidToken):
		return huma.Error401Unauthorized("invalid or expired token")
	case eris.Is(err, auth.ErrUsernameTaken):
		return huma.Error400BadRequest("username already registered")
	default:
		return huma.Error500InternalServerError("we couldn't process your request right now")
	}
}
