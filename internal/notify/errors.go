package notify

import "github.com/rotisserie/eris"

// ErrNotFound indicates the notification does not exist or belongs to
// another user.
var ErrNotFound = eris.New("notification not found")
