package content

import "github.com/rotisserie/eris"

// Sentinel errors for the content domain. Callers match them with eris.Is;
// the HTTP layer translates them into status codes.
var (
	// ErrNotFound indicates the requested page, submission or group does not exist locally.
	ErrNotFound = eris.New("not found")

	// ErrHasChildren blocks deletion of a page that other pages still point at.
	ErrHasChildren = eris.New("page has children")

	// ErrCycleDetected is returned when an ancestor walk exceeds the depth budget.
	// The parent pointers form a tree, so hitting this means the mirror is corrupt.
	ErrCycleDetected = eris.New("cycle detected in page hierarchy")

	// ErrExternalUnavailable wraps transient failures talking to the external store.
	ErrExternalUnavailable = eris.New("external content store unavailable")

	// ErrInvalidTransition is returned when a submission state change violates the
	// review state machine.
	ErrInvalidTransition = eris.New("invalid submission state transition")

	// ErrForbidden indicates the acting user lacks authority over the target page.
	ErrForbidden = eris.New("forbidden")

	// ErrReconcileInProgress is returned when a reconciliation pass is triggered
	// while another one is still running. Passes must not overlap.
	ErrReconcileInProgress = eris.New("reconciliation already in progress")
)
