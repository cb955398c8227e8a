package auth

import "github.com/rotisserie/eris"

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = eris.New("user not found")

	// ErrInvalidCredentials covers both unknown usernames and wrong passwords,
	// deliberately indistinguishable to the caller.
	ErrInvalidCredentials = eris.New("invalid username or password")

	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = eris.New("username already registered")

	// ErrInvalidToken indicates a missing, malformed or expired bearer token.
	ErrInvalidToken = eris.New("invalid token")
)
