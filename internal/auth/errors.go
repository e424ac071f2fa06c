package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when a login attempt fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoSession means the request carried no session token.
	ErrNoSession = errors.New("no session token")
	// ErrInvalidToken covers bad signatures, expired tokens and malformed claims.
	ErrInvalidToken = errors.New("invalid session token")
)
