package auth

import "time"

// UsersCollection is the CMS collection whose members may read media.
const UsersCollection = "users"

// User is a CMS admin user as stored in the users table.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated caller of one request.
type Principal struct {
	UserID     string
	Email      string
	Collection string
}

// Session is an issued session token.
type Session struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// sessionClaims is the validated content of a session token.
type sessionClaims struct {
	UserID     string
	Email      string
	Collection string
	ExpiresAt  time.Time
}
