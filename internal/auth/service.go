package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abduss/mediagate/internal/config"
	"github.com/abduss/mediagate/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookieName is the cookie the CMS admin UI stores its token in.
const SessionCookieName = "payload-token"

const (
	defaultLookupTimeout = 5 * time.Second
	defaultTokenTTL      = 2 * time.Hour
	maxPasswordLength    = 72 // bcrypt limit
)

// userStore abstracts the persistence layer.
type userStore interface {
	FindUserByID(ctx context.Context, id string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
}

// Service validates sessions and issues them on login.
type Service struct {
	store   userStore
	cfg     config.AuthConfig
	nowFunc func() time.Time
	parser  *jwt.Parser
}

// NewService creates a Service with dependencies.
func NewService(store userStore, cfg config.AuthConfig) *Service {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	s := &Service{
		store:   store,
		cfg:     cfg,
		nowFunc: time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.nowFunc() }),
	)
	return s
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// Authenticate reports whether header carries a valid session for a user that
// still exists. It never returns an error: every failure, including a panic in
// a dependency, yields (Principal{}, false). The reason is logged.
func (s *Service) Authenticate(ctx context.Context, header http.Header) (principal Principal, ok bool) {
	log := logger.FromContext(ctx).With(zap.String("step", "auth"))
	defer func() {
		if r := recover(); r != nil {
			log.Error("authentication panicked", zap.Any("panic", r))
			principal, ok = Principal{}, false
		}
	}()

	token := extractToken(header)
	if token == "" {
		log.Debug("request has no session", zap.Error(ErrNoSession))
		return Principal{}, false
	}

	claims, err := s.validateToken(token)
	if err != nil {
		log.Warn("session token rejected", zap.Error(err))
		return Principal{}, false
	}

	if s.store == nil {
		log.Error("no user store configured")
		return Principal{}, false
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	user, err := s.store.FindUserByID(lookupCtx, claims.UserID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		log.Warn("session user no longer exists", zap.String("user_id", claims.UserID))
		return Principal{}, false
	case err != nil:
		log.Error("session user lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return Principal{}, false
	}

	return Principal{
		UserID:     user.ID,
		Email:      user.Email,
		Collection: claims.Collection,
	}, true
}

// Login checks credentials against the stored bcrypt hash and issues a session.
func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" || len(input.Password) > maxPasswordLength {
		return Session{}, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.issueToken(user)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	user.PasswordHash = ""
	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) issueToken(user User) (string, time.Time, error) {
	now := s.nowFunc()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := jwt.MapClaims{
		"id":         user.ID,
		"email":      user.Email,
		"collection": UsersCollection,
		"iat":        now.Unix(),
		"exp":        expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.TokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *Service) validateToken(tokenString string) (sessionClaims, error) {
	parsed, err := s.parser.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.TokenSecret), nil
	})
	if err != nil {
		return sessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return sessionClaims{}, ErrInvalidToken
	}

	id, _ := claims["id"].(string)
	if id == "" {
		// tokens minted by other tools carry the user id in sub
		id, _ = claims["sub"].(string)
	}
	if id == "" {
		return sessionClaims{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	collection, _ := claims["collection"].(string)
	if collection == "" {
		collection = UsersCollection
	}
	if collection != UsersCollection {
		return sessionClaims{}, fmt.Errorf("%w: collection %q", ErrInvalidToken, collection)
	}

	email, _ := claims["email"].(string)
	exp, _ := claims.GetExpirationTime()

	out := sessionClaims{UserID: id, Email: email, Collection: collection}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// extractToken prefers the session cookie, then the Authorization header in
// either "JWT <token>" or "Bearer <token>" form.
func extractToken(header http.Header) string {
	req := http.Request{Header: header}
	if cookie, err := req.Cookie(SessionCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}

	authHeader := strings.TrimSpace(header.Get("Authorization"))
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "jwt", "bearer":
		return strings.TrimSpace(token)
	default:
		return ""
	}
}
