package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"leanpass/internal/models"
	"leanpass/internal/services"
)

// CookieName is the session cookie set on login.
const CookieName = "authToken"

// UserLookup loads the account a token belongs to. A missing account is
// reported as services.ErrNotFound.
type UserLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// Identity is the authenticated caller of a request.
type Identity struct {
	User      *models.User
	TokenID   string
	ExpiresAt time.Time
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the API middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// Sessions ties tokens, revocations and users together.
type Sessions struct {
	tokens  *Tokens
	revoker Revoker
	users   UserLookup
	secure  bool
}

func NewSessions(tokens *Tokens, revoker Revoker, users UserLookup, secureCookie bool) *Sessions {
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Sessions{tokens: tokens, revoker: revoker, users: users, secure: secureCookie}
}

// Start issues a token for the user and sets it as the session cookie.
func (s *Sessions) Start(w http.ResponseWriter, user *models.User) (string, error) {
	token, claims, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		MaxAge:   int(s.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// Resolve authenticates the request from its cookie or bearer header.
func (s *Sessions) Resolve(r *http.Request) (*Identity, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.Revoked(r.Context(), claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	user, err := s.users.Get(r.Context(), claims.Subject)
	if errors.Is(err, services.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return &Identity{User: user, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// End revokes the request's token, if it carries a valid one, and clears
// the cookie either way.
func (s *Sessions) End(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	claims, err := s.tokens.Parse(TokenFromRequest(r))
	if err != nil {
		return nil
	}
	return s.revoker.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time)
}

// TokenFromRequest prefers the session cookie over an Authorization header.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
