// Package auth provides the mocked sign-in gate in front of chat sessions.
//
// Credentials live in memory and tokens are HMAC-signed JWTs. This is a demo
// gate: it keeps the shape of a real auth backend without its guarantees.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/pkg/metrics"
)

var (
	// ErrAuth is the parent of every credential error.
	ErrAuth = errors.New("authentication failed")

	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrAuth)
	ErrEmailAlreadyExists = fmt.Errorf("%w: user with this email already exists", ErrAuth)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrAuth)
)

// Config configures a Gate.
type Config struct {
	Secret   string
	TokenTTL time.Duration
	// Latency simulates a round trip to an auth backend.
	Latency time.Duration
	// HashCost is the bcrypt cost for stored passwords.
	HashCost int
	Now      func() time.Time
}

// Claims are the token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type account struct {
	identity model.Identity
	hash     []byte
}

// Gate signs users in and out and answers who is signed in.
//
// Tokens are verified statelessly except for revocation: a revoked token id
// is remembered until the token would have expired anyway. token holds the
// most recently issued token for in-process callers that sign in one user
// at a time; HTTP callers verify their own bearer token instead.
type Gate struct {
	cfg Config

	mu       sync.RWMutex
	accounts map[string]*account
	nextID   int
	token    string
	revoked  map[string]time.Time
}

// SeedUser is a demo account available from start.
type SeedUser struct {
	Identity model.Identity
	Password string
}

// DemoUsers are the built-in demo accounts.
var DemoUsers = []SeedUser{
	{
		Identity: model.Identity{
			ID:     "1",
			Email:  "demo@example.com",
			Name:   "Demo User",
			Avatar: "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=150&h=150&fit=crop&crop=face",
		},
		Password: "demo123",
	},
	{
		Identity: model.Identity{
			ID:     "2",
			Email:  "test@example.com",
			Name:   "Test User",
			Avatar: "https://images.unsplash.com/photo-1494790108755-2616b25aa310?w=150&h=150&fit=crop&crop=face",
		},
		Password: "test123",
	},
}

// NewGate creates a gate holding the given seed accounts.
func NewGate(cfg Config, seed ...SeedUser) (*Gate, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	g := &Gate{
		cfg:      cfg,
		accounts: make(map[string]*account),
		revoked:  make(map[string]time.Time),
		nextID:   len(seed) + 1,
	}
	for _, u := range seed {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cfg.HashCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash seed password: %w", err)
		}
		g.accounts[normalizeEmail(u.Identity.Email)] = &account{identity: u.Identity, hash: hash}
	}
	return g, nil
}

// SignIn checks the credentials and makes the account the current identity.
// It returns the identity and its token.
func (g *Gate) SignIn(ctx context.Context, email, password string) (*model.Identity, string, error) {
	identity, token, err := g.signIn(ctx, email, password)
	metrics.RecordAuth("sign_in", err)
	return identity, token, err
}

func (g *Gate) signIn(ctx context.Context, email, password string) (*model.Identity, string, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, "", err
	}

	g.mu.RLock()
	acct, ok := g.accounts[normalizeEmail(email)]
	g.mu.RUnlock()
	if !ok {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	return g.startSession(acct.identity)
}

// SignUp registers a new account and makes it the current identity.
func (g *Gate) SignUp(ctx context.Context, email, password, name string) (*model.Identity, string, error) {
	identity, token, err := g.signUp(ctx, email, password, name)
	metrics.RecordAuth("sign_up", err)
	return identity, token, err
}

func (g *Gate) signUp(ctx context.Context, email, password, name string) (*model.Identity, string, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cfg.HashCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	key := normalizeEmail(email)

	g.mu.Lock()
	if _, exists := g.accounts[key]; exists {
		g.mu.Unlock()
		return nil, "", ErrEmailAlreadyExists
	}
	identity := model.Identity{
		ID:     fmt.Sprintf("%d", g.nextID),
		Email:  strings.TrimSpace(email),
		Name:   name,
		Avatar: AvatarURL(name),
	}
	g.nextID++
	g.accounts[key] = &account{identity: identity, hash: hash}
	g.mu.Unlock()

	return g.startSession(identity)
}

// SignOut revokes the most recently issued token and forgets it.
func (g *Gate) SignOut() {
	g.mu.Lock()
	token := g.token
	g.token = ""
	g.mu.Unlock()

	if token != "" {
		_ = g.Revoke(token)
	}
}

// Revoke invalidates token. Other tokens, including other tokens of the
// same user, stay valid.
func (g *Gate) Revoke(tokenString string) error {
	claims, err := g.parse(tokenString)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return ErrInvalidToken
	}

	now := g.cfg.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, exp := range g.revoked {
		if !exp.After(now) {
			delete(g.revoked, id)
		}
	}
	g.revoked[claims.ID] = claims.ExpiresAt.Time
	if g.token == tokenString {
		g.token = ""
	}
	return nil
}

// CurrentIdentity returns the identity of the most recently issued token,
// or nil when nobody is signed in or that token has expired or been revoked.
func (g *Gate) CurrentIdentity() *model.Identity {
	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()

	if token == "" {
		return nil
	}
	identity, err := g.Verify(token)
	if err != nil {
		return nil
	}
	return identity
}

// Verify parses token and returns the identity it was issued for.
func (g *Gate) Verify(tokenString string) (*model.Identity, error) {
	claims, err := g.parse(tokenString)
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	_, revoked := g.revoked[claims.ID]
	g.mu.RUnlock()
	if revoked {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		ID:     claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Avatar: claims.Avatar,
	}, nil
}

func (g *Gate) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(g.cfg.Secret), nil
	}, jwt.WithTimeFunc(g.cfg.Now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (g *Gate) startSession(identity model.Identity) (*model.Identity, string, error) {
	token, err := g.issue(identity)
	if err != nil {
		return nil, "", err
	}

	g.mu.Lock()
	g.token = token
	g.mu.Unlock()

	return &identity, token, nil
}

func (g *Gate) issue(identity model.Identity) (string, error) {
	now := g.cfg.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.cfg.TokenTTL)),
		},
		Email:  identity.Email,
		Name:   identity.Name,
		Avatar: identity.Avatar,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (g *Gate) simulateLatency(ctx context.Context) error {
	if g.cfg.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(g.cfg.Latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AvatarURL returns the generated avatar for a display name.
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.PathEscape(name) + "&size=150&background=0ea5e9&color=ffffff"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
