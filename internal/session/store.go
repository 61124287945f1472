package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/schema"
	"github.com/adamanr/hr_console/internal/transport"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

type State int

const (
	StateUnknown State = iota
	StateResolving
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

var (
	ErrNoIdentity   = errors.New("no authenticated identity")
	ErrMissingToken = errors.New("identity has no access token")
)

// Resolver fetches the identity that owns the current token.
type Resolver func(ctx context.Context) (*entity.Identity, error)

// Store owns the signed-in identity and its token. It is passed explicitly
// to every component that needs them and is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	storage  Storage
	logger   *slog.Logger
	now      func() time.Time
	state    State
	identity *entity.Identity
	token    string
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(storage Storage, logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		storage: storage,
		logger:  logger,
		now:     time.Now,
		state:   StateUnknown,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Boot restores the persisted session. Without a token, or with a token
// whose exp already passed, it lands in Anonymous without calling resolve.
// Otherwise the persisted identity is visible while resolve runs; any
// failure clears both entries and lands in Anonymous.
func (s *Store) Boot(ctx context.Context, resolve Resolver) State {
	token, err := s.storage.Get(ctx, KeyAccessToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Error("Error reading session token", slog.String("error", err.Error()))
	}

	if err != nil || token == "" {
		_ = s.reset(ctx)
		return StateAnonymous
	}

	if exp, ok := tokenExpiry(token); ok && !s.now().Before(exp) {
		s.logger.Info("Session token expired", slog.Time("expired_at", exp))
		_ = s.reset(ctx)
		return StateAnonymous
	}

	persisted := s.persistedIdentity(ctx)

	s.mu.Lock()
	s.token = token
	s.identity = persisted
	s.state = StateResolving
	s.mu.Unlock()

	id, err := resolve(ctx)
	if err == nil && id == nil {
		err = ErrNoIdentity
	}

	if err != nil {
		s.logger.Warn("Session rejected, signing out", slog.String("error", err.Error()))
		_ = s.reset(ctx)
		return StateAnonymous
	}

	if id.AccessToken == "" {
		id.AccessToken = token
	}

	if err = s.persist(ctx, id); err != nil {
		s.logger.Error("Error saving session", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = id
	s.state = StateAuthenticated

	return s.state
}

// Login replaces the current session with id.
func (s *Store) Login(ctx context.Context, id *entity.Identity) error {
	if id == nil {
		return ErrNoIdentity
	}

	if id.AccessToken == "" {
		return ErrMissingToken
	}

	if err := s.persist(ctx, id); err != nil {
		s.logger.Error("Error saving session", slog.String("error", err.Error()))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = id
	s.token = id.AccessToken
	s.state = StateAuthenticated

	return nil
}

// Logout removes both persisted entries. The store is Anonymous afterwards
// even if the storage failed.
func (s *Store) Logout(ctx context.Context) error {
	return s.reset(ctx)
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Identity returns a copy of the current identity, or nil.
func (s *Store) Identity() *entity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return nil
	}

	cp := *s.identity
	return &cp
}

// EmployeeID is the id of the signed-in user as used by attendance writes.
func (s *Store) EmployeeID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil || s.identity.ID == "" {
		return "", ErrNoIdentity
	}

	return s.identity.ID, nil
}

// Token implements oauth2.TokenSource for the transport client.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return nil, transport.ErrNoToken
	}

	tok := &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}
	if exp, ok := tokenExpiry(s.token); ok {
		tok.Expiry = exp
	}

	return tok, nil
}

func (s *Store) persist(ctx context.Context, id *entity.Identity) error {
	user, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	if err = s.storage.Set(ctx, KeyAccessToken, id.AccessToken); err != nil {
		return fmt.Errorf("save access token: %w", err)
	}

	if err = s.storage.Set(ctx, KeyUser, string(user)); err != nil {
		if delErr := s.storage.Delete(ctx, KeyAccessToken); delErr != nil {
			s.logger.Error("Error removing orphaned access token", slog.String("error", delErr.Error()))
		}
		return fmt.Errorf("save identity: %w", err)
	}

	return nil
}

func (s *Store) persistedIdentity(ctx context.Context) *entity.Identity {
	raw, err := s.storage.Get(ctx, KeyUser)
	if err != nil {
		return nil
	}

	id, err := schema.DecodeIdentity(json.RawMessage(raw))
	if err != nil {
		s.logger.Warn("Ignoring unreadable persisted identity", slog.String("error", err.Error()))
		return nil
	}

	return &id
}

func (s *Store) reset(ctx context.Context) error {
	s.mu.Lock()
	s.identity = nil
	s.token = ""
	s.state = StateAnonymous
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, KeyAccessToken, KeyUser); err != nil {
		s.logger.Error("Error clearing session", slog.String("error", err.Error()))
		return err
	}

	return nil
}

// tokenExpiry reads the exp claim without verifying the signature. Opaque
// tokens report ok=false.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}
