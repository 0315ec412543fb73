package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"tome/internal/api"
	"tome/internal/cache"
)

// refreshLeeway is how close to expiry the access token may get before a
// request triggers a proactive refresh.
const refreshLeeway = 30 * time.Second

// Session is a point-in-time view of the authentication state.
type Session struct {
	User            *api.User
	Credential      api.Credential
	IsAuthenticated bool
	IsInitializing  bool
	IsLoading       bool
	Err             string
}

// persisted is the cache representation of a session. The cached value is a
// best-effort seed; CheckAuth re-verifies it against the backend.
type persisted struct {
	User            *api.User      `json:"user"`
	Credential      api.Credential `json:"credential"`
	IsAuthenticated bool           `json:"is_authenticated"`
}

// Store owns the credential and authentication status. It is the only
// writer of the token pair; the api client reads tokens through the
// CredentialSource interface.
type Store struct {
	client *api.Client
	cache  *cache.Store
	logger *zap.Logger

	mu          sync.Mutex
	session     Session
	initialized bool

	now func() time.Time
}

// New builds a session store. Wire it back into the client with
// client.SetCredentialSource before issuing authenticated requests.
func New(client *api.Client, cacheStore *cache.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:  client,
		cache:   cacheStore,
		logger:  logger,
		session: Session{IsInitializing: true},
		now:     time.Now,
	}
}

// Snapshot returns a copy of the current session state.
func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(s.session)
}

// IsAuthenticated reports whether the last verification accepted the
// credential. Stores use this to gate fetches and mutations.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.IsAuthenticated
}

// Token implements api.CredentialSource. When the access token is within
// refreshLeeway of its exp claim and a refresh token is held, the pair is
// refreshed first so the outgoing request carries a live token.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	cred := s.session.Credential
	s.mu.Unlock()

	if cred.Access == "" {
		return "", nil
	}
	if cred.Refresh != "" && expiresWithin(cred.Access, s.now(), refreshLeeway) {
		access, err := s.Refresh(ctx)
		if err != nil {
			return "", err
		}
		return access, nil
	}
	return cred.Access, nil
}

// Login exchanges credentials for a session. On failure the prior state is
// kept except for the surfaced error message.
func (s *Store) Login(ctx context.Context, username, password string) error {
	s.setLoading(true)

	cred, user, err := s.client.Login(ctx, username, password)
	if err != nil {
		s.finishWithError(err)
		return err
	}

	// The backend may omit the user record from the login payload.
	if user == nil {
		s.storeCredential(cred)
		profile, err := s.client.Profile(ctx)
		if err != nil {
			s.storeCredential(api.Credential{})
			s.finishWithError(err)
			return err
		}
		user = &profile
	}

	s.mu.Lock()
	s.session.Credential = cred
	s.session.User = user
	s.session.IsAuthenticated = true
	s.session.IsLoading = false
	s.session.Err = ""
	snap := cloneSession(s.session)
	s.mu.Unlock()

	s.persist(snap)
	s.logger.Info("signed in", zap.Int64("user_id", user.ID))
	return nil
}

// SignUp registers an account and then signs in with the same credentials.
// When registration succeeds but the sign-in fails, the sign-in error is
// surfaced; the registered account is not deleted.
func (s *Store) SignUp(ctx context.Context, input api.RegisterInput) error {
	s.setLoading(true)

	if _, err := s.client.Register(ctx, input); err != nil {
		s.finishWithError(err)
		return err
	}
	return s.Login(ctx, input.Username, input.Password)
}

// Logout clears the credential, the user, and the persisted session. It is
// synchronous and never fails.
func (s *Store) Logout() {
	s.mu.Lock()
	initializing := s.session.IsInitializing
	s.session = Session{IsInitializing: initializing}
	s.mu.Unlock()

	if s.cache != nil {
		_ = s.cache.Delete(cache.KeySession)
	}
	s.logger.Info("signed out")
}

// CheckAuth restores a persisted session and verifies it remotely. It runs
// once per process; later calls are no-ops. IsInitializing flips to false
// exactly once, on the first completion.
func (s *Store) CheckAuth(ctx context.Context) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.mu.Unlock()
	defer s.finishInitializing()

	var saved persisted
	if s.cache == nil {
		return
	}
	if _, ok := s.cache.Get(cache.KeySession, &saved); !ok {
		return
	}
	if strings.TrimSpace(saved.Credential.Access) == "" {
		return
	}

	err := s.client.VerifyToken(ctx, saved.Credential.Access)
	switch {
	case err == nil:
		s.restore(saved)
	case api.IsUnauthenticated(err):
		// Access token expired; try the refresh token once.
		access, refreshErr := s.client.RefreshToken(ctx, saved.Credential.Refresh)
		if refreshErr != nil {
			s.logger.Info("persisted session rejected", zap.Error(refreshErr))
			_ = s.cache.Delete(cache.KeySession)
			return
		}
		saved.Credential.Access = access
		s.restore(saved)
	default:
		// Backend unreachable: stay signed out but keep the persisted
		// session for the next start.
		s.logger.Warn("session verification failed", zap.Error(err))
	}
}

// Refresh exchanges the refresh token for a new access token. Any failure
// forces logout: the refresh token is assumed expired or revoked, and there
// is no further retry.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	refresh := s.session.Credential.Refresh
	s.mu.Unlock()

	if refresh == "" {
		s.Logout()
		return "", &api.Error{Kind: api.Unauthenticated, Message: "no refresh token"}
	}

	access, err := s.client.RefreshToken(ctx, refresh)
	if err != nil {
		s.logger.Info("token refresh failed, signing out", zap.Error(err))
		s.Logout()
		return "", err
	}

	s.mu.Lock()
	s.session.Credential.Access = access
	snap := cloneSession(s.session)
	s.mu.Unlock()
	s.persist(snap)
	return access, nil
}

func (s *Store) restore(saved persisted) {
	s.mu.Lock()
	s.session.Credential = saved.Credential
	s.session.User = saved.User
	s.session.IsAuthenticated = true
	snap := cloneSession(s.session)
	s.mu.Unlock()
	s.persist(snap)
	s.logger.Info("session restored")
}

func (s *Store) finishInitializing() {
	s.mu.Lock()
	s.session.IsInitializing = false
	s.mu.Unlock()
}

func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	s.session.IsLoading = loading
	s.session.Err = ""
	s.mu.Unlock()
}

func (s *Store) finishWithError(err error) {
	s.mu.Lock()
	s.session.IsLoading = false
	s.session.Err = err.Error()
	s.mu.Unlock()
}

func (s *Store) storeCredential(cred api.Credential) {
	s.mu.Lock()
	s.session.Credential = cred
	s.mu.Unlock()
}

func (s *Store) persist(snap Session) {
	if s.cache == nil {
		return
	}
	err := s.cache.Put(cache.KeySession, persisted{
		User:            snap.User,
		Credential:      snap.Credential,
		IsAuthenticated: snap.IsAuthenticated,
	})
	if err != nil {
		s.logger.Warn("persist session failed", zap.Error(err))
	}
}

func cloneSession(in Session) Session {
	out := in
	if in.User != nil {
		user := *in.User
		out.User = &user
	}
	return out
}

// expiresWithin inspects the token's exp claim without verifying the
// signature; only the backend verifies tokens. Opaque or unparsable tokens
// never trigger a proactive refresh.
func expiresWithin(token string, now time.Time, leeway time.Duration) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.Add(leeway).After(exp.Time)
}
