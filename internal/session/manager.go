package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"regpay/internal/platform/metrics"
	dErrors "regpay/pkg/domain-errors"
)

// placeholderToken is the historical bug value: early admin builds stored a
// literal boolean where the JWT belongs. It must never be accepted or sent.
const placeholderToken = "true"

// DefaultTTL applies when the backend states no expiry and the token carries
// no exp claim.
const DefaultTTL = 24 * time.Hour

// Manager owns the admin session lifecycle: establish on login, validate
// before every admin call, clear on logout or expiry.
type Manager struct {
	store      Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	defaultTTL time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics wires the active-session gauge and auth failure counter.
func WithMetrics(mx *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithDefaultTTL overrides the fallback session lifetime.
func WithDefaultTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// NewManager creates a session manager over the given store.
func NewManager(store Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, logger: logger, now: time.Now, defaultTTL: DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Establish records a fresh session after a successful login. The token is
// rejected when it is empty or the placeholder literal, regardless of the
// login call having returned HTTP success. Expiry resolution order:
// explicit expiresIn from the backend, the token's own exp claim, DefaultTTL.
func (m *Manager) Establish(ctx context.Context, token, email string, expiresIn time.Duration) error {
	if token == "" || token == placeholderToken {
		m.countAuthFailure()
		return dErrors.New(dErrors.CodeUnauthenticated, "login returned an invalid token")
	}

	now := m.now()
	expiresAt := now.Add(m.defaultTTL)
	switch {
	case expiresIn > 0:
		expiresAt = now.Add(expiresIn)
	default:
		if claimExp, ok := tokenExpiry(token); ok && claimExp.After(now) {
			expiresAt = claimExp
		}
	}

	sess := &Session{Token: token, Email: email, ExpiresAt: expiresAt}
	if err := m.store.Save(ctx, sess); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not persist session")
	}

	if m.metrics != nil {
		m.metrics.ActiveAdminSessions.Set(1)
	}
	m.logger.InfoContext(ctx, "admin session established",
		"email", email,
		"expires_at", expiresAt,
	)
	return nil
}

// IsValid reports whether a usable session exists right now. An expired
// session is cleared as a side effect.
func (m *Manager) IsValid(ctx context.Context) bool {
	sess, err := m.store.Load(ctx)
	if err != nil {
		return false
	}
	if !sess.IsActive(m.now()) {
		// Mirror the read-time cleanup the browser build did: an expired
		// or placeholder session is wiped on first sight.
		_ = m.store.Clear(ctx)
		if m.metrics != nil {
			m.metrics.ActiveAdminSessions.Set(0)
		}
		return false
	}
	return true
}

// Current returns the active session, or an unauthenticated error.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	sess, err := m.store.Load(ctx)
	if err != nil || !sess.IsActive(m.now()) {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "no active admin session")
	}
	return sess, nil
}

// Token implements the upstream client's TokenSource: it returns the bearer
// token when a valid session exists and "" otherwise, so expired sessions
// never produce an Authorization header.
func (m *Manager) Token() string {
	ctx := context.Background()
	sess, err := m.store.Load(ctx)
	if err != nil || !sess.IsActive(m.now()) {
		return ""
	}
	return sess.Token
}

// Logout clears the stored session.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not clear session")
	}
	if m.metrics != nil {
		m.metrics.ActiveAdminSessions.Set(0)
	}
	m.logger.InfoContext(ctx, "admin session cleared")
	return nil
}

func (m *Manager) countAuthFailure() {
	if m.metrics != nil {
		m.metrics.AuthFailures.Inc()
	}
}

// tokenExpiry reads the exp claim from a JWT without verifying it. The
// gateway does not hold the backend's signing key; the claim is only used to
// pick a session lifetime, not to authenticate anything.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
