package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"pricescout/pricescout/utils/logging"
	"pricescout/pricescout/utils/types"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Manager hands out exclusive, scoped sessions. It never pools or shares them.
type Manager struct {
	connector Connector
	limiter   *rate.Limiter
	active    atomic.Int64
}

// NewManager builds a Manager; connectRPS <= 0 means connects are not paced.
func NewManager(connector Connector, connectRPS float64) *Manager {
	limit := rate.Inf
	burst := 1
	if connectRPS > 0 {
		limit = rate.Limit(connectRPS)
		burst = int(connectRPS)
		if burst < 1 {
			burst = 1
		}
	}
	return &Manager{
		connector: connector,
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// Active returns the number of sessions currently leased.
func (m *Manager) Active() int64 {
	return m.active.Load()
}

// Acquire opens a fresh session. Errors wrap types.ErrConnection, and also
// types.ErrTransport when the connector reports the backend unreachable.
func (m *Manager) Acquire(ctx context.Context) (*Lease, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConnection, err)
	}
	sess, err := m.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConnection, err)
	}
	m.active.Add(1)
	return &Lease{session: sess, manager: m}, nil
}

// WithSession acquires a session, runs fn and releases the session on every
// exit path, panics included.
func (m *Manager) WithSession(ctx context.Context, fn func(Session) error) error {
	lease, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := lease.Release(); relErr != nil {
			logging.ErrorLogger.Warn("session release failed", zap.Error(relErr))
		}
	}()
	return fn(lease)
}

// Lease is a Session owned by one pipeline until Release.
type Lease struct {
	session  Session
	manager  *Manager
	once     sync.Once
	released atomic.Bool
	err      error
}

func (l *Lease) NewPage(ctx context.Context) (Page, error) {
	if l.released.Load() {
		return nil, types.ErrSessionReleased
	}
	return l.session.NewPage(ctx)
}

// Close is an alias of Release so a Lease satisfies Session.
func (l *Lease) Close() error {
	return l.Release()
}

// Release closes the underlying session once; later calls return the first result.
func (l *Lease) Release() error {
	l.once.Do(func() {
		l.released.Store(true)
		l.err = l.session.Close()
		l.manager.active.Add(-1)
	})
	return l.err
}
