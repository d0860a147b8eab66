// Package session keeps the in-progress sale forms of each user in memory.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fitcompany/console/internal/catalog"
	"github.com/fitcompany/console/internal/lineitem"
	"github.com/fitcompany/console/internal/mask"
	"github.com/fitcompany/console/internal/metrics"
	"github.com/fitcompany/console/internal/notice"
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 30 * time.Minute

var (
	ErrNotFound = errors.New("session not found")
	ErrNotOwner = errors.New("session belongs to another user")
)

// Session is one open sale form. Callers hold Lock while touching Lines
// and check Closed once they hold it.
type Session struct {
	sync.Mutex

	ID      uuid.UUID
	Owner   string
	EditID  *int64
	Lines   *lineitem.Collection
	Catalog *catalog.Snapshot
	Notices *notice.Board

	lastSeen time.Time
	closed   atomic.Bool
}

// Closed reports whether the session was deleted or swept. A request that
// fetched it earlier must not act on it any more.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Options configures new sessions.
type Options struct {
	MaxLines int
	Quantity mask.Field
	After    notice.AfterFunc
}

// Store holds sessions keyed by ID.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	opts     Options
	now      func() time.Time
}

// NewStore returns an empty store. ttl <= 0 uses DefaultTTL.
func NewStore(ttl time.Duration, opts Options) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if opts.Quantity.MaxDigits <= 0 {
		opts.Quantity = mask.DefaultFields()[mask.FieldCantidad]
	}
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		opts:     opts,
		now:      time.Now,
	}
}

// Create opens a session for owner over snap with a single empty line.
func (s *Store) Create(owner string, snap *catalog.Snapshot) *Session {
	sess := &Session{
		ID:       uuid.New(),
		Owner:    owner,
		Lines:    lineitem.New(s.opts.MaxLines, s.opts.Quantity),
		Catalog:  snap,
		Notices:  notice.NewBoard(s.opts.After),
		lastSeen: s.now(),
	}
	sess.Lines.Reset()

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SetSessions(n)
	return sess
}

// Get returns the session id if owner opened it, and marks it used.
func (s *Store) Get(id uuid.UUID, owner string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return nil, ErrNotFound
	}
	if sess.Owner != owner {
		return nil, ErrNotOwner
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// Delete discards the session. Unknown IDs are ignored.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.closed.Store(true)
	}
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if ok {
		sess.Notices.Reset()
	}
	metrics.SetSessions(n)
}

// Len returns the number of sessions, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle longer than the TTL and returns how many went.
func (s *Store) Sweep() int {
	s.mu.Lock()
	var gone []*Session
	for id, sess := range s.sessions {
		if s.expired(sess) {
			sess.closed.Store(true)
			delete(s.sessions, id)
			gone = append(gone, sess)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range gone {
		sess.Notices.Reset()
	}
	metrics.SetSessions(n)
	return len(gone)
}

// Run sweeps on every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(sess *Session) bool {
	return s.now().Sub(sess.lastSeen) > s.ttl
}
