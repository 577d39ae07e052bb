// Package realtime keeps track of connected clients and pushes JSON
// envelopes to them.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoSession is returned when a user has no open connection.
var ErrNoSession = errors.New("no realtime session for user")

// Role is the kind of client on a connection.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// Envelope is the JSON frame written to clients.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// Conn is the write side of a client connection.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Session is one open connection of a user.
type Session struct {
	UserID string
	Role   Role

	mu   sync.Mutex
	conn Conn
}

func (s *Session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Registry maps user ids to their open sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[*Session]struct{}
	log      logrus.FieldLogger
}

// NewRegistry creates an empty Registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		sessions: make(map[string]map[*Session]struct{}),
		log:      log,
	}
}

// Add registers a connection for userID.
func (r *Registry) Add(userID string, role Role, conn Conn) *Session {
	s := &Session{UserID: userID, Role: role, conn: conn}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userID]
	if !ok {
		set = make(map[*Session]struct{})
		r.sessions[userID] = set
	}
	set[s] = struct{}{}

	return s
}

// Remove unregisters a session and closes its connection.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	if set, ok := r.sessions[s.UserID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.sessions, s.UserID)
		}
	}
	r.mu.Unlock()

	_ = s.conn.Close()
}

// Lookup returns the open sessions of a user.
func (r *Registry) Lookup(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sessions[userID]
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Connected reports whether userID has at least one open session.
func (r *Registry) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SendToUser writes env to every session of userID. Sessions that fail to
// write are dropped.
func (r *Registry) SendToUser(ctx context.Context, userID string, env Envelope) error {
	sessions := r.Lookup(userID)
	if len(sessions) == 0 {
		return ErrNoSession
	}

	var errs []error
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.send(env); err != nil {
			r.log.WithError(err).WithField("user_id", userID).Warn("dropping realtime session after write failure")
			r.Remove(s)
			errs = append(errs, err)
		}
	}

	if len(errs) == len(sessions) {
		return errors.Join(errs...)
	}
	return nil
}

// Broadcast writes env to every session with the given role, or to all
// sessions when role is empty. It returns the number of successful writes.
func (r *Registry) Broadcast(ctx context.Context, role Role, env Envelope) int {
	r.mu.RLock()
	var targets []*Session
	for _, set := range r.sessions {
		for s := range set {
			if role == "" || s.Role == role {
				targets = append(targets, s)
			}
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if ctx.Err() != nil {
			break
		}
		if err := s.send(env); err != nil {
			r.log.WithError(err).WithField("user_id", s.UserID).Warn("dropping realtime session after write failure")
			r.Remove(s)
			continue
		}
		delivered++
	}
	return delivered
}
