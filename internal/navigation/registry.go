package navigation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"backend-taputapu/internal/logging"
	"backend-taputapu/internal/routing"
	"backend-taputapu/internal/shared/geo"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("navigation session not found")
	ErrNotOwner        = errors.New("session belongs to another device")
)

// Registry holds the open sessions of this process.
type Registry struct {
	provider  routing.Provider
	publisher Publisher
	opts      Options
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(provider routing.Provider, publisher Publisher, opts Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		provider:  provider,
		publisher: publisher,
		opts:      opts.withDefaults(),
		logger:    logger,
		sessions:  map[string]*Session{},
	}
}

// Create opens a session and starts its location watch.
func (r *Registry) Create(deviceID string, mode TravelMode) (*Session, error) {
	if mode == "" {
		mode = routing.Walking
	}
	mode, err := routing.ParseMode(string(mode))
	if err != nil {
		return nil, newError(InvalidInput, "unknown travel mode", err)
	}
	s := NewSession(uuid.NewString(), deviceID, mode, r.provider, r.publisher, r.opts, r.logger)
	if err := s.StartTracking(); err != nil {
		// the session stays usable with a manual position
		r.logger.Warn("location watch refused", "session_id", s.ID, "error", err)
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.logger.Info("navigation session created", "session_id", s.ID, "device_id", deviceID, "mode", mode)
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Owned returns the session when deviceID may modify it. An empty device id
// on either side skips the check.
func (r *Registry) Owned(id, deviceID string) (*Session, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if deviceID != "" && s.DeviceID != "" && deviceID != s.DeviceID {
		return nil, ErrNotOwner
	}
	return s, nil
}

// TapWaypoint applies a map tap at p to a session owned by deviceID.
func (r *Registry) TapWaypoint(sessionID, deviceID string, p geo.Point) (bool, error) {
	s, err := r.Owned(sessionID, deviceID)
	if err != nil {
		return false, err
	}
	return s.Tap(p)
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseIdle closes sessions inactive for longer than timeout and returns how
// many were closed.
func (r *Registry) CloseIdle(timeout time.Duration) int {
	cutoff := r.opts.Now().Add(-timeout)

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("closed idle navigation sessions", "count", len(idle))
	}
	return len(idle)
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = map[string]*Session{}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Sweep runs CloseIdle every interval until ctx is done.
func (r *Registry) Sweep(ctx context.Context, interval, timeout time.Duration) {
	if interval <= 0 || timeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CloseIdle(timeout)
		}
	}
}
