package location

import "sync"

type WatchOptions struct {
	HighAccuracy bool
}

// Source is a watch-position style subscription. Watch delivers fixes and
// errors through the callbacks until cancel is called.
type Source interface {
	Watch(opts WatchOptions, onFix func(Fix), onError func(error)) (cancel func(), err error)
}

// PushSource is a Source fed from outside, typically by the HTTP layer
// relaying the browser's position updates.
type PushSource struct {
	mu       sync.Mutex
	onFix    func(Fix)
	onError  func(error)
	denyWith error
	opts     WatchOptions
	watchID  uint64
}

func NewPushSource() *PushSource {
	return &PushSource{}
}

func (s *PushSource) Watch(opts WatchOptions, onFix func(Fix), onError func(error)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.denyWith != nil {
		return nil, s.denyWith
	}
	s.watchID++
	id := s.watchID
	s.onFix, s.onError, s.opts = onFix, onError, opts

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.watchID == id {
			s.onFix, s.onError = nil, nil
		}
	}, nil
}

// Deny makes subsequent Watch calls fail with err; nil lifts the denial.
func (s *PushSource) Deny(err error) {
	s.mu.Lock()
	s.denyWith = err
	s.mu.Unlock()
}

// Watching reports whether a subscriber is attached.
func (s *PushSource) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onFix != nil
}

func (s *PushSource) Options() WatchOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Push forwards a fix to the watcher. It returns false when nobody watches.
func (s *PushSource) Push(f Fix) bool {
	s.mu.Lock()
	fn := s.onFix
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(f)
	return true
}

// Fail forwards an error to the watcher. It returns false when nobody watches.
func (s *PushSource) Fail(err error) bool {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(err)
	return true
}
