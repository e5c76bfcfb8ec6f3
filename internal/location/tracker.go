package location

import (
	"log/slog"
	"sync"
	"time"

	"backend-taputapu/internal/logging"
)

// Tracker keeps the best-known position. Every fix overwrites the previous
// one; errors are recorded but never clear the last fix.
type Tracker struct {
	source Source
	opts   WatchOptions
	logger *slog.Logger
	now    func() time.Time

	// deliver serializes fix and error handling so subscribers see updates
	// one at a time, in arrival order.
	deliver sync.Mutex

	mu      sync.Mutex
	gen     uint64
	running bool
	cancel  func()
	latest  Fix
	hasFix  bool
	lastErr error
	fixSubs []func(Fix)
	errSubs []func(error)
}

func NewTracker(source Source, opts WatchOptions, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Tracker{
		source: source,
		opts:   opts,
		logger: logger.With("component", "location_tracker"),
		now:    time.Now,
	}
}

// Subscribe registers fn for every accepted fix.
func (t *Tracker) Subscribe(fn func(Fix)) {
	t.mu.Lock()
	t.fixSubs = append(t.fixSubs, fn)
	t.mu.Unlock()
}

// OnError registers fn for watcher errors, already classified.
func (t *Tracker) OnError(fn func(error)) {
	t.mu.Lock()
	t.errSubs = append(t.errSubs, fn)
	t.mu.Unlock()
}

// Start begins observing the source. A refused watch is recorded and
// reported to error subscribers; the tracker stays usable.
func (t *Tracker) Start() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	cancel, err := t.source.Watch(t.opts,
		func(f Fix) { t.handleFix(gen, f, false) },
		func(err error) { t.handleError(gen, err) },
	)
	if err != nil {
		t.handleError(gen, err)
		return Classify(err)
	}

	t.mu.Lock()
	if t.gen != gen {
		// stopped while Watch was running
		t.mu.Unlock()
		cancel()
		return nil
	}
	t.running = true
	t.cancel = cancel
	t.mu.Unlock()
	t.logger.Debug("location watch started", "high_accuracy", t.opts.HighAccuracy)
	return nil
}

// Stop cancels the subscription. Callbacks of the old watch are ignored
// from here on. Calling Stop twice is harmless.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.gen++
	cancel := t.cancel
	wasRunning := t.running
	t.cancel = nil
	t.running = false
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasRunning {
		t.logger.Debug("location watch stopped")
	}
}

func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Latest returns the most recent fix and whether one was ever received.
func (t *Tracker) Latest() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.hasFix
}

// LastError returns the classified error of the most recent failure.
func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Override applies a manually chosen position as if it were a fix. It is the
// recovery path when the device cannot provide one.
func (t *Tracker) Override(f Fix) {
	t.handleFix(0, f, true)
}

func (t *Tracker) handleFix(gen uint64, f Fix, manual bool) {
	t.deliver.Lock()
	defer t.deliver.Unlock()

	t.mu.Lock()
	if !manual && gen != t.gen {
		t.mu.Unlock()
		return
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = t.now()
	}
	t.latest = f
	t.hasFix = true
	t.lastErr = nil
	subs := append([]func(Fix){}, t.fixSubs...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(f)
	}
}

func (t *Tracker) handleError(gen uint64, err error) {
	t.deliver.Lock()
	defer t.deliver.Unlock()

	kind := Classify(err)
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.lastErr = kind
	subs := append([]func(error){}, t.errSubs...)
	t.mu.Unlock()

	t.logger.Warn("location error", "error", err, "kind", kind.Error())
	for _, fn := range subs {
		fn(kind)
	}
}
