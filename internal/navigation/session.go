package navigation

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"backend-taputapu/internal/location"
	"backend-taputapu/internal/logging"
	"backend-taputapu/internal/routing"
	"backend-taputapu/internal/shared/geo"
)

type ViewMode string

const (
	Idle          ViewMode = "idle"
	RoutePlanning ViewMode = "routePlanning"
	Navigating    ViewMode = "navigating"
	Assistance    ViewMode = "assistance"
)

// Publisher receives every state change as a JSON snapshot. stream.Hub
// satisfies it.
type Publisher interface {
	Broadcast(sessionID string, payload []byte)
}

type Options struct {
	// Fallback substitutes a direct-line candidate when routing fails.
	Fallback          bool
	// RerouteThresholdM is the origin drift that triggers a refetch once a
	// route exists. Zero refetches on every position change.
	RerouteThresholdM float64
	NoticeTTL         time.Duration
	FetchTimeout      time.Duration
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if o.NoticeTTL <= 0 {
		o.NoticeTTL = 4 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	if o.RerouteThresholdM < 0 {
		o.RerouteThresholdM = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Notice struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SOS struct {
	Since    time.Time  `json:"since"`
	Position *geo.Point `json:"position,omitempty"`
	Accuracy float64    `json:"accuracy_m,omitempty"`
}

// LegView is one highlighted leg of a candidate.
type LegView struct {
	Candidate      int         `json:"candidate"`
	Leg            int         `json:"leg"`
	Points         []geo.Point `json:"points"`
	DistanceMeters float64     `json:"distance_m"`
}

type Snapshot struct {
	SessionID     string              `json:"session_id"`
	Version       uint64              `json:"version"`
	Event         string              `json:"event"`
	View          ViewMode            `json:"view"`
	Mode          TravelMode          `json:"mode"`
	Builder       bool                `json:"builder"`
	Waypoints     []geo.Point         `json:"waypoints"`
	Candidates    []routing.Candidate `json:"candidates"`
	Selected      int                 `json:"selected"`
	Fetching      bool                `json:"fetching"`
	Position      *location.Fix       `json:"position,omitempty"`
	LocationError ErrorKind           `json:"location_error,omitempty"`
	Stats         *TripStats          `json:"stats,omitempty"`
	Recording     RecordingStatus     `json:"recording"`
	Notice        *Notice             `json:"notice,omitempty"`
	Assistance    *SOS                `json:"assistance,omitempty"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Session owns the state of one navigation screen: tracker, waypoints,
// route candidates, view mode and live stats. Every mutation happens under
// mu, route responses included, so the session behaves as a single
// serialization point.
type Session struct {
	ID       string
	DeviceID string

	source    *location.PushSource
	tracker   *location.Tracker
	provider  routing.Provider
	publisher Publisher
	opts      Options
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	version    uint64
	lastActive time.Time

	view      ViewMode
	mode      TravelMode
	builder   bool
	waypoints []geo.Point

	candidates []routing.Candidate
	selected   int
	seq        uint64 // latest issued route request
	inFlight   int
	origin     geo.Point
	hasOrigin  bool // a request was issued for the current waypoints

	recorder Recorder
	stats    *TripStats
	notice   *Notice
	sos      *SOS
}

func NewSession(id, deviceID string, mode TravelMode, provider routing.Provider, publisher Publisher, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	if mode == "" {
		mode = routing.Walking
	}
	opts = opts.withDefaults()
	logger = logger.With("component", "navigation_session", "session_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	src := location.NewPushSource()
	s := &Session{
		ID:         id,
		DeviceID:   deviceID,
		source:     src,
		tracker:    location.NewTracker(src, location.WatchOptions{HighAccuracy: true}, logger),
		provider:   provider,
		publisher:  publisher,
		opts:       opts,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		view:       Idle,
		mode:       mode,
		lastActive: opts.Now(),
	}
	s.tracker.Subscribe(s.onFix)
	s.tracker.OnError(s.onLocationError)
	return s
}

// Source is the push side of the session's location watch.
func (s *Session) Source() *location.PushSource { return s.source }

func (s *Session) Tracker() *location.Tracker { return s.tracker }

// StartTracking starts the location watch. A refusal becomes a notice.
func (s *Session) StartTracking() error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.tracker.Start()
}

func (s *Session) StopTracking() {
	s.tracker.Stop()
	s.publish("tracking_stopped")
}

// SetManualPosition applies a user-chosen position, the recovery path when
// the device cannot locate itself.
func (s *Session) SetManualPosition(p geo.Point) error {
	if !p.Valid() {
		return newError(InvalidInput, "invalid position", nil)
	}
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.tracker.Override(location.Fix{Point: p, Timestamp: s.opts.Now()})
	return nil
}

func (s *Session) SetWaypoints(points []geo.Point) error {
	for _, p := range points {
		if !p.Valid() {
			return newError(InvalidInput, "invalid waypoint", nil)
		}
	}
	return s.mutate("waypoints", func() error {
		if err := s.editableLocked(); err != nil {
			return err
		}
		s.waypoints = append([]geo.Point(nil), points...)
		s.waypointsChangedLocked()
		return nil
	})
}

func (s *Session) AppendWaypoint(p geo.Point) error {
	if !p.Valid() {
		return newError(InvalidInput, "invalid waypoint", nil)
	}
	return s.mutate("waypoints", func() error {
		if err := s.editableLocked(); err != nil {
			return err
		}
		s.waypoints = append(s.waypoints, p)
		s.waypointsChangedLocked()
		return nil
	})
}

// UndoLast removes the final waypoint; it is a no-op on an empty list.
func (s *Session) UndoLast() error {
	return s.mutate("waypoints", func() error {
		if err := s.editableLocked(); err != nil {
			return err
		}
		if len(s.waypoints) == 0 {
			return nil
		}
		s.waypoints = s.waypoints[:len(s.waypoints)-1]
		s.waypointsChangedLocked()
		return nil
	})
}

// MoveWaypoint relocates waypoint i, as when its marker is dragged.
func (s *Session) MoveWaypoint(i int, p geo.Point) error {
	if !p.Valid() {
		return newError(InvalidInput, "invalid waypoint", nil)
	}
	return s.mutate("waypoints", func() error {
		if err := s.editableLocked(); err != nil {
			return err
		}
		if i < 0 || i >= len(s.waypoints) {
			return ErrIndexOutOfRange
		}
		s.waypoints[i] = p
		s.waypointsChangedLocked()
		return nil
	})
}

// Tap handles a map tap: in builder mode it appends a stop, otherwise it
// replaces the destination. Taps are ignored while navigating or during
// assistance; the result reports whether the tap was applied.
func (s *Session) Tap(p geo.Point) (bool, error) {
	if !p.Valid() {
		return false, newError(InvalidInput, "invalid position", nil)
	}
	applied := false
	err := s.mutate("tap", func() error {
		if s.view == Navigating || s.view == Assistance {
			return nil
		}
		if s.builder {
			s.waypoints = append(s.waypoints, p)
		} else {
			s.waypoints = []geo.Point{p}
		}
		applied = true
		s.waypointsChangedLocked()
		return nil
	})
	return applied, err
}

// ClearRoute drops waypoints and candidates and returns to idle from any
// state but assistance.
func (s *Session) ClearRoute() error {
	return s.mutate("cleared", func() error {
		if s.view == Assistance {
			return errAssistanceActive
		}
		s.resetRouteLocked()
		s.view = Idle
		return nil
	})
}

func (s *Session) SetTravelMode(m TravelMode) error {
	m, err := routing.ParseMode(string(m))
	if err != nil {
		return newError(InvalidInput, "unknown travel mode", err)
	}
	return s.mutate("mode", func() error {
		if s.mode == m {
			return nil
		}
		s.mode = m
		s.hasOrigin = false
		s.refreshLocked()
		return nil
	})
}

func (s *Session) SetBuilderMode(on bool) error {
	return s.mutate("builder", func() error {
		s.builder = on
		return nil
	})
}

// SelectCandidate picks a route alternative. Out of range indices leave the
// selection unchanged.
func (s *Session) SelectCandidate(i int) error {
	return s.mutate("selection", func() error {
		if i < 0 || i >= len(s.candidates) {
			return ErrIndexOutOfRange
		}
		s.selected = i
		s.recomputeStatsLocked()
		return nil
	})
}

// Leg returns the geometry of one leg of a candidate with its length.
func (s *Session) Leg(candidate, leg int) (LegView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if candidate < 0 || candidate >= len(s.candidates) {
		return LegView{}, ErrIndexOutOfRange
	}
	points, ok := s.candidates[candidate].Leg(leg)
	if !ok {
		return LegView{}, ErrIndexOutOfRange
	}
	return LegView{
		Candidate:      candidate,
		Leg:            leg,
		Points:         append([]geo.Point(nil), points...),
		DistanceMeters: geo.PathLength(points),
	}, nil
}

// StartNavigation moves routePlanning to navigating. Without a candidate it
// changes nothing and returns ErrNoRoute.
func (s *Session) StartNavigation() error {
	return s.mutate("navigating", func() error {
		switch s.view {
		case Navigating:
			return nil
		case RoutePlanning:
		default:
			return newError(NoRoute, "no route is being planned", nil)
		}
		if len(s.candidates) == 0 {
			return ErrNoRoute
		}
		s.view = Navigating
		s.recomputeStatsLocked()
		return nil
	})
}

// StopNavigation ends or cancels the route and returns to idle.
func (s *Session) StopNavigation() error {
	return s.mutate("stopped", func() error {
		if s.view != Navigating {
			return nil
		}
		s.resetRouteLocked()
		s.view = Idle
		return nil
	})
}

// EnterAssistance switches to the SOS flow from any state. Waypoints and
// candidates are discarded; leaving assistance returns to idle.
func (s *Session) EnterAssistance() (SOS, error) {
	var sos SOS
	err := s.mutate("assistance", func() error {
		if s.view == Assistance && s.sos != nil {
			sos = *s.sos
			return nil
		}
		s.resetRouteLocked()
		s.view = Assistance
		sos = SOS{Since: s.opts.Now()}
		if fix, ok := s.tracker.Latest(); ok {
			p := fix.Point
			sos.Position = &p
			sos.Accuracy = fix.AccuracyMeters
		}
		s.sos = &sos
		s.logger.Warn("assistance requested", "has_position", sos.Position != nil)
		return nil
	})
	return sos, err
}

func (s *Session) ExitAssistance() error {
	return s.mutate("idle", func() error {
		if s.view != Assistance {
			return nil
		}
		s.sos = nil
		s.view = Idle
		return nil
	})
}

func (s *Session) StartRecording() error {
	return s.mutate("recording", func() error {
		if s.recorder.Active() {
			return nil
		}
		s.recorder.Start(s.opts.Now())
		if fix, ok := s.tracker.Latest(); ok {
			s.recorder.Add(fix)
		}
		return nil
	})
}

// StopRecording finishes the recording. ok is false when none was active.
func (s *Session) StopRecording() (rec Recording, ok bool, err error) {
	err = s.mutate("recording_stopped", func() error {
		rec, ok = s.recorder.Stop(s.opts.Now(), s.mode)
		return nil
	})
	return rec, ok, err
}

// PeekRecording summarises the active recording without ending it.
func (s *Session) PeekRecording() (Recording, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder.Summary(s.opts.Now(), s.mode)
}

// Stats returns the last computed trip stats, if navigating.
func (s *Session) Stats() (TripStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		return TripStats{}, false
	}
	return *s.stats, true
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked("snapshot")
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Wait blocks until in-flight route requests have completed.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops the tracker and discards any in-flight responses.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.seq++
	s.mu.Unlock()

	s.tracker.Stop()
	s.cancel()
	s.logger.Debug("session closed")
}

var errAssistanceActive = newError(InvalidInput, "route editing is suspended during assistance", nil)

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// mutate runs fn under the lock and publishes a snapshot when it succeeds.
func (s *Session) mutate(event string, fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastActive = s.opts.Now()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	payload := s.encodeLocked(event)
	s.mu.Unlock()

	s.send(payload)
	return nil
}

func (s *Session) publish(event string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	payload := s.encodeLocked(event)
	s.mu.Unlock()
	s.send(payload)
}

func (s *Session) send(payload []byte) {
	if s.publisher != nil && payload != nil {
		s.publisher.Broadcast(s.ID, payload)
	}
}

func (s *Session) editableLocked() error {
	if s.view == Assistance {
		return errAssistanceActive
	}
	return nil
}

func (s *Session) waypointsChangedLocked() {
	s.selected = 0
	s.hasOrigin = false
	switch {
	case len(s.waypoints) == 0 && s.view != Assistance:
		s.view = Idle
		s.stats = nil
	case s.view == Idle:
		s.view = RoutePlanning
	}
	s.refreshLocked()
}

func (s *Session) resetRouteLocked() {
	s.waypoints = nil
	s.candidates = nil
	s.selected = 0
	s.hasOrigin = false
	s.stats = nil
	s.seq++ // responses still in flight belong to the discarded route
}

// refreshLocked issues a route request for the current waypoints from the
// latest position. Without waypoints or a position there is nothing to ask
// for and candidates are cleared.
func (s *Session) refreshLocked() {
	if len(s.waypoints) == 0 {
		s.candidates = nil
		s.selected = 0
		s.seq++
		return
	}
	fix, ok := s.tracker.Latest()
	if !ok {
		s.candidates = nil
		s.selected = 0
		s.seq++
		return
	}

	s.seq++
	seq := s.seq
	s.origin = fix.Point
	s.hasOrigin = true
	req := routing.Request{
		Mode:   s.mode,
		Points: append([]geo.Point{fix.Point}, s.waypoints...),
	}

	s.inFlight++
	s.wg.Add(1)
	go s.fetch(seq, req)
}

func (s *Session) fetch(seq uint64, req routing.Request) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.FetchTimeout)
	defer cancel()
	start := time.Now()
	candidates, err := s.provider.Route(ctx, req)

	s.mu.Lock()
	s.inFlight--
	if s.closed {
		s.mu.Unlock()
		return
	}
	if seq != s.seq {
		s.mu.Unlock()
		s.logger.Debug(ErrStaleResponse.Error(), "seq", seq, "latest", s.seq)
		return
	}

	event := "route"
	if err != nil {
		event = "route_failed"
		s.applyFailureLocked(req, err)
	} else {
		s.candidates = candidates
		if s.selected >= len(s.candidates) {
			s.selected = 0
		}
	}
	s.recomputeStatsLocked()
	payload := s.encodeLocked(event)
	s.mu.Unlock()

	logging.LogOperation(s.logger, "route_fetch",
		slog.Uint64("seq", seq),
		slog.Int("stops", req.Stops()),
		slog.Int("candidates", len(candidates)),
		slog.Bool("failed", err != nil),
		slog.Duration("duration", time.Since(start)),
	)
	s.send(payload)
}

func (s *Session) applyFailureLocked(req routing.Request, err error) {
	logging.LogError(s.logger, "route request failed", err,
		slog.String("mode", string(req.Mode)),
		slog.Int("stops", req.Stops()),
	)
	s.candidates = nil
	s.selected = 0

	msg := "Route not found"
	if s.opts.Fallback {
		if c, ok := routing.DirectLine(req); ok {
			s.candidates = []routing.Candidate{c}
			msg = "Route not found, showing straight-line estimate"
		}
	}
	msg += ": " + err.Error()
	s.noticeLocked(RouteUnavailable, msg)
}

func (s *Session) onFix(fix location.Fix) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.lastActive = s.opts.Now()

	s.recorder.Add(fix)

	switch {
	case len(s.waypoints) == 0:
	case !s.hasOrigin:
		s.refreshLocked()
	case geo.Distance(s.origin, fix.Point) > s.opts.RerouteThresholdM:
		s.refreshLocked()
	}
	s.recomputeStatsLocked()
	payload := s.encodeLocked("fix")
	s.mu.Unlock()

	s.send(payload)
}

func (s *Session) onLocationError(err error) {
	kind := KindOf(err)
	var msg string
	switch kind {
	case PermissionDenied:
		msg = "Location permission denied, set your position on the map"
	case LocationTimeout:
		msg = "Location request timed out"
	default:
		msg = "Location unavailable"
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.noticeLocked(kind, msg)
	payload := s.encodeLocked("location_error")
	s.mu.Unlock()
	s.send(payload)
}

func (s *Session) noticeLocked(kind ErrorKind, msg string) {
	s.notice = &Notice{Kind: kind, Message: msg, ExpiresAt: s.opts.Now().Add(s.opts.NoticeTTL)}
}

// recomputeStatsLocked refreshes stats while navigating. The destination is
// the end of the selected candidate, or the last waypoint without one.
func (s *Session) recomputeStatsLocked() {
	if s.view != Navigating {
		s.stats = nil
		return
	}
	fix, ok := s.tracker.Latest()
	if !ok {
		return
	}
	var dest geo.Point
	var found bool
	if s.selected < len(s.candidates) {
		dest, found = s.candidates[s.selected].Destination()
	}
	if !found && len(s.waypoints) > 0 {
		dest, found = s.waypoints[len(s.waypoints)-1], true
	}
	if !found {
		return
	}
	st := Compute(fix, dest, s.recorder.Distance(), s.mode)
	s.stats = &st
}

func (s *Session) snapshotLocked(event string) Snapshot {
	now := s.opts.Now()
	snap := Snapshot{
		SessionID:  s.ID,
		Version:    s.version,
		Event:      event,
		View:       s.view,
		Mode:       s.mode,
		Builder:    s.builder,
		Waypoints:  append([]geo.Point{}, s.waypoints...),
		Candidates: append([]routing.Candidate{}, s.candidates...),
		Selected:   s.selected,
		Fetching:   s.inFlight > 0,
		Recording:  s.recorder.Status(),
		UpdatedAt:  now,
	}
	if fix, ok := s.tracker.Latest(); ok {
		snap.Position = &fix
	}
	if err := s.tracker.LastError(); err != nil {
		snap.LocationError = KindOf(err)
	}
	if s.stats != nil {
		st := *s.stats
		snap.Stats = &st
	}
	if s.notice != nil && now.Before(s.notice.ExpiresAt) {
		n := *s.notice
		snap.Notice = &n
	}
	if s.sos != nil {
		sos := *s.sos
		snap.Assistance = &sos
	}
	return snap
}

func (s *Session) encodeLocked(event string) []byte {
	s.version++
	if s.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(s.snapshotLocked(event))
	if err != nil {
		logging.LogError(s.logger, "encode snapshot", err)
		return nil
	}
	return payload
}
