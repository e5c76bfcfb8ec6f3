package location

import (
	"errors"
	"sync"
	"testing"
	"time"

	"backend-taputapu/internal/shared/geo"
)

func speed(v float64) *float64 { return &v }

func TestTrackerDeliversLatestFix(t *testing.T) {
	src := NewPushSource()
	tr := NewTracker(src, WatchOptions{HighAccuracy: true}, nil)

	if _, ok := tr.Latest(); ok {
		t.Fatalf("expected no fix before start")
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !src.Options().HighAccuracy {
		t.Fatalf("expected high accuracy watch")
	}

	var got []Fix
	tr.Subscribe(func(f Fix) { got = append(got, f) })

	src.Push(Fix{Point: geo.Point{Lat: 54.68, Lng: 25.27}, AccuracyMeters: 8})
	src.Push(Fix{Point: geo.Point{Lat: 54.69, Lng: 25.28}, AccuracyMeters: 5, Speed: speed(1.2)})

	latest, ok := tr.Latest()
	if !ok {
		t.Fatalf("expected fix")
	}
	if latest.Point.Lat != 54.69 || latest.SpeedMps() != 1.2 {
		t.Fatalf("latest fix not overwritten: %+v", latest)
	}
	if latest.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be stamped")
	}
	if len(got) != 2 || got[0].Point.Lat != 54.68 {
		t.Fatalf("subscriber saw %d fixes in wrong order", len(got))
	}
}

func TestTrackerStartDenied(t *testing.T) {
	src := NewPushSource()
	src.Deny(ErrPermissionDenied)
	tr := NewTracker(src, WatchOptions{}, nil)

	var reported error
	tr.OnError(func(err error) { reported = err })

	err := tr.Start()
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if !errors.Is(reported, ErrPermissionDenied) || !errors.Is(tr.LastError(), ErrPermissionDenied) {
		t.Fatalf("expected error to be reported")
	}
	if tr.Running() {
		t.Fatalf("tracker must not be running after denial")
	}

	src.Deny(nil)
	if err := tr.Start(); err != nil {
		t.Fatalf("start after permission granted: %v", err)
	}
}

func TestTrackerErrorsKeepPriorFix(t *testing.T) {
	src := NewPushSource()
	tr := NewTracker(src, WatchOptions{}, nil)
	_ = tr.Start()

	src.Push(Fix{Point: geo.Point{Lat: 1, Lng: 2}})
	src.Fail(ErrTimeout)

	if !errors.Is(tr.LastError(), ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", tr.LastError())
	}
	f, ok := tr.Latest()
	if !ok || f.Point.Lat != 1 {
		t.Fatalf("prior fix lost after error")
	}

	src.Fail(errors.New("gps chip on fire"))
	if !errors.Is(tr.LastError(), ErrUnavailable) {
		t.Fatalf("unknown errors classify as unavailable")
	}

	src.Push(Fix{Point: geo.Point{Lat: 3, Lng: 4}})
	if tr.LastError() != nil {
		t.Fatalf("a new fix clears the error state")
	}
}

func TestTrackerStopIsIdempotentAndCancels(t *testing.T) {
	src := NewPushSource()
	tr := NewTracker(src, WatchOptions{}, nil)
	_ = tr.Start()

	calls := 0
	tr.Subscribe(func(Fix) { calls++ })

	tr.Stop()
	tr.Stop()
	if src.Watching() {
		t.Fatalf("expected subscription cancelled")
	}
	if src.Push(Fix{Point: geo.Point{Lat: 1, Lng: 1}}) {
		t.Fatalf("push should report no watcher")
	}
	if calls != 0 {
		t.Fatalf("no callbacks after stop")
	}
}

func TestTrackerIgnoresStaleWatchCallbacks(t *testing.T) {
	var captured func(Fix)
	src := watchFunc(func(_ WatchOptions, onFix func(Fix), _ func(error)) (func(), error) {
		captured = onFix
		return func() {}, nil
	})
	tr := NewTracker(src, WatchOptions{}, nil)
	_ = tr.Start()
	old := captured
	tr.Stop()

	old(Fix{Point: geo.Point{Lat: 9, Lng: 9}})
	if _, ok := tr.Latest(); ok {
		t.Fatalf("callback of a cancelled watch must be ignored")
	}
}

func TestTrackerOverride(t *testing.T) {
	tr := NewTracker(NewPushSource(), WatchOptions{}, nil)
	tr.Override(Fix{Point: geo.Point{Lat: 54.1, Lng: 25.1}})
	f, ok := tr.Latest()
	if !ok || f.Point.Lat != 54.1 {
		t.Fatalf("manual position not applied")
	}
}

func TestTrackerSerializesConcurrentPushes(t *testing.T) {
	src := NewPushSource()
	tr := NewTracker(src, WatchOptions{}, nil)
	_ = tr.Start()

	var inFlight, maxInFlight int
	var mu sync.Mutex
	tr.Subscribe(func(Fix) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src.Push(Fix{Point: geo.Point{Lat: float64(i), Lng: 0}})
		}(i)
	}
	wg.Wait()
	if maxInFlight != 1 {
		t.Fatalf("fixes must be applied one at a time, saw %d concurrent", maxInFlight)
	}
}

func TestParseError(t *testing.T) {
	cases := []struct {
		code int
		name string
		want error
	}{
		{1, "", ErrPermissionDenied},
		{2, "", ErrUnavailable},
		{3, "", ErrTimeout},
		{0, "PERMISSION_DENIED", ErrPermissionDenied},
		{0, "timeout", ErrTimeout},
		{0, "POSITION_UNAVAILABLE", ErrUnavailable},
	}
	for _, c := range cases {
		if got := ParseError(c.code, c.name); got != c.want {
			t.Fatalf("ParseError(%d,%q) = %v, want %v", c.code, c.name, got, c.want)
		}
	}
}

func TestFixValidate(t *testing.T) {
	if err := (Fix{Point: geo.Point{Lat: 10, Lng: 10}}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Fix{Point: geo.Point{Lat: 100}}).Validate(); err == nil {
		t.Fatalf("expected invalid latitude")
	}
	if err := (Fix{AccuracyMeters: -1}).Validate(); err == nil {
		t.Fatalf("expected invalid accuracy")
	}
	if (Fix{Speed: speed(-1)}).SpeedMps() != 0 {
		t.Fatalf("negative speed is unknown")
	}
}

type watchFunc func(WatchOptions, func(Fix), func(error)) (func(), error)

func (f watchFunc) Watch(opts WatchOptions, onFix func(Fix), onError func(error)) (func(), error) {
	return f(opts, onFix, onError)
}
