package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"barobak/internal/logger"
	"barobak/internal/model"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = previous })
	return logs
}

func noSleep(context.Context, time.Duration) error { return nil }

type fakeWriter struct {
	mu        sync.Mutex
	calls     []string
	active    atomic.Int32
	maxActive atomic.Int32
	entered   chan string
	gate      chan struct{}
	err       error
	panicMsg  string
}

func (w *fakeWriter) Write(_ context.Context, saveFile, companion string) ([]string, error) {
	n := w.active.Add(1)
	defer w.active.Add(-1)
	for {
		m := w.maxActive.Load()
		if n <= m || w.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	w.mu.Lock()
	w.calls = append(w.calls, saveFile+"|"+companion)
	w.mu.Unlock()

	if w.entered != nil {
		w.entered <- filepath.Base(saveFile)
	}
	if w.gate != nil {
		<-w.gate
	}
	if w.panicMsg != "" {
		panic(w.panicMsg)
	}
	if w.err != nil {
		return nil, w.err
	}
	return []string{saveFile + ".bak"}, nil
}

func (w *fakeWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func event(dir, name string, multiplayer bool) model.ChangeEvent {
	return model.ChangeEvent{
		Name:   name,
		Path:   filepath.Join(dir, name),
		Type:   model.EventWrite,
		Target: model.WatchTarget{Dir: dir, Pattern: "*.save", Multiplayer: multiplayer},
	}
}

func waitAll(t *testing.T, d *Debouncer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("workflows did not finish: %v", err)
	}
}

func TestDebouncerSingleFlightPerName(t *testing.T) {
	observeLogs(t)
	w := &fakeWriter{gate: make(chan struct{}), entered: make(chan string, 1)}
	d := NewDebouncer(w, nil, WithSleep(noSleep))

	const n = 50
	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Handle(context.Background(), event("saves", "campaign.save", false)) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := accepted.Load(); got != 1 {
		t.Fatalf("expected exactly one accepted event, got %d", got)
	}

	<-w.entered
	if names := d.InFlight(); len(names) != 1 || names[0] != "campaign.save" {
		t.Fatalf("unexpected in-flight set %v", names)
	}

	close(w.gate)
	waitAll(t, d)

	if w.maxActive.Load() != 1 {
		t.Fatalf("expected at most one concurrent write, saw %d", w.maxActive.Load())
	}
	if w.callCount() != 1 {
		t.Fatalf("dropped events must not be queued, got %d writes", w.callCount())
	}
	if len(d.InFlight()) != 0 {
		t.Fatalf("expected in-flight set to be empty, got %v", d.InFlight())
	}
}

func TestDebouncerAcceptsAgainAfterCompletion(t *testing.T) {
	observeLogs(t)
	w := &fakeWriter{}
	d := NewDebouncer(w, nil, WithSleep(noSleep))

	if !d.Handle(context.Background(), event("saves", "a.save", false)) {
		t.Fatal("first event should be accepted")
	}
	waitAll(t, d)

	if !d.Handle(context.Background(), event("saves", "a.save", false)) {
		t.Fatal("event after completion should be accepted")
	}
	waitAll(t, d)

	if w.callCount() != 2 {
		t.Fatalf("expected 2 writes, got %d", w.callCount())
	}
}

func TestDebouncerDifferentNamesRunConcurrently(t *testing.T) {
	observeLogs(t)
	w := &fakeWriter{gate: make(chan struct{}), entered: make(chan string, 2)}
	d := NewDebouncer(w, nil, WithSleep(noSleep))

	d.Handle(context.Background(), event("saves", "a.save", false))
	d.Handle(context.Background(), event("saves", "b.save", false))

	timeout := time.After(5 * time.Second)
	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case name := <-w.entered:
			seen[name] = true
		case <-timeout:
			t.Fatalf("writes for different files did not overlap, saw %v", seen)
		}
	}

	close(w.gate)
	waitAll(t, d)

	if w.maxActive.Load() != 2 {
		t.Fatalf("expected two concurrent writes, saw %d", w.maxActive.Load())
	}
}

func TestDebouncerGracePeriodBeforeWrite(t *testing.T) {
	observeLogs(t)
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	sleep := func(_ context.Context, d time.Duration) error {
		record("sleep " + d.String())
		return nil
	}

	var got model.BackupResult
	w := &fakeWriter{}
	d := NewDebouncer(w, nil,
		WithSleep(sleep),
		WithResultHandler(func(r model.BackupResult) {
			record("result")
			got = r
		}))

	d.Handle(context.Background(), event("saves", "a.save", false))
	waitAll(t, d)

	if len(order) != 2 || order[0] != "sleep 5s" || order[1] != "result" {
		t.Fatalf("unexpected order %v", order)
	}
	if got.Status != model.StatusSuccess || len(got.Artifacts) != 1 || got.AttemptID == "" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestDebouncerRejectsEmptyName(t *testing.T) {
	logs := observeLogs(t)
	w := &fakeWriter{}
	d := NewDebouncer(w, nil, WithSleep(noSleep))

	if d.Handle(context.Background(), model.ChangeEvent{Path: "saves"}) {
		t.Fatal("expected event without name to be rejected")
	}
	waitAll(t, d)

	if w.callCount() != 0 {
		t.Fatal("no backup should be attempted")
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Fatal("expected the rejection to be logged as an error")
	}
}

func TestDebouncerWriterFailureIsContained(t *testing.T) {
	logs := observeLogs(t)
	var got model.BackupResult
	w := &fakeWriter{err: errors.New("copy abandoned after retry: disk full")}
	d := NewDebouncer(w, nil, WithSleep(noSleep), WithResultHandler(func(r model.BackupResult) { got = r }))

	d.Handle(context.Background(), event("saves", "a.save", false))
	waitAll(t, d)

	if got.Status != model.StatusFailed || got.Err == nil {
		t.Fatalf("expected failed result, got %+v", got)
	}
	if logs.FilterMessage("backup failed").Len() != 1 {
		t.Fatal("expected failure to be logged")
	}
	if len(d.InFlight()) != 0 {
		t.Fatal("in-flight slot must be released after failure")
	}
}

func TestDebouncerPanicReleasesSlot(t *testing.T) {
	observeLogs(t)
	var got model.BackupResult
	w := &fakeWriter{panicMsg: "boom"}
	d := NewDebouncer(w, nil, WithSleep(noSleep), WithResultHandler(func(r model.BackupResult) { got = r }))

	d.Handle(context.Background(), event("saves", "a.save", false))
	waitAll(t, d)

	if got.Status != model.StatusFailed {
		t.Fatalf("expected failed result, got %+v", got)
	}
	if len(d.InFlight()) != 0 {
		t.Fatal("in-flight slot must be released after panic")
	}
}

func TestDebouncerResultHandlerPanicIsContained(t *testing.T) {
	logs := observeLogs(t)
	w := &fakeWriter{}
	d := NewDebouncer(w, nil, WithSleep(noSleep), WithResultHandler(func(model.BackupResult) {
		panic("history store unavailable")
	}))

	d.Handle(context.Background(), event("saves", "a.save", false))
	waitAll(t, d)

	if n := logs.FilterMessage("result handler panicked").Len(); n != 1 {
		t.Fatalf("expected handler panic to be logged once, got %d", n)
	}
	if len(d.InFlight()) != 0 {
		t.Fatal("in-flight slot must be released when the handler panics")
	}
	if !d.Handle(context.Background(), event("saves", "a.save", false)) {
		t.Fatal("expected the name to be accepted again")
	}
	waitAll(t, d)
	if w.callCount() != 2 {
		t.Fatalf("expected 2 writes, got %d", w.callCount())
	}
}

func TestDebouncerMultiplayerMissingCompanion(t *testing.T) {
	logs := observeLogs(t)
	dir := t.TempDir()
	clock := &fakeClock{}

	resolver := NewCompanionResolver()
	resolver.sleep = clock.sleep

	var got model.BackupResult
	w := &fakeWriter{}
	d := NewDebouncer(w, resolver,
		WithSleep(noSleep),
		WithResultHandler(func(r model.BackupResult) { got = r }))

	d.Handle(context.Background(), event(dir, "mp.save", true))
	waitAll(t, d)

	if w.callCount() != 0 {
		t.Fatal("no artifact may be produced without companion data")
	}
	if got.Status != model.StatusAbandoned || !errors.Is(got.Err, ErrMissingCompanion) {
		t.Fatalf("expected abandoned result, got %+v", got)
	}
	if clock.total() != 6*time.Second {
		t.Fatalf("expected 6s of simulated polling, got %v", clock.total())
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessage("backup abandoned, character data not found").Len() != 1 {
		t.Fatal("expected abandoned attempt to be logged")
	}
}

func TestDebouncerMultiplayerWithCompanion(t *testing.T) {
	observeLogs(t)
	dir := t.TempDir()

	resolver := NewCompanionResolver()
	resolver.sleep = noSleep
	resolver.exists = func(string) bool { return true }

	w := &fakeWriter{}
	d := NewDebouncer(w, resolver, WithSleep(noSleep))

	d.Handle(context.Background(), event(dir, "mp.save", true))
	waitAll(t, d)

	want := filepath.Join(dir, "mp.save") + "|" + filepath.Join(dir, "mp_CharacterData.xml")
	if w.callCount() != 1 || w.calls[0] != want {
		t.Fatalf("unexpected writer calls %v", w.calls)
	}
}

func TestDebouncerSingleplayerSkipsCompanion(t *testing.T) {
	observeLogs(t)
	resolver := NewCompanionResolver()
	resolver.exists = func(string) bool {
		t.Error("singleplayer saves must not look for companion data")
		return false
	}

	w := &fakeWriter{}
	d := NewDebouncer(w, resolver, WithSleep(noSleep))

	d.Handle(context.Background(), event("saves", "sp.save", false))
	waitAll(t, d)

	if w.callCount() != 1 || w.calls[0] != filepath.Join("saves", "sp.save")+"|" {
		t.Fatalf("unexpected writer calls %v", w.calls)
	}
}

func TestDebouncerIgnoresCallerCancellation(t *testing.T) {
	observeLogs(t)
	w := &fakeWriter{}
	d := NewDebouncer(w, nil, WithSleep(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.Handle(ctx, event("saves", "a.save", false))
	waitAll(t, d)

	if w.callCount() != 1 {
		t.Fatal("accepted workflow must run to completion after shutdown")
	}
}
