package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"barobak/internal/backup"
	"barobak/internal/logger"
	"barobak/internal/model"
	"barobak/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultGracePeriod = 5 * time.Second

// Debouncer admits at most one backup attempt per file name at a time.
// Events for a name that is already in flight are dropped, not queued.
type Debouncer struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup

	grace    time.Duration
	sleep    util.SleepFunc
	writer   backup.Writer
	resolver *CompanionResolver
	onResult func(model.BackupResult)
}

type Option func(*Debouncer)

func WithGracePeriod(d time.Duration) Option {
	return func(db *Debouncer) { db.grace = d }
}

func WithSleep(sleep util.SleepFunc) Option {
	return func(db *Debouncer) { db.sleep = sleep }
}

// WithResultHandler registers fn to receive every finished attempt. fn runs on
// the attempt's goroutine.
func WithResultHandler(fn func(model.BackupResult)) Option {
	return func(db *Debouncer) { db.onResult = fn }
}

func NewDebouncer(writer backup.Writer, resolver *CompanionResolver, opts ...Option) *Debouncer {
	d := &Debouncer{
		inFlight: make(map[string]struct{}),
		grace:    DefaultGracePeriod,
		sleep:    util.Sleep,
		writer:   writer,
		resolver: resolver,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Handle starts a backup workflow for event unless one is already running for
// the same file name. It reports whether the event was accepted. The workflow
// outlives ctx cancellation.
func (d *Debouncer) Handle(ctx context.Context, event model.ChangeEvent) bool {
	if event.Name == "" {
		logger.Log.Error("change event without file name",
			zap.String("path", event.Path))
		return false
	}

	if !d.acquire(event.Name) {
		logger.Log.Info("backup already in progress, dropping event",
			zap.String("file", event.Name),
			zap.String("type", string(event.Type)))
		return false
	}

	d.wg.Add(1)
	go d.process(context.WithoutCancel(ctx), event)

	return true
}

func (d *Debouncer) acquire(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, busy := d.inFlight[name]; busy {
		return false
	}
	d.inFlight[name] = struct{}{}
	return true
}

func (d *Debouncer) release(name string) {
	d.mu.Lock()
	delete(d.inFlight, name)
	d.mu.Unlock()
}

func (d *Debouncer) process(ctx context.Context, event model.ChangeEvent) {
	result := model.BackupResult{
		AttemptID: uuid.NewString(),
		Event:     event,
		StartedAt: time.Now(),
	}

	defer d.wg.Done()
	defer func() {
		result.FinishedAt = time.Now()
		d.report(result)
	}()
	defer d.release(event.Name)
	defer func() {
		if r := recover(); r != nil {
			result.Status = model.StatusFailed
			result.Err = fmt.Errorf("backup panicked: %v", r)
			logger.Log.Error("backup failed",
				zap.String("file", event.Name),
				zap.Error(result.Err))
		}
	}()

	d.run(ctx, &result)
}

// report hands the result to the result handler. A panicking handler is
// logged so it cannot take the service down.
func (d *Debouncer) report(result model.BackupResult) {
	if d.onResult == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("result handler panicked",
				zap.String("attempt", result.AttemptID),
				zap.String("file", result.Event.Name),
				zap.Any("panic", r))
		}
	}()

	d.onResult(result)
}

func (d *Debouncer) run(ctx context.Context, result *model.BackupResult) {
	event := result.Event

	logger.Log.Debug("performing backup",
		zap.String("attempt", result.AttemptID),
		zap.String("file", event.Name),
		zap.Bool("multiplayer", event.Target.Multiplayer))

	if err := d.sleep(ctx, d.grace); err != nil {
		result.Status = model.StatusFailed
		result.Err = err
		logger.Log.Error("backup interrupted",
			zap.String("file", event.Name),
			zap.Error(err))
		return
	}

	if event.Target.Multiplayer && d.resolver != nil {
		companion, err := d.resolver.Resolve(ctx, event.Path)
		if err != nil {
			result.Status = model.StatusAbandoned
			result.Err = err
			logger.Log.Error("backup abandoned, character data not found",
				zap.String("file", event.Name),
				zap.Error(err))
			return
		}
		result.Companion = companion
	}

	artifacts, err := d.writer.Write(ctx, event.Path, result.Companion)
	if err != nil {
		result.Status = model.StatusFailed
		result.Err = err
		logger.Log.Error("backup failed",
			zap.String("file", event.Name),
			zap.Error(err))
		return
	}

	result.Status = model.StatusSuccess
	result.Artifacts = artifacts
	logger.Log.Info("backup successful",
		zap.String("file", event.Name),
		zap.Strings("artifacts", artifacts))
}

// InFlight returns the sorted names currently being backed up.
func (d *Debouncer) InFlight() []string {
	d.mu.Lock()
	names := make([]string, 0, len(d.inFlight))
	for name := range d.inFlight {
		names = append(names, name)
	}
	d.mu.Unlock()

	slices.Sort(names)
	return names
}

// Wait blocks until every accepted workflow has finished or ctx is done.
func (d *Debouncer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
