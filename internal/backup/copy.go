package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"barobak/internal/logger"
	"barobak/internal/util"

	"go.uber.org/zap"
)

const (
	copySuffix        = ".bak"
	defaultRetryDelay = 3 * time.Second
)

type copyState int

const (
	stateFirstAttempt copyState = iota
	stateWaitRetry
	stateSecondAttempt
	stateDone
	stateAbandoned
)

type copyOp struct {
	src string
	dst string
}

// CopyWriter copies every input file to {base}-{timestamp}{ext}.bak, replacing
// an artifact of the same name. A failed copy is retried once. An abandoned
// attempt leaves none of its artifacts behind.
type CopyWriter struct {
	outputDir  string
	retryDelay time.Duration
	now        func() time.Time
	sleep      util.SleepFunc
	copyFile   func(src, dst string) error
}

func NewCopyWriter(outputDir string) *CopyWriter {
	return &CopyWriter{
		outputDir:  outputDir,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
		sleep:      util.Sleep,
		copyFile:   util.CopyFile,
	}
}

func (w *CopyWriter) Write(ctx context.Context, saveFile, companion string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan := w.plan(saveFile, companion)

	// Once I/O has started the attempt runs to completion.
	ctx = context.WithoutCancel(ctx)

	var err error
	written := make(map[string]struct{}, len(plan))
	state := stateFirstAttempt
	for {
		switch state {
		case stateFirstAttempt:
			if err = w.copyAll(plan, written); err == nil {
				state = stateDone
				continue
			}
			logger.Log.Warn("copy failed, retrying",
				zap.String("file", saveFile),
				zap.Duration("delay", w.retryDelay),
				zap.Error(err))
			state = stateWaitRetry

		case stateWaitRetry:
			_ = w.sleep(ctx, w.retryDelay)
			state = stateSecondAttempt

		case stateSecondAttempt:
			if err = w.copyAll(plan, written); err == nil {
				state = stateDone
				continue
			}
			state = stateAbandoned

		case stateDone:
			artifacts := make([]string, 0, len(plan))
			for _, op := range plan {
				artifacts = append(artifacts, op.dst)
			}
			return artifacts, nil

		case stateAbandoned:
			w.discard(written)
			return nil, fmt.Errorf("copy abandoned after retry: %w", err)
		}
	}
}

func (w *CopyWriter) plan(saveFile, companion string) []copyOp {
	ts := timestamp(w.now)

	files := []string{saveFile}
	if companion != "" {
		files = append(files, companion)
	}

	plan := make([]copyOp, 0, len(files))
	for _, f := range files {
		name := fmt.Sprintf("%s-%s%s%s", baseName(f), ts, filepath.Ext(f), copySuffix)
		plan = append(plan, copyOp{
			src: f,
			dst: filepath.Join(OutputDir(w.outputDir, f), name),
		})
	}

	return plan
}

func (w *CopyWriter) copyAll(plan []copyOp, written map[string]struct{}) error {
	for _, op := range plan {
		if err := w.copyFile(op.src, op.dst); err != nil {
			return err
		}
		written[op.dst] = struct{}{}
	}
	return nil
}

// discard removes the artifacts an abandoned attempt managed to write.
func (w *CopyWriter) discard(written map[string]struct{}) {
	for dst := range written {
		if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Log.Warn("failed to remove partial backup",
				zap.String("path", dst),
				zap.Error(err))
		}
	}
}
