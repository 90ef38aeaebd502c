// Package backup writes timestamped backup artifacts for a save file and its
// optional companion file.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout renders local time as yyyy-MM-dd--HH-mm-ss.
const TimestampLayout = "2006-01-02--15-04-05"

var ErrArtifactExists = errors.New("backup artifact already exists")

type Strategy string

const (
	StrategyCopy    Strategy = "copy"
	StrategyArchive Strategy = "archive"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyCopy:
		return StrategyCopy, nil
	case StrategyArchive, "zip":
		return StrategyArchive, nil
	default:
		return "", fmt.Errorf("unknown backup strategy %q", s)
	}
}

// Writer persists one backup artifact set. companion may be empty.
// It returns the paths of the artifacts it produced.
type Writer interface {
	Write(ctx context.Context, saveFile, companion string) ([]string, error)
}

// New builds the writer for strategy. An empty outputDir means every artifact
// lands next to its source file.
func New(strategy Strategy, outputDir string) (Writer, error) {
	if outputDir != "" {
		info, err := os.Stat(outputDir)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("'%s' cannot be found or is not a directory", outputDir)
		}
	}

	switch strategy {
	case StrategyCopy:
		return NewCopyWriter(outputDir), nil
	case StrategyArchive:
		return NewArchiveWriter(outputDir), nil
	default:
		return nil, fmt.Errorf("unknown backup strategy %q", strategy)
	}
}

// OutputDir applies the shared placement policy.
func OutputDir(configured, file string) string {
	if configured != "" {
		return configured
	}
	return filepath.Dir(file)
}

func baseName(file string) string {
	name := filepath.Base(file)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func timestamp(now func() time.Time) string {
	return now().Format(TimestampLayout)
}
