package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"barobak/internal/logger"
	"barobak/internal/util"

	"go.uber.org/zap"
)

const (
	CompanionSuffix = "_CharacterData.xml"

	defaultCompanionRetries  = 3
	defaultCompanionInterval = 2 * time.Second
)

var ErrMissingCompanion = errors.New("companion file missing")

// CompanionPath returns {dir}/{base}_CharacterData.xml for a save file path.
func CompanionPath(savePath string) string {
	name := filepath.Base(savePath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(filepath.Dir(savePath), base+CompanionSuffix)
}

// CompanionResolver waits for the character data file written alongside a
// multiplayer save.
type CompanionResolver struct {
	retries  int
	interval time.Duration
	sleep    util.SleepFunc
	exists   func(path string) bool
}

func NewCompanionResolver() *CompanionResolver {
	return &CompanionResolver{
		retries:  defaultCompanionRetries,
		interval: defaultCompanionInterval,
		sleep:    util.Sleep,
		exists:   util.FileExists,
	}
}

// Resolve checks for the companion and, while it is missing, sleeps and checks
// again up to retries times. The final check always follows the final sleep.
func (r *CompanionResolver) Resolve(ctx context.Context, savePath string) (string, error) {
	path := CompanionPath(savePath)

	for attempt := 0; ; attempt++ {
		if r.exists(path) {
			return path, nil
		}

		if attempt == r.retries {
			break
		}

		logger.Log.Debug("companion file not found yet",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", r.interval))

		if err := r.sleep(ctx, r.interval); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: %s", ErrMissingCompanion, path)
}
