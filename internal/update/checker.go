package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"barobak/internal/logger"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
)

const (
	LatestReleaseURL = "https://api.github.com/repos/Dimi1010/BarotraumaSaveFileBackup/releases/latest"
	ReleasesPage     = "https://github.com/Dimi1010/BarotraumaSaveFileBackup/releases"
)

var ErrNoVersion = errors.New("latest version could not be obtained")

type Checker struct {
	url       string
	userAgent string
	client    *http.Client
}

func NewChecker(userAgent string) *Checker {
	return &Checker{
		url:       LatestReleaseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type release struct {
	TagName string `json:"tag_name"`
}

// Latest fetches the newest published release version.
func (c *Checker) Latest(ctx context.Context) (*semver.Version, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrNoVersion, resp.Status)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}

	v, err := semver.NewVersion(strings.TrimPrefix(rel.TagName, "v"))
	if err != nil {
		return nil, fmt.Errorf("%w: tag %q: %v", ErrNoVersion, rel.TagName, err)
	}

	return v, nil
}

// Check logs when a release newer than current exists and returns it. It
// returns nil when current is up to date or is not a release build.
func (c *Checker) Check(ctx context.Context, current string) (*semver.Version, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		logger.Log.Error("latest product version could not be obtained",
			zap.Error(err))
		return nil, err
	}

	cur, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		logger.Log.Debug("skipping version comparison for non-release build",
			zap.String("version", current))
		return nil, nil
	}

	if !latest.GreaterThan(cur) {
		return nil, nil
	}

	logger.Log.Info("a new version is available",
		zap.String("latest", latest.String()),
		zap.String("current", cur.String()),
		zap.String("download", ReleasesPage))

	return latest, nil
}
