// Package version resolves the current game release and decides which matches are current.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultFallback is used when the versions endpoint cannot be reached.
const DefaultFallback = "14.24.1"

const resolveTimeout = 15 * time.Second

// HTTPDoer issues HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Oracle holds the release identifier resolved for the current crawl session.
type Oracle struct {
	client   HTTPDoer
	url      string
	fallback string
	logger   *zap.Logger

	mu         sync.RWMutex
	current    string
	majorMinor string
}

// New creates an Oracle that reads versionsURL (a JSON array, newest first).
func New(client HTTPDoer, versionsURL, fallback string, logger *zap.Logger) *Oracle {
	if fallback == "" {
		fallback = DefaultFallback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{client: client, url: versionsURL, fallback: fallback, logger: logger}
}

// Resolve fetches the latest version, falling back to the configured constant on failure.
// It never returns an error.
func (o *Oracle) Resolve(ctx context.Context) string {
	latest, err := o.fetchLatest(ctx)
	if err != nil {
		o.logger.Warn("version lookup failed, using fallback",
			zap.String("fallback", o.fallback),
			zap.Error(err),
		)
		latest = o.fallback
	}
	mm, _ := MajorMinor(latest)

	o.mu.Lock()
	o.current = latest
	o.majorMinor = mm
	o.mu.Unlock()

	o.logger.Info("current game version resolved",
		zap.String("version", latest),
		zap.String("patch", mm),
	)
	return latest
}

// CurrentVersion returns the resolved version, or "" before Resolve.
func (o *Oracle) CurrentVersion() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// IsCurrent reports whether raw shares the resolved major.minor.
// Before a version has been resolved every candidate is accepted.
func (o *Oracle) IsCurrent(raw string) bool {
	o.mu.RLock()
	want := o.majorMinor
	o.mu.RUnlock()
	if want == "" {
		return true
	}
	got, ok := MajorMinor(raw)
	return ok && got == want
}

func (o *Oracle) fetchLatest(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return "", fmt.Errorf("build versions request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch versions: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch versions: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read versions: %w", err)
	}
	var versions []string
	if err := json.Unmarshal(body, &versions); err != nil {
		return "", fmt.Errorf("decode versions: %w", err)
	}
	if len(versions) == 0 {
		return "", errors.New("versions list is empty")
	}
	if _, ok := MajorMinor(versions[0]); !ok {
		return "", fmt.Errorf("unparsable latest version %q", versions[0])
	}
	return versions[0], nil
}

// MajorMinor returns the first two dot-separated numeric components of raw, e.g.
// "14.24.636.9802" -> "14.24". ok is false when either component is missing or
// not a number.
func MajorMinor(raw string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), ".", 3)
	if len(parts) < 2 {
		return "", false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return "", false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return "", false
	}
	return strconv.Itoa(major) + "." + strconv.Itoa(minor), true
}
