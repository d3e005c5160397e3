package snapstore

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Snapshot keys follow the partitioned naming convention inherited
// from the scrapers:
//
//	raw/{endpoint}/{stage}/year={YYYY}/month={MM}/{YYYYMMDD_HHMMSS}.json
//
// The basename timestamp is the authoritative capture time; payload
// metadata is only a fallback when a key predates the convention.

const (
	// StageIncoming holds snapshots not yet ingested.
	StageIncoming = "incoming"
	// StageLoaded holds snapshots that have been ingested.
	StageLoaded = "loaded"

	keyTimeLayout = "20060102_150405"
)

// BuildKey returns the snapshot key for an endpoint, stage and capture
// time. The capture time is truncated to seconds, UTC.
func BuildKey(endpoint, stage string, captured time.Time) string {
	captured = captured.UTC()
	return fmt.Sprintf("raw/%s/%s/year=%04d/month=%02d/%s.json",
		endpoint, stage, captured.Year(), int(captured.Month()), captured.Format(keyTimeLayout))
}

// IncomingPrefix returns the listing prefix for an endpoint's pending
// snapshots.
func IncomingPrefix(endpoint string) string {
	return fmt.Sprintf("raw/%s/%s/", endpoint, StageIncoming)
}

// LoadedKey returns the destination key for a successfully ingested
// snapshot: same path with the stage segment switched to loaded.
func LoadedKey(key string) string {
	return strings.Replace(key, "/"+StageIncoming+"/", "/"+StageLoaded+"/", 1)
}

// ParseCaptureTime extracts the capture time from a snapshot key's
// basename. Returns an error when the basename does not carry the
// timestamp convention; callers then fall back to payload metadata.
func ParseCaptureTime(key string) (time.Time, error) {
	base := path.Base(key)
	name := strings.TrimSuffix(base, path.Ext(base))
	t, err := time.Parse(keyTimeLayout, name)
	if err != nil {
		return time.Time{}, fmt.Errorf("snapstore: no capture time in key %q: %w", key, err)
	}
	return t.UTC(), nil
}

// EndpointOf extracts the endpoint segment from a snapshot key, or ""
// when the key does not follow the convention.
func EndpointOf(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0] != "raw" {
		return ""
	}
	return parts[1]
}
