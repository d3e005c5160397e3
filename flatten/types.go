// Package flatten converts snapshot payloads into flat entity records.
//
// Every function here is pure: records are a deterministic function of
// the snapshot bytes plus the provenance already attached to the
// snapshot, so they can be recomputed from stored history at any time.
// Flattening has no notion of "latest"; recency is resolved later
// from the capture time each record carries.
package flatten

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is one immutable captured payload, tagged with provenance.
type Snapshot struct {
	SourceURI  string
	Endpoint   string
	CapturedAt time.Time
	Payload    []byte
}

// Record is a flat entity derived from one snapshot. Fields values are
// string, int64, bool or time.Time; an absent map key is a null field.
type Record struct {
	Key        string         // natural key, stable across snapshots
	Parent     string         // parent key for child entities, "" for top-level
	Fields     map[string]any // typed values; missing key = null
	SourceURI  string
	CapturedAt time.Time
}

// Field returns a field value, or nil when the field is null.
func (r Record) Field(name string) any {
	return r.Fields[name]
}

// IsNull reports whether the field is absent or null.
func (r Record) IsNull(name string) bool {
	_, ok := r.Fields[name]
	return !ok
}

// String returns a string field, or "" when null or not a string.
func (r Record) String(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

// Func is the flattening contract: one snapshot in, flat records out.
type Func func(snap *Snapshot) ([]Record, error)

// Envelope is the wrapper every scraper writes around its payload.
type Envelope struct {
	Metadata struct {
		RetrievedAt string `json:"retrieved_at"`
		SourceURL   string `json:"source_url"`
	} `json:"metadata"`
	Data json.RawMessage `json:"data"`
}

// ParseEnvelope decodes a snapshot payload. A payload without a data
// member is malformed: the whole file is rejected, nothing partial.
func ParseEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("flatten: malformed payload: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("flatten: payload has no data member")
	}
	return &env, nil
}

// RetrievedAt returns the payload-side capture time, when present.
// It is the fallback for keys that carry no path timestamp.
func (e *Envelope) RetrievedAt() (time.Time, bool) {
	if e.Metadata.RetrievedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, e.Metadata.RetrievedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// setString adds a string field unless the source value was null.
func setString(fields map[string]any, name string, v *string) {
	if v != nil {
		fields[name] = *v
	}
}
