package flatten

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// The calendar API nests tournaments inside month groups. Some
// captures ship the tournament list bare, without the grouping level,
// so both shapes are accepted.

type tournamentGroup struct {
	Description string            `json:"Description"`
	Tournaments []tournamentEntry `json:"Tournaments"`
}

type tournamentEntry struct {
	ID         *string    `json:"Id"`
	Name       *string    `json:"Name"`
	Location   *string    `json:"Location"`
	Surface    *string    `json:"SurfaceDesc"`
	Indoor     *bool      `json:"IndoorOutdoor,omitempty"`
	StartDate  *string    `json:"StartDate"`
	EndDate    *string    `json:"EndDate"`
	Commitment StringList `json:"TotalFinancialCommitment"`
	DrawSize   *int64     `json:"SglDrawSize"`
}

// Tournaments flattens a tournament-calendar snapshot: one record per
// tournament, keyed by the calendar ID. The whole calendar is treated
// as a single evolving document; dedup happens globally downstream.
func Tournaments(snap *Snapshot) ([]Record, error) {
	env, err := ParseEnvelope(snap.Payload)
	if err != nil {
		return nil, err
	}

	groups, err := decodeTournamentGroups(env.Data)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, g := range groups {
		for _, e := range g.Tournaments {
			if e.ID == nil || *e.ID == "" {
				slog.Warn("flatten: calendar entry without Id skipped",
					"source_uri", snap.SourceURI, "name", deref(e.Name))
				continue
			}

			fields := map[string]any{}
			setString(fields, "name", e.Name)
			setString(fields, "location", e.Location)
			setString(fields, "surface", e.Surface)
			if e.Indoor != nil {
				fields["indoor"] = *e.Indoor
			}
			if g.Description != "" {
				fields["series"] = g.Description
			}
			if joined, ok := e.Commitment.Join(); ok {
				fields["financial_commitment"] = joined
			}
			if e.DrawSize != nil {
				fields["draw_size"] = *e.DrawSize
			}
			setDate(fields, "start_date", e.StartDate)
			setDate(fields, "end_date", e.EndDate)

			records = append(records, Record{
				Key:        *e.ID,
				Fields:     fields,
				SourceURI:  snap.SourceURI,
				CapturedAt: snap.CapturedAt,
			})
		}
	}
	return records, nil
}

// decodeTournamentGroups accepts either the grouped shape
// {"TournamentGroups": [...]} or a bare tournament array.
func decodeTournamentGroups(data json.RawMessage) ([]tournamentGroup, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var flat []tournamentEntry
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("flatten: calendar data: %w", err)
		}
		return []tournamentGroup{{Tournaments: flat}}, nil
	}

	var wrapper struct {
		TournamentGroups []tournamentGroup `json:"TournamentGroups"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("flatten: calendar data: %w", err)
	}
	if wrapper.TournamentGroups == nil {
		return nil, fmt.Errorf("flatten: calendar data has neither groups nor a tournament array")
	}
	return wrapper.TournamentGroups, nil
}

// setDate parses an RFC 3339 or date-only value into a timestamp
// field. Unparseable dates degrade to null with a warning, they never
// fail the batch.
func setDate(fields map[string]any, name string, v *string) {
	if v == nil || *v == "" {
		return
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, *v); err == nil {
			fields[name] = t.UTC()
			return
		}
	}
	slog.Warn("flatten: unparseable date left null", "field", name, "value", *v)
}
