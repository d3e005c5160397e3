package flatten

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// archiveEntry mirrors one tournament of a results-archive snapshot.
// Pointer fields distinguish null from empty.
type archiveEntry struct {
	Year          int64      `json:"year"`
	Tournament    *string    `json:"tournament"`
	TournamentID  *string    `json:"tournament_id"`
	Category      *string    `json:"category"`
	City          *string    `json:"city"`
	Country       *string    `json:"country"`
	Dates         *string    `json:"dates"`
	SinglesWinner *string    `json:"singles_winner"`
	DoublesWinner StringList `json:"doubles_winner"`
	ResultURL     *string    `json:"url"`
}

// ResultsArchive flattens a results-archive snapshot: one record per
// tournament, keyed "{year}-{tournament_id}". Entries without a
// tournament ID carry no usable natural key and are dropped with a
// warning; every other absent field becomes a null field.
func ResultsArchive(snap *Snapshot) ([]Record, error) {
	env, err := ParseEnvelope(snap.Payload)
	if err != nil {
		return nil, err
	}

	var entries []archiveEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, fmt.Errorf("flatten: results archive data: %w", err)
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		if e.TournamentID == nil || *e.TournamentID == "" {
			slog.Warn("flatten: archive entry without tournament_id skipped",
				"source_uri", snap.SourceURI, "tournament", deref(e.Tournament))
			continue
		}

		fields := map[string]any{"year": e.Year}
		setString(fields, "tournament", e.Tournament)
		setString(fields, "category", e.Category)
		setString(fields, "city", e.City)
		setString(fields, "country", e.Country)
		setString(fields, "dates", e.Dates)
		setString(fields, "singles_winner", e.SinglesWinner)
		if joined, ok := e.DoublesWinner.Join(); ok {
			fields["doubles_winner"] = joined
		}
		setString(fields, "result_url", e.ResultURL)

		records = append(records, Record{
			Key:        fmt.Sprintf("%d-%s", e.Year, *e.TournamentID),
			Fields:     fields,
			SourceURI:  snap.SourceURI,
			CapturedAt: snap.CapturedAt,
		})
	}
	return records, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
