package flatten

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// resultsPayload is one per-tournament results snapshot: a tournament
// envelope containing the matches scraped from its results page.
type resultsPayload struct {
	Year         int64        `json:"year"`
	TournamentID *string      `json:"tournament_id"`
	Tournament   *string      `json:"tournament_name"`
	Matches      []matchEntry `json:"matches"`
}

type matchEntry struct {
	MatchID      *string `json:"match_id"`
	Round        *string `json:"round"`
	Player1Name  *string `json:"player1_name"`
	Player1ID    *string `json:"player1_id"`
	Player1Seed  *string `json:"player1_seed"`
	Player2Name  *string `json:"player2_name"`
	Player2ID    *string `json:"player2_id"`
	Player2Seed  *string `json:"player2_seed"`
	Score        *string `json:"score"`
	StatsURL     *string `json:"url"`
}

// Results flattens a match-results snapshot: one record per match,
// parented under the tournament key "{year}-{tournament_id}". Matches
// without a match ID (no stats link yet) are keyed by round and
// player pairing so an in-progress match still has a stable identity.
func Results(snap *Snapshot) ([]Record, error) {
	env, err := ParseEnvelope(snap.Payload)
	if err != nil {
		return nil, err
	}

	var p resultsPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, fmt.Errorf("flatten: results data: %w", err)
	}
	if p.TournamentID == nil || *p.TournamentID == "" {
		return nil, fmt.Errorf("flatten: results payload without tournament_id")
	}

	parent := fmt.Sprintf("%d-%s", p.Year, *p.TournamentID)
	records := make([]Record, 0, len(p.Matches))
	for _, m := range p.Matches {
		childID := matchIdentity(m)
		if childID == "" {
			slog.Warn("flatten: match without identity skipped",
				"source_uri", snap.SourceURI, "tournament", parent)
			continue
		}

		fields := map[string]any{"year": p.Year, "match_id": childID}
		setString(fields, "tournament", p.Tournament)
		setString(fields, "round", m.Round)
		setString(fields, "player1_name", m.Player1Name)
		setString(fields, "player1_id", m.Player1ID)
		setString(fields, "player1_seed", m.Player1Seed)
		setString(fields, "player2_name", m.Player2Name)
		setString(fields, "player2_id", m.Player2ID)
		setString(fields, "player2_seed", m.Player2Seed)
		setString(fields, "stats_url", m.StatsURL)
		// An empty score means the match has not finished; keep it
		// null so the completed transition fires only on a real score.
		if m.Score != nil && *m.Score != "" {
			fields["score"] = *m.Score
		}

		records = append(records, Record{
			Key:        parent + "/" + childID,
			Parent:     parent,
			Fields:     fields,
			SourceURI:  snap.SourceURI,
			CapturedAt: snap.CapturedAt,
		})
	}
	return records, nil
}

// matchIdentity prefers the scraped match ID and falls back to a
// round + players composite for matches with no stats link yet.
func matchIdentity(m matchEntry) string {
	if m.MatchID != nil && *m.MatchID != "" {
		return *m.MatchID
	}
	if m.Round == nil || m.Player1ID == nil || m.Player2ID == nil {
		return ""
	}
	if *m.Player1ID == "" || *m.Player2ID == "" {
		return ""
	}
	return *m.Round + ":" + *m.Player1ID + ":" + *m.Player2ID
}
