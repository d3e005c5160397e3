package courtwatch

import (
	"sort"
	"strings"

	"github.com/hazyhaar/courtwatch/changes"
	"github.com/hazyhaar/courtwatch/flatten"
	"github.com/hazyhaar/courtwatch/version"
)

// Endpoint binds a scrape target to its raw table, flattener,
// versioning mode and diff policies.
type Endpoint struct {
	Name      string
	Table     string
	Flatten   flatten.Func
	Partition version.PartitionFunc
	Policies  changes.Policies
}

// builtinEndpoints is the registry of monitored ATP endpoints.
//
//   - atp_results_archive: the per-year tournament list. Versions as a
//     single document; a tournament whose result_url goes null ->
//     non-null has finished, and a URL pointing at the live
//     scoreboard marks it ongoing.
//   - atp_tournaments: the calendar API. A reference catalog refreshed
//     wholesale; current view only, no diff policies.
//   - atp_results: per-tournament match lists. Each tournament
//     versions on its own; new match IDs and score transitions are
//     what the scheduler re-scrapes on.
func builtinEndpoints() map[string]Endpoint {
	return map[string]Endpoint{
		"atp_results_archive": {
			Name:      "atp_results_archive",
			Table:     "raw_results_archive",
			Flatten:   flatten.ResultsArchive,
			Partition: version.Global,
			Policies: changes.Policies{
				CompletedField: "result_url",
				Ongoing:        liveResultURL,
			},
		},
		"atp_tournaments": {
			Name:      "atp_tournaments",
			Table:     "raw_tournaments",
			Flatten:   flatten.Tournaments,
			Partition: version.Global,
		},
		"atp_results": {
			Name:      "atp_results",
			Table:     "raw_results",
			Flatten:   flatten.Results,
			Partition: version.ByParent,
			Policies: changes.Policies{
				CompletedField: "score",
				NewChildren:    true,
			},
		},
	}
}

// liveResultURL reports whether a tournament's result URL points at
// the live scoreboard: a "current" path segment is the sentinel the
// site uses while play is in progress.
func liveResultURL(r flatten.Record) bool {
	for _, seg := range strings.Split(r.String("result_url"), "/") {
		if seg == "current" {
			return true
		}
	}
	return false
}

// Endpoints returns the registered endpoint names, sorted.
func (s *Service) Endpoints() []string {
	names := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
