// Package version resolves record recency: within each partition it
// dense-ranks the distinct capture times present, descending, and
// exposes the rank-1 ("current") and rank-2 ("previous") record sets.
//
// Rows sharing a capture time share a rank. When two snapshot files
// share a capture time, collapsing to one row per key prefers the
// lexically greater source URI, a deterministic tie-break instead of
// an undefined one.
package version

import (
	"sort"

	"github.com/hazyhaar/courtwatch/flatten"
)

// PartitionFunc maps a record to its partition key.
type PartitionFunc func(flatten.Record) string

// Global puts every record in one partition: the dataset versions as a
// single evolving document (global-latest mode).
func Global(flatten.Record) string { return "" }

// ByKey partitions per natural key: each entity gains its own
// authoritative latest over time (per-key-latest mode).
func ByKey(r flatten.Record) string { return r.Key }

// ByParent partitions child records by their parent entity, so a
// parent's whole child collection versions together.
func ByParent(r flatten.Record) string { return r.Parent }

// Resolution holds the rank-1 and rank-2 record sets across all
// partitions, one row per key, sorted by key. Previous is nil for a
// history with no second distinct capture time anywhere: "no prior
// version", never an empty-but-present previous state.
type Resolution struct {
	Current  []flatten.Record
	Previous []flatten.Record
}

// Resolve ranks records per partition and returns the current and
// previous sets. Pure: identical inputs give identical output.
func Resolve(records []flatten.Record, partition PartitionFunc) Resolution {
	var res Resolution
	for _, ranks := range history(records, partition) {
		res.Current = append(res.Current, collapse(ranks[0])...)
		if len(ranks) > 1 {
			res.Previous = append(res.Previous, collapse(ranks[1])...)
		}
	}
	sortRecords(res.Current)
	sortRecords(res.Previous)
	return res
}

// History returns, per partition key, the record groups ordered by
// dense rank (index 0 = most recent distinct capture time). Ranks
// beyond 2 are resolvable here but never reach diffing.
func History(records []flatten.Record, partition PartitionFunc) map[string][][]flatten.Record {
	return history(records, partition)
}

func history(records []flatten.Record, partition PartitionFunc) map[string][][]flatten.Record {
	byTime := make(map[string]map[int64][]flatten.Record)
	for _, r := range records {
		p := partition(r)
		if byTime[p] == nil {
			byTime[p] = make(map[int64][]flatten.Record)
		}
		t := r.CapturedAt.UnixNano()
		byTime[p][t] = append(byTime[p][t], r)
	}

	out := make(map[string][][]flatten.Record, len(byTime))
	for p, groups := range byTime {
		times := make([]int64, 0, len(groups))
		for t := range groups {
			times = append(times, t)
		}
		sort.Slice(times, func(i, j int) bool { return times[i] > times[j] })

		ranks := make([][]flatten.Record, 0, len(times))
		for _, t := range times {
			ranks = append(ranks, groups[t])
		}
		out[p] = ranks
	}
	return out
}

// collapse reduces a same-capture-time group to one row per key,
// preferring the lexically greater source URI on conflicts.
func collapse(rows []flatten.Record) []flatten.Record {
	byKey := make(map[string]flatten.Record, len(rows))
	for _, r := range rows {
		prev, ok := byKey[r.Key]
		if !ok || r.SourceURI > prev.SourceURI {
			byKey[r.Key] = r
		}
	}
	out := make([]flatten.Record, 0, len(byKey))
	for _, r := range byKey {
		out = append(out, r)
	}
	return out
}

func sortRecords(rs []flatten.Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Key != rs[j].Key {
			return rs[i].Key < rs[j].Key
		}
		return rs[i].SourceURI < rs[j].SourceURI
	})
}
