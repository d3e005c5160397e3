// Package courtwatch orchestrates the snapshot pipeline: ledger-gated
// ingestion into the warehouse, then on-demand flatten -> resolve ->
// diff over the stored history. Nothing derived is materialized: the
// current view and the change events are recomputed from the immutable
// snapshot log on every query, trading compute for auditability.
package courtwatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/courtwatch/changes"
	"github.com/hazyhaar/courtwatch/flatten"
	"github.com/hazyhaar/courtwatch/ingest"
	"github.com/hazyhaar/courtwatch/snapstore"
	"github.com/hazyhaar/courtwatch/version"
	"github.com/hazyhaar/courtwatch/warehouse"
)

// Service is the main courtwatch orchestrator.
type Service struct {
	store     snapstore.Store
	wh        *warehouse.Warehouse
	ingestor  *ingest.Ingestor
	endpoints map[string]Endpoint
	config    *Config
	logger    *slog.Logger
}

// New creates a Service over an opened warehouse and snapshot store.
func New(store snapstore.Store, wh *warehouse.Warehouse, cfg *Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		wh:        wh,
		ingestor:  ingest.New(store, wh, logger),
		endpoints: builtinEndpoints(),
		config:    cfg,
		logger:    logger,
	}
}

func (s *Service) endpoint(name string) (Endpoint, error) {
	ep, ok := s.endpoints[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}
	return ep, nil
}

// Ingest runs one ingestion cycle for an endpoint.
func (s *Service) Ingest(ctx context.Context, endpoint string) (*warehouse.IngestRun, error) {
	ep, err := s.endpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return s.ingestor.Run(ctx, ingest.Target{
		Endpoint: ep.Name,
		Table:    ep.Table,
		Flatten:  ep.Flatten,
	})
}

// IngestAll runs one ingestion cycle for every registered endpoint.
func (s *Service) IngestAll(ctx context.Context) ([]*warehouse.IngestRun, error) {
	var runs []*warehouse.IngestRun
	for _, name := range s.Endpoints() {
		run, err := s.Ingest(ctx, name)
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			return runs, err
		}
	}
	return runs, nil
}

// records recomputes the flat record set for an endpoint from the full
// stored snapshot history.
func (s *Service) records(ctx context.Context, ep Endpoint) ([]flatten.Record, error) {
	raws, err := s.wh.ListRaw(ctx, ep.Table)
	if err != nil {
		return nil, err
	}
	var all []flatten.Record
	for _, raw := range raws {
		snap := &flatten.Snapshot{
			SourceURI:  raw.SourceURI,
			Endpoint:   raw.Endpoint,
			CapturedAt: time.UnixMilli(raw.CapturedAt).UTC(),
			Payload:    []byte(raw.Payload),
		}
		records, err := ep.Flatten(snap)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptHistory, raw.SourceURI, err)
		}
		all = append(all, records...)
	}
	return all, nil
}

// Resolve returns the current and previous record sets for an
// endpoint, recomputed from history.
func (s *Service) Resolve(ctx context.Context, endpoint string) (version.Resolution, error) {
	ep, err := s.endpoint(endpoint)
	if err != nil {
		return version.Resolution{}, err
	}
	records, err := s.records(ctx, ep)
	if err != nil {
		return version.Resolution{}, err
	}
	return version.Resolve(records, ep.Partition), nil
}

// Current returns the deduplicated current view for an endpoint.
func (s *Service) Current(ctx context.Context, endpoint string) ([]flatten.Record, error) {
	res, err := s.Resolve(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return res.Current, nil
}

// Changes diffs the two most recent versions of an endpoint and
// returns the change events the scheduler acts on. Pure with respect
// to stored history: repeated calls over an unchanged history return
// identical event sequences.
func (s *Service) Changes(ctx context.Context, endpoint string) ([]changes.Event, error) {
	ep, err := s.endpoint(endpoint)
	if err != nil {
		return nil, err
	}
	res, err := s.Resolve(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return changes.Diff(res.Current, res.Previous, ep.Policies), nil
}

// Ledger returns ledger entries for operator audit, newest first.
// Empty endpoint means all endpoints.
func (s *Service) Ledger(ctx context.Context, endpoint string, limit int) ([]*warehouse.LedgerEntry, error) {
	if endpoint != "" {
		if _, err := s.endpoint(endpoint); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = s.config.LedgerLimit
	}
	return s.wh.ListLedger(ctx, endpoint, limit)
}

// Runs returns ingest runs, newest first. Empty endpoint means all.
func (s *Service) Runs(ctx context.Context, endpoint string, limit int) ([]*warehouse.IngestRun, error) {
	if endpoint != "" {
		if _, err := s.endpoint(endpoint); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = s.config.LedgerLimit
	}
	return s.wh.ListRuns(ctx, endpoint, limit)
}

// EndpointStats summarizes one endpoint's stored history.
type EndpointStats struct {
	Endpoint      string `json:"endpoint"`
	Snapshots     int64  `json:"snapshots"`
	LatestCapture int64  `json:"latest_capture,omitempty"`
}

// Stats returns per-endpoint history summaries.
func (s *Service) Stats(ctx context.Context) ([]EndpointStats, error) {
	var out []EndpointStats
	for _, name := range s.Endpoints() {
		ep := s.endpoints[name]
		count, err := s.wh.CountRaw(ctx, ep.Table)
		if err != nil {
			return nil, err
		}
		latest, err := s.wh.LatestCapture(ctx, ep.Table)
		if err != nil {
			return nil, err
		}
		out = append(out, EndpointStats{Endpoint: name, Snapshots: count, LatestCapture: latest})
	}
	return out, nil
}
