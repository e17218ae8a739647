package marketplace

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// SourceError records one connection's failure during a fan-out fetch.
type SourceError struct {
	Source string
	Err    error
}

// FetchResult is the merged outcome of a fan-out fetch: records from every
// connection that succeeded plus one SourceError per connection that failed.
type FetchResult struct {
	Records []SalesRecord
	Failed  []SourceError
}

// Service fans a date-range request out to every configured connection,
// isolating per-connection failures, and merges the results after all
// connections finish. A Cache in front of it short-circuits per-source
// fetches; a Persistence sink receives fetched records with errors absorbed.
type Service struct {
	connectors []Connector
	cache      Cache
	sink       Persistence
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithCache wires a read-through/write-through cache keyed (source, range).
func WithCache(cache Cache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithPersistence wires a record sink. Sink failures are logged, never
// propagated.
func WithPersistence(sink Persistence) ServiceOption {
	return func(s *Service) { s.sink = sink }
}

// NewService constructs the store orchestrator.
func NewService(connectors []Connector, opts ...ServiceOption) *Service {
	s := &Service{connectors: connectors}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connectors returns the configured connectors.
func (s *Service) Connectors() []Connector { return s.connectors }

type sourceResult struct {
	index   int
	source  string
	records []SalesRecord
	err     error
}

// FetchRange retrieves canonical records for [start, end] from every
// connection concurrently. A failing connection never aborts its siblings;
// its error is reported in FetchResult.Failed. Results are merged only after
// every connection has finished; ordering across sources follows the
// configured connection order, and within one source it follows fetch order.
func (s *Service) FetchRange(ctx context.Context, start, end time.Time) (*FetchResult, error) {
	results := make([]sourceResult, len(s.connectors))

	var wg sync.WaitGroup
	for i, connector := range s.connectors {
		wg.Add(1)
		go func(idx int, conn Connector) {
			defer wg.Done()
			results[idx] = s.fetchSource(ctx, idx, conn, start, end)
		}(i, connector)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })

	merged := &FetchResult{}
	for _, res := range results {
		if res.err != nil {
			logx.WithContext(ctx).Errorf("marketplace: source %s failed: %v", res.source, res.err)
			merged.Failed = append(merged.Failed, SourceError{Source: res.source, Err: res.err})
			continue
		}
		merged.Records = append(merged.Records, res.records...)
	}
	return merged, nil
}

func (s *Service) fetchSource(ctx context.Context, idx int, conn Connector, start, end time.Time) sourceResult {
	res := sourceResult{index: idx, source: conn.Name()}

	if s.cache != nil {
		if records, ok := s.cache.Get(conn.Name(), start, end); ok {
			logx.WithContext(ctx).Infof("marketplace: source %s served %d records from cache", conn.Name(), len(records))
			res.records = records
			return res
		}
	}

	records, err := conn.FetchOrders(ctx, start, end)
	if err != nil {
		res.err = err
		return res
	}
	res.records = records

	// Only successful, non-empty fetches are cached or persisted.
	if len(records) == 0 {
		return res
	}
	if s.cache != nil {
		if err := s.cache.Put(conn.Name(), start, end, records); err != nil {
			logx.WithContext(ctx).Errorf("marketplace: cache write for source %s: %v", conn.Name(), err)
		}
	}
	if s.sink != nil {
		if err := s.sink.SaveRecords(ctx, records); err != nil {
			logx.WithContext(ctx).Errorf("marketplace: persist records for source %s: %v", conn.Name(), err)
		}
	}
	return res
}
