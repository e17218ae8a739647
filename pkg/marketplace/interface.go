package marketplace

import (
	"context"
	"time"
)

// Connector fetches orders from one configured marketplace store and
// normalizes them into canonical sales records. Implementations own their
// credentials and session state; a connector is safe to call from a single
// goroutine at a time.
type Connector interface {
	// Name returns the display name of the connection, used as the Source
	// of every record it produces.
	Name() string
	// Kind returns the marketplace kind the connector was registered under.
	Kind() string
	// FetchOrders retrieves and normalizes all non-cancelled orders placed
	// in [start, end].
	FetchOrders(ctx context.Context, start, end time.Time) ([]SalesRecord, error)
	// TestConnection performs a cheap authenticated call to verify the
	// connection is usable.
	TestConnection(ctx context.Context) error
}

// Cache sits in front of the orchestrator and short-circuits fetches for a
// (source, date range) key. Implementations must treat IO failures as misses.
type Cache interface {
	Get(source string, start, end time.Time) ([]SalesRecord, bool)
	Put(source string, start, end time.Time, records []SalesRecord) error
}

// Persistence hooks allow the orchestrator to persist fetched records to an
// external store. Persistence failures never fail a fetch.
type Persistence interface {
	SaveRecords(ctx context.Context, records []SalesRecord) error
}
