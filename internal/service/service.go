// Package service declares the capabilities the engine consumes from an
// environment: the Record Service (read and write records, run named
// operations) and the Metadata Provider (describe logical types).
//
// The store package implements both over SQL. Tests wrap them with the
// call recorder in testutil.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
)

// ErrNotFound is returned by Retrieve when no record has the given id.
var ErrNotFound = errors.New("record not found")

// Service reads and writes records in one environment.
type Service interface {
	// Retrieve returns one record restricted to columns, or ErrNotFound.
	Retrieve(ctx context.Context, typ string, id uuid.UUID, columns queryir.ColumnSet) (*ir.Record, error)

	// Query returns every record matching q in insertion order.
	Query(ctx context.Context, q queryir.Query) ([]*ir.Record, error)

	// Create writes a new record and returns its id. A nil id is assigned.
	Create(ctx context.Context, rec *ir.Record) (uuid.UUID, error)

	// Update merges rec's attributes into the existing record.
	Update(ctx context.Context, rec *ir.Record) error

	// Execute runs a named operation.
	Execute(ctx context.Context, op Operation) (Response, error)

	// Associate links a record to related records through a many-to-many
	// relationship.
	Associate(ctx context.Context, typ string, id uuid.UUID, relationship string, related []ir.Ref) error
}

// MetadataProvider describes the logical types of one environment.
type MetadataProvider interface {
	GetType(ctx context.Context, name string) (ir.Descriptor, error)
	GetAllTypes(ctx context.Context) (map[string]ir.Descriptor, error)
}

// Response is the outcome of an Execute call.
type Response struct {
	Operation string
	Results   map[string]ir.Value
}
