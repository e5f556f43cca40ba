package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/querysql"
	"github.com/roach88/remap/internal/service"
)

// Retrieve returns one record restricted to columns.
// Returns an error wrapping service.ErrNotFound when the record is absent.
func (s *Store) Retrieve(ctx context.Context, typ string, id uuid.UUID, columns queryir.ColumnSet) (*ir.Record, error) {
	stored, err := s.readAttributes(ctx, typ, id)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s %s: %w", typ, id, err)
	}
	return project(typ, id, stored, columns), nil
}

// readAttributes loads the stored attribute document of one record.
func (s *Store) readAttributes(ctx context.Context, typ string, id uuid.UUID) (*ir.Attributes, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT attributes FROM records WHERE type = ? AND id = ?"),
		typ, id.String(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return unmarshalAttributes(data)
}

// exists reports whether a record is present.
func (s *Store) exists(ctx context.Context, typ string, id uuid.UUID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM records WHERE type = ? AND id = ?"),
		typ, id.String(),
	).Scan(&n)
	return n > 0, err
}

// Query returns every record matching q, ordered by insertion sequence.
func (s *Store) Query(ctx context.Context, q queryir.Query) ([]*ir.Record, error) {
	sqlText, params, err := querysql.NewCompiler(s.dialect).Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Type, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Type, err)
	}
	defer rows.Close()

	var out []*ir.Record
	for rows.Next() {
		var idText, data string
		if err := rows.Scan(&idText, &data); err != nil {
			return nil, fmt.Errorf("query %s: scan: %w", q.Type, err)
		}
		id, err := uuid.Parse(idText)
		if err != nil {
			return nil, fmt.Errorf("query %s: bad id %q: %w", q.Type, idText, err)
		}
		stored, err := unmarshalAttributes(data)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Type, err)
		}
		out = append(out, project(q.Type, id, stored, q.Columns))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Type, err)
	}
	return out, nil
}

// GetType returns the descriptor of one logical type.
func (s *Store) GetType(ctx context.Context, name string) (ir.Descriptor, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT descriptor FROM entity_metadata WHERE logical_name = ?"),
		strings.ToLower(name),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Descriptor{}, &ir.ConfigError{Code: ir.ErrCodeMissingMetadata, Message: "no metadata for type", Type: name}
	}
	if err != nil {
		return ir.Descriptor{}, fmt.Errorf("get type %s: %w", name, err)
	}

	var d ir.Descriptor
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return ir.Descriptor{}, fmt.Errorf("get type %s: %w", name, err)
	}
	return d, nil
}

// GetAllTypes returns every descriptor keyed by lower-cased logical name.
func (s *Store) GetAllTypes(ctx context.Context) (map[string]ir.Descriptor, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT logical_name, descriptor FROM entity_metadata ORDER BY logical_name")
	if err != nil {
		return nil, fmt.Errorf("get all types: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ir.Descriptor)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("get all types: %w", err)
		}
		var d ir.Descriptor
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("get all types: %s: %w", name, err)
		}
		out[name] = d
	}
	return out, rows.Err()
}

// Operation is one journaled Execute call.
type Operation struct {
	Seq    int64
	Name   string
	Detail string
}

// Operations returns the operation journal in execution order.
func (s *Store) Operations(ctx context.Context) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT seq, name, detail FROM operations ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("read operations: %w", err)
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.Seq, &op.Name, &op.Detail); err != nil {
			return nil, fmt.Errorf("read operations: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// Association is one stored many-to-many link.
type Association struct {
	Relationship string
	Type         string
	ID           uuid.UUID
	RelatedType  string
	RelatedID    uuid.UUID
}

// Associations returns the links of one relationship.
func (s *Store) Associations(ctx context.Context, relationship string) ([]Association, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT relationship, type, id, related_type, related_id FROM associations WHERE relationship = ? ORDER BY id, related_id"),
		relationship)
	if err != nil {
		return nil, fmt.Errorf("read associations: %w", err)
	}
	defer rows.Close()

	var out []Association
	for rows.Next() {
		var a Association
		var id, related string
		if err := rows.Scan(&a.Relationship, &a.Type, &id, &a.RelatedType, &related); err != nil {
			return nil, fmt.Errorf("read associations: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("read associations: %w", err)
		}
		if a.RelatedID, err = uuid.Parse(related); err != nil {
			return nil, fmt.Errorf("read associations: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AutoNumberSeed returns the seed set for an attribute.
func (s *Store) AutoNumberSeed(ctx context.Context, typ, attribute string) (int64, bool, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT value FROM autonumber_seeds WHERE type = ? AND attribute = ?"),
		typ, attribute,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read autonumber seed: %w", err)
	}
	return v, true, nil
}
