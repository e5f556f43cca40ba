package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
)

// ErrDanglingReference is returned under WithReferentialIntegrity when a
// write references a record that does not exist.
var ErrDanglingReference = errors.New("reference to missing record")

// ErrDuplicateRecord is returned by Create when (type, id) already exists.
var ErrDuplicateRecord = errors.New("record already exists")

// Create inserts a new record. A nil id is replaced with a fresh one.
func (s *Store) Create(ctx context.Context, rec *ir.Record) (uuid.UUID, error) {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	if err := s.checkReferences(ctx, rec.Attrs); err != nil {
		return uuid.Nil, fmt.Errorf("create %s %s: %w", rec.Type, id, err)
	}

	ok, err := s.exists(ctx, rec.Type, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create %s %s: %w", rec.Type, id, err)
	}
	if ok {
		return uuid.Nil, fmt.Errorf("create %s %s: %w", rec.Type, id, ErrDuplicateRecord)
	}

	stored := &ir.Record{Type: rec.Type, ID: id, Attrs: rec.Attrs}
	data, err := marshalAttributes(stored)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create %s %s: %w", rec.Type, id, err)
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind("INSERT INTO records (type, id, attributes) VALUES (?, ?, ?)"),
		rec.Type, id.String(), data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create %s %s: %w", rec.Type, id, err)
	}
	return id, nil
}

// Update merges rec's attributes into the stored record. Attributes set to
// Null are kept as Null.
func (s *Store) Update(ctx context.Context, rec *ir.Record) error {
	if err := s.checkReferences(ctx, rec.Attrs); err != nil {
		return fmt.Errorf("update %s %s: %w", rec.Type, rec.ID, err)
	}
	return s.merge(ctx, rec.Type, rec.ID, rec.Attrs)
}

func (s *Store) merge(ctx context.Context, typ string, id uuid.UUID, changes *ir.Attributes) error {
	stored, err := s.readAttributes(ctx, typ, id)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", typ, id, err)
	}
	for _, k := range changes.Keys() {
		v, _ := changes.Get(k)
		stored.Set(k, v)
	}

	data, err := marshalAttributes(&ir.Record{Type: typ, ID: id, Attrs: stored})
	if err != nil {
		return fmt.Errorf("update %s %s: %w", typ, id, err)
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind("UPDATE records SET attributes = ? WHERE type = ? AND id = ?"),
		data, typ, id.String())
	if err != nil {
		return fmt.Errorf("update %s %s: %w", typ, id, err)
	}
	return nil
}

// checkReferences verifies every reference target exists when integrity is on.
func (s *Store) checkReferences(ctx context.Context, attrs *ir.Attributes) error {
	if !s.integrity {
		return nil
	}
	for _, k := range attrs.Keys() {
		v, _ := attrs.Get(k)
		ref, ok := v.(ir.Ref)
		if !ok {
			continue
		}
		found, err := s.exists(ctx, ref.Type, ref.ID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s -> %s %s: %w", k, ref.Type, ref.ID, ErrDanglingReference)
		}
	}
	return nil
}

// Execute runs a named operation and journals it.
func (s *Store) Execute(ctx context.Context, op service.Operation) (service.Response, error) {
	resp := service.Response{Operation: op.Name()}

	var err error
	switch o := op.(type) {
	case service.SetState:
		err = s.setState(ctx, o.Type, o.ID, o.State, o.Status)
	case service.PublishDuplicateRule:
		err = s.setState(ctx, "duplicaterule", o.ID, service.RuleStatePublished, service.RuleStatusPublished)
	case service.UnpublishDuplicateRule:
		err = s.setState(ctx, "duplicaterule", o.ID, service.RuleStateUnpublished, service.RuleStatusUnpublished)
	case service.SetAutoNumberSeed:
		_, err = s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO autonumber_seeds (type, attribute, value) VALUES (?, ?, ?)
			ON CONFLICT (type, attribute) DO UPDATE SET value = excluded.value
		`), o.Type, o.Attribute, o.Value)
	default:
		return resp, fmt.Errorf("execute: unsupported operation %T", op)
	}
	if err != nil {
		return resp, fmt.Errorf("execute %s: %w", op.Name(), err)
	}

	detail, err := json.Marshal(op)
	if err != nil {
		return resp, fmt.Errorf("execute %s: journal: %w", op.Name(), err)
	}
	if _, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO operations (name, detail) VALUES (?, ?)"),
		op.Name(), string(detail)); err != nil {
		return resp, fmt.Errorf("execute %s: journal: %w", op.Name(), err)
	}
	return resp, nil
}

func (s *Store) setState(ctx context.Context, typ string, id uuid.UUID, state, status int) error {
	return s.merge(ctx, typ, id, ir.AttributesOf(
		"statecode", ir.Value(ir.Option{Code: state}),
		"statuscode", ir.Value(ir.Option{Code: status}),
	))
}

// Associate links id to each related record through a many-to-many
// relationship. When the relationship's intersect type is known from
// metadata, an intersect record carrying both foreign keys is written too,
// so the pair can be found with Query afterwards.
func (s *Store) Associate(ctx context.Context, typ string, id uuid.UUID, relationship string, related []ir.Ref) error {
	intersect, err := s.intersectFor(ctx, relationship)
	if err != nil {
		return fmt.Errorf("associate %s: %w", relationship, err)
	}

	for _, ref := range related {
		res, err := s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO associations (relationship, type, id, related_type, related_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`), relationship, typ, id.String(), ref.Type, ref.ID.String())
		if err != nil {
			return fmt.Errorf("associate %s: %w", relationship, err)
		}
		if n, _ := res.RowsAffected(); n == 0 || intersect == "" {
			continue
		}

		link := ir.NewRecord(intersect, uuid.New())
		link.Set(ir.PrimaryKey(typ), ir.ID(id))
		link.Set(ir.PrimaryKey(ref.Type), ir.ID(ref.ID))
		if _, err := s.Create(ctx, link); err != nil {
			return fmt.Errorf("associate %s: %w", relationship, err)
		}
	}
	return nil
}

// intersectFor returns the intersect type that carries a relationship.
func (s *Store) intersectFor(ctx context.Context, relationship string) (string, error) {
	all, err := s.GetAllTypes(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range all {
		if !d.IsIntersect {
			continue
		}
		for _, rel := range d.ManyToMany {
			if strings.EqualFold(rel, relationship) {
				return d.LogicalName, nil
			}
		}
	}
	return "", nil
}

// PutMetadata inserts or replaces type descriptors.
func (s *Store) PutMetadata(ctx context.Context, descs ...ir.Descriptor) error {
	for _, d := range descs {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("put metadata %s: %w", d.LogicalName, err)
		}
		_, err = s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO entity_metadata (logical_name, descriptor) VALUES (?, ?)
			ON CONFLICT (logical_name) DO UPDATE SET descriptor = excluded.descriptor
		`), strings.ToLower(d.LogicalName), string(data))
		if err != nil {
			return fmt.Errorf("put metadata %s: %w", d.LogicalName, err)
		}
	}
	return nil
}

// Load writes records as-is, replacing any existing record with the same
// (type, id). It bypasses reference checks and is meant for seeding an
// environment from a snapshot.
func (s *Store) Load(ctx context.Context, recs ...*ir.Record) error {
	for _, rec := range recs {
		data, err := marshalAttributes(rec)
		if err != nil {
			return fmt.Errorf("load %s %s: %w", rec.Type, rec.ID, err)
		}
		_, err = s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO records (type, id, attributes) VALUES (?, ?, ?)
			ON CONFLICT (type, id) DO UPDATE SET attributes = excluded.attributes
		`), rec.Type, rec.ID.String(), data)
		if err != nil {
			return fmt.Errorf("load %s %s: %w", rec.Type, rec.ID, err)
		}
	}
	return nil
}

// Count returns the number of records of a type.
func (s *Store) Count(ctx context.Context, typ string) (int, error) {
	recs, err := s.Query(ctx, queryir.Query{Type: typ})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}
