package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
)

// Call is one recorded Record Service call or wait.
type Call struct {
	Method string
	Type   string
	ID     uuid.UUID
	Detail string
}

// String renders a call as "Method type id detail", omitting empty parts.
func (c Call) String() string {
	parts := []string{c.Method}
	if c.Type != "" {
		parts = append(parts, c.Type)
	}
	if c.ID != uuid.Nil {
		parts = append(parts, c.ID.String())
	}
	if c.Detail != "" {
		parts = append(parts, c.Detail)
	}
	return strings.Join(parts, " ")
}

// RecordingService wraps a Record Service and records every call. It also
// implements Sleep, so waits appear in the same sequence as the calls that
// caused them.
//
// Fail, when set, is consulted before each call is forwarded; a non-nil
// error is returned instead of calling the wrapped service.
type RecordingService struct {
	Inner service.Service
	Fail  func(Call) error

	mu    sync.Mutex
	calls []Call
}

// NewRecordingService wraps inner.
func NewRecordingService(inner service.Service) *RecordingService {
	return &RecordingService{Inner: inner}
}

func (r *RecordingService) record(c Call) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail(c)
	}
	return nil
}

// Calls returns the recorded calls in order.
func (r *RecordingService) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Methods returns the recorded calls rendered as strings, keeping only calls
// whose method is in methods (all calls when methods is empty).
func (r *RecordingService) Methods(methods ...string) []string {
	keep := make(map[string]bool, len(methods))
	for _, m := range methods {
		keep[m] = true
	}
	var out []string
	for _, c := range r.Calls() {
		if len(keep) == 0 || keep[c.Method] {
			out = append(out, c.String())
		}
	}
	return out
}

// Count returns how many calls used method.
func (r *RecordingService) Count(method string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset forgets every recorded call.
func (r *RecordingService) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *RecordingService) Retrieve(ctx context.Context, typ string, id uuid.UUID, columns queryir.ColumnSet) (*ir.Record, error) {
	if err := r.record(Call{Method: "Retrieve", Type: typ, ID: id}); err != nil {
		return nil, err
	}
	return r.Inner.Retrieve(ctx, typ, id, columns)
}

func (r *RecordingService) Query(ctx context.Context, q queryir.Query) ([]*ir.Record, error) {
	if err := r.record(Call{Method: "Query", Type: q.Type}); err != nil {
		return nil, err
	}
	return r.Inner.Query(ctx, q)
}

func (r *RecordingService) Create(ctx context.Context, rec *ir.Record) (uuid.UUID, error) {
	if err := r.record(Call{Method: "Create", Type: rec.Type, ID: rec.ID, Detail: stateDetail(rec)}); err != nil {
		return uuid.Nil, err
	}
	return r.Inner.Create(ctx, rec)
}

func (r *RecordingService) Update(ctx context.Context, rec *ir.Record) error {
	if err := r.record(Call{Method: "Update", Type: rec.Type, ID: rec.ID, Detail: stateDetail(rec)}); err != nil {
		return err
	}
	return r.Inner.Update(ctx, rec)
}

func (r *RecordingService) Execute(ctx context.Context, op service.Operation) (service.Response, error) {
	c := Call{Method: op.Name()}
	switch o := op.(type) {
	case service.SetState:
		c.Type, c.ID, c.Detail = o.Type, o.ID, fmt.Sprintf("(%d,%d)", o.State, o.Status)
	case service.PublishDuplicateRule:
		c.Type, c.ID = "duplicaterule", o.ID
	case service.UnpublishDuplicateRule:
		c.Type, c.ID = "duplicaterule", o.ID
	case service.SetAutoNumberSeed:
		c.Type, c.Detail = o.Type, fmt.Sprintf("%s=%d", o.Attribute, o.Value)
	}
	if err := r.record(c); err != nil {
		return service.Response{Operation: op.Name()}, err
	}
	return r.Inner.Execute(ctx, op)
}

func (r *RecordingService) Associate(ctx context.Context, typ string, id uuid.UUID, relationship string, related []ir.Ref) error {
	if err := r.record(Call{Method: "Associate", Type: typ, ID: id, Detail: relationship}); err != nil {
		return err
	}
	return r.Inner.Associate(ctx, typ, id, relationship, related)
}

// Sleep records the wait and returns immediately.
func (r *RecordingService) Sleep(ctx context.Context, d time.Duration) error {
	_ = r.record(Call{Method: "Sleep", Detail: d.String()})
	return ctx.Err()
}

// stateDetail renders the statecode/statuscode pair carried by a write.
func stateDetail(rec *ir.Record) string {
	state, hasState := rec.OptionCode("statecode")
	status, hasStatus := rec.OptionCode("statuscode")
	if !hasState && !hasStatus {
		return ""
	}
	s := func(v int, ok bool) string {
		if !ok {
			return "-"
		}
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("(%s,%s)", s(state, hasState), s(status, hasStatus))
}
