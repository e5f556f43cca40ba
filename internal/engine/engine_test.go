package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/store"
	"github.com/roach88/remap/internal/testutil"
	"github.com/roach88/remap/internal/transform"
)

const operator = `FABRIKAM\deployer`

var (
	sourceRoot = testutil.SourceID(100)
	targetRoot = testutil.TargetID(100)
	targetOrg  = testutil.TargetID(200)
	operatorID = testutil.TargetID(300)
)

func testMetadata() []ir.Descriptor {
	return []ir.Descriptor{
		{LogicalName: "organization", TypeCode: 1019},
		{LogicalName: "businessunit", TypeCode: 10},
		{LogicalName: "systemuser", TypeCode: 8},
		{LogicalName: "account", DisplayName: "Account", TypeCode: 1},
		{LogicalName: "lead", DisplayName: "Lead", TypeCode: 4},
		{LogicalName: "new_project", DisplayName: "Project", TypeCode: 10005, IsCustom: true},
		{LogicalName: "duplicaterule", TypeCode: 4414},
		{LogicalName: "duplicaterulecondition", TypeCode: 4416},
		{LogicalName: "workflow", TypeCode: 4703},
		{LogicalName: "sla", TypeCode: 9750},
		{LogicalName: "slaitem", TypeCode: 9751},
		{LogicalName: "documenttemplate", TypeCode: 9940},
		{LogicalName: "transactioncurrency", TypeCode: 9105},
		{LogicalName: "accountleads", TypeCode: 16, IsIntersect: true, ManyToMany: []string{"accountleads_association"}},
		{LogicalName: "broken_link", TypeCode: 10100, IsCustom: true, IsIntersect: true},
	}
}

func rec(typ string, id uuid.UUID, pairs ...any) *ir.Record {
	r := ir.NewRecord(typ, id)
	r.Attrs = ir.AttributesOf(pairs...)
	return r
}

func batch(recs ...*ir.Record) ir.Batch {
	return ir.Batch{Type: recs[0].Type, Records: recs}
}

type fixture struct {
	store *store.Store
	svc   *testutil.RecordingService
	sink  *logsink.Recorder
	rules *transform.Registry
	eng   *Engine
}

// newFixture opens a target holding the environment facts Prepare needs,
// plus recs, and builds an unprepared engine over it.
func newFixture(t *testing.T, storeOpts []store.Option, opts []EngineOption, recs ...*ir.Record) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "target.db"), storeOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.PutMetadata(ctx, testMetadata()...))
	require.NoError(t, s.Load(ctx,
		rec("organization", targetOrg, "name", ir.String("Fabrikam")),
		rec("businessunit", targetRoot, "name", ir.String("Fabrikam")),
		rec("systemuser", operatorID, "domainname", ir.String(operator)),
	))
	require.NoError(t, s.Load(ctx, recs...))

	rules := transform.NewRegistry(
		transform.Rule{TargetType: "businessunit", TargetAttribute: "parentbusinessunitid", MatchValue: transform.Wildcard, Replacement: transform.TargetRootBU},
		transform.Rule{TargetType: "businessunit", TargetAttribute: "businessunitid", MatchValue: sourceRoot.String(), Replacement: transform.TargetRootBU},
	)

	f := &fixture{store: s, sink: logsink.NewRecorder(), rules: rules}
	f.svc = testutil.NewRecordingService(s)
	all := append([]EngineOption{WithSleeper(f.svc), WithSink(f.sink)}, opts...)
	f.eng = New(f.svc, s, rules, all...)
	return f
}

// prepared is newFixture followed by Prepare; recorded calls are reset.
func prepared(t *testing.T, recs ...*ir.Record) *fixture {
	t.Helper()
	f := newFixture(t, nil, nil, recs...)
	require.NoError(t, f.eng.Prepare(context.Background(), operator))
	f.svc.Reset()
	return f
}

func (f *fixture) stored(t *testing.T, typ string, id uuid.UUID) *ir.Record {
	t.Helper()
	r, err := f.store.Retrieve(context.Background(), typ, id, queryir.AllColumns())
	require.NoError(t, err)
	return r
}

func TestPrepare(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.NoError(t, f.eng.Prepare(context.Background(), operator))

	env := f.eng.Environment()
	require.NotNil(t, env)
	assert.Equal(t, targetOrg, env.OrganizationID)
	assert.Equal(t, sourceRoot, env.SourceRootBU)
	assert.Equal(t, targetRoot, env.TargetRootBU)
	assert.Equal(t, operatorID, env.Administrator.ID)

	assert.Equal(t, []string{
		"Loading Metadata, Business Units and Teams from target systems...",
		"Preparing data replacement for Target Organization Info...",
		"Preparing data replacement for System Administrator...",
	}, f.sink.Lines())
}

func TestPrepare_OperatorMissing(t *testing.T) {
	f := newFixture(t, nil, nil)

	err := f.eng.Prepare(context.Background(), `FABRIKAM\someone`)
	require.Error(t, err)
	var ce *ir.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ir.ErrCodeOperatorNotFound, ce.Code)
}

func TestImport_NotPrepared(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.eng.Import(context.Background(), batch(rec("account", testutil.ID(1), "name", ir.String("x"))), nil, false)
	assert.True(t, errors.Is(err, ErrNotPrepared))
}

func TestImport_MissingMetadataAborts(t *testing.T) {
	f := prepared(t)

	_, err := f.eng.Import(context.Background(), batch(rec("new_unknown", testutil.ID(1), "name", ir.String("x"))), nil, false)
	var ce *ir.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ir.ErrCodeMissingMetadata, ce.Code)
	assert.Zero(t, f.svc.Count("Create"))
}

func TestImport_IntersectWithoutRelationshipAborts(t *testing.T) {
	f := prepared(t)

	_, err := f.eng.Import(context.Background(), batch(rec("broken_link", testutil.ID(1),
		"accountid", ir.ID(testutil.ID(2)),
		"leadid", ir.ID(testutil.ID(3)),
	)), nil, false)
	var ce *ir.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ir.ErrCodeMissingRelationship, ce.Code)
}

func TestImport_EmptyBatch(t *testing.T) {
	f := prepared(t)

	res, err := f.eng.Import(context.Background(), ir.Batch{Type: "account"}, nil, false)
	require.NoError(t, err)
	assert.Zero(t, res.Passes)
	assert.Empty(t, f.svc.Calls())
}

func TestImport_MappingOnlyTypeSkipsWrites(t *testing.T) {
	f := prepared(t,
		rec("role", testutil.TargetID(10), "name", ir.String("Salesperson"), "businessunitid", ir.Ref{Type: "businessunit", ID: targetRoot, Name: "Fabrikam"}),
	)

	res, err := f.eng.Import(context.Background(), batch(
		rec("role", testutil.SourceID(10), "name", ir.String("Salesperson"), "businessunitid", ir.Ref{Type: "businessunit", ID: sourceRoot, Name: "Fabrikam"}),
	), nil, false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, f.svc.Count("Create"))
	assert.Zero(t, f.svc.Count("Update"))
	assert.Contains(t, f.sink.Lines(), "Skipping import of role: mappings only")

	r, ok := f.rules.Exact("role", "roleid", testutil.SourceID(10).String())
	require.True(t, ok)
	assert.Equal(t, testutil.TargetID(10).String(), r.Replacement)
}

func ruleFor(typ, attr, match, replacement string) transform.Rule {
	return transform.Rule{TargetType: typ, TargetAttribute: attr, MatchValue: match, Replacement: replacement}
}
