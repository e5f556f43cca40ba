package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
)

var _ service.Service = (*Store)(nil)
var _ service.MetadataProvider = (*Store)(nil)

func TestOpenAppliesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.db")

	s, err := Open(path)
	require.NoError(t, err)
	v, err := s.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	v, err = s.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestCreateRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	team := testID(2)

	rec := newRecord("account", testID(1),
		"name", ir.String("Contoso"),
		"accountid", ir.ID(testID(1)),
		"ownerid", ir.Ref{Type: "team", ID: team, Name: "Sales"},
		"statecode", ir.Option{Code: 0},
		"description", ir.Null{},
	)
	id, err := s.Create(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, testID(1), id)

	got, err := s.Retrieve(ctx, "account", id, queryir.AllColumns())
	require.NoError(t, err)
	assert.Equal(t, ir.String("Contoso"), got.Get("name"))
	assert.Equal(t, ir.ID(testID(1)), got.Get("accountid"))
	assert.True(t, ir.Equal(ir.Ref{Type: "team", ID: team}, got.Get("ownerid")))

	// Projection keeps requested order and omits unset columns
	got, err = s.Retrieve(ctx, "account", id, queryir.Columns("statecode", "name", "description", "accountid"))
	require.NoError(t, err)
	assert.Equal(t, []string{"statecode", "name", "accountid"}, got.Attrs.Keys())

	// Zero column set returns only the identity
	got, err = s.Retrieve(ctx, "account", id, queryir.ColumnSet{})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Attrs.Len())
	assert.Equal(t, id, got.ID)
}

func TestCreateAssignsID(t *testing.T) {
	s := createTestStore(t)
	id, err := s.Create(context.Background(), newRecord("note", uuid.Nil, "subject", ir.String("x")))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.Create(ctx, newRecord("account", testID(1)))
	require.NoError(t, err)
	_, err = s.Create(ctx, newRecord("account", testID(1)))
	assert.ErrorIs(t, err, ErrDuplicateRecord)
}

func TestRetrieveNotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Retrieve(context.Background(), "account", testID(9), queryir.AllColumns())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdateMerges(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.Create(ctx, newRecord("account", testID(1), "name", ir.String("A"), "city", ir.String("Oslo")))
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, newRecord("account", testID(1), "name", ir.String("B"))))

	got, err := s.Retrieve(ctx, "account", testID(1), queryir.AllColumns())
	require.NoError(t, err)
	assert.Equal(t, ir.String("B"), got.Get("name"))
	assert.Equal(t, ir.String("Oslo"), got.Get("city"))

	err = s.Update(ctx, newRecord("account", testID(5), "name", ir.String("B")))
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Load(ctx,
		newRecord("queue", testID(1), "name", ir.String("Support")),
		newRecord("queue", testID(2), "name", ir.String("<Sales>")),
		newRecord("queue", testID(3), "name", ir.String("support tier 2")),
		newRecord("queue", testID(4)),
	))

	recs, err := s.Query(ctx, queryir.Query{
		Type:    "queue",
		Filter:  queryir.Equals{Field: "name", Value: ir.String("SUPPORT")},
		Columns: queryir.Columns("name"),
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, testID(1), recs[0].ID)

	recs, err = s.Query(ctx, queryir.Query{Type: "queue", Filter: queryir.NotBeginsWith{Field: "name", Prefix: "<"}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{testID(1), testID(3), testID(4)}, ids(recs))

	recs, err = s.Query(ctx, queryir.Query{Type: "queue", Filter: queryir.IsNull{Field: "name"}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{testID(4)}, ids(recs))

	recs, err = s.Query(ctx, queryir.Query{
		Type:   "queue",
		Filter: queryir.NotIn{Field: "queueid", Values: queryir.IDs([]uuid.UUID{testID(1), testID(2)})},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{testID(3), testID(4)}, ids(recs))
}

func TestQueryLink(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	wf := testID(9)

	require.NoError(t, s.Load(ctx,
		newRecord("sla", testID(1), "statecode", ir.Option{Code: 1}),
		newRecord("sla", testID(2), "statecode", ir.Option{Code: 1}),
		newRecord("slaitem", testID(3), "slaid", ir.Ref{Type: "sla", ID: testID(1)}, "workflowid", ir.Ref{Type: "workflow", ID: wf}),
		newRecord("slaitem", testID(4), "slaid", ir.Ref{Type: "sla", ID: testID(2)}),
	))

	recs, err := s.Query(ctx, queryir.Query{
		Type:   "sla",
		Filter: queryir.Equals{Field: "statecode", Value: ir.Option{Code: 1}},
		Link: &queryir.Link{
			Type: "slaitem", From: "slaid", To: "slaid",
			Filter: queryir.Equals{Field: "workflowid", Value: ir.ID(wf)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{testID(1)}, ids(recs))
}

func TestExecuteStateOperations(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Load(ctx, newRecord("duplicaterule", testID(1), "name", ir.String("r"))))

	_, err := s.Execute(ctx, service.PublishDuplicateRule{ID: testID(1)})
	require.NoError(t, err)
	got, err := s.Retrieve(ctx, "duplicaterule", testID(1), queryir.Columns("statecode", "statuscode"))
	require.NoError(t, err)
	assert.Equal(t, ir.Option{Code: 1}, got.Get("statecode"))
	assert.Equal(t, ir.Option{Code: 2}, got.Get("statuscode"))

	_, err = s.Execute(ctx, service.UnpublishDuplicateRule{ID: testID(1)})
	require.NoError(t, err)
	got, err = s.Retrieve(ctx, "duplicaterule", testID(1), queryir.Columns("statuscode"))
	require.NoError(t, err)
	assert.Equal(t, ir.Option{Code: 0}, got.Get("statuscode"))

	resp, err := s.Execute(ctx, service.SetAutoNumberSeed{Type: "account", Attribute: "new_number", Value: 1000})
	require.NoError(t, err)
	assert.Equal(t, "SetAutoNumberSeed", resp.Operation)
	seed, ok, err := s.AutoNumberSeed(ctx, "account", "new_number")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), seed)

	ops, err := s.Operations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "PublishDuplicateRule", ops[0].Name)
	assert.Equal(t, "UnpublishDuplicateRule", ops[1].Name)
	assert.Equal(t, "SetAutoNumberSeed", ops[2].Name)

	_, err = s.Execute(ctx, service.SetState{Type: "account", ID: testID(7), State: 1, Status: 2})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAssociateWritesIntersectRecord(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.PutMetadata(ctx, ir.Descriptor{
		LogicalName: "teamroles",
		IsIntersect: true,
		ManyToMany:  []string{"teamroles_association"},
	}))

	related := []ir.Ref{{Type: "role", ID: testID(2)}}
	require.NoError(t, s.Associate(ctx, "team", testID(1), "teamroles_association", related))
	// Second call is a no-op
	require.NoError(t, s.Associate(ctx, "team", testID(1), "teamroles_association", related))

	links, err := s.Associations(ctx, "teamroles_association")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, testID(2), links[0].RelatedID)

	recs, err := s.Query(ctx, queryir.Query{
		Type: "teamroles",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "teamid", Value: ir.ID(testID(1))},
			queryir.Equals{Field: "roleid", Value: ir.ID(testID(2))},
		}},
	})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestReferentialIntegrity(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithReferentialIntegrity())

	child := newRecord("account", testID(2), "parentaccountid", ir.Ref{Type: "account", ID: testID(1)})
	_, err := s.Create(ctx, child)
	assert.ErrorIs(t, err, ErrDanglingReference)

	_, err = s.Create(ctx, newRecord("account", testID(1)))
	require.NoError(t, err)
	_, err = s.Create(ctx, child)
	assert.NoError(t, err)
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.PutMetadata(ctx,
		ir.Descriptor{LogicalName: "Account", TypeCode: 1},
		ir.Descriptor{LogicalName: "new_project", TypeCode: 10010, IsCustom: true},
	))

	d, err := s.GetType(ctx, "account")
	require.NoError(t, err)
	assert.Equal(t, 1, d.TypeCode)

	all, err := s.GetAllTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.True(t, all["new_project"].IsCustom)

	_, err = s.GetType(ctx, "missing")
	assert.True(t, ir.IsConfigError(err))
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("REMAP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("REMAP_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	id := uuid.New()
	_, err = s.Create(ctx, newRecord("account", id, "name", ir.String("Contoso")))
	require.NoError(t, err)

	recs, err := s.Query(ctx, queryir.Query{
		Type:   "account",
		Filter: queryir.In{Field: "accountid", Values: queryir.IDs([]uuid.UUID{id})},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func ids(recs []*ir.Record) []uuid.UUID {
	out := make([]uuid.UUID, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
