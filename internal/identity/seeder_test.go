package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/store"
	"github.com/roach88/remap/internal/testutil"
	"github.com/roach88/remap/internal/transform"
)

func newTarget(t *testing.T, recs ...*ir.Record) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "target.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Load(context.Background(), recs...))
	return s
}

func rec(typ string, id uuid.UUID, pairs ...any) *ir.Record {
	r := ir.NewRecord(typ, id)
	r.Attrs = ir.AttributesOf(pairs...)
	return r
}

func newTestSeeder(target *store.Store) (*Seeder, *transform.Registry, *transform.IdentitySet) {
	reg := transform.NewRegistry()
	same := transform.NewIdentitySet()
	env := &Environment{SourceRootBU: sourceRoot, TargetRootBU: targetRoot}
	return NewSeeder(target, reg, same, env, logsink.Discard), reg, same
}

func mapped(t *testing.T, reg *transform.Registry, typ string, src uuid.UUID) string {
	t.Helper()
	r, ok := reg.Exact(typ, ir.PrimaryKey(typ), src.String())
	if !ok {
		return ""
	}
	return r.Replacement
}

func TestSeed_BusinessUnits(t *testing.T) {
	target := newTarget(t,
		rec("businessunit", targetRoot, "name", ir.String("Fabrikam")),
		rec("businessunit", testutil.TargetID(1), "name", ir.String("Sales"), "parentbusinessunitid", ir.Ref{Type: "businessunit", ID: targetRoot}),
		rec("businessunit", testutil.ID(2), "name", ir.String("Support"), "parentbusinessunitid", ir.Ref{Type: "businessunit", ID: targetRoot}),
	)
	s, reg, same := newTestSeeder(target)

	proceed, err := s.Seed(context.Background(), ir.Batch{Type: "businessunit", Records: []*ir.Record{
		rec("businessunit", sourceRoot, "name", ir.String("Contoso")),
		rec("businessunit", testutil.SourceID(1), "name", ir.String("SALES"), "parentbusinessunitid", ir.Ref{Type: "businessunit", ID: sourceRoot}),
		rec("businessunit", testutil.ID(2), "name", ir.String("Support"), "parentbusinessunitid", ir.Ref{Type: "businessunit", ID: sourceRoot}),
	}})
	require.NoError(t, err)
	assert.True(t, proceed)

	assert.Equal(t, testutil.TargetID(1).String(), mapped(t, reg, "businessunit", testutil.SourceID(1)))
	// the root pair is never name-matched
	assert.Empty(t, mapped(t, reg, "businessunit", sourceRoot))
	// same id on both sides: no rule, identity recorded
	assert.True(t, same.Contains(testutil.ID(2)))
	assert.Empty(t, mapped(t, reg, "businessunit", testutil.ID(2)))
}

func TestSeed_RolesMatchWithinBusinessUnitAndSkipWrite(t *testing.T) {
	target := newTarget(t,
		rec("businessunit", testutil.TargetID(1), "name", ir.String("Sales")),
		rec("role", testutil.TargetID(10), "name", ir.String("Salesperson"), "businessunitid", ir.Ref{Type: "businessunit", ID: targetRoot, Name: "Fabrikam"}),
		// business unit name resolved from the target's business units
		rec("role", testutil.TargetID(11), "name", ir.String("Salesperson"), "businessunitid", ir.Ref{Type: "businessunit", ID: testutil.TargetID(1)}),
	)
	s, reg, _ := newTestSeeder(target)

	proceed, err := s.Seed(context.Background(), ir.Batch{Type: "role", Records: []*ir.Record{
		rec("role", testutil.SourceID(10), "name", ir.String("Salesperson"), "businessunitid", ir.Ref{Type: "businessunit", ID: testutil.SourceID(1), Name: "Sales"}),
		rec("role", testutil.SourceID(11), "name", ir.String("Salesperson"), "businessunitid", ir.Ref{Type: "businessunit", ID: testutil.SourceID(2)}),
	}})
	require.NoError(t, err)
	assert.False(t, proceed)

	assert.Equal(t, testutil.TargetID(11).String(), mapped(t, reg, "role", testutil.SourceID(10)))
	// no business unit name on the source side: not mapped
	assert.Empty(t, mapped(t, reg, "role", testutil.SourceID(11)))
}

func TestSeed_FieldSecurityProfileAmbiguous(t *testing.T) {
	target := newTarget(t,
		rec("fieldsecurityprofile", testutil.TargetID(1), "name", ir.String("Finance")),
		rec("fieldsecurityprofile", testutil.TargetID(2), "name", ir.String("finance")),
	)
	s, _, _ := newTestSeeder(target)

	_, err := s.Seed(context.Background(), ir.Batch{Type: "fieldsecurityprofile", Records: []*ir.Record{
		rec("fieldsecurityprofile", testutil.SourceID(1), "name", ir.String("Finance")),
	}})
	require.Error(t, err)
	assert.Equal(t, ir.ErrCodeAmbiguousMatch, ir.ConfigErrorCodeOf(err))
}

func TestSeed_FieldSecurityProfileSkipsWrite(t *testing.T) {
	target := newTarget(t, rec("fieldsecurityprofile", testutil.TargetID(1), "name", ir.String("Finance")))
	s, reg, _ := newTestSeeder(target)

	proceed, err := s.Seed(context.Background(), ir.Batch{Type: "fieldsecurityprofile", Records: []*ir.Record{
		rec("fieldsecurityprofile", testutil.SourceID(1), "name", ir.String("Finance")),
	}})
	require.NoError(t, err)
	assert.False(t, proceed)
	assert.Equal(t, testutil.TargetID(1).String(), mapped(t, reg, "fieldsecurityprofile", testutil.SourceID(1)))
}

func TestSeed_CurrenciesByISOCode(t *testing.T) {
	target := newTarget(t,
		rec("transactioncurrency", testutil.TargetID(1), "currencyname", ir.String("Euro"), "isocurrencycode", ir.String("EUR")),
	)
	s, reg, _ := newTestSeeder(target)

	_, err := s.Seed(context.Background(), ir.Batch{Type: "transactioncurrency", Records: []*ir.Record{
		rec("transactioncurrency", testutil.SourceID(1), "currencyname", ir.String("Euro (EU)"), "isocurrencycode", ir.String("eur")),
	}})
	require.NoError(t, err)
	assert.Equal(t, testutil.TargetID(1).String(), mapped(t, reg, "transactioncurrency", testutil.SourceID(1)))
}

func TestSeed_QueuesIgnoreSystemQueues(t *testing.T) {
	target := newTarget(t,
		rec("queue", testutil.TargetID(1), "name", ir.String("<Deployer>")),
		rec("queue", testutil.TargetID(2), "name", ir.String("Support")),
	)
	s, reg, _ := newTestSeeder(target)

	_, err := s.Seed(context.Background(), ir.Batch{Type: "queue", Records: []*ir.Record{
		rec("queue", testutil.SourceID(1), "name", ir.String("<Deployer>")),
		rec("queue", testutil.SourceID(2), "name", ir.String("support")),
	}})
	require.NoError(t, err)
	assert.Empty(t, mapped(t, reg, "queue", testutil.SourceID(1)))
	assert.Equal(t, testutil.TargetID(2).String(), mapped(t, reg, "queue", testutil.SourceID(2)))
}

func TestSeed_Teams(t *testing.T) {
	salesBU := testutil.TargetID(1)
	target := newTarget(t,
		rec("businessunit", targetRoot, "name", ir.String("Fabrikam")),
		rec("businessunit", salesBU, "name", ir.String("Sales")),
		rec("team", testutil.TargetID(10), "name", ir.String("Fabrikam"), "businessunitid", ir.Ref{Type: "businessunit", ID: targetRoot}, "isdefault", ir.Bool(true), "teamtype", ir.Option{Code: 0}),
		rec("team", testutil.TargetID(11), "name", ir.String("Closers"), "businessunitid", ir.Ref{Type: "businessunit", ID: salesBU, Name: "Sales"}, "teamtype", ir.Option{Code: 0}),
		rec("team", testutil.TargetID(12), "name", ir.String("Mapped"), "businessunitid", ir.Ref{Type: "businessunit", ID: salesBU}, "teamtype", ir.Option{Code: 0}),
		rec("team", testutil.TargetID(13), "name", ir.String("Access"), "businessunitid", ir.Ref{Type: "businessunit", ID: salesBU, Name: "Sales"}, "teamtype", ir.Option{Code: 1}),
	)
	s, reg, _ := newTestSeeder(target)
	// business unit mapping from an earlier batch
	reg.Add(rule("businessunit", "businessunitid", testutil.SourceID(1).String(), salesBU.String()))

	defaultTeam := rec("team", testutil.SourceID(10), "name", ir.String("Contoso"), "businessunitid", ir.Ref{Type: "businessunit", ID: sourceRoot, Name: "Contoso"})
	_, err := s.Seed(context.Background(), ir.Batch{Type: "team", Records: []*ir.Record{
		defaultTeam,
		rec("team", testutil.SourceID(11), "name", ir.String("closers"), "businessunitid", ir.Ref{Type: "businessunit", ID: testutil.SourceID(1), Name: "SALES"}),
		rec("team", testutil.SourceID(12), "name", ir.String("Mapped"), "businessunitid", ir.Ref{Type: "businessunit", ID: testutil.SourceID(1)}),
		rec("team", testutil.SourceID(13), "name", ir.String("Access"), "businessunitid", ir.Ref{Type: "businessunit", ID: testutil.SourceID(1), Name: "Sales"}),
	}})
	require.NoError(t, err)

	assert.Equal(t, testutil.TargetID(10).String(), mapped(t, reg, "team", testutil.SourceID(10)))
	assert.Equal(t, ir.String("Fabrikam"), defaultTeam.Get("name"), "default team keeps the target name")
	assert.Equal(t, testutil.TargetID(11).String(), mapped(t, reg, "team", testutil.SourceID(11)))
	assert.Equal(t, testutil.TargetID(12).String(), mapped(t, reg, "team", testutil.SourceID(12)))
	// access teams are not loaded from the target
	assert.Empty(t, mapped(t, reg, "team", testutil.SourceID(13)))
}

func TestSeed_TeamsNeedRootMapping(t *testing.T) {
	target := newTarget(t)
	s := NewSeeder(target, transform.NewRegistry(), transform.NewIdentitySet(), &Environment{}, nil)

	_, err := s.Seed(context.Background(), ir.Batch{Type: "team", Records: []*ir.Record{
		rec("team", testutil.SourceID(1), "name", ir.String("x")),
	}})
	assert.Equal(t, ir.ErrCodeRootUnmapped, ir.ConfigErrorCodeOf(err))
}

func TestSeed_OtherTypesProceed(t *testing.T) {
	s, reg, _ := newTestSeeder(newTarget(t))

	proceed, err := s.Seed(context.Background(), ir.Batch{Type: "account", Records: []*ir.Record{
		rec("account", testutil.SourceID(1), "name", ir.String("x")),
	}})
	require.NoError(t, err)
	assert.True(t, proceed)
	assert.Equal(t, 0, reg.Len())
}

func TestSeed_LogsProgress(t *testing.T) {
	target := newTarget(t)
	sink := logsink.NewRecorder()
	s := NewSeeder(target, transform.NewRegistry(), transform.NewIdentitySet(), &Environment{}, sink)

	_, err := s.Seed(context.Background(), ir.Batch{Type: "queue", Records: []*ir.Record{
		rec("queue", testutil.SourceID(1), "name", ir.String("x")),
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Preparing data replacement for Queues..."}, sink.Lines())
}
