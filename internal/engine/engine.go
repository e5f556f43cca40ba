package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/remap/internal/identity"
	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
	"github.com/roach88/remap/internal/transform"
)

// DefaultMaxPasses is the number of passes over a batch. It bounds the depth
// of same-batch reference chains that resolve in one run.
const DefaultMaxPasses = 3

// Engine imports batches into one target environment.
//
// Thread-safety model: an Engine is used by one goroutine. Prepare fans out
// internally and joins before touching the registry.
//
// INVARIANTS:
//   - rules and same are only mutated by Prepare and by foundation seeding
//   - batches are processed one at a time, in the order given
type Engine struct {
	target service.Service
	meta   service.MetadataProvider
	rules  *transform.Registry
	same   *transform.IdentitySet
	sink   logsink.Sink

	waiter    Waiter
	timings   Timings
	maxPasses int

	// set by Prepare
	catalog  ir.Catalog
	env      *identity.Environment
	resolver *identity.Resolver
	seeder   *identity.Seeder
	prepared bool

	// verified source batches, for VerifyExtraTargetRecords
	verified []ir.Batch
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxPasses sets how many passes Import makes over a batch.
//
// Default: 3 (DefaultMaxPasses). Values below 1 are ignored.
func WithMaxPasses(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxPasses = n
		}
	}
}

// WithSleeper replaces the real timer used by waits. Tests pass a fake.
func WithSleeper(s Sleeper) EngineOption {
	return func(e *Engine) {
		e.waiter = Waiter{Sleeper: s}
	}
}

// WithTimings overrides the choreography waits.
func WithTimings(t Timings) EngineOption {
	return func(e *Engine) {
		e.timings = t
	}
}

// WithSink sets where operator log lines go. Default: logsink.Discard.
func WithSink(s logsink.Sink) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// New creates an engine writing into target. rules is the configured
// transform registry; Prepare and seeding add to it.
func New(target service.Service, meta service.MetadataProvider, rules *transform.Registry, opts ...EngineOption) *Engine {
	if rules == nil {
		rules = transform.NewRegistry()
	}
	e := &Engine{
		target:    target,
		meta:      meta,
		rules:     rules,
		same:      transform.NewIdentitySet(),
		sink:      logsink.Discard,
		waiter:    Waiter{Sleeper: timerSleeper{}},
		timings:   DefaultTimings(),
		maxPasses: DefaultMaxPasses,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the engine's transform registry.
func (e *Engine) Rules() *transform.Registry {
	return e.rules
}

// Environment returns the facts Prepare derived, or nil before Prepare.
func (e *Engine) Environment() *identity.Environment {
	return e.env
}

// Prepare loads the target facts every import depends on and seeds the
// environment rules. operator is the domain name of the user the run acts
// as; it must exist in the target.
//
// The four loads run concurrently and are joined before any rule is added.
func (e *Engine) Prepare(ctx context.Context, operator string) error {
	logsink.Infof(ctx, e.sink, "Loading Metadata, Business Units and Teams from target systems...")

	var (
		types map[string]ir.Descriptor
		facts = identity.Facts{Operator: operator}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if types, err = e.meta.GetAllTypes(gctx); err != nil {
			return fmt.Errorf("load target metadata: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		facts.Organizations, err = e.target.Query(gctx, queryir.Query{
			Type:    "organization",
			Columns: queryir.Columns("name"),
		})
		if err != nil {
			return fmt.Errorf("load target organization: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		facts.RootBUs, err = e.target.Query(gctx, queryir.Query{
			Type:    "businessunit",
			Filter:  queryir.IsNull{Field: "parentbusinessunitid"},
			Columns: queryir.Columns("name"),
		})
		if err != nil {
			return fmt.Errorf("load target root business unit: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		facts.Users, err = e.target.Query(gctx, queryir.Query{
			Type:    "systemuser",
			Filter:  queryir.Equals{Field: "domainname", Value: ir.String(operator)},
			Columns: queryir.Columns("domainname"),
		})
		if err != nil {
			return fmt.Errorf("load target operator: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	descs := make([]ir.Descriptor, 0, len(types))
	for _, d := range types {
		descs = append(descs, d)
	}
	e.catalog = ir.NewCatalog(descs...)

	logsink.Infof(ctx, e.sink, "Preparing data replacement for Target Organization Info...")
	env, err := identity.SeedEnvironment(e.rules, facts)
	if err != nil {
		return err
	}
	logsink.Infof(ctx, e.sink, "Preparing data replacement for System Administrator...")

	if err := identity.ResolveQueryReplacements(ctx, e.target, e.rules); err != nil {
		return err
	}

	e.env = env
	e.resolver = identity.NewResolver(e.rules, e.same)
	e.seeder = identity.NewSeeder(e.target, e.rules, e.same, env, e.sink)
	e.prepared = true

	slog.Debug("engine prepared",
		"types", len(e.catalog),
		"rules", e.rules.Len(),
		"organization", env.OrganizationID,
		"source_root_bu", env.SourceRootBU,
		"target_root_bu", env.TargetRootBU)
	return nil
}
