package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
	"github.com/roach88/remap/internal/transform"
)

// Seeder maps foundation types between source and target by business key.
type Seeder struct {
	target service.Service
	rules  *transform.Registry
	same   *transform.IdentitySet
	env    *Environment
	sink   logsink.Sink

	// target business unit names, loaded on first use
	buNames map[uuid.UUID]string
}

// NewSeeder creates a seeder writing into rules and same. env must come
// from SeedEnvironment; team mapping needs its root business units.
func NewSeeder(target service.Service, rules *transform.Registry, same *transform.IdentitySet, env *Environment, sink logsink.Sink) *Seeder {
	if sink == nil {
		sink = logsink.Discard
	}
	return &Seeder{target: target, rules: rules, same: same, env: env, sink: sink}
}

// Seed adds mapping rules for batch's type when it is a foundation type.
// It returns false when the batch must not be written through the engine:
// security roles and field security profiles are deployed separately.
func (s *Seeder) Seed(ctx context.Context, batch ir.Batch) (bool, error) {
	if len(batch.Records) == 0 {
		return true, nil
	}

	before := s.rules.Len()
	proceed := true
	s.buNames = nil
	var err error

	switch strings.ToLower(batch.Type) {
	case "businessunit":
		logsink.Infof(ctx, s.sink, "Preparing data replacement for Business Units...")
		err = s.seedBusinessUnits(ctx, batch.Records)
	case "role":
		logsink.Infof(ctx, s.sink, "Preparing data replacement for Security Roles...")
		err = s.seedRoles(ctx, batch.Records)
		proceed = false
	case "team":
		logsink.Infof(ctx, s.sink, "Preparing data replacement for Teams...")
		err = s.seedTeams(ctx, batch.Records)
	case "fieldsecurityprofile":
		logsink.Infof(ctx, s.sink, "Preparing data replacement for Field Security Profiles...")
		err = s.seedFieldSecurityProfiles(ctx, batch.Records)
		proceed = false
	case "transactioncurrency":
		logsink.Infof(ctx, s.sink, "Preparing data replacement for Currencies...")
		err = s.seedCurrencies(ctx, batch.Records)
	case "queue":
		logsink.Infof(ctx, s.sink, "Preparing data replacement for Queues...")
		err = s.seedQueues(ctx, batch.Records)
	default:
		return true, nil
	}
	if err != nil {
		return false, err
	}

	slog.Debug("seeded mapping rules",
		"type", batch.Type,
		"rules_added", s.rules.Len()-before,
		"same_ids", s.same.Len(),
		"proceed", proceed)
	return proceed, nil
}

func (s *Seeder) load(ctx context.Context, typ string, filter queryir.Predicate, cols ...string) ([]*ir.Record, error) {
	recs, err := s.target.Query(ctx, queryir.Query{Type: typ, Filter: filter, Columns: queryir.Columns(cols...)})
	if err != nil {
		return nil, fmt.Errorf("load target %s: %w", typ, err)
	}
	return recs, nil
}

func (s *Seeder) addIDRule(typ string, source, target uuid.UUID) {
	s.rules.Add(transform.Rule{
		TargetType:      typ,
		TargetAttribute: ir.PrimaryKey(typ),
		MatchValue:      source.String(),
		Replacement:     target.String(),
	})
}

// seedBusinessUnits matches by name. Root business units are never mapped
// by name; the root pair comes from configuration.
func (s *Seeder) seedBusinessUnits(ctx context.Context, sources []*ir.Record) error {
	targets, err := s.load(ctx, "businessunit", nil, "name", "parentbusinessunitid")
	if err != nil {
		return err
	}

	for _, src := range sources {
		srcRoot := ir.IsNull(src.Get("parentbusinessunitid"))
		for _, tgt := range targets {
			if src.ID == tgt.ID {
				s.same.Add(src.ID)
				break
			}
			if srcRoot && ir.IsNull(tgt.Get("parentbusinessunitid")) {
				continue
			}
			if sameName(stringAttr(src, "name"), stringAttr(tgt, "name")) {
				s.addIDRule("businessunit", src.ID, tgt.ID)
				break
			}
		}
	}
	return nil
}

// seedRoles matches on business unit name plus role name.
func (s *Seeder) seedRoles(ctx context.Context, sources []*ir.Record) error {
	targets, err := s.load(ctx, "role", nil, "name", "businessunitid")
	if err != nil {
		return err
	}

	for _, src := range sources {
		srcBU, _ := refAttr(src, "businessunitid")
		if strings.TrimSpace(srcBU.Name) == "" {
			continue
		}
		for _, tgt := range targets {
			tgtBUName, err := s.targetBUName(ctx, tgt)
			if err != nil {
				return err
			}
			if tgtBUName != "" &&
				sameName(srcBU.Name, tgtBUName) &&
				sameName(stringAttr(src, "name"), stringAttr(tgt, "name")) {
				s.addIDRule("role", src.ID, tgt.ID)
				break
			}
		}
	}
	return nil
}

// seedFieldSecurityProfiles matches by name. Two target profiles with the
// source profile's name is a configuration error.
func (s *Seeder) seedFieldSecurityProfiles(ctx context.Context, sources []*ir.Record) error {
	targets, err := s.load(ctx, "fieldsecurityprofile", nil, "name")
	if err != nil {
		return err
	}

	for _, src := range sources {
		matches := 0
		for _, tgt := range targets {
			if src.ID == tgt.ID {
				s.same.Add(src.ID)
				break
			}
			if sameName(stringAttr(src, "name"), stringAttr(tgt, "name")) {
				s.addIDRule("fieldsecurityprofile", src.ID, tgt.ID)
				matches++
			}
		}
		if matches > 1 {
			return &ir.ConfigError{
				Code:    ir.ErrCodeAmbiguousMatch,
				Message: fmt.Sprintf("duplicate field security profile with same name [ %s ]", stringAttr(src, "name")),
				Type:    "fieldsecurityprofile",
			}
		}
	}
	return nil
}

// seedCurrencies matches on ISO currency code.
func (s *Seeder) seedCurrencies(ctx context.Context, sources []*ir.Record) error {
	targets, err := s.load(ctx, "transactioncurrency", nil, "currencyname", "isocurrencycode")
	if err != nil {
		return err
	}
	s.seedByKey("transactioncurrency", "isocurrencycode", sources, targets)
	return nil
}

// seedQueues matches by name. System queues (named "<...>") are ignored.
func (s *Seeder) seedQueues(ctx context.Context, sources []*ir.Record) error {
	targets, err := s.load(ctx, "queue",
		queryir.NotBeginsWith{Field: "name", Prefix: "<"},
		"name", "transactioncurrencyid")
	if err != nil {
		return err
	}
	s.seedByKey("queue", "name", sources, targets)
	return nil
}

func (s *Seeder) seedByKey(typ, key string, sources, targets []*ir.Record) {
	for _, src := range sources {
		for _, tgt := range targets {
			if src.ID == tgt.ID {
				s.same.Add(src.ID)
				break
			}
			if sameName(stringAttr(src, key), stringAttr(tgt, key)) {
				s.addIDRule(typ, src.ID, tgt.ID)
				break
			}
		}
	}
}

// seedTeams maps owner teams. A team matches on name within the same
// business unit. When the source team carries no business unit name, its
// business unit id is mapped through the registry instead.
//
// The default team of the root business unit is named after it, so it is
// matched by root pairing and the source record takes the target's name.
func (s *Seeder) seedTeams(ctx context.Context, sources []*ir.Record) error {
	if s.env == nil || s.env.SourceRootBU == uuid.Nil || s.env.TargetRootBU == uuid.Nil {
		return rootUnmapped("root business unit has not been configured for source and target")
	}

	targets, err := s.load(ctx, "team",
		queryir.Equals{Field: "teamtype", Value: ir.Int(0)},
		"name", "businessunitid", "isdefault")
	if err != nil {
		return err
	}

	for _, src := range sources {
		srcBU, _ := refAttr(src, "businessunitid")
		srcName := stringAttr(src, "name")

		mappedBU := uuid.Nil
		if strings.TrimSpace(srcBU.Name) == "" {
			mappedBU = s.mapID("businessunit", srcBU.ID)
		}

		for _, tgt := range targets {
			if src.ID == tgt.ID {
				s.same.Add(src.ID)
				break
			}

			tgtBU, _ := refAttr(tgt, "businessunitid")
			tgtBUName, err := s.targetBUName(ctx, tgt)
			if err != nil {
				return err
			}
			tgtName := stringAttr(tgt, "name")

			if sameName(srcName, tgtName) {
				if strings.TrimSpace(srcBU.Name) == "" {
					if mappedBU != uuid.Nil && mappedBU == tgtBU.ID {
						s.addIDRule("team", src.ID, tgt.ID)
						break
					}
				} else if tgtBUName != "" && sameName(srcBU.Name, tgtBUName) {
					s.addIDRule("team", src.ID, tgt.ID)
					break
				}
				continue
			}

			if srcBU.ID == s.env.SourceRootBU && tgtBU.ID == s.env.TargetRootBU &&
				sameName(srcName, srcBU.Name) && sameName(tgtName, tgtBUName) {
				s.addIDRule("team", src.ID, tgt.ID)
				// keep the target default team's name
				src.Set("name", ir.String(tgtName))
				break
			}
		}
	}
	return nil
}

// mapID returns the id a rule maps id onto, or uuid.Nil.
func (s *Seeder) mapID(typ string, id uuid.UUID) uuid.UUID {
	rule, ok := s.rules.Lookup(typ, ir.PrimaryKey(typ), id.String())
	if !ok {
		return uuid.Nil
	}
	mapped, err := uuid.Parse(rule.Replacement)
	if err != nil {
		return uuid.Nil
	}
	return mapped
}

// targetBUName returns the name of a target record's business unit, from
// the reference itself or from the target's business units.
func (s *Seeder) targetBUName(ctx context.Context, tgt *ir.Record) (string, error) {
	ref, ok := refAttr(tgt, "businessunitid")
	if !ok {
		return "", nil
	}
	if ref.Name != "" {
		return ref.Name, nil
	}

	if s.buNames == nil {
		bus, err := s.load(ctx, "businessunit", nil, "name")
		if err != nil {
			return "", err
		}
		s.buNames = make(map[uuid.UUID]string, len(bus))
		for _, bu := range bus {
			s.buNames[bu.ID] = stringAttr(bu, "name")
		}
	}
	return s.buNames[ref.ID], nil
}
