package identity

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/transform"
)

// Environment holds the facts seeding derives about the target.
type Environment struct {
	OrganizationID uuid.UUID
	SourceRootBU   uuid.UUID
	TargetRootBU   uuid.UUID
	Administrator  ir.Ref
}

// Facts are the target reads SeedEnvironment needs. They are loaded
// concurrently by the engine and handed over once all have completed.
type Facts struct {
	Organizations []*ir.Record // organization records
	RootBUs       []*ir.Record // business units with no parent
	Users         []*ir.Record // system users matching the operator
	Operator      string       // domain name of the operator
}

// Types whose owner becomes the operator in the target.
var adminOwnedTypes = []string{"duplicaterule", "workflow", "sla", "slaitem"}

// SeedEnvironment adds environment rules to rules:
//
//  1. (organization, organizationid, *) -> target organization
//  2. the root business unit placeholder -> target root business unit
//  3. the source/target root business unit pair, which must be configured
//  4. administrator and owner rules for the operator
//
// Every failure is a configuration error.
func SeedEnvironment(rules *transform.Registry, facts Facts) (*Environment, error) {
	env := &Environment{}

	if len(facts.Organizations) == 0 {
		return nil, &ir.ConfigError{
			Code:    ir.ErrCodeOrganizationMissing,
			Message: "organization record missing in target",
			Type:    "organization",
		}
	}
	env.OrganizationID = facts.Organizations[0].ID
	rules.Add(transform.Rule{
		TargetType:      "organization",
		TargetAttribute: "organizationid",
		MatchValue:      transform.Wildcard,
		Replacement:     env.OrganizationID.String(),
	})

	if len(facts.RootBUs) != 1 {
		return nil, &ir.ConfigError{
			Code:    ir.ErrCodeRootUndetected,
			Message: fmt.Sprintf("unable to detect root business unit (found %d)", len(facts.RootBUs)),
			Type:    "businessunit",
		}
	}
	rules.ReplaceValue(transform.TargetRootBU, facts.RootBUs[0].ID.String())

	if err := mapRootBusinessUnits(rules, env); err != nil {
		return nil, err
	}

	admin, err := findOperator(facts.Users, facts.Operator)
	if err != nil {
		return nil, err
	}
	env.Administrator = admin

	rules.Add(transform.Rule{
		TargetType:      "team",
		TargetAttribute: "administratorid",
		MatchValue:      transform.Wildcard,
		Replacement:     admin.ID.String(),
	})
	for _, typ := range adminOwnedTypes {
		rules.Add(transform.Rule{
			TargetType:      typ,
			TargetAttribute: "ownerid",
			MatchValue:      transform.Wildcard,
			Replacement:     admin.ID.String(),
		})
	}
	return env, nil
}

// mapRootBusinessUnits reads the root pair from configuration. The target
// root comes from the (businessunit, parentbusinessunitid, *) rule; the
// source root is the match value of the (businessunit, businessunitid, x)
// rule that maps onto it.
func mapRootBusinessUnits(rules *transform.Registry, env *Environment) error {
	parent, ok := rules.Wildcard("businessunit", "parentbusinessunitid")
	if !ok {
		return rootUnmapped("add a (businessunit, parentbusinessunitid, *) rule naming the target root business unit")
	}
	target, err := uuid.Parse(parent.Replacement)
	if err != nil {
		return rootUnmapped(fmt.Sprintf("parentbusinessunitid replacement %q is not an id", parent.Replacement))
	}

	pair, ok := rules.FindByReplacement("businessunit", "businessunitid", target.String())
	if !ok {
		return rootUnmapped("add a (businessunit, businessunitid, <source root>) rule mapping onto the target root business unit")
	}
	source, err := uuid.Parse(pair.MatchValue)
	if err != nil {
		return rootUnmapped(fmt.Sprintf("businessunitid match value %q is not an id", pair.MatchValue))
	}

	env.SourceRootBU = source
	env.TargetRootBU = target
	return nil
}

func rootUnmapped(msg string) error {
	return &ir.ConfigError{Code: ir.ErrCodeRootUnmapped, Message: msg, Type: "businessunit"}
}

func findOperator(users []*ir.Record, operator string) (ir.Ref, error) {
	for _, u := range users {
		if sameName(stringAttr(u, "domainname"), operator) {
			return ir.Ref{Type: "systemuser", ID: u.ID, Name: operator}, nil
		}
	}
	return ir.Ref{}, &ir.ConfigError{
		Code:    ir.ErrCodeOperatorNotFound,
		Message: fmt.Sprintf("current user %s must be a system administrator in target", operator),
		Type:    "systemuser",
	}
}
