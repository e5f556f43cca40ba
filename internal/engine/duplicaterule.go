package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/service"
)

// upsertDuplicateRule writes a duplicate detection rule or one of its
// conditions.
//
// Published rules cannot be written, so a rule always goes out unpublished.
// An existing published target rule is unpublished first. A rule that was
// published in the source is published again after the write, and its
// captured state is restored on the record for verification.
func (e *Engine) upsertDuplicateRule(ctx context.Context, rec, target *ir.Record) (Outcome, error) {
	pre := captureState(rec)
	isRule := strings.EqualFold(rec.Type, "duplicaterule")

	if isRule {
		setState(rec, service.RuleStateUnpublished, service.RuleStatusUnpublished)
		for _, attr := range []string{"baseentitytypecode", "matchingentitytypecode"} {
			if err := e.fixRuleTypeCode(rec, attr); err != nil {
				return OutcomeFailed, at("Fixing entity type code of Duplicate Detection rule", err)
			}
		}
	} else if code, ok := rec.OptionCode("operatorparam"); ok && code == 0 {
		// operatorparam must never be sent as zero
		rec.Attrs.Delete("operatorparam")
	}

	outcome := OutcomeCreated
	if target != nil {
		outcome = OutcomeUpdated
		if isRule {
			if err := e.unpublishRule(ctx, target); err != nil {
				return OutcomeFailed, at("Unpublishing Duplicate Detection rule", err)
			}
		}
		if err := e.target.Update(ctx, rec); err != nil {
			return OutcomeFailed, at("Updating Duplicate Detection rule", err)
		}
	} else if _, err := e.target.Create(ctx, rec); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "matchcode length to exceed") {
			err = fmt.Errorf("please delete the duplicate detection rule from the target and try again: %w", err)
		}
		return OutcomeFailed, at("Inserting Duplicate Detection rule", err)
	}

	if isRule {
		if status, ok := pre.statusCode(); ok && status == service.RuleStatusPublished {
			if _, err := e.target.Execute(ctx, service.PublishDuplicateRule{ID: rec.ID}); err != nil {
				return OutcomeFailed, at("Publishing Duplicate Detection rule", err)
			}
			pre.restore(rec)
			if err := e.waiter.Settle(ctx, e.timings.StateChange); err != nil {
				return OutcomeFailed, at("Publishing Duplicate Detection rule", err)
			}
		}
	}
	return outcome, nil
}

// unpublishRule unpublishes an existing target rule unless it is known to be
// unpublished already.
func (e *Engine) unpublishRule(ctx context.Context, target *ir.Record) error {
	if status, ok := target.OptionCode("statuscode"); ok && status != service.RuleStatusPublished {
		return nil
	}
	if _, err := e.target.Execute(ctx, service.UnpublishDuplicateRule{ID: target.ID}); err != nil {
		return err
	}
	return e.waiter.Settle(ctx, e.timings.StateChange)
}
