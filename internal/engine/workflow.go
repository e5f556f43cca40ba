package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
)

// upsertWorkflowOrSLA writes a workflow, SLA or SLA item.
//
// Active workflows and SLAs cannot be written. Both go out in draft; the
// target's copy is deactivated first, together with any active SLA that
// depends on a workflow. After the write, whatever was active in the source
// is activated again and the captured state restored on the record.
func (e *Engine) upsertWorkflowOrSLA(ctx context.Context, rec, target *ir.Record) (Outcome, error) {
	pre := captureState(rec)
	typ := strings.ToLower(rec.Type)

	switch typ {
	case "sla":
		if err := e.fixSLATypeCode(rec); err != nil {
			return OutcomeFailed, at("Updating ObjectTypeCode of the entity with SLA", err)
		}
		setState(rec, service.SLAStateDraft, service.SLAStatusDraft)
	case "workflow":
		if state, ok := pre.stateCode(); ok && state == service.WorkflowStateActivated {
			setState(rec, service.WorkflowStateDraft, service.WorkflowStatusDraft)
		}
	}

	if target == nil {
		if _, err := e.target.Create(ctx, rec); err != nil {
			return OutcomeFailed, at("Inserting", err)
		}
	} else {
		switch typ {
		case "workflow":
			if err := e.deactivateSLAsOfWorkflow(ctx, rec.ID); err != nil {
				return OutcomeFailed, at("Deactivating SLA related to the workflow", err)
			}
			if err := e.deactivateWorkflow(ctx, target); err != nil {
				return OutcomeFailed, at("Deactivating Workflow before importing workflow", err)
			}
		case "sla":
			if err := e.target.Update(ctx, stateRecord("sla", rec, service.SLAStateDraft, service.SLAStatusDraft)); err != nil {
				return OutcomeFailed, at("Deactivating SLA before importing SLA", err)
			}
		}
		if err := e.target.Update(ctx, rec); err != nil {
			return OutcomeFailed, at("Updating", err)
		}
	}

	switch typ {
	case "sla":
		if err := e.activateSLA(ctx, rec, pre); err != nil {
			return OutcomeFailed, at("Activating SLA", err)
		}
	case "workflow":
		if err := e.activateWorkflow(ctx, rec, pre); err != nil {
			return OutcomeFailed, at("Activating Workflow", err)
		}
	}

	if target == nil {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}

// deactivateSLAsOfWorkflow moves every active SLA that uses the workflow,
// directly or through one of its items, to draft. Deactivating them
// deactivates the workflow server-side, so the workflow's state is then
// polled until it leaves the active state or the poll runs out.
func (e *Engine) deactivateSLAsOfWorkflow(ctx context.Context, workflowID uuid.UUID) error {
	active := queryir.Equals{Field: "statecode", Value: ir.Option{Code: service.SLAStateActive}}
	workflow := ir.ID(workflowID)

	viaItems, err := e.target.Query(ctx, queryir.Query{
		Type:    "sla",
		Filter:  active,
		Columns: queryir.Columns("slaid"),
		Link: &queryir.Link{
			Type:   "slaitem",
			From:   "slaid",
			To:     "slaid",
			Filter: queryir.Equals{Field: "workflowid", Value: workflow},
		},
	})
	if err != nil {
		return err
	}
	direct, err := e.target.Query(ctx, queryir.Query{
		Type:    "sla",
		Filter:  queryir.AllOf(active, queryir.Equals{Field: "workflowid", Value: workflow}),
		Columns: queryir.Columns("slaid"),
	})
	if err != nil {
		return err
	}

	seen := make(map[uuid.UUID]bool)
	for _, sla := range append(viaItems, direct...) {
		if seen[sla.ID] {
			continue
		}
		seen[sla.ID] = true
		if err := e.target.Update(ctx, stateRecord("sla", sla, service.SLAStateDraft, service.SLAStatusDraft)); err != nil {
			return err
		}
	}
	if len(seen) == 0 {
		return nil
	}

	_, err = e.waiter.Until(ctx, e.timings.WorkflowPoll, func(ctx context.Context) (bool, error) {
		wf, err := e.target.Retrieve(ctx, "workflow", workflowID, queryir.Columns("statecode"))
		if err != nil {
			return false, err
		}
		state, ok := wf.OptionCode("statecode")
		return !ok || state != service.WorkflowStateActivated, nil
	})
	return err
}

// deactivateWorkflow moves an active target workflow to draft. A target
// whose state is unknown is treated as active.
func (e *Engine) deactivateWorkflow(ctx context.Context, target *ir.Record) error {
	if state, ok := target.OptionCode("statecode"); ok && state != service.WorkflowStateActivated {
		return nil
	}
	_, err := e.target.Execute(ctx, service.SetState{
		Type:   "workflow",
		ID:     target.ID,
		State:  service.WorkflowStateDraft,
		Status: service.WorkflowStatusDraft,
	})
	if err != nil {
		return err
	}
	return e.waiter.Settle(ctx, e.timings.StateChange)
}

// activateSLA restores an SLA that was active in the source.
func (e *Engine) activateSLA(ctx context.Context, rec *ir.Record, pre stateSnapshot) error {
	status, ok := pre.statusCode()
	if !ok || status != service.SLAStatusActive {
		return nil
	}
	state, _ := pre.stateCode()
	if err := e.target.Update(ctx, stateRecord("sla", rec, state, status)); err != nil {
		return err
	}
	pre.restore(rec)
	return nil
}

// activateWorkflow restores a workflow that was activated in the source.
func (e *Engine) activateWorkflow(ctx context.Context, rec *ir.Record, pre stateSnapshot) error {
	state, ok := pre.stateCode()
	if !ok || state != service.WorkflowStateActivated {
		return nil
	}
	status, ok := pre.statusCode()
	if !ok {
		status = service.WorkflowStatusActive
	}
	_, err := e.target.Execute(ctx, service.SetState{Type: "workflow", ID: rec.ID, State: state, Status: status})
	if err != nil {
		return err
	}
	pre.restore(rec)
	return e.waiter.Settle(ctx, e.timings.StateChange)
}
