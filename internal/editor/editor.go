// Package editor holds the plan and module form model: opening forms from
// the catalog, validating them and saving them through the backend.
package editor

import (
	"context"
	"strings"

	"github.com/samber/lo"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	ierr "github.com/smallbiznis/console/internal/errors"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	"go.uber.org/zap"
)

// Backend is the write side of the catalog API.
type Backend interface {
	CreatePlan(ctx context.Context, plan catalogdomain.Plan) (catalogdomain.Plan, error)
	UpdatePlan(ctx context.Context, plan catalogdomain.Plan) (catalogdomain.Plan, error)
	DeletePlan(ctx context.Context, planID string) error
	CreateModule(ctx context.Context, module catalogdomain.Module) (catalogdomain.Module, error)
	UpdateModule(ctx context.Context, module catalogdomain.Module) (catalogdomain.Module, error)
	DeleteModule(ctx context.Context, moduleID string) error
}

// SaveResult is the server-confirmed record of a save.
type SaveResult struct {
	Kind   catalogdomain.Kind    `json:"kind"`
	Plan   *catalogdomain.Plan   `json:"plan,omitempty"`
	Module *catalogdomain.Module `json:"module,omitempty"`
}

// Editor edits the catalog of one session.
type Editor struct {
	store   catalogdomain.Store
	backend Backend
	log     *zap.Logger
	metrics *obsmetrics.ConsoleMetrics
}

func New(store catalogdomain.Store, backend Backend, log *zap.Logger, metrics *obsmetrics.ConsoleMetrics) *Editor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Editor{
		store:   store,
		backend: backend,
		log:     log.Named("editor"),
		metrics: metrics,
	}
}

// OpenCreate returns a blank form. Plan forms list every catalog module
// unchecked.
func (e *Editor) OpenCreate(kind catalogdomain.Kind) (Form, error) {
	switch kind {
	case catalogdomain.KindPlan:
		return Form{Kind: kind, Plan: &PlanForm{
			Mode:     ModeCreate,
			Modules:  checklist(e.store.Modules(), nil),
			IsActive: true,
		}}, nil
	case catalogdomain.KindModule:
		return Form{Kind: kind, Module: &ModuleForm{
			Mode:     ModeCreate,
			IsActive: true,
		}}, nil
	default:
		return Form{}, ierr.NewFieldError("kind", "oneof", "Kind must be plan or module")
	}
}

// OpenEdit loads the record id into a form. A missing record is an error,
// never a blank form.
func (e *Editor) OpenEdit(kind catalogdomain.Kind, id string) (Form, error) {
	id = strings.TrimSpace(id)
	switch kind {
	case catalogdomain.KindPlan:
		plan, ok := e.store.FindPlan(id)
		if !ok {
			return Form{}, notFound("Plan", id)
		}
		return Form{Kind: kind, Plan: planForm(plan, e.store.Modules())}, nil
	case catalogdomain.KindModule:
		module, ok := e.store.FindModule(id)
		if !ok {
			return Form{}, notFound("Module", id)
		}
		return Form{Kind: kind, Module: moduleForm(module)}, nil
	default:
		return Form{}, ierr.NewFieldError("kind", "oneof", "Kind must be plan or module")
	}
}

func notFound(what, id string) error {
	msg := strings.ToLower(what) + " not found"
	return ierr.NewError(msg).
		WithHintf("%s %q was not found", what, id).
		Mark(ierr.ErrNotFound)
}

// Save validates form, writes it to the backend and stores the confirmed
// record. The form itself is never modified, so a failed save can be
// retried with the user's input intact.
func (e *Editor) Save(ctx context.Context, form Form) (SaveResult, error) {
	mode := formMode(form)
	if err := Validate(form); err != nil {
		e.metrics.RecordEditorSave(string(form.Kind), string(mode), obsmetrics.OutcomeValidation)
		return SaveResult{}, err
	}

	result, err := e.write(ctx, form)
	e.metrics.RecordEditorSave(string(form.Kind), string(mode), outcome(err))
	if err != nil {
		e.log.Info("save rejected",
			zap.String("kind", string(form.Kind)),
			zap.String("mode", string(mode)),
			zap.String("error_code", ierr.Code(err)),
		)
		return SaveResult{}, err
	}
	return result, nil
}

func (e *Editor) write(ctx context.Context, form Form) (SaveResult, error) {
	if form.Kind == catalogdomain.KindPlan {
		plan := form.Plan.toPlan()
		var (
			saved catalogdomain.Plan
			err   error
		)
		if form.Plan.Mode == ModeCreate {
			saved, err = e.backend.CreatePlan(ctx, plan)
		} else {
			saved, err = e.backend.UpdatePlan(ctx, plan)
		}
		if err != nil {
			return SaveResult{}, err
		}
		stored := e.store.UpsertPlan(saved)
		return SaveResult{Kind: form.Kind, Plan: &stored}, nil
	}

	module := form.Module.toModule()
	var (
		saved catalogdomain.Module
		err   error
	)
	if form.Module.Mode == ModeCreate {
		saved, err = e.backend.CreateModule(ctx, module)
	} else {
		saved, err = e.backend.UpdateModule(ctx, module)
	}
	if err != nil {
		return SaveResult{}, err
	}
	stored := e.store.UpsertModule(saved)
	return SaveResult{Kind: form.Kind, Module: &stored}, nil
}

// Delete removes a record. A module still referenced by any plan is
// rejected without calling the backend.
func (e *Editor) Delete(ctx context.Context, kind catalogdomain.Kind, id string) error {
	id = strings.TrimSpace(id)
	switch kind {
	case catalogdomain.KindPlan:
		if _, ok := e.store.FindPlan(id); !ok {
			return notFound("Plan", id)
		}
		if err := e.backend.DeletePlan(ctx, id); err != nil {
			if ierr.IsNotFound(err) {
				e.store.RemovePlan(id)
			}
			return err
		}
		e.store.RemovePlan(id)
		return nil
	case catalogdomain.KindModule:
		if _, ok := e.store.FindModule(id); !ok {
			return notFound("Module", id)
		}
		if refs := e.store.Snapshot().PlansReferencing(id); len(refs) > 0 {
			names := lo.Map(refs, func(p catalogdomain.Plan, _ int) string { return p.Name })
			return ierr.NewError("module referenced").
				WithHintf("Module is still included in: %s. Remove it from those plans first.", strings.Join(names, ", ")).
				Mark(ierr.ErrConflict)
		}
		if err := e.backend.DeleteModule(ctx, id); err != nil {
			if ierr.IsNotFound(err) {
				e.store.RemoveModule(id)
			}
			return err
		}
		e.store.RemoveModule(id)
		return nil
	default:
		return ierr.NewFieldError("kind", "oneof", "Kind must be plan or module")
	}
}

func formMode(form Form) Mode {
	switch {
	case form.Plan != nil:
		return form.Plan.Mode
	case form.Module != nil:
		return form.Module.Mode
	default:
		return ""
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return obsmetrics.OutcomeSuccess
	case ierr.IsValidation(err):
		return obsmetrics.OutcomeValidation
	case ierr.IsConflict(err):
		return obsmetrics.OutcomeConflict
	case ierr.IsNotFound(err):
		return obsmetrics.OutcomeNotFound
	default:
		return obsmetrics.OutcomeFetch
	}
}
