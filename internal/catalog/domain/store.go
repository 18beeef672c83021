package domain

import (
	"context"
)

// Source fetches full catalog lists from the backend.
type Source interface {
	ListPlans(ctx context.Context) ([]Plan, error)
	ListModules(ctx context.Context) ([]Module, error)
}

// Catalog is the read side consumed by the resolver, editor and projection.
type Catalog interface {
	FindModule(id string) (Module, bool)
	FindPlan(id string) (Plan, bool)
	Snapshot() Snapshot
}

// Store owns the in-memory plan and module lists of one console session.
type Store interface {
	Catalog

	LoadPlans(ctx context.Context) ([]Plan, error)
	LoadModules(ctx context.Context) ([]Module, error)
	Load(ctx context.Context) (Snapshot, error)

	UpsertPlan(plan Plan) Plan
	UpsertModule(module Module) Module
	RemovePlan(id string) bool
	RemoveModule(id string) bool

	Plans() []Plan
	Modules() []Module
	Loaded() bool
}
