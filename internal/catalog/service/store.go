package service

import (
	"context"
	"sync"

	"github.com/samber/lo"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	ierr "github.com/smallbiznis/console/internal/errors"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is the in-memory catalog of one console session. Loads and upserts
// are ordered by a sequence number: a load commits only if no newer load or
// upsert has committed the same list since the load started.
type Store struct {
	source  catalogdomain.Source
	log     *zap.Logger
	metrics *obsmetrics.ConsoleMetrics

	mu         sync.RWMutex
	seq        uint64
	plansSeq   uint64
	modulesSeq uint64
	plans      []catalogdomain.Plan
	modules    []catalogdomain.Module
	hasPlans   bool
	hasModules bool
}

func NewStore(source catalogdomain.Source, log *zap.Logger, metrics *obsmetrics.ConsoleMetrics) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		source:  source,
		log:     log.Named("catalog.store"),
		metrics: metrics,
		plans:   []catalogdomain.Plan{},
		modules: []catalogdomain.Module{},
	}
}

func (s *Store) ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// LoadPlans replaces the plan list with a fresh fetch. On failure the store
// keeps its previous plans.
func (s *Store) LoadPlans(ctx context.Context) ([]catalogdomain.Plan, error) {
	ticket := s.ticket()
	plans, err := s.fetchPlans(ctx)
	if err != nil {
		return nil, err
	}
	return s.commitPlans(ticket, plans), nil
}

// LoadModules replaces the module list with a fresh fetch. On failure the
// store keeps its previous modules.
func (s *Store) LoadModules(ctx context.Context) ([]catalogdomain.Module, error) {
	ticket := s.ticket()
	modules, err := s.fetchModules(ctx)
	if err != nil {
		return nil, err
	}
	return s.commitModules(ticket, modules), nil
}

// Load fetches plans and modules concurrently and replaces both only when
// both fetches succeed.
func (s *Store) Load(ctx context.Context) (catalogdomain.Snapshot, error) {
	ticket := s.ticket()

	var (
		plans   []catalogdomain.Plan
		modules []catalogdomain.Module
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plans, err = s.fetchPlans(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		modules, err = s.fetchModules(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return catalogdomain.Snapshot{}, err
	}

	s.commitPlans(ticket, plans)
	s.commitModules(ticket, modules)
	return s.Snapshot(), nil
}

func (s *Store) fetchPlans(ctx context.Context) ([]catalogdomain.Plan, error) {
	plans, err := s.source.ListPlans(ctx)
	if err != nil {
		s.metrics.RecordCatalogLoad("plans", obsmetrics.OutcomeFetch)
		s.log.Warn("failed to load plans", zap.Error(err))
		return nil, asFetch(err, "Failed to load plans")
	}
	if err := catalogdomain.ValidatePlans(plans); err != nil {
		s.metrics.RecordCatalogLoad("plans", obsmetrics.OutcomeFetch)
		return nil, asFetch(err, "Failed to load plans")
	}
	return plans, nil
}

func (s *Store) fetchModules(ctx context.Context) ([]catalogdomain.Module, error) {
	modules, err := s.source.ListModules(ctx)
	if err != nil {
		s.metrics.RecordCatalogLoad("modules", obsmetrics.OutcomeFetch)
		s.log.Warn("failed to load modules", zap.Error(err))
		return nil, asFetch(err, "Failed to load modules")
	}
	if err := catalogdomain.ValidateModules(modules); err != nil {
		s.metrics.RecordCatalogLoad("modules", obsmetrics.OutcomeFetch)
		return nil, asFetch(err, "Failed to load modules")
	}
	return modules, nil
}

func asFetch(err error, hint string) error {
	if ierr.IsFetch(err) {
		return err
	}
	return ierr.WithError(err).WithHint(hint).Mark(ierr.ErrFetch)
}

func (s *Store) commitPlans(ticket uint64, plans []catalogdomain.Plan) []catalogdomain.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket < s.plansSeq {
		s.metrics.RecordCatalogLoad("plans", obsmetrics.OutcomeStale)
		s.log.Debug("discarding stale plan load", zap.Uint64("ticket", ticket), zap.Uint64("committed", s.plansSeq))
		return clonePlans(s.plans)
	}
	s.plans = clonePlans(plans)
	s.plansSeq = ticket
	s.hasPlans = true
	s.metrics.RecordCatalogLoad("plans", obsmetrics.OutcomeSuccess)
	return clonePlans(s.plans)
}

func (s *Store) commitModules(ticket uint64, modules []catalogdomain.Module) []catalogdomain.Module {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket < s.modulesSeq {
		s.metrics.RecordCatalogLoad("modules", obsmetrics.OutcomeStale)
		s.log.Debug("discarding stale module load", zap.Uint64("ticket", ticket), zap.Uint64("committed", s.modulesSeq))
		return append([]catalogdomain.Module{}, s.modules...)
	}
	s.modules = append([]catalogdomain.Module{}, modules...)
	s.modulesSeq = ticket
	s.hasModules = true
	s.metrics.RecordCatalogLoad("modules", obsmetrics.OutcomeSuccess)
	return append([]catalogdomain.Module{}, s.modules...)
}

// UpsertPlan stores the server-confirmed plan, replacing by id or appending.
func (s *Store) UpsertPlan(plan catalogdomain.Plan) catalogdomain.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.plansSeq = s.seq
	stored := plan.Clone()
	if _, idx, ok := lo.FindIndexOf(s.plans, func(p catalogdomain.Plan) bool { return p.PlanID == plan.PlanID }); ok {
		s.plans[idx] = stored
	} else {
		s.plans = append(s.plans, stored)
	}
	return stored.Clone()
}

// UpsertModule stores the server-confirmed module, replacing by id or appending.
func (s *Store) UpsertModule(module catalogdomain.Module) catalogdomain.Module {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.modulesSeq = s.seq
	if _, idx, ok := lo.FindIndexOf(s.modules, func(m catalogdomain.Module) bool { return m.ModuleID == module.ModuleID }); ok {
		s.modules[idx] = module
	} else {
		s.modules = append(s.modules, module)
	}
	return module
}

func (s *Store) RemovePlan(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.plans)
	s.plans = lo.Reject(s.plans, func(p catalogdomain.Plan, _ int) bool { return p.PlanID == id })
	if len(s.plans) == before {
		return false
	}
	s.seq++
	s.plansSeq = s.seq
	return true
}

func (s *Store) RemoveModule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.modules)
	s.modules = lo.Reject(s.modules, func(m catalogdomain.Module, _ int) bool { return m.ModuleID == id })
	if len(s.modules) == before {
		return false
	}
	s.seq++
	s.modulesSeq = s.seq
	return true
}

func (s *Store) FindModule(id string) (catalogdomain.Module, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Find(s.modules, func(m catalogdomain.Module) bool { return m.ModuleID == id })
}

func (s *Store) FindPlan(id string) (catalogdomain.Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := lo.Find(s.plans, func(p catalogdomain.Plan) bool { return p.PlanID == id })
	if !ok {
		return catalogdomain.Plan{}, false
	}
	return plan.Clone(), true
}

func (s *Store) Plans() []catalogdomain.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePlans(s.plans)
}

func (s *Store) Modules() []catalogdomain.Module {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]catalogdomain.Module{}, s.modules...)
}

func (s *Store) Snapshot() catalogdomain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return catalogdomain.Snapshot{
		Plans:   clonePlans(s.plans),
		Modules: append([]catalogdomain.Module{}, s.modules...),
	}
}

// Loaded reports whether both lists have been loaded at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPlans && s.hasModules
}

func clonePlans(plans []catalogdomain.Plan) []catalogdomain.Plan {
	return lo.Map(plans, func(p catalogdomain.Plan, _ int) catalogdomain.Plan { return p.Clone() })
}

var _ catalogdomain.Store = (*Store)(nil)
