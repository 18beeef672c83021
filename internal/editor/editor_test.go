package editor

import (
	"context"
	"testing"

	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/console/internal/catalog/service"
	ierr "github.com/smallbiznis/console/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreatePlan(ctx context.Context, plan catalogdomain.Plan) (catalogdomain.Plan, error) {
	args := m.Called(ctx, plan)
	return args.Get(0).(catalogdomain.Plan), args.Error(1)
}

func (m *mockBackend) UpdatePlan(ctx context.Context, plan catalogdomain.Plan) (catalogdomain.Plan, error) {
	args := m.Called(ctx, plan)
	return args.Get(0).(catalogdomain.Plan), args.Error(1)
}

func (m *mockBackend) DeletePlan(ctx context.Context, planID string) error {
	return m.Called(ctx, planID).Error(0)
}

func (m *mockBackend) CreateModule(ctx context.Context, module catalogdomain.Module) (catalogdomain.Module, error) {
	args := m.Called(ctx, module)
	return args.Get(0).(catalogdomain.Module), args.Error(1)
}

func (m *mockBackend) UpdateModule(ctx context.Context, module catalogdomain.Module) (catalogdomain.Module, error) {
	args := m.Called(ctx, module)
	return args.Get(0).(catalogdomain.Module), args.Error(1)
}

func (m *mockBackend) DeleteModule(ctx context.Context, moduleID string) error {
	return m.Called(ctx, moduleID).Error(0)
}

func int64Ptr(v int64) *int64 { return &v }

func newFixture(t *testing.T) (*Editor, *catalogservice.Store, *mockBackend) {
	t.Helper()
	store := catalogservice.NewStore(nil, nil, nil)
	store.UpsertModule(catalogdomain.Module{ModuleID: "crm", Name: "CRM", IsActive: true})
	store.UpsertModule(catalogdomain.Module{ModuleID: "inv", Name: "Inventory", IsActive: false})
	store.UpsertPlan(catalogdomain.Plan{
		PlanID:       "basic",
		Name:         "Basic",
		MonthlyPrice: 1000,
		YearlyPrice:  10000,
		MaxUsers:     int64Ptr(5),
		Modules:      []string{"crm", "ghost"},
		Features:     []string{"Email support", "1 GB storage"},
		IsActive:     true,
	})
	backend := new(mockBackend)
	return New(store, backend, nil, nil), store, backend
}

func TestOpenCreateDefaults(t *testing.T) {
	ed, _, _ := newFixture(t)

	form, err := ed.OpenCreate(catalogdomain.KindPlan)
	require.NoError(t, err)
	require.NotNil(t, form.Plan)
	assert.True(t, form.Plan.IsActive)
	assert.Equal(t, ModeCreate, form.Plan.Mode)
	require.Len(t, form.Plan.Modules, 2)
	for _, opt := range form.Plan.Modules {
		assert.False(t, opt.Checked)
	}

	form, err = ed.OpenCreate(catalogdomain.KindModule)
	require.NoError(t, err)
	assert.True(t, form.Module.IsActive)
	assert.Empty(t, form.Module.ModuleID)
}

func TestOpenEditMaterializesChecklist(t *testing.T) {
	ed, _, _ := newFixture(t)

	form, err := ed.OpenEdit(catalogdomain.KindPlan, "basic")
	require.NoError(t, err)

	plan := form.Plan
	assert.Equal(t, "basic", plan.OriginalID)
	assert.Equal(t, "Email support\n1 GB storage", plan.FeaturesText)
	require.Len(t, plan.Modules, 3)
	assert.Equal(t, ModuleOption{ModuleID: "crm", Name: "CRM", Checked: true}, plan.Modules[0])
	assert.Equal(t, ModuleOption{ModuleID: "inv", Name: "Inventory", Inactive: true}, plan.Modules[1])
	assert.Equal(t, ModuleOption{ModuleID: "ghost", Name: "ghost", Checked: true, Missing: true}, plan.Modules[2])
}

func TestOpenEditUnknownIsNotFound(t *testing.T) {
	ed, _, _ := newFixture(t)

	_, err := ed.OpenEdit(catalogdomain.KindPlan, "enterprise")
	require.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))

	_, err = ed.OpenEdit(catalogdomain.KindModule, "ghost")
	assert.True(t, ierr.IsNotFound(err))
}

func TestValidateReportsEveryField(t *testing.T) {
	form := Form{Kind: catalogdomain.KindPlan, Plan: &PlanForm{
		Mode:         ModeCreate,
		PlanID:       "Pro Plan",
		MonthlyPrice: int64Ptr(-1),
		MaxUsers:     int64Ptr(0),
	}}

	err := Validate(form)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	fields := ierr.FieldErrorsFrom(err)
	require.NotNil(t, fields)
	assert.Equal(t, []string{"max_users", "monthly_price", "name", "plan_id", "yearly_price"}, fields.Fields())
}

func TestValidateIdentifierCharset(t *testing.T) {
	cases := map[string]bool{
		"pro":          true,
		"pro-2024":     true,
		"team_plus":    true,
		"Pro":          false,
		"pro plan":     false,
		"-pro":         false,
		"pro--annual":  false,
		"pro_":         false,
		"crm.advanced": false,
	}
	for id, ok := range cases {
		t.Run(id, func(t *testing.T) {
			err := Validate(Form{Kind: catalogdomain.KindModule, Module: &ModuleForm{Mode: ModeCreate, ModuleID: id, Name: "Module"}})
			assert.Equal(t, ok, err == nil, "id %q: %v", id, err)
		})
	}
}

func TestValidateKeepsStoredIdentifierOnEdit(t *testing.T) {
	form := Form{Kind: catalogdomain.KindPlan, Plan: &PlanForm{
		Mode:         ModeEdit,
		OriginalID:   "pro_",
		PlanID:       "pro_",
		Name:         "Pro",
		MonthlyPrice: int64Ptr(2500),
		YearlyPrice:  int64Ptr(25000),
	}}
	require.NoError(t, Validate(form))

	form.Plan.Mode = ModeCreate
	form.Plan.OriginalID = ""
	err := Validate(form)
	require.Error(t, err)
	assert.Equal(t, []string{"plan_id"}, ierr.FieldErrorsFrom(err).Fields())
}

func TestSaveValidationFailureMakesNoNetworkCall(t *testing.T) {
	ed, _, backend := newFixture(t)

	_, err := ed.Save(context.Background(), Form{Kind: catalogdomain.KindPlan, Plan: &PlanForm{
		Mode:         ModeCreate,
		PlanID:       "",
		Name:         "Team",
		MonthlyPrice: int64Ptr(500),
		YearlyPrice:  int64Ptr(5000),
	}})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
	assert.Equal(t, []string{"plan_id"}, ierr.FieldErrorsFrom(err).Fields())
	backend.AssertNotCalled(t, "CreatePlan", mock.Anything, mock.Anything)
}

func TestSaveCreateUpsertsConfirmedRecord(t *testing.T) {
	ed, store, backend := newFixture(t)

	form, err := ed.OpenCreate(catalogdomain.KindPlan)
	require.NoError(t, err)
	form.Plan.PlanID = "team"
	form.Plan.Name = "Team"
	form.Plan.MonthlyPrice = int64Ptr(500)
	form.Plan.YearlyPrice = int64Ptr(5000)
	form.Plan.Modules[0].Checked = true
	form.Plan.FeaturesText = "A\nB\n\nC"

	backend.On("CreatePlan", mock.Anything, mock.MatchedBy(func(p catalogdomain.Plan) bool {
		return p.PlanID == "team" &&
			assert.ObjectsAreEqual([]string{"crm"}, p.Modules) &&
			assert.ObjectsAreEqual([]string{"A", "B", "C"}, p.Features)
	})).Return(catalogdomain.Plan{PlanID: "team", Name: "Team", MonthlyPrice: 500, YearlyPrice: 5000, Modules: []string{"crm"}, Features: []string{"A", "B", "C"}, IsActive: true, PriceIDMonthly: "price_new"}, nil)

	result, err := ed.Save(context.Background(), form)
	require.NoError(t, err)
	require.NotNil(t, result.Plan)
	assert.Equal(t, "price_new", result.Plan.PriceIDMonthly)

	stored, ok := store.FindPlan("team")
	require.True(t, ok)
	assert.Equal(t, "price_new", stored.PriceIDMonthly)
	backend.AssertExpectations(t)
}

func TestSaveConflictKeepsFormIntact(t *testing.T) {
	ed, store, backend := newFixture(t)

	form := Form{Kind: catalogdomain.KindPlan, Plan: &PlanForm{
		Mode:         ModeCreate,
		PlanID:       "basic",
		Name:         "Basic again",
		MonthlyPrice: int64Ptr(100),
		YearlyPrice:  int64Ptr(1000),
		FeaturesText: "  One  \n\nTwo",
		IsActive:     true,
	}}
	before := *form.Plan

	conflict := ierr.NewError("status 409").WithHint("Plan ID already exists").Mark(ierr.ErrConflict)
	backend.On("CreatePlan", mock.Anything, mock.Anything).Return(catalogdomain.Plan{}, conflict)

	_, err := ed.Save(context.Background(), form)
	require.Error(t, err)
	assert.True(t, ierr.IsConflict(err))
	assert.Equal(t, "Plan ID already exists", ierr.DisplayMessage(err))
	assert.Equal(t, before, *form.Plan)

	plan, _ := store.FindPlan("basic")
	assert.Equal(t, "Basic", plan.Name)
}

func TestSaveEditNotFound(t *testing.T) {
	ed, _, backend := newFixture(t)

	form, err := ed.OpenEdit(catalogdomain.KindModule, "crm")
	require.NoError(t, err)
	form.Module.Name = "CRM Pro"

	backend.On("UpdateModule", mock.Anything, mock.Anything).
		Return(catalogdomain.Module{}, ierr.NewError("status 404").WithHint("The module no longer exists").Mark(ierr.ErrNotFound))

	_, err = ed.Save(context.Background(), form)
	require.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))
}

func TestSaveEditRejectsIdentifierChange(t *testing.T) {
	ed, _, backend := newFixture(t)

	form, err := ed.OpenEdit(catalogdomain.KindModule, "crm")
	require.NoError(t, err)
	form.Module.ModuleID = "crm2"

	_, err = ed.Save(context.Background(), form)
	require.Error(t, err)
	assert.Equal(t, []string{"module_id"}, ierr.FieldErrorsFrom(err).Fields())
	backend.AssertNotCalled(t, "UpdateModule", mock.Anything, mock.Anything)
}

func TestDeleteReferencedModuleIsRejected(t *testing.T) {
	ed, store, backend := newFixture(t)

	err := ed.Delete(context.Background(), catalogdomain.KindModule, "crm")
	require.Error(t, err)
	assert.True(t, ierr.IsConflict(err))
	assert.Contains(t, ierr.DisplayMessage(err), "Basic")
	backend.AssertNotCalled(t, "DeleteModule", mock.Anything, mock.Anything)

	_, ok := store.FindModule("crm")
	assert.True(t, ok)
}

func TestDeleteUnreferencedModule(t *testing.T) {
	ed, store, backend := newFixture(t)
	backend.On("DeleteModule", mock.Anything, "inv").Return(nil)

	require.NoError(t, ed.Delete(context.Background(), catalogdomain.KindModule, "inv"))
	_, ok := store.FindModule("inv")
	assert.False(t, ok)
}

func TestDeletePlanSurfacesBackendRejection(t *testing.T) {
	ed, store, backend := newFixture(t)
	backend.On("DeletePlan", mock.Anything, "basic").
		Return(ierr.NewError("status 409").WithHint("Plan has active subscriptions").Mark(ierr.ErrConflict))

	err := ed.Delete(context.Background(), catalogdomain.KindPlan, "basic")
	require.Error(t, err)
	assert.True(t, ierr.IsConflict(err))

	_, ok := store.FindPlan("basic")
	assert.True(t, ok)
}
