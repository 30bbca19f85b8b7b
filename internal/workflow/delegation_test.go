package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	domain "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

func addDelegation(t *testing.T, env *testEnv, id, fromUser, toUser string, start, end time.Time) {
	t.Helper()
	require.NoError(t, env.engine.AddDelegation(context.Background(), &entity.DelegationRule{
		ID:        id,
		TenantID:  testTenant,
		FromUser:  fromUser,
		ToUser:    toUser,
		StartDate: start,
		EndDate:   end,
		Active:    true,
	}))
}

func TestAddDelegationValidation(t *testing.T) {
	env := newTestEnv(t, Policy{})
	now := time.Now()

	err := env.engine.AddDelegation(context.Background(), &entity.DelegationRule{
		ID: "d-1", TenantID: testTenant, FromUser: "", ToUser: "deputy-1",
		StartDate: now, EndDate: now.Add(24 * time.Hour), Active: true,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = env.engine.AddDelegation(context.Background(), &entity.DelegationRule{
		ID: "d-2", TenantID: testTenant, FromUser: "mgr-1", ToUser: "deputy-1",
		StartDate: now, EndDate: now.Add(-24 * time.Hour), Active: true,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveApproverWithoutRules(t *testing.T) {
	env := newTestEnv(t, Policy{})

	resolved, err := env.engine.ResolveApprover(context.Background(), testTenant, "mgr-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", resolved)
}

func TestResolveApproverOutsideWindow(t *testing.T) {
	env := newTestEnv(t, Policy{})
	now := time.Now()
	addDelegation(t, env, "d-1", "mgr-1", "deputy-1", now.Add(24*time.Hour), now.Add(48*time.Hour))

	resolved, err := env.engine.ResolveApprover(context.Background(), testTenant, "mgr-1", now)
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", resolved)
}

func TestResolveApproverOverlappingRules(t *testing.T) {
	env := newTestEnv(t, Policy{})
	now := time.Now()

	addDelegation(t, env, "d-1", "mgr-1", "deputy-1", now.Add(-time.Hour), now.Add(time.Hour))
	addDelegation(t, env, "d-2", "mgr-1", "deputy-2", now.Add(-time.Hour), now.Add(time.Hour))

	// The most recently created rule wins the overlap.
	resolved, err := env.engine.ResolveApprover(context.Background(), testTenant, "mgr-1", now)
	require.NoError(t, err)
	assert.Equal(t, "deputy-2", resolved)
}

func TestDelegateMayActOnStep(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)
	now := time.Now()

	addDelegation(t, env, "d-1", "mgr-1", "deputy-1", now.Add(-time.Hour), now.Add(time.Hour))

	result, err := env.engine.ApproveStep(context.Background(), ApproveStepRequest{
		TenantID: testTenant, InstanceID: created.InstanceID,
		StepID: "s1", ActorID: "deputy-1", Comments: "approved while mgr-1 is away",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, result.Status)

	history, err := env.engine.GetHistory(context.Background(), testTenant, created.InstanceID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "deputy-1", history[0].Actor)
}

func TestDelegationDoesNotAuthorizeStrangers(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)
	now := time.Now()

	addDelegation(t, env, "d-1", "mgr-1", "deputy-1", now.Add(-time.Hour), now.Add(time.Hour))

	_, err := env.engine.ApproveStep(context.Background(), ApproveStepRequest{
		TenantID: testTenant, InstanceID: created.InstanceID,
		StepID: "s1", ActorID: "deputy-2",
	})
	assert.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestExpiredDelegationIsIgnored(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)
	now := time.Now()

	addDelegation(t, env, "d-1", "mgr-1", "deputy-1", now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	_, err := env.engine.ApproveStep(context.Background(), ApproveStepRequest{
		TenantID: testTenant, InstanceID: created.InstanceID,
		StepID: "s1", ActorID: "deputy-1",
	})
	assert.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestDeactivatedDelegationIsIgnored(t *testing.T) {
	env := newTestEnv(t, Policy{})
	now := time.Now()
	addDelegation(t, env, "d-1", "mgr-1", "deputy-1", now.Add(-time.Hour), now.Add(time.Hour))

	require.NoError(t, env.delegations.Deactivate(context.Background(), testTenant, "d-1"))

	resolved, err := env.engine.ResolveApprover(context.Background(), testTenant, "mgr-1", now)
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", resolved)
}
