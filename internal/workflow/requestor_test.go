package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	domain "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// returnInstanceToRequestor drives a fresh instance into the
// awaiting-requestor state via a tier 1 rejection.
func returnInstanceToRequestor(t *testing.T, env *testEnv, instanceID string) {
	t.Helper()
	_, err := env.engine.RejectApproval(context.Background(), RejectApprovalRequest{
		TenantID: testTenant, InstanceID: instanceID,
		StepID: "s1", Tier: 1, ActorID: "mgr-1", Reason: "needs rework",
	})
	require.NoError(t, err)
}

func TestCancelFromPending(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)

	result, err := env.engine.Cancel(context.Background(), CancelRequest{
		TenantID: testTenant, InstanceID: created.InstanceID,
		ActorID: "requestor-1", Reason: "no longer needed",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, result.Status)
	assert.Empty(t, result.CurrentStepID)

	instance, err := env.engine.GetInstance(context.Background(), testTenant, created.InstanceID)
	require.NoError(t, err)
	assert.True(t, instance.IsTerminal())
	assert.NotNil(t, instance.CompletedAt)

	history, err := env.engine.GetHistory(context.Background(), testTenant, created.InstanceID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.ActionCancelled, history[0].Action)
}

func TestCancelFromReturned(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)
	returnInstanceToRequestor(t, env, created.InstanceID)

	result, err := env.engine.Cancel(context.Background(), CancelRequest{
		TenantID: testTenant, InstanceID: created.InstanceID, ActorID: "requestor-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, result.Status)
}

func TestCancelByNonRequestorIsDenied(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)

	_, err := env.engine.Cancel(context.Background(), CancelRequest{
		TenantID: testTenant, InstanceID: created.InstanceID, ActorID: "mgr-1",
	})
	assert.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestCancelTerminalInstanceIsConflict(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 1)
	created := createInstance(t, env, template.ID)

	_, err := env.engine.ApproveStep(context.Background(), ApproveStepRequest{
		TenantID: testTenant, InstanceID: created.InstanceID, StepID: "s1", ActorID: "mgr-1",
	})
	require.NoError(t, err)

	_, err = env.engine.Cancel(context.Background(), CancelRequest{
		TenantID: testTenant, InstanceID: created.InstanceID, ActorID: "requestor-1",
	})
	assert.ErrorIs(t, err, domain.ErrStateConflict)
}

func TestResubmitRequiresReturnedState(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)

	_, err := env.engine.Resubmit(context.Background(), ResubmitRequest{
		TenantID: testTenant, InstanceID: created.InstanceID, ActorID: "requestor-1",
	})
	assert.ErrorIs(t, err, domain.ErrStateConflict)
}

func TestResubmitByNonRequestorIsDenied(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)
	returnInstanceToRequestor(t, env, created.InstanceID)

	_, err := env.engine.Resubmit(context.Background(), ResubmitRequest{
		TenantID: testTenant, InstanceID: created.InstanceID, ActorID: "mgr-1",
	})
	assert.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestResubmitLimitEnforced(t *testing.T) {
	env := newTestEnv(t, Policy{MaxResubmits: 1})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)
	ctx := context.Background()

	returnInstanceToRequestor(t, env, created.InstanceID)
	result, err := env.engine.Resubmit(ctx, ResubmitRequest{
		TenantID: testTenant, InstanceID: created.InstanceID, ActorID: "requestor-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ResubmitCount)

	returnInstanceToRequestor(t, env, created.InstanceID)
	_, err = env.engine.Resubmit(ctx, ResubmitRequest{
		TenantID: testTenant, InstanceID: created.InstanceID, ActorID: "requestor-1",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAppealRequiresReason(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)
	returnInstanceToRequestor(t, env, created.InstanceID)

	_, err := env.engine.Appeal(context.Background(), AppealRequest{
		TenantID: testTenant, InstanceID: created.InstanceID,
		ActorID: "requestor-1", AppealReason: "",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAppealRestartsChain(t *testing.T) {
	env := newTestEnv(t, Policy{})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)
	returnInstanceToRequestor(t, env, created.InstanceID)

	result, err := env.engine.Appeal(context.Background(), AppealRequest{
		TenantID: testTenant, InstanceID: created.InstanceID,
		ActorID: "requestor-1", AppealReason: "decision misread the request",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, result.Status)
	assert.Equal(t, "s1", result.CurrentStepID)
	assert.Equal(t, 1, result.AppealCount)
	assert.Equal(t, 0, result.ResubmitCount)

	instance, err := env.engine.GetInstance(context.Background(), testTenant, created.InstanceID)
	require.NoError(t, err)
	require.Len(t, instance.AppealHistory, 1)
	assert.Equal(t, "decision misread the request", instance.AppealHistory[0].Reason)
	assert.Empty(t, instance.ResubmitHistory)
}

func TestAppealLimitEnforced(t *testing.T) {
	env := newTestEnv(t, Policy{MaxAppeals: 1})
	template := seedTemplate(t, env, 2)
	created := createInstance(t, env, template.ID)
	ctx := context.Background()

	returnInstanceToRequestor(t, env, created.InstanceID)
	_, err := env.engine.Appeal(ctx, AppealRequest{
		TenantID: testTenant, InstanceID: created.InstanceID,
		ActorID: "requestor-1", AppealReason: "first appeal",
	})
	require.NoError(t, err)

	returnInstanceToRequestor(t, env, created.InstanceID)
	_, err = env.engine.Appeal(ctx, AppealRequest{
		TenantID: testTenant, InstanceID: created.InstanceID,
		ActorID: "requestor-1", AppealReason: "second appeal",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
