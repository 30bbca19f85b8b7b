package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/aggregation"
	"github.com/garyjia/workflow-engine/internal/domain/entity"
	"github.com/garyjia/workflow-engine/internal/repository"
	"github.com/garyjia/workflow-engine/internal/workflow"
	"github.com/garyjia/workflow-engine/pkg/database"
)

const testTenant = "acme"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations(filepath.Join("..", "..", "..", "migrations")))

	templates := repository.NewTemplateRepository(db.DB, logger)
	instances := repository.NewInstanceRepository(db.DB, logger)
	history := repository.NewHistoryRepository(db.DB, logger)
	delegations := repository.NewDelegationRepository(db.DB, logger)
	outbox := repository.NewOutboxRepository(db.DB, logger)

	engine := workflow.NewEngine(db, templates, instances, history, delegations, outbox, workflow.Policy{}, logger)
	inbox := aggregation.NewView(instances, nil, logger)

	require.NoError(t, templates.Create(context.Background(), &entity.WorkflowTemplate{
		ID:       "tpl-purchase",
		TenantID: testTenant,
		Name:     "Purchase approval",
		Category: entity.CategoryPurchase,
		Steps: []entity.WorkflowStep{
			{ID: "s1", StepOrder: 1, TierLevel: 1, ApproverRole: "mgr-1", StepType: entity.StepTypeApproval},
			{ID: "s2", StepOrder: 2, TierLevel: 2, ApproverRole: "mgr-2", StepType: entity.StepTypeApproval},
		},
		Active: true,
	}))

	return NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, engine, inbox, logger)
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) workflow.TransitionResult {
	t.Helper()
	var resp struct {
		Success bool                      `json:"success"`
		Data    workflow.TransitionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func createTestInstance(t *testing.T, server *Server) workflow.TransitionResult {
	t.Helper()
	rec := doJSON(t, server, http.MethodPost, "/api/v1/instances", map[string]any{
		"tenant_id":   testTenant,
		"template_id": "tpl-purchase",
		"started_by":  "requestor-1",
		"metadata":    map[string]string{"item": "laptops"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeResult(t, rec)
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCreateInstanceEndpoint(t *testing.T) {
	server := newTestServer(t)

	result := createTestInstance(t, server)
	assert.Equal(t, entity.StatusPending, result.Status)
	assert.Equal(t, "s1", result.CurrentStepID)
	assert.Equal(t, 1, result.Tier)
}

func TestCreateInstanceMissingFields(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/instances", map[string]any{
		"tenant_id": testTenant,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// The two-tier rejection round trip: approve at tier 1, reject at tier
// 2, cascade through tier 1 back to the requestor, then resubmit.
func TestRejectionRoundTrip(t *testing.T) {
	server := newTestServer(t)
	created := createTestInstance(t, server)
	base := fmt.Sprintf("/api/v1/instances/%s", created.InstanceID)

	rec := doJSON(t, server, http.MethodPost, base+"/approve", map[string]any{
		"tenant_id": testTenant, "step_id": "s1", "actor_id": "mgr-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, entity.StatusInProgress, result.Status)
	assert.Equal(t, "s2", result.CurrentStepID)

	rec = doJSON(t, server, http.MethodPost, base+"/reject", map[string]any{
		"tenant_id": testTenant, "step_id": "s2", "tier": 2,
		"actor_id": "mgr-2", "reason": "budget exceeded",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result = decodeResult(t, rec)
	assert.Equal(t, entity.StatusReturned, result.Status)
	require.NotNil(t, result.TargetTier)
	assert.Equal(t, 1, *result.TargetTier)

	rec = doJSON(t, server, http.MethodPost, base+"/cascade", map[string]any{
		"tenant_id": testTenant, "actor_id": "mgr-1", "reason": "cannot fix here",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result = decodeResult(t, rec)
	assert.True(t, result.ReturnedToRequestor)
	assert.Empty(t, result.CurrentStepID)

	rec = doJSON(t, server, http.MethodPost, base+"/resubmit", map[string]any{
		"tenant_id": testTenant, "actor_id": "requestor-1",
		"changes": map[string]string{"amount_note": "reduced scope"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result = decodeResult(t, rec)
	assert.Equal(t, entity.StatusPending, result.Status)
	assert.Equal(t, 1, result.ResubmitCount)

	rec = doJSON(t, server, http.MethodGet, base+"/history?tenant_id="+testTenant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var histResp struct {
		Data []entity.StepHistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &histResp))
	assert.Len(t, histResp.Data, 4)
}

func TestErrorStatusMapping(t *testing.T) {
	server := newTestServer(t)
	created := createTestInstance(t, server)
	base := fmt.Sprintf("/api/v1/instances/%s", created.InstanceID)

	// Unknown instance -> 404.
	rec := doJSON(t, server, http.MethodGet, "/api/v1/instances/missing?tenant_id="+testTenant, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unassigned actor -> 403.
	rec = doJSON(t, server, http.MethodPost, base+"/approve", map[string]any{
		"tenant_id": testTenant, "step_id": "s1", "actor_id": "intruder",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Acting on a step the instance is not waiting on -> 409.
	rec = doJSON(t, server, http.MethodPost, base+"/approve", map[string]any{
		"tenant_id": testTenant, "step_id": "s2", "actor_id": "mgr-2",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Missing tenant query -> 400.
	rec = doJSON(t, server, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	server := newTestServer(t)
	created := createTestInstance(t, server)

	rec := doJSON(t, server, http.MethodPost,
		fmt.Sprintf("/api/v1/instances/%s/cancel", created.InstanceID), map[string]any{
			"tenant_id": testTenant, "actor_id": "requestor-1", "reason": "not needed",
		})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, entity.StatusCancelled, result.Status)
}

func TestDelegationEndpoint(t *testing.T) {
	server := newTestServer(t)
	created := createTestInstance(t, server)
	now := time.Now()

	rec := doJSON(t, server, http.MethodPost, "/api/v1/delegations", map[string]any{
		"tenant_id":  testTenant,
		"from_user":  "mgr-1",
		"to_user":    "deputy-1",
		"start_date": now.Add(-time.Hour).Format(time.RFC3339),
		"end_date":   now.Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, server, http.MethodPost,
		fmt.Sprintf("/api/v1/instances/%s/approve", created.InstanceID), map[string]any{
			"tenant_id": testTenant, "step_id": "s1", "actor_id": "deputy-1",
		})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInboxEndpoint(t *testing.T) {
	server := newTestServer(t)
	created := createTestInstance(t, server)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/inbox?tenant_id="+testTenant, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []aggregation.PendingApproval `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, created.InstanceID, resp.Data[0].InstanceID)
	assert.Equal(t, "engine", resp.Data[0].Source)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/inbox", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
