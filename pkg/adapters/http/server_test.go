package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/serviceops/conveyor/pkg/adapters/http"
	"github.com/serviceops/conveyor/pkg/domain"
)

type stubEngine struct {
	createFn func(ctx context.Context, origin domain.Channel, initial map[string]any) (domain.Snapshot, error)
	submitFn func(ctx context.Context, id string, action domain.Action, role domain.Role, payload map[string]any) (*domain.TransitionResult, error)
	getFn    func(ctx context.Context, id string) (domain.Snapshot, error)
}

func (s *stubEngine) CreateInstance(ctx context.Context, origin domain.Channel, initial map[string]any) (domain.Snapshot, error) {
	return s.createFn(ctx, origin, initial)
}

func (s *stubEngine) SubmitAction(ctx context.Context, id string, action domain.Action, role domain.Role, payload map[string]any) (*domain.TransitionResult, error) {
	return s.submitFn(ctx, id, action, role, payload)
}

func (s *stubEngine) GetInstance(ctx context.Context, id string) (domain.Snapshot, error) {
	return s.getFn(ctx, id)
}

func (s *stubEngine) GetHistory(_ context.Context, _ string) ([]domain.TransitionRecord, error) {
	return []domain.TransitionRecord{{Action: "CREATE", Outcome: domain.OutcomeCommitted}}, nil
}

func (s *stubEngine) Recommendations(_ context.Context, _ string) ([]domain.Recommendation, error) {
	return nil, nil
}

func (s *stubEngine) ListInstances(_ context.Context) ([]string, error) {
	return []string{"inst-1"}, nil
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (domain.ErrorKind, string) {
	t.Helper()
	var resp struct {
		Kind    domain.ErrorKind `json:"kind"`
		Message string           `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Kind, resp.Message
}

func TestHealthz(t *testing.T) {
	h := httpadapter.NewHandler(&stubEngine{})
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateInstance(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		engine := &stubEngine{
			createFn: func(_ context.Context, origin domain.Channel, initial map[string]any) (domain.Snapshot, error) {
				assert.Equal(t, domain.ChannelWeb, origin)
				assert.Equal(t, "acme", initial["customer"])
				return domain.Snapshot{ID: "inst-1", CurrentStage: domain.StageLead, Origin: origin}, nil
			},
		}
		h := httpadapter.NewHandler(engine)

		rec := doJSON(t, h, http.MethodPost, "/instances", map[string]any{
			"origin":  "WEB",
			"payload": map[string]any{"customer": "acme"},
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var snap domain.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, "inst-1", snap.ID)
	})

	t.Run("Missing Origin", func(t *testing.T) {
		h := httpadapter.NewHandler(&stubEngine{})
		rec := doJSON(t, h, http.MethodPost, "/instances", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Malformed Body", func(t *testing.T) {
		h := httpadapter.NewHandler(&stubEngine{})
		req := httptest.NewRequest(http.MethodPost, "/instances", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubmitAction(t *testing.T) {
	t.Run("Committed", func(t *testing.T) {
		engine := &stubEngine{
			submitFn: func(_ context.Context, id string, action domain.Action, role domain.Role, _ map[string]any) (*domain.TransitionResult, error) {
				assert.Equal(t, "inst-1", id)
				assert.Equal(t, domain.Action("QUALIFY"), action)
				assert.Equal(t, domain.RoleSales, role)
				return &domain.TransitionResult{
					Snapshot: domain.Snapshot{ID: id, CurrentStage: domain.StageRFQ},
					Record:   domain.TransitionRecord{Outcome: domain.OutcomeCommitted},
				}, nil
			},
		}
		h := httpadapter.NewHandler(engine)

		rec := doJSON(t, h, http.MethodPost, "/instances/inst-1/actions", map[string]any{
			"action":     "QUALIFY",
			"actor_role": "SALES",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Missing Fields", func(t *testing.T) {
		h := httpadapter.NewHandler(&stubEngine{})
		rec := doJSON(t, h, http.MethodPost, "/instances/inst-1/actions", map[string]any{"action": "QUALIFY"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   domain.ErrorKind
	}{
		{"Not Found", domain.ErrInstanceNotFound, http.StatusNotFound, domain.KindInstanceNotFound},
		{"Terminal", &domain.InstanceTerminalError{ID: "i", Stage: "DONE"}, http.StatusConflict, domain.KindInstanceTerminal},
		{"Invalid Transition", &domain.InvalidTransitionError{From: "LEAD", Action: "PASS"}, http.StatusConflict, domain.KindInvalidTransition},
		{"Guard", &domain.GuardNotSatisfiedError{Guard: "has:x"}, http.StatusConflict, domain.KindGuardNotSatisfied},
		{"Role", &domain.RoleNotAuthorizedError{Required: "SALES", Actual: "GUEST"}, http.StatusForbidden, domain.KindRoleNotAuthorized},
		{"Handler", &domain.HandlerExecutionError{Cause: errors.New("boom")}, http.StatusUnprocessableEntity, domain.KindHandlerExecution},
		{"Internal", errors.New("store down"), http.StatusInternalServerError, domain.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &stubEngine{
				submitFn: func(_ context.Context, _ string, _ domain.Action, _ domain.Role, _ map[string]any) (*domain.TransitionResult, error) {
					return nil, tc.err
				},
			}
			h := httpadapter.NewHandler(engine)

			rec := doJSON(t, h, http.MethodPost, "/instances/inst-1/actions", map[string]any{
				"action":     "QUALIFY",
				"actor_role": "SALES",
			})
			require.Equal(t, tc.wantStatus, rec.Code)

			kind, msg := decodeError(t, rec)
			assert.Equal(t, tc.wantKind, kind)
			if tc.wantKind == domain.KindInternal {
				assert.Equal(t, "internal error", msg, "internal details must not leak")
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestGetInstance(t *testing.T) {
	engine := &stubEngine{
		getFn: func(_ context.Context, id string) (domain.Snapshot, error) {
			if id != "inst-1" {
				return domain.Snapshot{}, domain.ErrInstanceNotFound
			}
			return domain.Snapshot{ID: id, CurrentStage: domain.StageLead}, nil
		},
	}
	h := httpadapter.NewHandler(engine)

	rec := doJSON(t, h, http.MethodGet, "/instances/inst-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/instances/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetHistoryAndRecommendations(t *testing.T) {
	h := httpadapter.NewHandler(&stubEngine{})

	rec := doJSON(t, h, http.MethodGet, "/instances/inst-1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		History []domain.TransitionRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Len(t, hist.History, 1)

	rec = doJSON(t, h, http.MethodGet, "/instances/inst-1/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recs struct {
		Recommendations []domain.Recommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	assert.NotNil(t, recs.Recommendations)
	assert.Empty(t, recs.Recommendations)
}

func TestListInstances(t *testing.T) {
	h := httpadapter.NewHandler(&stubEngine{})
	rec := doJSON(t, h, http.MethodGet, "/instances", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Instances []string `json:"instances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"inst-1"}, resp.Instances)
}
