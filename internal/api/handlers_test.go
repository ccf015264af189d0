package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commitlabs/commitment-service/internal/auth"
	"github.com/commitlabs/commitment-service/internal/clock"
	"github.com/commitlabs/commitment-service/internal/config"
	"github.com/commitlabs/commitment-service/internal/events"
	"github.com/commitlabs/commitment-service/internal/services"
	"github.com/commitlabs/commitment-service/internal/storage"
)

const testAdmin = "admin"

type testServer struct {
	router http.Handler
	clock  *clock.Manual
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Service: config.ServiceConfig{AdminPrincipal: testAdmin},
		Api:     config.ApiConfig{Host: "127.0.0.1", Port: 8080},
		Poller: config.PollerConfig{
			ExpiryCheckerPollingInterval: time.Second,
			ExpiredCommitmentsLimit:      100,
		},
		Batch: config.BatchConfig{MaxBatchSize: 100},
	}
	clk := clock.NewManual(time.Unix(1_700_000_000, 0).UTC())
	svc := services.NewService(cfg, storage.NewMemory(), auth.NewCallerProvider(), clk, events.NewNoop())
	server := New(&cfg.Api, svc)

	return &testServer{router: server.Router(), clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (s *testServer) createCommitment(t *testing.T, owner string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/commitments", owner, map[string]any{
		"owner":  owner,
		"amount": 1000,
		"asset":  "USDC",
		"rules": map[string]any{
			"duration_days":              30,
			"max_loss_percent":           10,
			"commitment_type":            "balanced",
			"early_exit_penalty_percent": 5,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[map[string]string](t, rec)["id"]
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthcheck", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetCommitment(t *testing.T) {
	s := newTestServer(t)
	id := s.createCommitment(t, "alice")

	rec := s.do(t, http.MethodGet, "/v1/commitments/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decode[map[string]any](t, rec)
	assert.Equal(t, "alice", doc["owner"])
	assert.Equal(t, "ACTIVE", doc["status"])
	assert.Equal(t, float64(1000), doc["current_value"])
}

func TestCreateCommitmentErrors(t *testing.T) {
	s := newTestServer(t)

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/commitments", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("invalid amount", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/commitments", "alice", map[string]any{
			"owner": "alice", "amount": 0, "asset": "USDC",
			"rules": map[string]any{"duration_days": 30, "commitment_type": "safe"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_AMOUNT", decode[map[string]string](t, rec)["code"])
	})
	t.Run("missing caller header", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/commitments", "", map[string]any{
			"owner": "alice", "amount": 100, "asset": "USDC",
			"rules": map[string]any{"duration_days": 30, "commitment_type": "safe"},
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("unknown commitment is 404", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/commitments/missing", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateValueAndScore(t *testing.T) {
	s := newTestServer(t)
	id := s.createCommitment(t, "alice")

	rec := s.do(t, http.MethodPut, "/v1/commitments/"+id+"/value", testAdmin, map[string]any{"value": 700})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/commitments/"+id+"/score", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(70), decode[map[string]any](t, rec)["score"])

	rec = s.do(t, http.MethodGet, "/v1/commitments/"+id+"/compliance", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["compliant"])

	t.Run("non-admin caller", func(t *testing.T) {
		rec := s.do(t, http.MethodPut, "/v1/commitments/"+id+"/value", "alice", map[string]any{"value": 800})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSettleFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.createCommitment(t, "alice")

	rec := s.do(t, http.MethodPost, "/v1/commitments/"+id+"/settle", testAdmin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_EXPIRED", decode[map[string]string](t, rec)["code"])

	s.clock.Advance(31 * 24 * time.Hour)

	rec = s.do(t, http.MethodPost, "/v1/commitments/"+id+"/settle", testAdmin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/commitments/"+id+"/settle", testAdmin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_SETTLED", decode[map[string]string](t, rec)["code"])
}

func TestEarlyExitFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.createCommitment(t, "alice")

	rec := s.do(t, http.MethodPost, "/v1/commitments/"+id+"/early-exit", "alice", map[string]any{"owner": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(50), decode[map[string]any](t, rec)["penalty"])
}

func TestAttestationFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.createCommitment(t, "alice")

	rec := s.do(t, http.MethodPost, "/v1/commitments/"+id+"/attestations", "oracle-1", map[string]any{
		"type":     "violation",
		"payload":  map[string]string{"severity": "high"},
		"positive": false,
		"verifier": "oracle-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/commitments/"+id+"/attestations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]map[string]any](t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, "violation", docs[0]["type"])

	rec = s.do(t, http.MethodGet, "/v1/commitments/"+id+"/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]any](t, rec)
	assert.Equal(t, float64(70), view["compliance_score"])
}

func TestFeesAndDrawdown(t *testing.T) {
	s := newTestServer(t)
	id := s.createCommitment(t, "alice")

	rec := s.do(t, http.MethodPost, "/v1/commitments/"+id+"/fees", testAdmin, map[string]any{"amount": 25})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/commitments/"+id+"/drawdown", testAdmin, map[string]any{"percent": 12})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/commitments/"+id+"/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]any](t, rec)
	assert.Equal(t, float64(25), view["fees_generated"])
	assert.Equal(t, float64(12), view["drawdown_percent"])
}

func TestTokenEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.createCommitment(t, "alice")

	rec := s.do(t, http.MethodGet, "/v1/tokens", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{1}, decode[[]float64](t, rec))

	rec = s.do(t, http.MethodGet, "/v1/tokens/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	assert.Equal(t, "alice", doc["owner"])
	assert.Equal(t, true, doc["is_active"])

	t.Run("non-numeric id", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/tokens/abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("unknown id", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/tokens/99", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTransferEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.createCommitment(t, "alice")

	rec := s.do(t, http.MethodPost, "/v1/tokens/1/transfer", "alice", map[string]any{"from": "alice", "to": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/owners/bob/balance", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["balance"])

	rec = s.do(t, http.MethodGet, "/v1/owners/bob/tokens", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	t.Run("not the owner", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/tokens/1/transfer", "alice", map[string]any{"from": "alice", "to": "carol"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "NOT_OWNER", decode[map[string]string](t, rec)["code"])
	})
}

func TestBatchTransferEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.createCommitment(t, "alice")
	s.createCommitment(t, "alice")

	body := map[string]any{
		"mode": "BEST_EFFORT",
		"transfers": []map[string]any{
			{"from": "alice", "to": "bob", "token_id": 1},
			{"from": "alice", "to": "bob", "token_id": 99},
		},
	}
	rec := s.do(t, http.MethodPost, "/v1/tokens/transfers", "alice", body)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[batchTransferResponse](t, rec)
	assert.Equal(t, 1, resp.Succeeded)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, 1, resp.Failures[0].Index)

	t.Run("unknown mode", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/tokens/transfers", "alice", map[string]any{
			"mode": "MAYBE", "transfers": []map[string]any{},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListCommitmentsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.createCommitment(t, "alice")
	s.createCommitment(t, "bob")

	rec := s.do(t, http.MethodGet, "/v1/commitments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/v1/commitments?owner=alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/commitments?limit=%d", 1), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	t.Run("bad limit", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/commitments?limit=-1", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
