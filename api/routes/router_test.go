package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/assetledger/internal/engine"
	"github.com/angelmondragon/assetledger/pkg/config"
	"github.com/angelmondragon/assetledger/pkg/db/dbtest"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:%s:%s", scope, id)
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T, redisErr error) testServer {
	t.Helper()
	client, _ := dbtest.Client(t)
	reg := prometheus.NewRegistry()
	eng, err := engine.Build(context.Background(), engine.Params{
		Config: config.InventoryConfig{
			ReceivingLocation: "RECEIVING",
			MaxRetries:        3,
			StatusSource:      config.StatusSourceStatic,
		},
		DB:      client,
		Metrics: metrics.NewInventoryMetrics(reg),
	})
	require.NoError(t, err)

	cfg := &config.Config{App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}}}
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	h := NewRouter(cfg, logg, Dependencies{
		DB:          client,
		Redis:       stubPinger{err: redisErr},
		Idempotency: &memoryStore{data: map[string]string{}},
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
	}, Services{
		Purchasing: eng.Purchasing,
		Receiving:  eng.Receiving,
		Ledger:     eng.Ledger,
		Movements:  eng.Movements,
		Reconcile:  eng.Reconcile,
	})
	return testServer{handler: h}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s testServer) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, _ := srv.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-AssetLedger-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec, _ = srv.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	srv := newTestServer(t, errors.New("redis down"))

	rec, env := srv.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEPENDENCY_ERROR", env.Error.Code)
	assert.Equal(t, "redis", env.Error.Details["dependency"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, http.MethodPost, "/api/v1/inventory/credit", map[string]any{"part_id": "P1", "location_id": "A", "qty": 1})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inventory_movements_total")
}

func TestPurchaseToReconcileFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/purchase-orders", map[string]any{"vendor": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	headerID := decode[map[string]string](t, env.Data)["id"]

	rec, env = srv.do(t, http.MethodPost, "/api/v1/purchase-orders/"+headerID+"/lines", map[string]any{
		"part_id": "P1", "qty": 10, "unit_cost": "2.50",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	lineID := decode[map[string]string](t, env.Data)["id"]

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/purchase-order-lines/"+lineID+"/demand-links", map[string]any{
		"demand_id": "WO-1", "qty": 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/packages", map[string]any{
		"package_id": "PKG-1",
		"entries":    []map[string]any{{"line_id": lineID, "qty": 10}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	received := decode[struct {
		Accepted int `json:"accepted"`
		Rejected int `json:"rejected"`
	}](t, env.Data)
	assert.Equal(t, 1, received.Accepted)
	assert.Equal(t, 0, received.Rejected)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/inventory/balance?part_id=P1&location_id=RECEIVING", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10.0, decode[map[string]any](t, env.Data)["qty"])

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
		"part_id": "P1", "from_location": "RECEIVING", "to_location": "BAY-1", "qty": 6, "movement_type": "transfer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/parts/P1/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balances := decode[[]map[string]any](t, env.Data)
	require.Len(t, balances, 2)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/parts/P1/movements?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		Movements  []map[string]any `json:"movements"`
		NextCursor string           `json:"next_cursor"`
	}](t, env.Data)
	assert.Len(t, history.Movements, 1)
	assert.Empty(t, history.NextCursor)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/parts/P1/arrivals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 1)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/reconcile?part_id=P1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[struct {
		RowsChecked   int   `json:"rows_checked"`
		Discrepancies []any `json:"discrepancies"`
	}](t, env.Data)
	assert.Equal(t, 2, report.RowsChecked)
	assert.Empty(t, report.Discrepancies)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/purchase-orders/"+headerID+"/close", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "closed", decode[map[string]string](t, env.Data)["status"])

	rec, env = srv.do(t, http.MethodGet, "/api/v1/purchase-orders/"+headerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	po := decode[struct {
		Status string `json:"status"`
		Total  decimal.Decimal `json:"total"`
		Lines  []struct {
			ReceivedQty int `json:"received_qty"`
			LinkedQty   int `json:"linked_qty"`
		} `json:"lines"`
	}](t, env.Data)
	assert.Equal(t, "closed", po.Status)
	assert.True(t, decimal.NewFromInt(25).Equal(po.Total), "total %s", po.Total)
	require.Len(t, po.Lines, 1)
	assert.Equal(t, 10, po.Lines[0].ReceivedQty)
	assert.Equal(t, 4, po.Lines[0].LinkedQty)
}

func TestPackageReportsRejectedEntries(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/packages", map[string]any{
		"package_id": "PKG-9",
		"entries":    []map[string]any{{"line_id": "7f1f2f7e-6c1b-4bb3-9d59-0b1c1c2b2a10", "qty": 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Rejected int `json:"rejected"`
		Entries  []struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		} `json:"entries"`
	}](t, env.Data)
	assert.Equal(t, 1, out.Rejected)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "UNKNOWN_LINE", out.Entries[0].Error.Code)
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/inventory/debit", map[string]any{"part_id": "P1", "location_id": "A", "qty": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_INVENTORY", env.Error.Code)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
		"part_id": "P1", "from_location": "A", "to_location": "A", "qty": 1, "movement_type": "transfer",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = srv.do(t, http.MethodPut, "/api/v1/inventory/status", map[string]any{"part_id": "P1", "location_id": "A", "status": "Quarantined"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNKNOWN_STATUS", env.Error.Code)

	rec, _ = srv.do(t, http.MethodGet, "/api/v1/purchase-orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/api/v1/inventory/balance?part_id=P1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotentMovementReplays(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, _ := srv.do(t, http.MethodPost, "/api/v1/inventory/credit", map[string]any{"part_id": "P1", "location_id": "A", "qty": 10})
	require.Equal(t, http.StatusOK, rec.Code)

	move := map[string]any{"part_id": "P1", "from_location": "A", "to_location": "B", "qty": 3, "movement_type": "transfer"}
	first, firstEnv := srv.do(t, http.MethodPost, "/api/v1/movements", move, "Idempotency-Key", "move-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second, secondEnv := srv.do(t, http.MethodPost, "/api/v1/movements", move, "Idempotency-Key", "move-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, string(firstEnv.Data), string(secondEnv.Data))

	rec, env := srv.do(t, http.MethodGet, "/api/v1/inventory/balance?part_id=P1&location_id=A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7.0, decode[map[string]any](t, env.Data)["qty"])

	move["qty"] = 4
	rec, env = srv.do(t, http.MethodPost, "/api/v1/movements", move, "Idempotency-Key", "move-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", env.Error.Code)
}

func TestReverseMovementOnce(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, http.MethodPost, "/api/v1/inventory/credit", map[string]any{"part_id": "P1", "location_id": "A", "qty": 5})
	rec, env := srv.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
		"part_id": "P1", "from_location": "A", "to_location": "B", "qty": 5, "movement_type": "transfer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	moveID := decode[map[string]string](t, env.Data)["id"]

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/movements/"+moveID+"/reverse", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/movements/"+moveID+"/reverse", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/inventory/balance?part_id=P1&location_id=A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.0, decode[map[string]any](t, env.Data)["qty"])
}
