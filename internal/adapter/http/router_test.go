package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aq2208/gorder-inventory/configs"
	"github.com/aq2208/gorder-inventory/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-inventory/internal/adapter/repo"
	"github.com/aq2208/gorder-inventory/internal/security"
	"github.com/aq2208/gorder-inventory/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var testNow = time.Unix(1_760_000_000, 0)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	signer *security.WebhookSigner
}

func newTestServer(t *testing.T, exposeSigner bool) *testServer {
	t.Helper()

	var cfg configs.Config
	cfg.Database.Driver = configs.DriverSQLite
	cfg.Database.DSN = repo.SQLiteDSN(filepath.Join(t.TempDir(), "api.db"))
	cfg.Database.Migrate = true

	db, err := repo.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	signer, err := security.NewWebhookSigner([]byte("test-secret"))
	require.NoError(t, err)

	products := repo.NewSQLProductRepo(db)
	orders := repo.NewSQLOrderRepo(db)
	lifecycle := usecase.NewOrderLifecycle(orders, nil, nil)
	webhook := usecase.NewPaymentWebhook(signer, lifecycle,
		usecase.WithWebhookClock(func() time.Time { return testNow }))

	var exposed Signer
	if exposeSigner {
		exposed = signer
	}
	wh := NewWebhookHandler(webhook, exposed, 3*time.Second)
	wh.now = func() time.Time { return testNow }

	engine := NewRouter(Handlers{
		Products: NewProductHandler(usecase.NewCatalog(products), 3*time.Second),
		Orders:   NewOrderHandler(usecase.NewReserveOrder(products, orders, repo.NewSQLReserver(db)), lifecycle, 3*time.Second),
		Webhooks: wh,
	})
	return &testServer{t: t, engine: engine, signer: signer}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) webhook(body string, ts time.Time) *httptest.ResponseRecorder {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	return s.do(http.MethodPost, "/webhooks/payment", body, map[string]string{
		HeaderSignatureTimestamp: stamp,
		HeaderSignature:          s.signer.Sign(stamp, []byte(body)),
	})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	d, _ := decode(t, w)["detail"].(string)
	return d
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = s.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReserveAndPayEndToEnd(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/products", `{"sku":"SKU-1","name":"Widget","price":9.99,"stock":2}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	product := decode(t, w)
	productID := int64(product["id"].(float64))
	assert.Equal(t, float64(2), product["stock"])

	w = s.do(http.MethodPost, "/orders", `{"product_id":`+strconv.FormatInt(productID, 10)+`,"quantity":2}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode(t, w)
	orderID := int64(order["id"].(float64))
	assert.Equal(t, "PENDING", order["status"])
	assert.NotEmpty(t, order["created_at"])

	w = s.do(http.MethodPost, "/orders", `{"product_id":`+strconv.FormatInt(productID, 10)+`,"quantity":1}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Insufficient stock", detail(t, w))

	w = s.do(http.MethodGet, "/products/"+strconv.FormatInt(productID, 10), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["stock"])

	event := `{"type":"payment.succeeded","data":{"order_id":` + strconv.FormatInt(orderID, 10) + `}}`
	for i := 0; i < 2; i++ {
		w = s.webhook(event, testNow)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"detail":"ok","order":{"id":`+strconv.FormatInt(orderID, 10)+`,"status":"PAID"}}`, w.Body.String())
	}

	orderPath := "/orders/" + strconv.FormatInt(orderID, 10)
	w = s.do(http.MethodGet, orderPath+"/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PAID", decode(t, w)["status"])

	w = s.do(http.MethodDelete, orderPath, "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Only PENDING orders can be deleted; consider status=CANCELED", detail(t, w))

	w = s.do(http.MethodPut, orderPath, `{"status":"SHIPPED"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "SHIPPED", decode(t, w)["status"])

	w = s.do(http.MethodPut, orderPath, `{"status":"PENDING"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Invalid status transition: SHIPPED -> PENDING", detail(t, w))

	// a later payment delivery leaves a shipped order alone
	w = s.webhook(event, testNow)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SHIPPED", decode(t, w)["order"].(map[string]any)["status"])
}

func TestWebhookRejections(t *testing.T) {
	s := newTestServer(t, false)
	body := `{"type":"payment.succeeded","data":{"order_id":1}}`

	w := s.do(http.MethodPost, "/webhooks/payment", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing signature headers", detail(t, w))

	w = s.do(http.MethodPost, "/webhooks/payment", body, map[string]string{
		HeaderSignatureTimestamp: "yesterday",
		HeaderSignature:          "00",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Bad timestamp header", detail(t, w))

	w = s.webhook(body, testNow.Add(-400*time.Second))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Stale webhook", detail(t, w))

	stamp := strconv.FormatInt(testNow.Unix(), 10)
	w = s.do(http.MethodPost, "/webhooks/payment", `{"type":"payment.succeeded","data":{"order_id":2}}`, map[string]string{
		HeaderSignatureTimestamp: stamp,
		HeaderSignature:          s.signer.Sign(stamp, []byte(body)),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid signature", detail(t, w))

	w = s.webhook(`{"type":"payment.failed","data":{"order_id":1}}`, testNow)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unsupported event type", detail(t, w))

	w = s.webhook(`{"type":"payment.succeeded","data":{}}`, testNow)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Malformed payload", detail(t, w))

	w = s.webhook(`{"type":"payment.succeeded","data":{"order_id":"404"}}`, testNow)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", detail(t, w))
}

func TestSignHelperOnlyWhenExposed(t *testing.T) {
	hidden := newTestServer(t, false)
	w := hidden.do(http.MethodPost, "/_test/sign-webhook", `{"a":1}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s := newTestServer(t, true)
	body := `{"type":"payment.succeeded","data":{"order_id":1}}`
	w = s.do(http.MethodPost, "/_test/sign-webhook", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	stamp := strconv.FormatInt(testNow.Unix(), 10)
	assert.Equal(t, stamp, out["timestamp"])
	assert.Equal(t, s.signer.Sign(stamp, []byte(body)), out["signature"])
}

func TestValidationShape(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/products", `{"sku":"A","name":"a","price":0,"stock":1}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Detail string           `json:"detail"`
		Errors []ValidationItem `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Validation error", body.Detail)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, []string{"body", "price"}, body.Errors[0].Loc)
	assert.Equal(t, "greater_than", body.Errors[0].Type)

	w = s.do(http.MethodPost, "/orders", `{"product_id":1}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"body", "quantity"}, body.Errors[0].Loc)
	assert.Equal(t, "missing", body.Errors[0].Type)

	w = s.do(http.MethodPost, "/orders", `{"product_id":"x","quantity":1}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"body", "product_id"}, body.Errors[0].Loc)
	assert.Equal(t, "int_parsing", body.Errors[0].Type)

	w = s.do(http.MethodGet, "/orders/abc", "", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"path", "id"}, body.Errors[0].Loc)

	w = s.do(http.MethodGet, "/products?limit=0", "", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"query", "limit"}, body.Errors[0].Loc)

	w = s.do(http.MethodPut, "/orders/1", `{"status":"LOST"}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "enum", body.Errors[0].Type)
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/products", `{"sku":"SKU-1","name":"Widget","price":5,"stock":3}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := strconv.FormatInt(int64(decode(t, w)["id"].(float64)), 10)

	w = s.do(http.MethodPost, "/products", `{"sku":"SKU-1","name":"Again","price":5,"stock":3}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SKU already exists", detail(t, w))

	w = s.do(http.MethodPut, "/products/"+id, `{"stock":0}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)
	assert.Equal(t, float64(0), got["stock"])
	assert.Equal(t, "Widget", got["name"])

	w = s.do(http.MethodGet, "/products?limit=10&offset=0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = s.do(http.MethodPost, "/orders", `{"product_id":`+id+`,"quantity":1}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodDelete, "/products/"+id, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/products/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product not found", detail(t, w))

	w = s.do(http.MethodPost, "/orders", `{"product_id":`+id+`,"quantity":1}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderDeleteAndCancel(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/products", `{"sku":"SKU-1","name":"Widget","price":5,"stock":10}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	pid := strconv.FormatInt(int64(decode(t, w)["id"].(float64)), 10)

	newOrder := func() string {
		w := s.do(http.MethodPost, "/orders", `{"product_id":`+pid+`,"quantity":1}`, nil)
		require.Equal(t, http.StatusCreated, w.Code)
		return "/orders/" + strconv.FormatInt(int64(decode(t, w)["id"].(float64)), 10)
	}

	pending := newOrder()
	w = s.do(http.MethodDelete, pending, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, pending, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, pending, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	canceled := newOrder()
	w = s.do(http.MethodPut, canceled, `{"status":"CANCELED"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPut, canceled, `{}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CANCELED", decode(t, w)["status"])
	w = s.do(http.MethodPut, canceled, `{"status":"PAID"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(http.MethodDelete, canceled, "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	s := newTestServer(t, false)
	body := `{"sku":"` + strings.Repeat("s", middleware.MaxRequestBody) + `","name":"n","price":1,"stock":1}`

	w := s.do(http.MethodPost, "/products", body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "Payload too large", detail(t, w))

	w = s.do(http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
