package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shiromine/jewelshop/internal/cart"
	"github.com/shiromine/jewelshop/internal/checkout"
	"github.com/shiromine/jewelshop/internal/handlers"
	"github.com/shiromine/jewelshop/internal/models"
	"github.com/shiromine/jewelshop/internal/order"
	"github.com/shiromine/jewelshop/internal/payment"
	"github.com/shiromine/jewelshop/internal/testutil"
	httpserver "github.com/shiromine/jewelshop/internal/transport/http"
)

var testSecret = []byte("test-secret")

type stubGateway struct {
	status models.PaymentIntentStatus
}

func (g *stubGateway) CreateIntent(_ context.Context, amount int64, idempotencyKey string) (*payment.Intent, error) {
	return &payment.Intent{
		ID:           "pi_" + idempotencyKey,
		Amount:       amount,
		Status:       models.IntentStatusRequiresConfirmation,
		ClientSecret: "cs_test",
	}, nil
}

func (g *stubGateway) GetStatus(context.Context, string) (models.PaymentIntentStatus, error) {
	return g.status, nil
}

type testEnv struct {
	E       *echo.Echo
	DB      *gorm.DB
	Gateway *stubGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	gw := &stubGateway{status: models.IntentStatusSucceeded}

	cartSvc := &cart.Service{DB: db}
	orderSvc := &order.Service{DB: db, TaxRatePercent: 10, ShippingFee: 1100}
	intents := &payment.Intents{DB: db, Gateway: gw}
	reconciler := &payment.Reconciler{DB: db, Gateway: gw, Orders: orderSvc}
	orch := &checkout.Orchestrator{Orders: orderSvc, Intents: intents, Reconciler: reconciler}

	e := echo.New()
	httpserver.Register(e, &httpserver.Deps{
		CartHandler:    &handlers.CartHandler{Svc: cartSvc, JWTSecret: testSecret},
		OrderHandler:   &handlers.OrderHandler{Svc: orderSvc, Checkout: orch, JWTSecret: testSecret},
		PaymentHandler: &handlers.PaymentHandler{Intents: intents, Checkout: orch, JWTSecret: testSecret},
		JWTSecret:      testSecret,
	})

	return &testEnv{E: e, DB: db, Gateway: gw}
}

func accessCookie(t *testing.T, sub uint, role string) *http.Cookie {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": float64(sub),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return &http.Cookie{Name: "accessToken", Value: signed, Path: "/"}
}

func (env *testEnv) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func seedProduct(t *testing.T, db *gorm.DB, p models.Product) models.Product {
	t.Helper()
	require.NoError(t, db.Create(&p).Error)
	return p
}

func shippingBody() map[string]any {
	return map[string]any{
		"recipient_name": "Hanako Tanaka",
		"postal_code":    "150-0001",
		"address":        "Tokyo, Shibuya 1-2-3",
		"email":          "hanako@example.com",
	}
}
