package purchase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRouter wires the purchase routes behind a stub auth middleware that
// injects a fixed user, mirroring the production route layout.
func testRouter(svc *Service, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handlers := NewGinHandlers(svc)
	group := router.Group("/purchase")
	group.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	group.POST("/create-order", handlers.CreateOrderHandler())
	group.POST("/verify-payment", handlers.VerifyPaymentHandler())
	group.POST("/buy-with-wallet", handlers.BuyWithWalletHandler())
	group.POST("/resend-pdf/:purchaseId", handlers.ResendPDFHandler())
	group.GET("/:purchaseId", handlers.GetPurchaseHandler())
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateOrderEndpoint(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	seedUser(t, db, "buyer", "Buyer", 0)
	seedUser(t, db, "seller", "Seller", 0)
	seedBook(t, db, "book1", "seller", 250)
	router := testRouter(svc, "buyer")

	w := doJSON(t, router, http.MethodPost, "/purchase/create-order", gin.H{"bookId": "book1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var order OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, 250.0, order.Amount)
	assert.NotEmpty(t, order.OrderID)
	assert.Contains(t, order.PurchaseID, "PUR_")
	assert.Equal(t, "Test Driven Selling", order.Book.Title)
}

func TestCreateOrderEndpointValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	router := testRouter(svc, "buyer")

	w := doJSON(t, router, http.MethodPost, "/purchase/create-order", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestCreateOrderEndpointUnknownBook(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	seedUser(t, db, "buyer", "Buyer", 0)
	router := testRouter(svc, "buyer")

	w := doJSON(t, router, http.MethodPost, "/purchase/create-order", gin.H{"bookId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	seedUser(t, db, "buyer", "Buyer", 0)
	seedUser(t, db, "seller", "Seller", 0)
	seedBook(t, db, "book1", "seller", 250)
	router := testRouter(svc, "buyer")

	order, err := svc.InitiateExternalOrder(context.Background(), "buyer", "book1")
	require.NoError(t, err)

	payload := gin.H{
		"razorpayOrderId":   order.OrderID,
		"razorpayPaymentId": "pay_1",
		"razorpaySignature": "valid-signature",
	}
	w := doJSON(t, router, http.MethodPost, "/purchase/verify-payment", payload)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Message  string   `json:"message"`
		Purchase Purchase `json:"purchase"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusCompleted, body.Purchase.Status)

	// Replaying the same callback conflicts instead of settling twice
	w = doJSON(t, router, http.MethodPost, "/purchase/verify-payment", payload)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVerifyPaymentEndpointBadSignature(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	seedUser(t, db, "buyer", "Buyer", 0)
	seedUser(t, db, "seller", "Seller", 0)
	seedBook(t, db, "book1", "seller", 250)
	router := testRouter(svc, "buyer")

	order, err := svc.InitiateExternalOrder(context.Background(), "buyer", "book1")
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/purchase/verify-payment", gin.H{
		"razorpayOrderId":   order.OrderID,
		"razorpayPaymentId": "pay_1",
		"razorpaySignature": "tampered",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuyWithWalletEndpoint(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	seedUser(t, db, "buyer", "Buyer", 1000)
	seedUser(t, db, "seller", "Seller", 0)
	seedBook(t, db, "book1", "seller", 500)
	router := testRouter(svc, "buyer")

	w := doJSON(t, router, http.MethodPost, "/purchase/buy-with-wallet", gin.H{"bookId": "book1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Message  string   `json:"message"`
		Purchase Purchase `json:"purchase"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusCompleted, body.Purchase.Status)
	assert.Equal(t, MethodWallet, body.Purchase.PaymentMethod)
}

func TestBuyWithWalletEndpointInsufficientBalance(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	seedUser(t, db, "buyer", "Buyer", 100)
	seedUser(t, db, "seller", "Seller", 0)
	seedBook(t, db, "book1", "seller", 300)
	router := testRouter(svc, "buyer")

	w := doJSON(t, router, http.MethodPost, "/purchase/buy-with-wallet", gin.H{"bookId": "book1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "insufficient wallet balance", body["error"])
}

func TestResendPDFEndpoint(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	seedUser(t, db, "buyer", "Buyer", 1000)
	seedUser(t, db, "seller", "Seller", 0)
	seedBook(t, db, "book1", "seller", 500)

	p, err := svc.BuyWithWallet("buyer", "book1")
	require.NoError(t, err)

	buyerRouter := testRouter(svc, "buyer")
	w := doJSON(t, buyerRouter, http.MethodPost, fmt.Sprintf("/purchase/resend-pdf/%s", p.PurchaseID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	sellerRouter := testRouter(svc, "seller")
	w = doJSON(t, sellerRouter, http.MethodPost, fmt.Sprintf("/purchase/resend-pdf/%s", p.PurchaseID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetPurchaseEndpoint(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	seedUser(t, db, "buyer", "Buyer", 1000)
	seedUser(t, db, "seller", "Seller", 0)
	seedUser(t, db, "stranger", "Stranger", 0)
	seedBook(t, db, "book1", "seller", 500)

	p, err := svc.BuyWithWallet("buyer", "book1")
	require.NoError(t, err)

	w := doJSON(t, testRouter(svc, "buyer"), http.MethodGet, "/purchase/"+p.PurchaseID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got Purchase
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, p.PurchaseID, got.PurchaseID)

	w = doJSON(t, testRouter(svc, "stranger"), http.MethodGet, "/purchase/"+p.PurchaseID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, testRouter(svc, "buyer"), http.MethodGet, "/purchase/PUR_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
