package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/basket"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/order"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/product"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/promo"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/user"
)

const (
	testToken  = "tok-alice"
	testPepper = "pepper"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type memProducts struct {
	byID map[int64]product.Product
}

func (m *memProducts) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for id := int64(1); id <= int64(len(m.byID)); id++ {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memBaskets struct {
	items map[int64]map[int64]int // userID -> productID -> quantity
}

func (m *memBaskets) list(userID int64) []basket.Item {
	var out []basket.Item
	for pid, qty := range m.items[userID] {
		out = append(out, basket.Item{UserID: userID, ProductID: pid, Quantity: qty})
	}
	return out
}

func (m *memBaskets) ListByUser(_ context.Context, userID int64) ([]basket.Item, error) {
	return m.list(userID), nil
}

func (m *memBaskets) ListByUserForUpdate(_ context.Context, userID int64) ([]basket.Item, error) {
	return m.list(userID), nil
}

func (m *memBaskets) Add(_ context.Context, userID, productID int64, quantity int) error {
	if m.items[userID] == nil {
		m.items[userID] = make(map[int64]int)
	}
	m.items[userID][productID] += quantity
	return nil
}

func (m *memBaskets) SetQuantity(_ context.Context, userID, productID int64, quantity int) error {
	if quantity < 0 {
		return basket.ErrNegativeQuantity
	}
	if _, ok := m.items[userID][productID]; !ok {
		return basket.ErrItemNotFound
	}
	m.items[userID][productID] = quantity
	return nil
}

func (m *memBaskets) Remove(_ context.Context, userID, productID int64) error {
	if _, ok := m.items[userID][productID]; !ok {
		return basket.ErrItemNotFound
	}
	delete(m.items[userID], productID)
	return nil
}

func (m *memBaskets) Clear(_ context.Context, userID int64) error {
	delete(m.items, userID)
	return nil
}

type memOrders struct {
	byID map[string]*order.Order
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, from, to order.Status) error {
	o, ok := m.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return order.ErrInvalidTransition
	}
	o.Status = to
	return nil
}

type memUsage struct {
	used map[[2]int64]bool
}

func (m *memUsage) Exists(_ context.Context, userID, promoID int64) (bool, error) {
	return m.used[[2]int64{userID, promoID}], nil
}

func (m *memUsage) Record(_ context.Context, userID, promoID int64) error {
	key := [2]int64{userID, promoID}
	if m.used[key] {
		return promo.ErrAlreadyUsed
	}
	m.used[key] = true
	return nil
}

type staticValidator struct {
	code *promo.Code
	err  error
}

func (v *staticValidator) Validate(_ context.Context, _ string, _ int64) (*promo.Code, error) {
	return v.code, v.err
}

type memTx struct {
	baskets *memBaskets
	orders  *memOrders
	usage   *memUsage
}

func (t *memTx) Baskets() basket.Repository        { return t.baskets }
func (t *memTx) Orders() order.Repository          { return t.orders }
func (t *memTx) PromoUsage() promo.UsageRepository { return t.usage }

func (t *memTx) WithinTx(_ context.Context, fn func(r order.TxRepos) error) error {
	return fn(t)
}

type memUsers struct {
	byHash map[string]*user.Identity
}

func (m *memUsers) FindByTokenHash(_ context.Context, hash string) (*user.Identity, error) {
	id, ok := m.byHash[hash]
	if !ok {
		return nil, user.ErrUnknownToken
	}
	return id, nil
}

type env struct {
	mux      *http.ServeMux
	products *memProducts
	baskets  *memBaskets
	orders   *memOrders
	promos   *staticValidator
}

func newEnv(t *testing.T) *env {
	t.Helper()

	products := &memProducts{byID: map[int64]product.Product{
		1: {ID: 1, Name: "Truffles", Slug: "truffles", Price: dec("12.50")},
		2: {ID: 2, Name: "Milk Bar", Slug: "milk-bar", Price: dec("4.20"), DiscountPrice: decPtr("3.50")},
	}}
	baskets := &memBaskets{items: make(map[int64]map[int64]int)}
	orders := &memOrders{byID: make(map[string]*order.Order)}
	usage := &memUsage{used: make(map[[2]int64]bool)}
	promos := &staticValidator{}
	tx := &memTx{baskets: baskets, orders: orders, usage: usage}

	svc := order.NewService(products, baskets, promos, orders, tx)

	hash := user.HashToken(testToken, []byte(testPepper))
	users := &memUsers{byHash: map[string]*user.Identity{
		hash: {UserID: 1, Email: "alice@example.com", TokenHash: hash},
	}}
	auth := NewAuthenticator(users, []byte(testPepper))

	h := NewHandler(products, baskets, orders, svc, auth)
	return &env{mux: h.Routes(), products: products, baskets: baskets, orders: orders, promos: promos}
}

func (e *env) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if authed {
		r.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestListProducts(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/products", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var products []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "12.50", products[0]["price"])
	assert.Equal(t, "3.50", products[1]["discount_price"])
}

func TestGetProduct(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/products/1", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Truffles", decodeBody(t, w)["name"])

	w = e.do(http.MethodGet, "/api/products/99", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/api/products/abc", "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/basket", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/api/basket", nil)
	r.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBasketFlow(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/basket/items", `{"product_id": 1, "quantity": 2}`, true)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(http.MethodGet, "/api/basket", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "25.00", body["total_sum"])

	w = e.do(http.MethodPut, "/api/basket/items/1", `{"quantity": 3}`, true)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(http.MethodGet, "/api/basket", "", true)
	assert.Equal(t, "37.50", decodeBody(t, w)["total_sum"])

	w = e.do(http.MethodDelete, "/api/basket/items/1", "", true)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(http.MethodGet, "/api/basket", "", true)
	assert.Equal(t, "0.00", decodeBody(t, w)["total_sum"])
}

func TestAddBasketItem_Errors(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/basket/items", `{"product_id": 99}`, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/basket/items", `{"quantity": 1}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/basket/items", `not json`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/basket/items", `{"product_id": 1, "quantity": -2}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetBasketQuantity_Errors(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPut, "/api/basket/items/1", `{"quantity": 2}`, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusNoContent,
		e.do(http.MethodPost, "/api/basket/items", `{"product_id": 1}`, true).Code)

	w = e.do(http.MethodPut, "/api/basket/items/1", `{"quantity": -1}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBasket_PromoValidationError(t *testing.T) {
	e := newEnv(t)
	e.promos.err = promo.ErrExpired

	require.Equal(t, http.StatusNoContent,
		e.do(http.MethodPost, "/api/basket/items", `{"product_id": 1}`, true).Code)

	w := e.do(http.MethodGet, "/api/basket?promo_code=BYGONE", "", true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetBasket_VanishedProduct(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusNoContent,
		e.do(http.MethodPost, "/api/basket/items", `{"product_id": 1}`, true).Code)

	// The product disappears from the catalog while the basket still
	// references it. Pricing fails a precondition, it does not crash.
	delete(e.products.byID, 1)

	w := e.do(http.MethodGet, "/api/basket", "", true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPlaceOrder(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusNoContent,
		e.do(http.MethodPost, "/api/basket/items", `{"product_id": 1, "quantity": 2}`, true).Code)

	w := e.do(http.MethodPost, "/api/orders",
		`{"full_name": "Ada Lovelace", "phone_number": "+4420123456", "address": "12 St James Sq"}`, true)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "created", body["status"])
	assert.Equal(t, "25.00", body["total_sum"])
	history, ok := body["basket_history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 1)

	// Checkout empties the basket.
	w = e.do(http.MethodGet, "/api/basket", "", true)
	assert.Equal(t, "0.00", decodeBody(t, w)["total_sum"])
}

func TestPlaceOrder_Errors(t *testing.T) {
	e := newEnv(t)

	// Empty basket.
	w := e.do(http.MethodPost, "/api/orders",
		`{"full_name": "Ada", "phone_number": "+44", "address": "somewhere"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing contact fields.
	w = e.do(http.MethodPost, "/api/orders", `{"full_name": "Ada"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unusable promo code.
	require.Equal(t, http.StatusNoContent,
		e.do(http.MethodPost, "/api/basket/items", `{"product_id": 1}`, true).Code)
	e.promos.err = promo.ErrAlreadyUsed

	w = e.do(http.MethodPost, "/api/orders",
		`{"full_name": "Ada", "phone_number": "+44", "address": "somewhere", "promo_code": "CHOCOLOVE"}`, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestOrderHistoryAndOwnership(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusNoContent,
		e.do(http.MethodPost, "/api/basket/items", `{"product_id": 2}`, true).Code)
	created := e.do(http.MethodPost, "/api/orders",
		`{"full_name": "Ada", "phone_number": "+44", "address": "somewhere"}`, true)
	require.Equal(t, http.StatusCreated, created.Code)
	orderID := decodeBody(t, created)["id"].(string)

	w := e.do(http.MethodGet, "/api/orders", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = e.do(http.MethodGet, "/api/orders/"+orderID, "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	// Another user's order reads as missing.
	e.orders.byID[orderID].UserID = 2
	w = e.do(http.MethodGet, "/api/orders/"+orderID, "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/api/orders/nope", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdvanceOrderStatus(t *testing.T) {
	e := newEnv(t)
	e.orders.byID["ord-1"] = &order.Order{ID: "ord-1", UserID: 1, Status: order.StatusCreated}

	w := e.do(http.MethodPost, "/api/orders/ord-1/status", `{"status": "paid"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", decodeBody(t, w)["status"])

	// Skipping a step conflicts.
	w = e.do(http.MethodPost, "/api/orders/ord-1/status", `{"status": "delivered"}`, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Backwards conflicts.
	w = e.do(http.MethodPost, "/api/orders/ord-1/status", `{"status": "created"}`, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodPost, "/api/orders/ord-1/status", `{"status": "shipped"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/orders/missing/status", `{"status": "paid"}`, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
