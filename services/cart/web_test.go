package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/MarcGrol/shopcart/lib/myhttp"
	"github.com/MarcGrol/shopcart/lib/mylog"
	"github.com/MarcGrol/shopcart/lib/mystore"
)

func TestCartWebService(t *testing.T) {

	t.Run("Get empty cart", func(t *testing.T) {
		// setup
		_, router, _, _ := setupWeb(t)

		// when
		response := doRequest(t, router, http.MethodGet, "/api/cart", "", "")

		// then
		assert.Equal(t, 200, response.Code)
		assert.Equal(t, "application/json", response.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"products":[],"count":0,"total":"0.00"}`, response.Body.String())
	})

	t.Run("Get hydrated cart", func(t *testing.T) {
		ctx, slots, _ := setupSlots(t)

		// given
		putSlot(t, ctx, slots, `[{"id":"a","title":"Apple","image_url":"https://img/a.png","price":1.25,"quantity":2}]`, 3)
		router := newRouter(t, ctx, slots)

		// when
		response := doRequest(t, router, http.MethodGet, "/api/cart", "", "")

		// then
		assert.Equal(t, 200, response.Code)
		got := decodeCartResponse(t, response)
		assert.Equal(t, 2, got.Count)
		assert.Equal(t, "2.50", got.Total)
		assert.Equal(t, []LineItem{{ID: "a", Title: "Apple", ImageURL: "https://img/a.png", Price: 1.25, Quantity: 2}}, got.Products)
	})

	t.Run("Add product as json", func(t *testing.T) {
		// setup
		ctx, router, slots, store := setupWeb(t)

		// when
		response := doRequest(t, router, http.MethodPost, "/api/cart/products", "application/json; charset=utf-8",
			`{"id":"a","title":"Apple","image_url":"https://img/a.png","price":1.25}`)

		// then
		assert.Equal(t, 200, response.Code)
		got := decodeCartResponse(t, response)
		assert.Equal(t, 1, got.Count)
		assert.Equal(t, "1.25", got.Total)
		assert.NoError(t, store.Flush(ctx))
		assert.Equal(t, Cart(got.Products), decodeSlot(t, getSlot(t, ctx, slots)))
	})

	t.Run("Add product as form", func(t *testing.T) {
		// setup
		_, router, _, store := setupWeb(t)

		// when
		form := url.Values{}
		form.Set("id", "b")
		form.Set("title", "Banana")
		form.Set("image_url", "https://img/b.png")
		form.Set("price", "0.5")
		doRequest(t, router, http.MethodPost, "/api/cart/products", "application/x-www-form-urlencoded", form.Encode())
		response := doRequest(t, router, http.MethodPost, "/api/cart/products", "application/x-www-form-urlencoded", form.Encode())

		// then
		assert.Equal(t, 200, response.Code)
		got := decodeCartResponse(t, response)
		assert.Equal(t, []LineItem{{ID: "b", Title: "Banana", ImageURL: "https://img/b.png", Price: 0.5, Quantity: 2}}, got.Products)
		assert.Equal(t, "1.00", got.Total)
		assert.Equal(t, 2, store.Products().Count())
	})

	t.Run("Add product with invalid json", func(t *testing.T) {
		_, router, _, _ := setupWeb(t)

		response := doRequest(t, router, http.MethodPost, "/api/cart/products", "application/json", `{"id":`)

		assert.Equal(t, 400, response.Code)
	})

	t.Run("Add product without id", func(t *testing.T) {
		_, router, _, store := setupWeb(t)

		response := doRequest(t, router, http.MethodPost, "/api/cart/products", "application/json", `{"title":"Nameless","price":1}`)

		assert.Equal(t, 400, response.Code)
		errorResponse := myhttp.ErrorResponse{}
		assert.NoError(t, json.Unmarshal(response.Body.Bytes(), &errorResponse))
		assert.Equal(t, 2, errorResponse.ErrorCode)
		assert.Contains(t, errorResponse.Message, "invalid product")
		assert.Empty(t, store.Products())
	})

	t.Run("Add product with unsupported content-type", func(t *testing.T) {
		_, router, _, _ := setupWeb(t)

		response := doRequest(t, router, http.MethodPost, "/api/cart/products", "text/plain", "apple")

		assert.Equal(t, 415, response.Code)
	})

	t.Run("Increment and decrement", func(t *testing.T) {
		// setup
		ctx, router, slots, store := setupWeb(t)

		// given
		_, err := store.AddToCart(ctx, apple)
		assert.NoError(t, err)

		// when
		response := doRequest(t, router, http.MethodPut, "/api/cart/products/a/increment", "", "")

		// then
		assert.Equal(t, 200, response.Code)
		assert.Equal(t, 2, decodeCartResponse(t, response).Count)

		// when
		doRequest(t, router, http.MethodPut, "/api/cart/products/a/decrement", "", "")
		response = doRequest(t, router, http.MethodPut, "/api/cart/products/a/decrement", "", "")

		// then
		assert.Equal(t, 200, response.Code)
		assert.JSONEq(t, `{"products":[],"count":0,"total":"0.00"}`, response.Body.String())
		assert.NoError(t, store.Flush(ctx))
		slot := getSlot(t, ctx, slots)
		assert.Equal(t, int64(4), slot.Version)
		assert.Equal(t, "[]", slot.Payload)
	})

	t.Run("Decrement unknown product", func(t *testing.T) {
		// setup
		ctx, router, slots, store := setupWeb(t)

		// when
		response := doRequest(t, router, http.MethodPut, "/api/cart/products/missing/decrement", "", "")

		// then
		assert.Equal(t, 200, response.Code)
		assert.NoError(t, store.Flush(ctx))
		_, found, _ := slots.Get(ctx, DefaultSlotKey)
		assert.False(t, found)
	})

	t.Run("Mutation on closed store", func(t *testing.T) {
		_, router, _, store := setupWeb(t)

		// given
		store.Close()

		// when
		response := doRequest(t, router, http.MethodPut, "/api/cart/products/a/increment", "", "")

		// then
		assert.Equal(t, 503, response.Code)
	})

	t.Run("Wrong method", func(t *testing.T) {
		_, router, _, _ := setupWeb(t)

		response := doRequest(t, router, http.MethodDelete, "/api/cart", "", "")

		assert.Equal(t, 405, response.Code)
	})

	t.Run("Store is required", func(t *testing.T) {
		_, err := NewWebService(nil, mylog.NewRecorder())

		assert.ErrorIs(t, err, ErrStoreNotProvided)
	})
}

func setupWeb(t *testing.T) (context.Context, *mux.Router, *mystore.InMemoryStore[Slot], *Store) {
	ctx, slots, _ := setupSlots(t)
	store, _ := startStore(t, ctx, slots)

	return ctx, routerFor(t, store), slots, store
}

func newRouter(t *testing.T, ctx context.Context, slots mystore.Store[Slot]) *mux.Router {
	store, _ := startStore(t, ctx, slots)
	return routerFor(t, store)
}

func routerFor(t *testing.T, store *Store) *mux.Router {
	sut, err := NewWebService(store, mylog.NewRecorder())
	assert.NoError(t, err)

	router := mux.NewRouter()
	sut.RegisterEndpoints(context.TODO(), router)
	return router
}

func doRequest(t *testing.T, router *mux.Router, method string, path string, contentType string, body string) *httptest.ResponseRecorder {
	request, err := http.NewRequest(method, path, strings.NewReader(body))
	assert.NoError(t, err)
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	request.Host = "localhost:8888"

	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	return response
}

func decodeCartResponse(t *testing.T, response *httptest.ResponseRecorder) CartResponse {
	got := CartResponse{}
	err := json.Unmarshal(response.Body.Bytes(), &got)
	assert.NoError(t, err)
	return got
}
