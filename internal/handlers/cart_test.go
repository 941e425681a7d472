package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/middleware"
)

type stubResolver map[string]cart.Line

func (s stubResolver) Resolve(_ context.Context, ref cart.ItemRef) (cart.Line, error) {
	line, ok := s[ref.String()]
	if !ok {
		return cart.Line{}, catalog.ErrProductNotFound
	}
	return line, nil
}

// asUser stands in for UserAuth.
func asUser(userID primitive.ObjectID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	}
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newCartRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	resolver := stubResolver{
		"7-base": {Name: "Aretes Luna", UnitPrice: 499.90, Stock: 3},
		"8-2":    {Name: "Pulsera Eslabón", VariantName: "Oro rosa", UnitPrice: 1250, Stock: 1},
	}
	carts := cart.NewService(cart.NewRedisStore(newRedisClient(t), time.Hour), resolver, nil)

	r := gin.New()
	group := r.Group("/cart", asUser(primitive.NewObjectID()))
	group.GET("", GetCart(carts))
	group.POST("/items", AddCartItem(carts))
	group.PUT("/items/:itemId", UpdateCartItem(carts))
	group.DELETE("/items/:itemId", RemoveCartItem(carts))
	group.DELETE("", ClearCart(carts))
	return r
}

func doJSON(r http.Handler, method, target string, payload interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type cartBody struct {
	Items []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	Subtotal string `json:"subtotal"`
	Units    int    `json:"units"`
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) cartBody {
	t.Helper()
	var body cartBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid cart body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestCartHandlers_AddUpdateRemove(t *testing.T) {
	r := newCartRouter(t)

	w := doJSON(r, "POST", "/cart/items", gin.H{"id": "7-base", "quantity": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeCart(t, w)
	if len(body.Items) != 1 || body.Items[0].ID != "7-base" || body.Subtotal != "999.80" || body.Units != 2 {
		t.Fatalf("unexpected cart after add: %+v", body)
	}

	w = doJSON(r, "PUT", "/cart/items/7-base", gin.H{"quantity": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body = decodeCart(t, w); body.Subtotal != "499.90" {
		t.Fatalf("unexpected subtotal after update: %s", body.Subtotal)
	}

	w = doJSON(r, "DELETE", "/cart/items/7-base", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body = decodeCart(t, w); len(body.Items) != 0 || body.Subtotal != "0.00" {
		t.Fatalf("expected empty cart, got %+v", body)
	}
}

func TestCartHandlers_Errors(t *testing.T) {
	r := newCartRouter(t)

	cases := []struct {
		name    string
		method  string
		target  string
		payload interface{}
		code    int
	}{
		{"bad item id", "POST", "/cart/items", gin.H{"id": "7", "quantity": 1}, http.StatusBadRequest},
		{"zero quantity", "POST", "/cart/items", gin.H{"id": "7-base", "quantity": 0}, http.StatusBadRequest},
		{"unknown product", "POST", "/cart/items", gin.H{"id": "99-base", "quantity": 1}, http.StatusBadRequest},
		{"over stock", "POST", "/cart/items", gin.H{"id": "8-2", "quantity": 2}, http.StatusConflict},
		{"update missing line", "PUT", "/cart/items/8-2", gin.H{"quantity": 1}, http.StatusNotFound},
		{"update without quantity", "PUT", "/cart/items/7-base", gin.H{}, http.StatusBadRequest},
		{"huge quantity", "POST", "/cart/items", gin.H{"id": "7-base", "quantity": math.MaxInt64}, http.StatusBadRequest},
		{"update over limit", "PUT", "/cart/items/7-base", gin.H{"quantity": 101}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := doJSON(r, tc.method, tc.target, tc.payload)
		if w.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.code, w.Code, w.Body.String())
		}
	}
}

func TestCartHandlers_Clear(t *testing.T) {
	r := newCartRouter(t)

	if w := doJSON(r, "POST", "/cart/items", gin.H{"id": "8-2", "quantity": 1}); w.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d", w.Code)
	}
	if w := doJSON(r, "DELETE", "/cart", nil); w.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", w.Code)
	}
	w := doJSON(r, "GET", "/cart", nil)
	if body := decodeCart(t, w); len(body.Items) != 0 {
		t.Fatalf("expected empty cart after clear, got %+v", body)
	}
}

func TestCartHandlers_RequireUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	carts := cart.NewService(cart.NewRedisStore(newRedisClient(t), time.Hour), stubResolver{}, nil)
	r := gin.New()
	r.GET("/cart", GetCart(carts))

	w := doJSON(r, "GET", "/cart", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a user, got %d", w.Code)
	}
}

func TestRespondCartError_Unexpected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/cart", nil)

	respondCartError(c, "CART_GET", errors.New("boom"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
