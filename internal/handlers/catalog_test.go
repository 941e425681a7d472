package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCategoryHint_ReadOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := newRedisClient(t)
	r := gin.New()
	group := r.Group("/catalog", asUser(primitive.NewObjectID()))
	group.POST("/category-hint", SetCategoryHint(rdb))
	group.GET("/category-hint", TakeCategoryHint(rdb))

	if w := doJSON(r, "POST", "/catalog/category-hint", gin.H{"category": " Anillos "}); w.Code != http.StatusNoContent {
		t.Fatalf("set: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	var first map[string]interface{}
	w := doJSON(r, "GET", "/catalog/category-hint", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}
	if first["category"] != "anillos" {
		t.Fatalf("expected anillos, got %v", first["category"])
	}

	var second map[string]interface{}
	w = doJSON(r, "GET", "/catalog/category-hint", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatal(err)
	}
	if second["category"] != nil {
		t.Fatalf("hint should be consumed, got %v", second["category"])
	}
}

func TestCategoryHint_RequiresCategory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/catalog/category-hint", asUser(primitive.NewObjectID()), SetCategoryHint(newRedisClient(t)))

	w := doJSON(r, "POST", "/catalog/category-hint", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "validation failed" {
		t.Fatalf("expected validation details, got %v", body)
	}
}
