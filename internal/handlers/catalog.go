package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/catalog"
)

const categoryHintTTL = 10 * time.Minute

/*
GET /products
- page, limit, category, search, featured
- response: data + pagination
*/
func GetProducts(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, total, err := products.List(ctx, catalog.ListFilter{
			Category:     c.Query("category"),
			Search:       c.Query("search"),
			FeaturedOnly: c.Query("featured") == "true",
			Page:         page,
			Limit:        limit,
		})
		if err != nil {
			logger.Error("list products failed", zap.String("route", route), zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       list,
			"pagination": newPagination(page, limit, total),
		})
	}
}

func GetProduct(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"
		defer handlePanic(c, route)

		id, ok := parseProductID(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := products.Get(ctx, id)
		if errors.Is(err, catalog.ErrProductNotFound) || (err == nil && !product.IsActive) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			logger.Error("get product failed", zap.String("route", route), zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func GetCategories(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		categories, err := products.Categories(ctx, true)
		if err != nil {
			logger.Error("list categories failed", zap.String("route", route), zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": categories})
	}
}

type categoryHintRequest struct {
	Category string `json:"category" binding:"required"`
}

// SetCategoryHint remembers the category picked on one page so the next
// catalog page can open on it.
func SetCategoryHint(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /catalog/category-hint"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}
		var req categoryHintRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		category := strings.ToLower(strings.TrimSpace(req.Category))
		if err := rdb.Set(ctx, categoryHintKey(userID.Hex()), category, categoryHintTTL).Err(); err != nil {
			logger.Error("category hint save failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "cache error")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// TakeCategoryHint returns the stored hint once and removes it.
func TakeCategoryHint(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /catalog/category-hint"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		category, err := rdb.GetDel(ctx, categoryHintKey(userID.Hex())).Result()
		if errors.Is(err, redis.Nil) {
			c.JSON(http.StatusOK, gin.H{"category": nil})
			return
		}
		if err != nil {
			logger.Error("category hint read failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "cache error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": category})
	}
}

func categoryHintKey(userID string) string {
	return "hint:" + userID
}

func parseProductID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return 0, false
	}
	return id, true
}
