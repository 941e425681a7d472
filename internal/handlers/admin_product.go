package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/catalog"
)

func respondCatalogError(c *gin.Context, route string, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidProduct):
		respondWithError(c, http.StatusBadRequest, route, err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		respondWithError(c, http.StatusNotFound, route, "product not found")
	case errors.Is(err, catalog.ErrCategoryNotFound):
		respondWithError(c, http.StatusNotFound, route, "category not found")
	default:
		logger.Error("catalog operation failed", zap.String("route", route), zap.Error(err))
		respondWithError(c, http.StatusInternalServerError, route, "db error")
	}
}

/*
GET /admin/api/products
- inactive products included
- page + limit, category, search
*/
func GetAllProducts(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, total, err := products.List(ctx, catalog.ListFilter{
			Category:        c.Query("category"),
			Search:          c.Query("search"),
			IncludeInactive: true,
			Page:            page,
			Limit:           limit,
		})
		if err != nil {
			respondCatalogError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       list,
			"pagination": newPagination(page, limit, total),
		})
	}
}

func CreateProduct(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products"
		defer handlePanic(c, route)

		var req catalog.ProductInput
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := products.CreateProduct(ctx, req)
		if err != nil {
			respondCatalogError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

// UpdateProduct applies a partial update; absent fields stay untouched.
func UpdateProduct(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := parseProductID(c)
		if !ok {
			return
		}

		var req catalog.ProductUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := products.UpdateProduct(ctx, id, req)
		if err != nil {
			respondCatalogError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func DeleteProduct(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := parseProductID(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := products.DeleteProduct(ctx, id); err != nil {
			respondCatalogError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	}
}
