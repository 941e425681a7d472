package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/catalog"
)

/*
GET /admin/api/categories
- active and inactive categories
*/
func GetAllCategories(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/categories"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		categories, err := products.Categories(ctx, c.Query("isActive") == "true")
		if err != nil {
			respondCatalogError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": categories})
	}
}

func CreateCategory(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/categories"
		defer handlePanic(c, route)

		var req catalog.CategoryInput
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		category, err := products.CreateCategory(ctx, req)
		if err != nil {
			respondCatalogError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

func UpdateCategory(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/categories/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			return
		}

		var req catalog.CategoryInput
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := products.UpdateCategory(ctx, id, req); err != nil {
			respondCatalogError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "category updated"})
	}
}

// DeleteCategory deactivates the category; products keep their slugs.
func DeleteCategory(products *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/categories/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		inactive := false
		if err := products.UpdateCategory(ctx, id, catalog.CategoryInput{IsActive: &inactive}); err != nil {
			respondCatalogError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "category deactivated"})
	}
}
