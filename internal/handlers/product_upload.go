package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/catalog"
)

const maxUploadMemory = 32 << 20

type imageDeleteRequest struct {
	Path string `json:"path" binding:"required"`
}

/*
POST /admin/api/products/:id/images
- multipart field "image"
- the first image of a product becomes its cover
*/
func UploadProductImage(products *catalog.Service, storage *UploadStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products/:id/images"
		defer handlePanic(c, route)

		id, ok := parseProductID(c)
		if !ok {
			return
		}

		if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
			respondMultipartError(c, err)
			return
		}
		file, err := c.FormFile("image")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				respondWithError(c, http.StatusBadRequest, route, "image is required")
				return
			}
			respondMultipartError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if _, err := products.Get(ctx, id); err != nil {
			respondCatalogError(c, route, err)
			return
		}

		imagePath, err := storage.SaveImage(file)
		if err != nil {
			respondMultipartError(c, err)
			return
		}

		product, err := products.AddImage(ctx, id, imagePath)
		if err != nil {
			if delErr := storage.Delete(imagePath); delErr != nil {
				logger.Warn("orphan upload cleanup failed", zap.String("path", imagePath), zap.Error(delErr))
			}
			respondCatalogError(c, route, err)
			return
		}

		logger.Info("product image uploaded", zap.Int64("productId", id), zap.String("path", imagePath))
		c.JSON(http.StatusCreated, product)
	}
}

/*
DELETE /admin/api/products/:id/images
- body {"path": "uploads/products/..."}
*/
func DeleteProductImage(products *catalog.Service, storage *UploadStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/products/:id/images"
		defer handlePanic(c, route)

		id, ok := parseProductID(c)
		if !ok {
			return
		}

		var req imageDeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		imagePath := strings.TrimPrefix(strings.TrimSpace(req.Path), "/")

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := products.RemoveImage(ctx, id, imagePath)
		if err != nil {
			respondCatalogError(c, route, err)
			return
		}

		if err := storage.Delete(imagePath); err != nil {
			logger.Warn("image file delete failed", zap.String("path", imagePath), zap.Error(err))
		}
		c.JSON(http.StatusOK, product)
	}
}

func respondMultipartError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
