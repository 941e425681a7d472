package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"storefront/internal/models"
)

type favoriteRequest struct {
	ProductID int64 `json:"productId" binding:"required,gt=0"`
}

func GetUserFavorites(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "FAVORITE_LIST"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID},
			options.FindOne().SetProjection(bson.M{"favorites": 1})).Decode(&user)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusNotFound, route, "user not found")
				return
			}
			logger.Error("get favorites failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if len(user.Favorites) == 0 {
			c.JSON(http.StatusOK, gin.H{"data": []models.Product{}})
			return
		}

		cursor, err := db.Collection("products").Find(ctx, bson.M{
			"_id":       bson.M{"$in": user.Favorites},
			"isDeleted": bson.M{"$ne": true},
			"isActive":  bson.M{"$ne": false},
		})
		if err != nil {
			logger.Error("list favorite products failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products := make([]models.Product, 0, len(user.Favorites))
		if err := cursor.All(ctx, &products); err != nil {
			logger.Error("decode favorite products failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": orderFavorites(user.Favorites, products)})
	}
}

// orderFavorites returns products in the order they were favorited,
// skipping ids that no longer resolve.
func orderFavorites(ids []int64, products []models.Product) []models.Product {
	productByID := make(map[int64]models.Product, len(products))
	for _, product := range products {
		product.InStock = product.Stock > 0
		productByID[product.ID] = product
	}

	ordered := make([]models.Product, 0, len(products))
	for _, favoriteID := range ids {
		if product, exists := productByID[favoriteID]; exists {
			ordered = append(ordered, product)
		}
	}
	return ordered
}

func AddUserFavorite(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "FAVORITE_ADD"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		var req favoriteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if !favoriteProductExists(ctx, c, db, route, req.ProductID) {
			return
		}

		_, err := db.Collection("users").UpdateByID(ctx, userID, bson.M{
			"$addToSet": bson.M{"favorites": req.ProductID},
			"$set":      bson.M{"updatedAt": time.Now()},
		})
		if err != nil {
			logger.Error("add favorite failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "favorite updated"})
	}
}

func DeleteUserFavorite(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "FAVORITE_DELETE"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		productID, err := strconv.ParseInt(strings.TrimSpace(c.Param("productId")), 10, 64)
		if err != nil || productID <= 0 {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		_, err = db.Collection("users").UpdateByID(ctx, userID, bson.M{
			"$pull": bson.M{"favorites": productID},
			"$set":  bson.M{"updatedAt": time.Now()},
		})
		if err != nil {
			logger.Error("remove favorite failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "favorite updated"})
	}
}

func favoriteProductExists(ctx context.Context, c *gin.Context, db *mongo.Database, route string, productID int64) bool {
	err := db.Collection("products").FindOne(ctx, bson.M{
		"_id":       productID,
		"isDeleted": bson.M{"$ne": true},
	}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		respondWithError(c, http.StatusBadRequest, route, "invalid productId")
		return false
	}
	if err != nil {
		logger.Error("favorite product lookup failed", zap.Error(err))
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return false
	}
	return true
}
