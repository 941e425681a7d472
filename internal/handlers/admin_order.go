package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"storefront/internal/models"
)

// OrderMailer notifies the customer once an order is confirmed as paid.
type OrderMailer interface {
	SendOrderConfirmation(ctx context.Context, to, name, orderID, total string) error
}

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

var orderTransitions = map[string][]string{
	models.OrderStatusPending: {models.OrderStatusPaid, models.OrderStatusCancelled},
	models.OrderStatusPaid:    {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped: {models.OrderStatusDelivered},
}

func canTransitionOrder(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

/*
GET /admin/api/orders
- Back office listing, newest first
- ?status= filter, page + limit
*/
func GetAllOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			filter["status"] = status
		}

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		orders, total, err := findOrders(ctx, db, filter, page, limit)
		if err != nil {
			logger.Error("list orders failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       orders,
			"pagination": newPagination(page, limit, total),
		})
	}
}

/*
PUT /admin/api/orders/:id/status
- pending -> paid | cancelled, paid -> shipped | cancelled, shipped -> delivered
- moving to paid mails the confirmation
*/
func UpdateOrderStatus(db *mongo.Database, mailer OrderMailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/orders/:id/status"
		defer handlePanic(c, route)

		orderID, ok := parseObjectIDParam(c, "id")
		if !ok {
			return
		}

		var req orderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		next := strings.ToLower(strings.TrimSpace(req.Status))

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusNotFound, route, "order not found")
				return
			}
			logger.Error("order lookup failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if !canTransitionOrder(order.Status, next) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "invalid status transition",
				"from":  order.Status,
				"to":    next,
			})
			return
		}

		// Matches only while the status is still the one we read.
		now := time.Now()
		res, err := db.Collection("orders").UpdateOne(ctx,
			bson.M{"_id": orderID, "status": order.Status},
			bson.M{"$set": bson.M{"status": next, "updatedAt": now}},
		)
		if err != nil {
			logger.Error("order status update failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusConflict, route, "order changed, reload and retry")
			return
		}

		logger.Info("order status updated",
			zap.String("orderId", orderID.Hex()),
			zap.String("from", order.Status),
			zap.String("to", next))

		if next == models.OrderStatusPaid && mailer != nil {
			notifyOrderPaid(ctx, db, mailer, order)
		}

		order.Status = next
		order.UpdatedAt = now
		c.JSON(http.StatusOK, order)
	}
}

func notifyOrderPaid(ctx context.Context, db *mongo.Database, mailer OrderMailer, order models.Order) {
	var user models.User
	err := db.Collection("users").FindOne(ctx, bson.M{"_id": order.UserID},
		options.FindOne().SetProjection(bson.M{"email": 1, "name": 1})).Decode(&user)
	if err != nil {
		logger.Warn("order confirmation skipped", zap.String("orderId", order.ID.Hex()), zap.Error(err))
		return
	}
	total := decimal.NewFromFloat(order.TotalPrice).StringFixed(2)
	if err := mailer.SendOrderConfirmation(ctx, user.Email, user.Name, order.ID.Hex(), total); err != nil {
		logger.Warn("order confirmation mail failed", zap.String("orderId", order.ID.Hex()), zap.Error(err))
	}
}

func findOrders(ctx context.Context, db *mongo.Database, filter bson.M, page, limit int64) ([]models.Order, int64, error) {
	collection := db.Collection("orders")
	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
