package handlers

import (
	"testing"

	"storefront/internal/models"
)

func TestCanTransitionOrder(t *testing.T) {
	allowed := [][2]string{
		{models.OrderStatusPending, models.OrderStatusPaid},
		{models.OrderStatusPending, models.OrderStatusCancelled},
		{models.OrderStatusPaid, models.OrderStatusShipped},
		{models.OrderStatusPaid, models.OrderStatusCancelled},
		{models.OrderStatusShipped, models.OrderStatusDelivered},
	}
	for _, tc := range allowed {
		if !canTransitionOrder(tc[0], tc[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tc[0], tc[1])
		}
	}

	denied := [][2]string{
		{models.OrderStatusPending, models.OrderStatusShipped},
		{models.OrderStatusShipped, models.OrderStatusCancelled},
		{models.OrderStatusDelivered, models.OrderStatusPending},
		{models.OrderStatusCancelled, models.OrderStatusPaid},
		{models.OrderStatusPaid, models.OrderStatusPaid},
		{"unknown", models.OrderStatusPaid},
	}
	for _, tc := range denied {
		if canTransitionOrder(tc[0], tc[1]) {
			t.Fatalf("expected %s -> %s to be rejected", tc[0], tc[1])
		}
	}
}
