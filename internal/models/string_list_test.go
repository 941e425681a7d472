package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestStringListDecodesLegacyString(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"category": "  Anillos "})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var doc struct {
		Category StringList `bson:"category"`
	}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(doc.Category) != 1 || doc.Category[0] != "anillos" {
		t.Fatalf("expected [anillos], got %#v", doc.Category)
	}
}

func TestStringListDedupesArrayValues(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"category": []string{"Collares", "collares", "", "aretes"}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var doc struct {
		Category StringList `bson:"category"`
	}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(doc.Category) != 2 || !doc.Category.Contains("Collares") || !doc.Category.Contains("aretes") {
		t.Fatalf("unexpected categories %#v", doc.Category)
	}
}
