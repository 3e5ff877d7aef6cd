package domain_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPublicViewStripsWholesalerContacts(t *testing.T) {
	order := makeOrder()
	now := time.Now().UTC()
	order.Items[0].Wholesaler.Notified = true
	order.Items[0].Wholesaler.NotifiedAt = &now

	view := order.PublicView()

	if len(view.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(view.Items))
	}
	if !view.Items[0].Wholesaler.Notified {
		t.Fatalf("notified flag must survive projection")
	}
	if view.Items[0].Wholesaler.NotifiedAt == nil {
		t.Fatalf("notifiedAt must survive projection")
	}
	if view.Guest == nil || view.Guest.Email != "guest@example.com" {
		t.Fatalf("guest email must stay visible to the owner")
	}

	// Сериализованное представление не должно содержать контактов поставщика.
	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal public view: %v", err)
	}
	for _, leak := range []string{"Oils Inc", "orders@oils.example", "LAV-01"} {
		if strings.Contains(string(raw), leak) {
			t.Fatalf("public view leaks wholesaler data %q: %s", leak, raw)
		}
	}
}

func TestPublicViewOmitsGatewayIdentifiers(t *testing.T) {
	order := makeOrder()
	order.Payment.GatewayPaymentID = "tr_secret_123"
	order.Payment.TransactionID = "txn_secret_456"

	raw, err := json.Marshal(order.PublicView())
	if err != nil {
		t.Fatalf("marshal public view: %v", err)
	}
	if strings.Contains(string(raw), "tr_secret_123") || strings.Contains(string(raw), "txn_secret_456") {
		t.Fatalf("public view leaks gateway identifiers: %s", raw)
	}
}
