package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания валидного гостевого заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:          "order-1",
		OrderNumber: "ORD-0123456789ABCDEF",
		Guest: &domain.GuestInfo{
			Email:     "guest@example.com",
			FirstName: "Anna",
			LastName:  "Petrova",
		},
		Items: []domain.OrderItem{
			{
				ID:          "item-1",
				ProductID:   "prod-1",
				ProductName: "Lavender Oil",
				Qty:         2,
				Price:       decimal.RequireFromString("25.00"),
				Wholesaler: domain.Wholesaler{
					Name:        "Oils Inc",
					Email:       "orders@oils.example",
					ProductCode: "LAV-01",
				},
				CreatedAt: now,
			},
		},
		ShippingAddress: makeAddress(),
		BillingAddress:  makeAddress(),
		Subtotal:        decimal.RequireFromString("50.00"),
		Tax:             decimal.RequireFromString("4.00"),
		Shipping:        decimal.Zero,
		Total:           decimal.RequireFromString("54.00"),
		Payment:         domain.PaymentInfo{Status: domain.PaymentStatusPending},
		Status:          domain.OrderStatusPending,
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func makeAddress() domain.Address {
	return domain.Address{
		Street:  "12 Main St",
		City:    "Springfield",
		State:   "IL",
		Zip:     "62701",
		Country: "US",
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{
			name: "no owner",
			mut: func(o *domain.Order) {
				o.Guest = nil
			},
			want: domain.ErrOwnerRequired,
		},
		{
			name: "both owners",
			mut: func(o *domain.Order) {
				o.CustomerID = "customer-1"
			},
			want: domain.ErrOwnerConflict,
		},
		{
			name: "guest without email",
			mut: func(o *domain.Order) {
				o.Guest.Email = ""
			},
			want: domain.ErrGuestEmailRequired,
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
			want: domain.ErrItemsRequired,
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "negative price",
			mut: func(o *domain.Order) {
				o.Items[0].Price = decimal.RequireFromString("-1")
			},
			want: domain.ErrItemPriceInvalid,
		},
		{
			name: "item created notified",
			mut: func(o *domain.Order) {
				o.Items[0].Wholesaler.Notified = true
			},
			want: domain.ErrItemNotificationState,
		},
		{
			name: "incomplete shipping address",
			mut: func(o *domain.Order) {
				o.ShippingAddress.Zip = ""
			},
			want: domain.ErrShippingAddressIncomplete,
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.Total = decimal.RequireFromString("54.01")
			},
			want: domain.ErrTotalMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatalf("expected validation errors")
			}
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestRecipientEmail(t *testing.T) {
	order := makeOrder()

	email, err := order.RecipientEmail()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email != "guest@example.com" {
		t.Fatalf("expected guest email, got %q", email)
	}

	// Привязанный заказ отдаёт email покупателя.
	order.CustomerID = "customer-1"
	order.CustomerEmail = "customer@example.com"
	email, err = order.RecipientEmail()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email != "customer@example.com" {
		t.Fatalf("expected customer email, got %q", email)
	}

	// Без единого адреса — fail closed.
	order = domain.Order{}
	if _, err := order.RecipientEmail(); !errors.Is(err, domain.ErrNoRecipientEmail) {
		t.Fatalf("expected ErrNoRecipientEmail, got %v", err)
	}
}

func TestAllWholesalersNotified(t *testing.T) {
	order := makeOrder()
	if order.AllWholesalersNotified() {
		t.Fatalf("expected pending notification for unnotified item")
	}
	if !order.HasPendingNotifications() {
		t.Fatalf("expected pending notifications")
	}

	order.Items[0].Wholesaler.Notified = true
	if !order.AllWholesalersNotified() {
		t.Fatalf("expected all notified")
	}
	if order.HasPendingNotifications() {
		t.Fatalf("expected empty notification queue")
	}

	// Позиция без email поставщика не требует уведомления.
	now := time.Now().UTC()
	order.Items = append(order.Items, domain.OrderItem{ID: "item-2", Qty: 1, Price: decimal.Zero, CreatedAt: now})
	if !order.AllWholesalersNotified() {
		t.Fatalf("item without wholesaler email must not block completion")
	}
}

func TestOrderStatusValid(t *testing.T) {
	valid := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Fatalf("status %q must be valid", s)
		}
	}
	if domain.OrderStatus("archived").Valid() {
		t.Fatalf("unknown status must be rejected")
	}
}
