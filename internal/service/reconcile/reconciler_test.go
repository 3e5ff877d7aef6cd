package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/gateway"
	"github.com/vladislavdragonenkov/storefront/internal/service/mailer"
	"github.com/vladislavdragonenkov/storefront/internal/service/notifier"
	"github.com/vladislavdragonenkov/storefront/internal/service/notify"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	gateway  *gateway.MockGateway
	mailer   *mailer.MockMailer
	notifier *notifier.MockNotifier
	rec      *Reconciler
}

func newFixture() *fixture {
	orders := memory.NewOrderRepository()
	timeline := memory.NewTimelineRepository()
	gw := gateway.NewMockGateway()
	ml := mailer.NewMockMailer()
	nt := notifier.NewMockNotifier()
	dispatcher := notify.NewDispatcher(orders, nt, timeline, nil, nil, nil)
	rec := NewReconciler(orders, gw, ml, dispatcher, timeline, nil, nil, nil)
	return &fixture{
		orders:   orders,
		timeline: timeline,
		gateway:  gw,
		mailer:   ml,
		notifier: nt,
		rec:      rec,
	}
}

func (f *fixture) seedPendingOrder(t *testing.T, gatewayPaymentID string) domain.Order {
	t.Helper()

	now := time.Now().UTC()
	order := domain.Order{
		ID:          "order-1",
		OrderNumber: "ORD-00000000000000B2",
		Guest:       &domain.GuestInfo{Email: "guest@example.com", FirstName: "Olga", LastName: "Somova"},
		Items: []domain.OrderItem{
			{
				ID:        "item-1",
				ProductID: "prod-1",
				Qty:       2,
				Price:     decimal.RequireFromString("25.00"),
				Wholesaler: domain.Wholesaler{
					Name:        "Oils Inc",
					Email:       "orders@oils.example",
					ProductCode: "LAV-01",
				},
				CreatedAt: now,
			},
		},
		ShippingAddress: domain.Address{Street: "s", City: "c", Zip: "z", Country: "US"},
		BillingAddress:  domain.Address{Street: "s", City: "c", Zip: "z", Country: "US"},
		Subtotal:        decimal.RequireFromString("50.00"),
		Tax:             decimal.RequireFromString("4.00"),
		Shipping:        decimal.Zero,
		Total:           decimal.RequireFromString("54.00"),
		Payment: domain.PaymentInfo{
			Status:           domain.PaymentStatusPending,
			GatewayPaymentID: gatewayPaymentID,
		},
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.orders.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestProcessWebhookPaid(t *testing.T) {
	f := newFixture()
	f.seedPendingOrder(t, "tr_200")
	f.gateway.AddPayment("tr_200", domain.GatewayStatusPaid)

	if err := f.rec.ProcessWebhook(context.Background(), "tr_200"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := f.orders.Get("order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Payment.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected payment paid, got %q", got.Payment.Status)
	}
	if got.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected order processing, got %q", got.Status)
	}
	if got.Payment.PaidAt == nil {
		t.Fatal("expected paidAt to be set")
	}
	if f.mailer.ReceiptCalls != 1 {
		t.Fatalf("expected 1 receipt, got %d", f.mailer.ReceiptCalls)
	}
	if n := f.notifier.SentTo("orders@oils.example"); n != 1 {
		t.Fatalf("expected 1 wholesaler notification, got %d", n)
	}
	if !got.Items[0].Wholesaler.Notified {
		t.Fatal("expected item marked notified")
	}
}

func TestProcessWebhookRedeliveryIsIdempotent(t *testing.T) {
	f := newFixture()
	f.seedPendingOrder(t, "tr_200")
	f.gateway.AddPayment("tr_200", domain.GatewayStatusPaid)

	for i := 0; i < 3; i++ {
		if err := f.rec.ProcessWebhook(context.Background(), "tr_200"); err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i, err)
		}
	}

	if f.mailer.ReceiptCalls != 1 {
		t.Fatalf("expected exactly 1 receipt after redelivery, got %d", f.mailer.ReceiptCalls)
	}
	if n := f.notifier.SentTo("orders@oils.example"); n != 1 {
		t.Fatalf("expected exactly 1 wholesaler notification, got %d", n)
	}

	got, _ := f.orders.Get("order-1")
	if got.Items[0].Wholesaler.NotificationAttempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", got.Items[0].Wholesaler.NotificationAttempts)
	}
}

func TestProcessWebhookPaidConcurrentDeliveries(t *testing.T) {
	f := newFixture()
	f.seedPendingOrder(t, "tr_200")
	f.gateway.AddPayment("tr_200", domain.GatewayStatusPaid)

	const deliveries = 8
	done := make(chan error, deliveries)
	for i := 0; i < deliveries; i++ {
		go func() {
			done <- f.rec.ProcessWebhook(context.Background(), "tr_200")
		}()
	}
	for i := 0; i < deliveries; i++ {
		if err := <-done; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if f.mailer.ReceiptCalls != 1 {
		t.Fatalf("expected exactly 1 receipt, got %d", f.mailer.ReceiptCalls)
	}
	if n := f.notifier.SentTo("orders@oils.example"); n != 1 {
		t.Fatalf("expected exactly 1 wholesaler notification, got %d", n)
	}
}

func TestProcessWebhookFailed(t *testing.T) {
	f := newFixture()
	f.seedPendingOrder(t, "tr_200")
	f.gateway.AddPayment("tr_200", domain.GatewayStatusCanceled)

	if err := f.rec.ProcessWebhook(context.Background(), "tr_200"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := f.orders.Get("order-1")
	if got.Payment.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected payment failed, got %q", got.Payment.Status)
	}
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected order cancelled, got %q", got.Status)
	}
	if f.mailer.ReceiptCalls != 0 {
		t.Fatalf("expected no receipt for failed payment, got %d", f.mailer.ReceiptCalls)
	}
	if len(f.notifier.Sent) != 0 {
		t.Fatalf("expected no wholesaler notifications, got %d", len(f.notifier.Sent))
	}
}

func TestProcessWebhookPendingLeavesOrderUntouched(t *testing.T) {
	f := newFixture()
	f.seedPendingOrder(t, "tr_200")
	f.gateway.AddPayment("tr_200", domain.GatewayStatusOpen)

	if err := f.rec.ProcessWebhook(context.Background(), "tr_200"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := f.orders.Get("order-1")
	if got.Payment.Status != domain.PaymentStatusPending {
		t.Fatalf("expected payment still pending, got %q", got.Payment.Status)
	}
	if got.Status != domain.OrderStatusPending {
		t.Fatalf("expected order still pending, got %q", got.Status)
	}
}

func TestProcessWebhookUnknownStatusIsAcknowledged(t *testing.T) {
	f := newFixture()
	f.seedPendingOrder(t, "tr_200")
	f.gateway.AddPayment("tr_200", "chargeback")

	if err := f.rec.ProcessWebhook(context.Background(), "tr_200"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := f.orders.Get("order-1")
	if got.Payment.Status != domain.PaymentStatusPending {
		t.Fatalf("expected payment untouched, got %q", got.Payment.Status)
	}
}

func TestProcessWebhookGatewayDownIsTransient(t *testing.T) {
	f := newFixture()
	f.seedPendingOrder(t, "tr_200")
	f.gateway.GetErr = errors.New("connection refused")

	err := f.rec.ProcessWebhook(context.Background(), "tr_200")
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	got, _ := f.orders.Get("order-1")
	if got.Payment.Status != domain.PaymentStatusPending {
		t.Fatalf("expected payment untouched after gateway failure, got %q", got.Payment.Status)
	}
}

func TestProcessWebhookUnknownPaymentIsPermanent(t *testing.T) {
	f := newFixture()
	f.gateway.AddPayment("tr_999", domain.GatewayStatusPaid)

	err := f.rec.ProcessWebhook(context.Background(), "tr_999")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestProcessWebhookReceiptFailureDoesNotFailWebhook(t *testing.T) {
	f := newFixture()
	f.seedPendingOrder(t, "tr_200")
	f.gateway.AddPayment("tr_200", domain.GatewayStatusPaid)
	f.mailer.ReceiptErr = errors.New("smtp down")

	if err := f.rec.ProcessWebhook(context.Background(), "tr_200"); err != nil {
		t.Fatalf("expected webhook to succeed despite mail failure, got %v", err)
	}

	got, _ := f.orders.Get("order-1")
	if got.Payment.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected payment paid, got %q", got.Payment.Status)
	}
}

func TestProcessWebhookNotifierFailureKeepsPendingDispatch(t *testing.T) {
	f := newFixture()
	f.seedPendingOrder(t, "tr_200")
	f.gateway.AddPayment("tr_200", domain.GatewayStatusPaid)
	f.notifier.FailEmail["orders@oils.example"] = errors.New("wholesaler unreachable")

	if err := f.rec.ProcessWebhook(context.Background(), "tr_200"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := f.orders.Get("order-1")
	item := got.Items[0]
	if item.Wholesaler.Notified {
		t.Fatal("expected item to stay unnotified")
	}
	if item.Wholesaler.NotificationAttempts != 1 {
		t.Fatalf("expected 1 recorded attempt, got %d", item.Wholesaler.NotificationAttempts)
	}
	if item.Wholesaler.LastNotificationError == "" {
		t.Fatal("expected last notification error to be recorded")
	}

	pending, err := f.orders.FindPendingNotifications(10)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected order queued for retry, got %d", len(pending))
	}
}
