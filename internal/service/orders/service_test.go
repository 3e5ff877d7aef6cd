package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/gateway"
	"github.com/vladislavdragonenkov/storefront/internal/service/mailer"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newService(t *testing.T, products ...domain.Product) (*Service, domain.OrderRepository, *gateway.MockGateway, *mailer.MockMailer) {
	t.Helper()

	repo := memory.NewOrderRepository()
	gw := gateway.NewMockGateway()
	ml := mailer.NewMockMailer()
	svc := NewService(repo, memory.NewTimelineRepository(), catalog.NewMockCatalog(products...), gw, ml, nil, DefaultCheckoutConfig(), nil)
	return svc, repo, gw, ml
}

func guestInput(items ...ItemInput) CreateInput {
	return CreateInput{
		Guest: &domain.GuestInfo{Email: "guest@example.com", FirstName: "Anna", LastName: "Belova"},
		Items: items,
		ShippingAddress: domain.Address{
			Street: "742 Evergreen Terrace", City: "Springfield", Zip: "49007", Country: "US",
		},
		BillingAddress: domain.Address{
			Street: "742 Evergreen Terrace", City: "Springfield", Zip: "49007", Country: "US",
		},
	}
}

func TestCreateGuestComputesTotals(t *testing.T) {
	svc, _, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	order, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 2}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := order.Subtotal.StringFixed(2); got != "50.00" {
		t.Fatalf("subtotal: expected 50.00, got %s", got)
	}
	if got := order.Tax.StringFixed(2); got != "4.00" {
		t.Fatalf("tax: expected 4.00, got %s", got)
	}
	// Порог бесплатной доставки достигнут.
	if got := order.Shipping.StringFixed(2); got != "0.00" {
		t.Fatalf("shipping: expected 0.00, got %s", got)
	}
	if got := order.Total.StringFixed(2); got != "54.00" {
		t.Fatalf("total: expected 54.00, got %s", got)
	}

	if !domain.IsOrderNumber(order.OrderNumber) {
		t.Fatalf("bad order number: %q", order.OrderNumber)
	}
	if order.Status != domain.OrderStatusPending || order.Payment.Status != domain.PaymentStatusPending {
		t.Fatalf("new order must be pending: %s/%s", order.Status, order.Payment.Status)
	}
	if order.Items[0].Wholesaler.Notified {
		t.Fatal("new item must be unnotified")
	}
}

func TestCreateGuestChargesShippingBelowThreshold(t *testing.T) {
	svc, _, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	order, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := order.Shipping.StringFixed(2); got != "5.99" {
		t.Fatalf("shipping: expected 5.99, got %s", got)
	}
	// 25.00 + 2.00 + 5.99
	if got := order.Total.StringFixed(2); got != "32.99" {
		t.Fatalf("total: expected 32.99, got %s", got)
	}
}

func TestCreateGuestSnapshotsCatalogPrice(t *testing.T) {
	product := catalog.SampleProduct("prod-1", "Lavender Oil", "25.00")
	cat := catalog.NewMockCatalog(product)
	repo := memory.NewOrderRepository()
	svc := NewService(repo, nil, cat, gateway.NewMockGateway(), mailer.NewMockMailer(), nil, DefaultCheckoutConfig(), nil)

	order, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := order.Items[0]
	if got := item.Price.StringFixed(2); got != "25.00" {
		t.Fatalf("price snapshot: expected 25.00, got %s", got)
	}
	if item.ProductName != "Lavender Oil" {
		t.Fatalf("name snapshot: got %q", item.ProductName)
	}
	if item.Wholesaler.Email != product.Wholesaler.Email || item.Wholesaler.ProductCode != product.Wholesaler.ProductCode {
		t.Fatalf("wholesaler snapshot mismatch: %+v", item.Wholesaler)
	}
}

func TestCreateGuestRejectsUnknownProduct(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-missing", Qty: 1}))
	if !errors.Is(err, domain.ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestCreateGuestRejectsInactiveProduct(t *testing.T) {
	product := catalog.SampleProduct("prod-1", "Lavender Oil", "25.00")
	product.Active = false
	svc, _, _, _ := newService(t, product)

	_, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 1}))
	if !errors.Is(err, domain.ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestCreateGuestValidation(t *testing.T) {
	svc, _, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	tests := []struct {
		name string
		mut  func(*CreateInput)
		want error
	}{
		{
			name: "no items",
			mut:  func(in *CreateInput) { in.Items = nil },
			want: domain.ErrItemsRequired,
		},
		{
			name: "zero qty",
			mut:  func(in *CreateInput) { in.Items = []ItemInput{{ProductID: "prod-1", Qty: 0}} },
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "guest without email",
			mut:  func(in *CreateInput) { in.Guest = &domain.GuestInfo{FirstName: "Anna"} },
			want: domain.ErrGuestEmailRequired,
		},
		{
			name: "incomplete shipping address",
			mut:  func(in *CreateInput) { in.ShippingAddress.Zip = "" },
			want: domain.ErrShippingAddressIncomplete,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := guestInput(ItemInput{ProductID: "prod-1", Qty: 1})
			tc.mut(&in)

			_, err := svc.CreateGuest(context.Background(), in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, v := range verr.Violations {
				if errors.Is(v, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected violation %v in %v", tc.want, verr.Violations)
			}
		})
	}
}

func TestCreateGuestRequiresGuestInfo(t *testing.T) {
	svc, _, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	in := guestInput(ItemInput{ProductID: "prod-1", Qty: 1})
	in.Guest = nil

	_, err := svc.CreateGuest(context.Background(), in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateRegisteredUsesIdentity(t *testing.T) {
	svc, _, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	in := guestInput(ItemInput{ProductID: "prod-1", Qty: 1})
	id := Identity{CustomerID: "cust-9", Email: "anna@example.com"}

	order, err := svc.CreateRegistered(context.Background(), id, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.CustomerID != "cust-9" || order.CustomerEmail != "anna@example.com" {
		t.Fatalf("identity not applied: %+v", order)
	}
	if order.Guest != nil {
		t.Fatal("registered order must not carry guest info")
	}

	email, err := order.RecipientEmail()
	if err != nil || email != "anna@example.com" {
		t.Fatalf("recipient email: %q, %v", email, err)
	}
}

func TestCreatePayment(t *testing.T) {
	svc, repo, gw, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	order, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 1}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	payment, err := svc.CreatePayment(context.Background(), order.ID, "card")
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if payment.ID == "" || payment.CheckoutURL == "" {
		t.Fatalf("incomplete payment: %+v", payment)
	}
	if gw.CreateCalls != 1 {
		t.Fatalf("expected 1 gateway call, got %d", gw.CreateCalls)
	}

	got, err := repo.GetByGatewayPaymentID(payment.ID)
	if err != nil {
		t.Fatalf("payment not attached: %v", err)
	}
	if got.ID != order.ID || got.Payment.Method != "card" {
		t.Fatalf("attach mismatch: %+v", got.Payment)
	}
}

func TestCreatePaymentRejectsPaidOrder(t *testing.T) {
	svc, repo, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	order, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 1}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	applied, err := repo.TransitionPayment(order.ID, domain.PaymentTransition{
		From:        domain.PaymentStatusPending,
		To:          domain.PaymentStatusPaid,
		OrderStatus: domain.OrderStatusProcessing,
	})
	if err != nil || !applied {
		t.Fatalf("transition: applied=%v err=%v", applied, err)
	}

	if _, err := svc.CreatePayment(context.Background(), order.ID, "card"); !errors.Is(err, domain.ErrOrderNotPayable) {
		t.Fatalf("expected ErrOrderNotPayable, got %v", err)
	}
}

func TestAssociateIsOneWay(t *testing.T) {
	svc, repo, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	order, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 1}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	id := Identity{CustomerID: "cust-1", Email: "anna@example.com"}
	if err := svc.Associate(context.Background(), order.ID, id); err != nil {
		t.Fatalf("associate: %v", err)
	}

	got, _ := repo.Get(order.ID)
	if got.CustomerID != "cust-1" || got.CustomerEmail != "anna@example.com" {
		t.Fatalf("association not applied: %+v", got)
	}
	if got.Guest == nil || got.Guest.Email != "guest@example.com" {
		t.Fatal("guest info must survive association")
	}

	other := Identity{CustomerID: "cust-2", Email: "boris@example.com"}
	if err := svc.Associate(context.Background(), order.ID, other); !errors.Is(err, domain.ErrOrderAlreadyAssociated) {
		t.Fatalf("expected ErrOrderAlreadyAssociated, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, _, _, ml := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	order, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 1}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), order.ID, domain.OrderStatusShipped, "TRACK-42")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.OrderStatusShipped || updated.TrackingNumber != "TRACK-42" {
		t.Fatalf("status not applied: %+v", updated)
	}
	if ml.StatusUpdateCalls != 1 {
		t.Fatalf("expected 1 status mail, got %d", ml.StatusUpdateCalls)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	order, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 1}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), order.ID, domain.OrderStatus("archived"), ""); !errors.Is(err, domain.ErrInvalidOrderStatus) {
		t.Fatalf("expected ErrInvalidOrderStatus, got %v", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	in := guestInput(ItemInput{ProductID: "prod-1", Qty: 1})
	owner := Identity{CustomerID: "cust-1", Email: "anna@example.com"}
	order, err := svc.CreateRegistered(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := svc.Get(context.Background(), order.ID, owner); err != nil {
		t.Fatalf("owner must read own order: %v", err)
	}
	if _, err := svc.Get(context.Background(), order.ID, Identity{CustomerID: "cust-2"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(context.Background(), order.ID, Identity{CustomerID: "cust-2", Admin: true}); err != nil {
		t.Fatalf("admin must read any order: %v", err)
	}
}

func TestGetGuestOrderIsAdminOnly(t *testing.T) {
	svc, _, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	order, err := svc.CreateGuest(context.Background(), guestInput(ItemInput{ProductID: "prod-1", Qty: 1}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// До привязки у гостевого заказа нет владельца: любой покупатель — чужой.
	stranger := Identity{CustomerID: "cust-7", Email: "stranger@example.com"}
	if _, err := svc.Get(context.Background(), order.ID, stranger); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for guest order, got %v", err)
	}

	view, err := svc.Get(context.Background(), order.ID, Identity{CustomerID: "admin-1", Admin: true})
	if err != nil {
		t.Fatalf("admin must read guest order: %v", err)
	}
	if view.Guest == nil {
		t.Fatal("admin view must keep guest info")
	}

	// После привязки заказ читает новый владелец.
	if err := svc.Associate(context.Background(), order.ID, stranger); err != nil {
		t.Fatalf("associate: %v", err)
	}
	if _, err := svc.Get(context.Background(), order.ID, stranger); err != nil {
		t.Fatalf("owner must read associated order: %v", err)
	}
}

func TestListReturnsPublicViews(t *testing.T) {
	svc, _, _, _ := newService(t, catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"))

	owner := Identity{CustomerID: "cust-1", Email: "anna@example.com"}
	if _, err := svc.CreateRegistered(context.Background(), owner, guestInput(ItemInput{ProductID: "prod-1", Qty: 1})); err != nil {
		t.Fatalf("create order: %v", err)
	}

	views, err := svc.List(context.Background(), owner, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 order, got %d", len(views))
	}
	if got := views[0].Total.StringFixed(2); got != "32.99" {
		t.Fatalf("unexpected total in public view: %s", got)
	}
}
