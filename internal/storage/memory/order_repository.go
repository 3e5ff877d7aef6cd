package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository для тестов
// и локальной разработки. Все атомарные операции выполняются под одним
// мьютексом, что даёт те же гарантии, что одиночные UPDATE в PostgreSQL.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// cloneOrder делает глубокую копию заказа, чтобы исключить мутации извне.
func cloneOrder(order domain.Order) domain.Order {
	out := order
	out.Items = make([]domain.OrderItem, len(order.Items))
	copy(out.Items, order.Items)
	for i := range out.Items {
		if at := out.Items[i].Wholesaler.NotifiedAt; at != nil {
			t := *at
			out.Items[i].Wholesaler.NotifiedAt = &t
		}
	}
	if order.Guest != nil {
		g := *order.Guest
		out.Guest = &g
	}
	if order.Payment.PaidAt != nil {
		t := *order.Payment.PaidAt
		out.Payment.PaidAt = &t
	}
	return out
}

// Create сохраняет новый заказ, проверяя уникальность ID и номера.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	for _, existing := range r.items {
		if existing.OrderNumber == order.OrderNumber {
			return domain.ErrOrderNumberTaken
		}
	}
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetByNumber ищет заказ по человекочитаемому номеру.
func (r *orderRepositoryInMemory) GetByNumber(number string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.items {
		if order.OrderNumber == number {
			return cloneOrder(order), nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// GetByGatewayPaymentID ищет заказ по идентификатору платежа шлюза.
func (r *orderRepositoryInMemory) GetByGatewayPaymentID(paymentID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if paymentID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	for _, order := range r.items {
		if order.Payment.GatewayPaymentID == paymentID {
			return cloneOrder(order), nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// ListByCustomer возвращает заказы клиента, новые первыми.
func (r *orderRepositoryInMemory) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if order.CustomerID != customerID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Save перезаписывает заказ с проверкой версии. Поля учёта уведомлений
// позиций при этом не трогаются: их меняют только атомарные операции.
func (r *orderRepositoryInMemory) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	next := cloneOrder(order)
	// Учёт уведомлений принадлежит атомарным операциям, не Save.
	for i := range next.Items {
		for _, cur := range current.Items {
			if cur.ID == next.Items[i].ID {
				next.Items[i].Wholesaler.Notified = cur.Wholesaler.Notified
				next.Items[i].Wholesaler.NotifiedAt = cur.Wholesaler.NotifiedAt
				next.Items[i].Wholesaler.NotificationAttempts = cur.Wholesaler.NotificationAttempts
				next.Items[i].Wholesaler.LastNotificationError = cur.Wholesaler.LastNotificationError
			}
		}
	}
	next.Version++
	r.items[order.ID] = next
	return nil
}

// TransitionPayment выполняет CAS статуса оплаты под общим мьютексом.
func (r *orderRepositoryInMemory) TransitionPayment(orderID string, tr domain.PaymentTransition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if current.Payment.Status != tr.From {
		return false, nil
	}

	current.Payment.Status = tr.To
	if tr.OrderStatus != "" {
		current.Status = tr.OrderStatus
	}
	if tr.PaidAt != nil {
		t := *tr.PaidAt
		current.Payment.PaidAt = &t
	}
	if tr.TransactionID != "" {
		current.Payment.TransactionID = tr.TransactionID
	}
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	r.items[orderID] = current
	return true, nil
}

// AttachGatewayPayment привязывает платёж шлюза к неоплаченному заказу.
func (r *orderRepositoryInMemory) AttachGatewayPayment(orderID, gatewayPaymentID, method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Payment.Status != domain.PaymentStatusPending {
		return domain.ErrOrderNotPayable
	}
	current.Payment.GatewayPaymentID = gatewayPaymentID
	current.Payment.Method = method
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	r.items[orderID] = current
	return nil
}

// AssociateCustomer одноразово привязывает гостевой заказ к покупателю.
func (r *orderRepositoryInMemory) AssociateCustomer(orderID, customerID, customerEmail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.CustomerID != "" {
		return domain.ErrOrderAlreadyAssociated
	}
	current.CustomerID = customerID
	current.CustomerEmail = customerEmail
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	r.items[orderID] = current
	return nil
}

// MarkItemNotified атомарно отмечает позицию уведомлённой.
func (r *orderRepositoryInMemory) MarkItemNotified(orderID, itemID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	for i := range current.Items {
		if current.Items[i].ID != itemID {
			continue
		}
		if current.Items[i].Wholesaler.Notified {
			// Повторная отметка — no-op: notified не откатывается.
			return nil
		}
		t := at
		current.Items[i].Wholesaler.Notified = true
		current.Items[i].Wholesaler.NotifiedAt = &t
		current.Items[i].Wholesaler.NotificationAttempts++
		current.Items[i].Wholesaler.LastNotificationError = ""
		r.items[orderID] = current
		return nil
	}
	return domain.ErrItemNotFound
}

// RecordItemNotificationFailure фиксирует ошибку отправки и инкрементирует попытки.
func (r *orderRepositoryInMemory) RecordItemNotificationFailure(orderID, itemID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	for i := range current.Items {
		if current.Items[i].ID != itemID {
			continue
		}
		if current.Items[i].Wholesaler.Notified {
			// Успех уже зафиксирован параллельной попыткой.
			return nil
		}
		current.Items[i].Wholesaler.NotificationAttempts++
		current.Items[i].Wholesaler.LastNotificationError = message
		r.items[orderID] = current
		return nil
	}
	return domain.ErrItemNotFound
}

// FindPendingNotifications возвращает оплаченные заказы с неуведомлёнными позициями.
func (r *orderRepositoryInMemory) FindPendingNotifications(limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.items {
		if order.Payment.Status != domain.PaymentStatusPaid && order.Status != domain.OrderStatusProcessing {
			continue
		}
		if order.HasPendingNotifications() {
			result = append(result, cloneOrder(order))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
