package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов и
// локальной разработки. Платежи, созданные через CreatePayment, можно
// переводить в нужный статус методом SetStatus.
type MockGateway struct {
	mu       sync.Mutex
	payments map[string]domain.GatewayPayment

	GetErr    error
	CreateErr error

	GetCalls    int
	CreateCalls int

	nextID int
}

// NewMockGateway возвращает пустой mock шлюза.
func NewMockGateway() *MockGateway {
	return &MockGateway{payments: make(map[string]domain.GatewayPayment)}
}

// GetPayment возвращает сохранённый платёж или ErrPaymentNotFound.
func (m *MockGateway) GetPayment(_ context.Context, id string) (domain.GatewayPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	if m.GetErr != nil {
		return domain.GatewayPayment{}, m.GetErr
	}
	payment, ok := m.payments[id]
	if !ok {
		return domain.GatewayPayment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// CreatePayment регистрирует платёж в состоянии open.
func (m *MockGateway) CreatePayment(_ context.Context, orderID string, _ decimal.Decimal, method string) (domain.GatewayPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.CreateErr != nil {
		return domain.GatewayPayment{}, m.CreateErr
	}
	m.nextID++
	payment := domain.GatewayPayment{
		ID:          fmt.Sprintf("tr_mock_%d", m.nextID),
		Status:      domain.GatewayStatusOpen,
		Method:      method,
		CheckoutURL: fmt.Sprintf("https://gateway.example/pay/%s/%d", orderID, m.nextID),
	}
	m.payments[payment.ID] = payment
	return payment, nil
}

// AddPayment кладёт платёж с заданным статусом (для тестов вебхука).
func (m *MockGateway) AddPayment(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[id] = domain.GatewayPayment{ID: id, Status: status}
}

// SetStatus меняет статус сохранённого платежа.
func (m *MockGateway) SetStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payment, ok := m.payments[id]; ok {
		payment.Status = status
		m.payments[id] = payment
	}
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
