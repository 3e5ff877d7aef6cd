package mailer

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockMailer — заглушка CustomerMailer, считающая отправленные письма.
type MockMailer struct {
	mu sync.Mutex

	ReceiptErr      error
	StatusUpdateErr error

	ReceiptCalls      int
	StatusUpdateCalls int
	Recipients        []string
}

// NewMockMailer возвращает mock с успешным сценарием по умолчанию.
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

// SendReceipt считает вызов и возвращает настроенную ошибку.
func (m *MockMailer) SendReceipt(_ context.Context, email string, _ domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReceiptCalls++
	m.Recipients = append(m.Recipients, email)
	return m.ReceiptErr
}

// SendStatusUpdate считает вызов и возвращает настроенную ошибку.
func (m *MockMailer) SendStatusUpdate(_ context.Context, email string, _ domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusUpdateCalls++
	m.Recipients = append(m.Recipients, email)
	return m.StatusUpdateErr
}

var _ domain.CustomerMailer = (*MockMailer)(nil)
