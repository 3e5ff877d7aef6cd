package notifier

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockNotifier — заглушка WholesalerNotifier. Ошибки можно настраивать
// per-email, чтобы проверять частичные сбои рассылки.
type MockNotifier struct {
	mu sync.Mutex

	Err       error
	FailEmail map[string]error

	Calls int
	Sent  []Sent
}

// Sent фиксирует одну отправку для проверок в тестах.
type Sent struct {
	Email        string
	Notification domain.WholesalerNotification
}

// NewMockNotifier возвращает mock с успешным сценарием по умолчанию.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{FailEmail: make(map[string]error)}
}

// NotifyWholesaler считает вызов и возвращает настроенный результат.
func (m *MockNotifier) NotifyWholesaler(_ context.Context, email string, n domain.WholesalerNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if err, ok := m.FailEmail[email]; ok {
		return err
	}
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, Sent{Email: email, Notification: n})
	return nil
}

// SentTo возвращает количество успешных отправок на адрес.
func (m *MockNotifier) SentTo(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, s := range m.Sent {
		if s.Email == email {
			count++
		}
	}
	return count
}

var _ domain.WholesalerNotifier = (*MockNotifier)(nil)
