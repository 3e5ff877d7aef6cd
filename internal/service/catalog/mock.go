package catalog

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockCatalog — заглушка доверенного каталога товаров.
type MockCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewMockCatalog возвращает каталог с заданными товарами.
func NewMockCatalog(products ...domain.Product) *MockCatalog {
	m := &MockCatalog{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// Add кладёт товар в каталог.
func (m *MockCatalog) Add(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// Product возвращает активный товар или ErrProductUnavailable.
func (m *MockCatalog) Product(_ context.Context, id string) (domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok || !p.Active {
		return domain.Product{}, domain.ErrProductUnavailable
	}
	return p, nil
}

// SampleProduct — товар для локальной разработки и тестов.
func SampleProduct(id, name, price string) domain.Product {
	return domain.Product{
		ID:     id,
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Active: true,
		Wholesaler: domain.WholesalerContact{
			Name:        "Sample Wholesale Co",
			Email:       "fulfillment@sample-wholesale.example",
			ProductCode: "SW-" + id,
		},
	}
}

var _ domain.Catalog = (*MockCatalog)(nil)
