package domain_test

import (
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestNewOrderNumberFormat(t *testing.T) {
	number, err := domain.NewOrderNumber()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(number, "ORD-") {
		t.Fatalf("expected ORD- prefix, got %q", number)
	}
	if !domain.IsOrderNumber(number) {
		t.Fatalf("generated number %q must satisfy IsOrderNumber", number)
	}
}

func TestNewOrderNumberUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		number, err := domain.NewOrderNumber()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[number]; dup {
			t.Fatalf("duplicate order number %q after %d generations", number, i)
		}
		seen[number] = struct{}{}
	}
}
