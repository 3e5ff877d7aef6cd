package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	orderNumberPrefix      = "ORD-"
	orderNumberRandomBytes = 8
)

// NewOrderNumber генерирует человекочитаемый номер заказа вида
// ORD-<16 hex-символов>. Суффикс берётся из криптографического ГСЧ, поэтому
// коллизии практически исключены; если уникальный индекс всё же их обнаружит,
// вызывающий код генерирует номер заново (единственный retry внутри создания
// заказа).
func NewOrderNumber() (string, error) {
	buf := make([]byte, orderNumberRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return orderNumberPrefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// IsOrderNumber проверяет, похожа ли строка на номер заказа витрины.
func IsOrderNumber(s string) bool {
	return strings.HasPrefix(s, orderNumberPrefix) && len(s) == len(orderNumberPrefix)+orderNumberRandomBytes*2
}
