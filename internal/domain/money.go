package domain

import "github.com/shopspring/decimal"

// Round2 округляет денежную сумму до двух знаков (банковское округление не
// используется: поведение совпадает с округлением витрины).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
