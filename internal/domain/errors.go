package domain

import "errors"

var (
	// Ошибка заказа без владельца: нужен либо customer, либо guest info.
	ErrOwnerRequired = errors.New("order requires either customer or guest info")
	// Ошибка заказа с двумя владельцами одновременно при создании.
	ErrOwnerConflict = errors.New("order cannot have both customer and guest info at creation")
	// Ошибка гостевого заказа без email.
	ErrGuestEmailRequired = errors.New("guest email is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (< 1).
	ErrItemQtyInvalid = errors.New("item qty must be at least one")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка неполного адреса доставки.
	ErrShippingAddressIncomplete = errors.New("shipping address is incomplete")
	// Ошибка неполного адреса выставления счёта.
	ErrBillingAddressIncomplete = errors.New("billing address is incomplete")
	// Ошибка несоответствия итоговой суммы сумме компонентов.
	ErrTotalMismatch = errors.New("order total does not match subtotal+tax+shipping")
	// Ошибка позиции, созданной с уже выставленной отметкой об уведомлении.
	ErrItemNotificationState = errors.New("new item must start unnotified")
	// Ошибка неподдерживаемого статуса заказа.
	ErrInvalidOrderStatus = errors.New("invalid order status")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrItemNotFound возвращается при обновлении несуществующей позиции заказа.
	ErrItemNotFound = errors.New("order item not found")
	// ErrOrderNumberTaken сигнализирует о коллизии человекочитаемого номера.
	ErrOrderNumberTaken = errors.New("order number already taken")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderAlreadyAssociated — заказ уже привязан к зарегистрированному покупателю.
	ErrOrderAlreadyAssociated = errors.New("order already associated with a customer")
	// ErrOrderNotPayable — заказ уже оплачен и не может быть целью нового платежа.
	ErrOrderNotPayable = errors.New("order is not payable")

	// ErrNoRecipientEmail — не удалось определить адрес покупателя для письма.
	ErrNoRecipientEmail = errors.New("no recipient email resolvable")
	// ErrProductUnavailable — товар не найден в каталоге или неактивен.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrForbidden — доступ к чужому заказу без прав администратора.
	ErrForbidden = errors.New("access to order is forbidden")

	// ErrPaymentNotFound — шлюз не знает платёж с таким идентификатором.
	ErrPaymentNotFound = errors.New("gateway payment not found")
	// ErrGatewayUnavailable — временная ошибка платёжного шлюза, вебхук стоит повторить.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsTransient сообщает, имеет ли смысл повторить операцию позже.
func IsTransient(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}
