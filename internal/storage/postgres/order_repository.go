package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

const orderColumns = `
	id, order_number, customer_id, customer_email,
	guest_email, guest_first_name, guest_last_name, guest_phone,
	ship_street, ship_city, ship_state, ship_zip, ship_country,
	bill_street, bill_city, bill_state, bill_zip, bill_country,
	subtotal, tax, shipping, total,
	payment_method, payment_status, gateway_payment_id, transaction_id, paid_at,
	status, tracking_number, notes, referral_source,
	version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var guestEmail, guestFirst, guestLast, guestPhone sql.NullString
	if order.Guest != nil {
		guestEmail = sql.NullString{String: order.Guest.Email, Valid: true}
		guestFirst = sql.NullString{String: order.Guest.FirstName, Valid: true}
		guestLast = sql.NullString{String: order.Guest.LastName, Valid: true}
		guestPhone = sql.NullString{String: order.Guest.Phone, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,
			$9,$10,$11,$12,$13,
			$14,$15,$16,$17,$18,
			$19,$20,$21,$22,
			$23,$24,$25,$26,$27,
			$28,$29,$30,$31,
			$32,$33,$34
		)
	`,
		order.ID, order.OrderNumber, order.CustomerID, order.CustomerEmail,
		guestEmail, guestFirst, guestLast, guestPhone,
		order.ShippingAddress.Street, order.ShippingAddress.City, order.ShippingAddress.State, order.ShippingAddress.Zip, order.ShippingAddress.Country,
		order.BillingAddress.Street, order.BillingAddress.City, order.BillingAddress.State, order.BillingAddress.Zip, order.BillingAddress.Country,
		order.Subtotal, order.Tax, order.Shipping, order.Total,
		order.Payment.Method, string(order.Payment.Status), order.Payment.GatewayPaymentID, order.Payment.TransactionID, order.Payment.PaidAt,
		string(order.Status), order.TrackingNumber, order.Notes, order.ReferralSource,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "order_number") {
			return domain.ErrOrderNumberTaken
		}
		if isUniqueViolation(err, "") {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, product_name, qty, price,
				wholesaler_name, wholesaler_email, wholesaler_product_code,
				notified, notified_at, notification_attempts, last_notification_error,
				created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`,
			item.ID, order.ID, item.ProductID, item.ProductName, item.Qty, item.Price,
			item.Wholesaler.Name, item.Wholesaler.Email, item.Wholesaler.ProductCode,
			item.Wholesaler.Notified, item.Wholesaler.NotifiedAt, item.Wholesaler.NotificationAttempts, item.Wholesaler.LastNotificationError,
			item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return r.getWhere(ctx, "id = $1", id)
}

func (r *orderRepository) GetByNumber(orderNumber string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return r.getWhere(ctx, "order_number = $1", orderNumber)
}

func (r *orderRepository) GetByGatewayPaymentID(paymentID string) (domain.Order, error) {
	if paymentID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return r.getWhere(ctx, "gateway_payment_id = $1", paymentID)
}

func (r *orderRepository) getWhere(ctx context.Context, where string, arg interface{}) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE `+where, arg)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// Save обновляет изменяемые поля заказа под оптимистической блокировкой.
// Позиции заказа и учёт уведомлений этим путём не трогаются: для них
// есть отдельные атомарные операции.
func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    tracking_number = $2,
		    notes = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $5
		  AND version = $6
	`,
		string(order.Status),
		order.TrackingNumber,
		order.Notes,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

// TransitionPayment применяет переход статуса оплаты одним UPDATE.
// Условие payment_status = from делает операцию compare-and-swap:
// из конкурирующих доставок вебхука переход применит ровно одна.
func (r *orderRepository) TransitionPayment(orderID string, tr domain.PaymentTransition) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1,
		    status = CASE WHEN $2 <> '' THEN $2 ELSE status END,
		    paid_at = COALESCE($3, paid_at),
		    transaction_id = CASE WHEN $4 <> '' THEN $4 ELSE transaction_id END,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $5
		  AND payment_status = $6
	`,
		string(tr.To), string(tr.OrderStatus), tr.PaidAt, tr.TransactionID,
		orderID, string(tr.From),
	)
	if err != nil {
		return false, fmt.Errorf("transition payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, orderID)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, domain.ErrOrderNotFound
		}
		return false, nil
	}

	return true, nil
}

// AttachGatewayPayment привязывает платёж шлюза к неоплаченному заказу.
func (r *orderRepository) AttachGatewayPayment(orderID, gatewayPaymentID, method string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET gateway_payment_id = $1,
		    payment_method = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $3
		  AND payment_status = $4
	`, gatewayPaymentID, method, orderID, string(domain.PaymentStatusPending))
	if err != nil {
		return fmt.Errorf("attach gateway payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, orderID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderNotPayable
	}

	return nil
}

// AssociateCustomer одноразово привязывает гостевой заказ к покупателю.
func (r *orderRepository) AssociateCustomer(orderID, customerID, customerEmail string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = $1,
		    customer_email = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $3
		  AND customer_id = ''
	`, customerID, customerEmail, orderID)
	if err != nil {
		return fmt.Errorf("associate customer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, orderID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderAlreadyAssociated
	}

	return nil
}

// MarkItemNotified атомарно отмечает позицию уведомлённой. Повторный вызов
// по уже уведомлённой позиции — no-op: notified не откатывается.
func (r *orderRepository) MarkItemNotified(orderID, itemID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE order_items
		SET notified = TRUE,
		    notified_at = $1,
		    notification_attempts = notification_attempts + 1,
		    last_notification_error = ''
		WHERE id = $2
		  AND order_id = $3
		  AND notified = FALSE
	`, at, itemID, orderID)
	if err != nil {
		return fmt.Errorf("mark item notified: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return r.itemMissing(ctx, orderID, itemID)
	}

	return nil
}

// RecordItemNotificationFailure фиксирует ошибку отправки и инкрементирует
// попытки. После успешного уведомления запись ошибок прекращается.
func (r *orderRepository) RecordItemNotificationFailure(orderID, itemID, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE order_items
		SET notification_attempts = notification_attempts + 1,
		    last_notification_error = $1
		WHERE id = $2
		  AND order_id = $3
		  AND notified = FALSE
	`, message, itemID, orderID)
	if err != nil {
		return fmt.Errorf("record notification failure: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return r.itemMissing(ctx, orderID, itemID)
	}

	return nil
}

// FindPendingNotifications возвращает заказы с неуведомлёнными позициями,
// старейшие первыми. Подходят оплаченные заказы и заказы, уже переведённые
// в processing.
func (r *orderRepository) FindPendingNotifications(limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE (o.payment_status = $1 OR o.status = $2)
		  AND EXISTS (
			SELECT 1 FROM order_items i
			WHERE i.order_id = o.id
			  AND i.notified = FALSE
			  AND i.wholesaler_email <> ''
		  )
		ORDER BY o.created_at ASC
		LIMIT $3
	`, string(domain.PaymentStatusPaid), string(domain.OrderStatusProcessing), limit)
	if err != nil {
		return nil, fmt.Errorf("find pending notifications: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending orders: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, qty, price,
		       wholesaler_name, wholesaler_email, wholesaler_product_code,
		       notified, notified_at, notification_attempts, last_notification_error,
		       created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var (
			item       domain.OrderItem
			notifiedAt sql.NullTime
		)
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.ProductName, &item.Qty, &item.Price,
			&item.Wholesaler.Name, &item.Wholesaler.Email, &item.Wholesaler.ProductCode,
			&item.Wholesaler.Notified, &notifiedAt, &item.Wholesaler.NotificationAttempts, &item.Wholesaler.LastNotificationError,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if notifiedAt.Valid {
			t := notifiedAt.Time
			item.Wholesaler.NotifiedAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func (r *orderRepository) itemMissing(ctx context.Context, orderID, itemID string) error {
	var notified bool
	err := r.db.QueryRowContext(ctx, `
		SELECT notified FROM order_items WHERE id = $1 AND order_id = $2
	`, itemID, orderID).Scan(&notified)
	if err == nil {
		// Позиция уведомлена конкурентной попыткой: учёт не трогаем.
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		exists, exErr := r.orderExists(ctx, orderID)
		if exErr != nil {
			return exErr
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrItemNotFound
	}
	return fmt.Errorf("check item state: %w", err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order                                          domain.Order
		guestEmail, guestFirst, guestLast, guestPhone  sql.NullString
		paymentStatus, orderStatus                     string
		paidAt                                         sql.NullTime
	)

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.CustomerID, &order.CustomerEmail,
		&guestEmail, &guestFirst, &guestLast, &guestPhone,
		&order.ShippingAddress.Street, &order.ShippingAddress.City, &order.ShippingAddress.State, &order.ShippingAddress.Zip, &order.ShippingAddress.Country,
		&order.BillingAddress.Street, &order.BillingAddress.City, &order.BillingAddress.State, &order.BillingAddress.Zip, &order.BillingAddress.Country,
		&order.Subtotal, &order.Tax, &order.Shipping, &order.Total,
		&order.Payment.Method, &paymentStatus, &order.Payment.GatewayPaymentID, &order.Payment.TransactionID, &paidAt,
		&orderStatus, &order.TrackingNumber, &order.Notes, &order.ReferralSource,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	order.Payment.Status = domain.PaymentStatus(paymentStatus)
	order.Status = domain.OrderStatus(orderStatus)
	if paidAt.Valid {
		t := paidAt.Time
		order.Payment.PaidAt = &t
	}
	if guestEmail.Valid {
		order.Guest = &domain.GuestInfo{
			Email:     guestEmail.String,
			FirstName: guestFirst.String,
			LastName:  guestLast.String,
			Phone:     guestPhone.String,
		}
	}

	return order, nil
}

func isUniqueViolation(err error, constraintPart string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	if constraintPart == "" {
		return true
	}
	return strings.Contains(pgErr.ConstraintName, constraintPart)
}

var _ domain.OrderRepository = (*orderRepository)(nil)
