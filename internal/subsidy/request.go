package subsidy

import (
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultCustomerEmail подставляется, если у заказа не указан email клиента.
const defaultCustomerEmail = "unknown@example.com"

// Ошибки построения запроса. Вызывающая сторона может проверить их заранее
// через BuildPaymentRequest и вернуть пользователю ошибку ввода; внутри
// Validate они превращаются в исход с видом processing_error.
var (
	ErrMissingOrderID = errors.New("order id is required")
	ErrMissingLines   = errors.New("order lines are required")
	ErrNoValidItems   = errors.New("no valid items found in order")
)

// OrderInput — входное представление заказа кассы.
type OrderInput struct {
	OrderID       string
	CustomerEmail string
	Lines         []OrderLine
}

// OrderLine — строка заказа. Отсутствующий ProductID означает служебную
// строку (скидка, комментарий), которая не отправляется во внешний API.
type OrderLine struct {
	ProductID *int64
	Quantity  *decimal.Decimal
}

// PaymentRequest — канонический формат запроса внешнего API платежей.
type PaymentRequest struct {
	OrderID  string        `json:"orderId"`
	Customer Customer      `json:"customer"`
	Items    []RequestItem `json:"items"`
}

// Customer — данные клиента в запросе валидации.
type Customer struct {
	Email string `json:"email"`
}

// RequestItem — позиция заказа в формате внешнего API.
type RequestItem struct {
	ProductID int64   `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

// BuildPaymentRequest проверяет заказ и формирует запрос валидации.
// Строки без идентификатора товара отбрасываются; если после фильтрации
// не осталось ни одной позиции, возвращается ErrNoValidItems.
func BuildPaymentRequest(order OrderInput, logger *zap.Logger) (*PaymentRequest, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if order.OrderID == "" {
		return nil, ErrMissingOrderID
	}
	if len(order.Lines) == 0 {
		return nil, ErrMissingLines
	}

	email := order.CustomerEmail
	if email == "" {
		email = defaultCustomerEmail
	}

	req := &PaymentRequest{
		OrderID:  order.OrderID,
		Customer: Customer{Email: email},
		Items:    make([]RequestItem, 0, len(order.Lines)),
	}

	for i, line := range order.Lines {
		if line.ProductID == nil {
			logger.Warn("order line without product id skipped",
				zap.String("orderID", order.OrderID),
				zap.Int("line", i),
			)
			continue
		}

		qty := decimal.NewFromInt(1)
		if line.Quantity != nil {
			qty = *line.Quantity
		}

		req.Items = append(req.Items, RequestItem{
			ProductID: *line.ProductID,
			Quantity:  qty.InexactFloat64(),
		})
	}

	if len(req.Items) == 0 {
		return nil, ErrNoValidItems
	}

	return req, nil
}
