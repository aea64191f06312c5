package models

type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "Cash"
	PaymentMethodCardPos     PaymentMethod = "CardPos"
	PaymentMethodMobile      PaymentMethod = "MobilePayment"
	PaymentMethodTransferUsd PaymentMethod = "TransferUsd"
	PaymentMethodTransferBs  PaymentMethod = "TransferBs"
	// PaymentMethodPayLater is the store-credit method ("fiado"): the sale
	// completes immediately and opens a debt for the customer.
	PaymentMethodPayLater PaymentMethod = "PayLater"
	PaymentMethodMixed    PaymentMethod = "Mixed"
)

// IsCredit reports whether the method defers payment to a customer debt.
func (m PaymentMethod) IsCredit() bool {
	return m == PaymentMethodPayLater
}

type MovementKind string

const (
	MovementKindReceived MovementKind = "received"
	MovementKindAdjust   MovementKind = "adjust"
	MovementKindSold     MovementKind = "sold"
)

type DebtStatus string

const (
	DebtStatusOpen    DebtStatus = "open"
	DebtStatusPartial DebtStatus = "partial"
	DebtStatusPaid    DebtStatus = "paid"
)

type CashSessionStatus string

const (
	CashSessionStatusOpen   CashSessionStatus = "open"
	CashSessionStatusClosed CashSessionStatus = "closed"
)
