package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var payloadValidator = validator.New()

// decodePayload unmarshals and validates an event payload. Validation errors
// here are fatal for the fold: the event is retried by the queue but never
// coerced into a valid-looking state.
func decodePayload[T any](raw []byte, dest *T) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := payloadValidator.Struct(dest); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

type ProductPayload struct {
	ProductId string          `json:"product_id" validate:"required,uuid"`
	VariantId *string         `json:"variant_id" validate:"omitempty,uuid"`
	Name      string          `json:"name" validate:"required"`
	Sku       string          `json:"sku"`
	Barcode   string          `json:"barcode"`
	PriceUsd  decimal.Decimal `json:"price_usd"`
	PriceBs   decimal.Decimal `json:"price_bs"`
	IsActive  *bool           `json:"is_active"`
}

func DecodeProductPayload(raw []byte) (ProductPayload, error) {
	var p ProductPayload
	err := decodePayload(raw, &p)
	return p, err
}

type CustomerPayload struct {
	CustomerId string  `json:"customer_id" validate:"required,uuid"`
	Name       string  `json:"name" validate:"required"`
	DocumentId string  `json:"document_id"`
	Phone      string  `json:"phone"`
	Note       *string `json:"note"`
}

func DecodeCustomerPayload(raw []byte) (CustomerPayload, error) {
	var p CustomerPayload
	err := decodePayload(raw, &p)
	return p, err
}

// StockChangePayload backs StockReceived and StockAdjusted.
type StockChangePayload struct {
	MovementId  string          `json:"movement_id" validate:"required,uuid"`
	ProductId   string          `json:"product_id" validate:"required,uuid"`
	VariantId   *string         `json:"variant_id" validate:"omitempty,uuid"`
	WarehouseId *string         `json:"warehouse_id" validate:"omitempty,uuid"`
	Qty         decimal.Decimal `json:"qty"`
	Reason      string          `json:"reason"`
	UnitCostUsd decimal.Decimal `json:"unit_cost_usd"`
}

func DecodeStockChangePayload(raw []byte) (StockChangePayload, error) {
	var p StockChangePayload
	err := decodePayload(raw, &p)
	return p, err
}

type StockQuotaGrantedPayload struct {
	GrantId   string          `json:"grant_id" validate:"required,uuid"`
	ProductId string          `json:"product_id" validate:"required,uuid"`
	DeviceId  string          `json:"device_id" validate:"required,uuid"`
	Qty       decimal.Decimal `json:"qty"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

func DecodeStockQuotaGrantedPayload(raw []byte) (StockQuotaGrantedPayload, error) {
	var p StockQuotaGrantedPayload
	err := decodePayload(raw, &p)
	return p, err
}

type SaleItemPayload struct {
	ItemId       string          `json:"item_id" validate:"required,uuid"`
	ProductId    string          `json:"product_id" validate:"required,uuid"`
	VariantId    *string         `json:"variant_id" validate:"omitempty,uuid"`
	Name         string          `json:"name"`
	Qty          decimal.Decimal `json:"qty"`
	UnitPriceUsd decimal.Decimal `json:"unit_price_usd"`
	UnitPriceBs  decimal.Decimal `json:"unit_price_bs"`
}

type SaleCreatedPayload struct {
	SaleId        string            `json:"sale_id" validate:"required,uuid"`
	Items         []SaleItemPayload `json:"items" validate:"required,min=1,dive"`
	PaymentMethod PaymentMethod     `json:"payment_method" validate:"required"`
	CustomerId    *string           `json:"customer_id" validate:"omitempty,uuid"`
	WarehouseId   *string           `json:"warehouse_id" validate:"omitempty,uuid"`
	CashSessionId *string           `json:"cash_session_id" validate:"omitempty,uuid"`
	TotalUsd      decimal.Decimal   `json:"total_usd"`
	TotalBs       decimal.Decimal   `json:"total_bs"`
	ExchangeRate  decimal.Decimal   `json:"exchange_rate"`
	SoldAt        time.Time         `json:"sold_at"`

	// DebtId is required when PaymentMethod implies credit; the debt the fold
	// opens is keyed by this terminal-supplied id.
	DebtId      *string    `json:"debt_id" validate:"omitempty,uuid"`
	DebtDueDate *time.Time `json:"debt_due_date"`
}

func DecodeSaleCreatedPayload(raw []byte) (SaleCreatedPayload, error) {
	var p SaleCreatedPayload
	err := decodePayload(raw, &p)
	return p, err
}

type DebtCreatedPayload struct {
	DebtId     string          `json:"debt_id" validate:"required,uuid"`
	CustomerId string          `json:"customer_id" validate:"required,uuid"`
	SaleId     *string         `json:"sale_id" validate:"omitempty,uuid"`
	AmountUsd  decimal.Decimal `json:"amount_usd"`
	AmountBs   decimal.Decimal `json:"amount_bs"`
	DueDate    *time.Time      `json:"due_date"`
	Note       *string         `json:"note"`
}

func DecodeDebtCreatedPayload(raw []byte) (DebtCreatedPayload, error) {
	var p DebtCreatedPayload
	err := decodePayload(raw, &p)
	return p, err
}

type DebtPaymentRecordedPayload struct {
	PaymentId    string          `json:"payment_id" validate:"required,uuid"`
	DebtId       string          `json:"debt_id" validate:"required,uuid"`
	AmountUsd    decimal.Decimal `json:"amount_usd"`
	AmountBs     decimal.Decimal `json:"amount_bs"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Method       PaymentMethod   `json:"method"`
	PaidAt       time.Time       `json:"paid_at"`

	// Rollover splits an underpaid debt: the original closes as paid and a
	// child debt (keyed by RolloverDebtId) inherits the remainder.
	Rollover       bool    `json:"rollover"`
	RolloverDebtId *string `json:"rollover_debt_id" validate:"omitempty,uuid"`
}

func DecodeDebtPaymentRecordedPayload(raw []byte) (DebtPaymentRecordedPayload, error) {
	var p DebtPaymentRecordedPayload
	err := decodePayload(raw, &p)
	return p, err
}

type CashSessionOpenedPayload struct {
	SessionId   string          `json:"session_id" validate:"required,uuid"`
	OpeningUsd  decimal.Decimal `json:"opening_usd"`
	OpeningBs   decimal.Decimal `json:"opening_bs"`
	OpenedAt    time.Time       `json:"opened_at"`
	OpenedBy    *string         `json:"opened_by" validate:"omitempty,uuid"`
	RegisterTag string          `json:"register_tag"`
}

func DecodeCashSessionOpenedPayload(raw []byte) (CashSessionOpenedPayload, error) {
	var p CashSessionOpenedPayload
	err := decodePayload(raw, &p)
	return p, err
}

type CashSessionClosedPayload struct {
	SessionId  string          `json:"session_id" validate:"required,uuid"`
	CountedUsd decimal.Decimal `json:"counted_usd"`
	CountedBs  decimal.Decimal `json:"counted_bs"`
	ClosedAt   time.Time       `json:"closed_at"`
	ClosedBy   *string         `json:"closed_by" validate:"omitempty,uuid"`
}

func DecodeCashSessionClosedPayload(raw []byte) (CashSessionClosedPayload, error) {
	var p CashSessionClosedPayload
	err := decodePayload(raw, &p)
	return p, err
}
