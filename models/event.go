package models

import (
	"time"
)

type EventType string

// Closed set of terminal event kinds this projector understands.
// Unknown kinds are ignored by the dispatcher (newer terminal software may
// emit types this version has never seen).
const (
	EventTypeProductCreated      EventType = "ProductCreated"
	EventTypeProductUpdated      EventType = "ProductUpdated"
	EventTypeCustomerCreated     EventType = "CustomerCreated"
	EventTypeCustomerUpdated     EventType = "CustomerUpdated"
	EventTypeStockReceived       EventType = "StockReceived"
	EventTypeStockAdjusted       EventType = "StockAdjusted"
	EventTypeStockQuotaGranted   EventType = "StockQuotaGranted"
	EventTypeSaleCreated         EventType = "SaleCreated"
	EventTypeDebtCreated         EventType = "DebtCreated"
	EventTypeDebtPaymentRecorded EventType = "DebtPaymentRecorded"
	EventTypeCashSessionOpened   EventType = "CashSessionOpened"
	EventTypeCashSessionClosed   EventType = "CashSessionClosed"
)

type ProjectionStatus string

const (
	ProjectionStatusPending   ProjectionStatus = "PENDING"
	ProjectionStatusProcessed ProjectionStatus = "PROCESSED"
	ProjectionStatusFailed    ProjectionStatus = "FAILED"
)

// EventRecord is the append-only unit produced by point-of-sale terminals.
// The row doubles as the durable queue job (same pattern as a transactional
// outbox): only the projection/dispatch metadata ever mutates, the fact
// itself is immutable once written.
//
// ID is the terminal-generated event uuid and is the queue-level dedup key:
// a re-synced batch inserting an already-known ID hits the primary key and
// is acked as a duplicate.
type EventRecord struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Type        EventType `gorm:"size:40;not null;index" json:"type"`
	StoreId     string    `gorm:"size:36;not null;index" json:"store_id"`
	DeviceId    *string   `gorm:"size:36;index" json:"device_id"`
	Seq         *int64    `json:"seq"`
	ActorUserId *string   `gorm:"size:36" json:"actor_user_id"`
	Payload     []byte    `gorm:"type:json" json:"payload"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	ProjectionStatus ProjectionStatus `gorm:"size:20;not null;default:'PENDING';index;index:idx_event_dispatch,priority:1" json:"projection_status"`
	ProjectionError  *string          `gorm:"type:text" json:"projection_error"`

	// Dispatch metadata (worker claim + retry bookkeeping).
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index;index:idx_event_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt      *time.Time `gorm:"index" json:"locked_at"`
	LockedBy      *string    `gorm:"size:100" json:"locked_by"`
	ProcessedAt   *time.Time `gorm:"index" json:"processed_at"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EventRecord) TableName() string { return "events" }
