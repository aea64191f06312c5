package models

import "time"

type Customer struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	StoreId    string    `gorm:"size:36;not null;index" json:"store_id"`
	Name       string    `gorm:"size:200;not null" json:"name"`
	DocumentId string    `gorm:"size:40;index" json:"document_id"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Note       *string   `gorm:"type:text" json:"note"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
