package models

import (
	"time"

	"gorm.io/gorm"
)

// Supplier is soft deleted; offers of deleted suppliers are never sourced.
type Supplier struct {
	ID        int            `gorm:"primary_key" json:"id"`
	Code      string         `gorm:"size:100;not null;uniqueIndex" json:"code"`
	Address   string         `gorm:"type:text" json:"address"`
	RegionId  *int           `gorm:"index" json:"region_id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
