package models

import "time"

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:100;not null;uniqueIndex" json:"code"`
	Address   string    `gorm:"type:text" json:"address"`
	RegionId  *int      `gorm:"index" json:"region_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
