package models

import "time"

// Region is a flat administrative area. ParentId links a city to its
// province; nothing walks the hierarchy yet.
type Region struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	ParentId  *int      `gorm:"index" json:"parent_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
