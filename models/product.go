package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Sku         string    `gorm:"size:100;not null;uniqueIndex" json:"sku"`
	Name        *string   `gorm:"size:255" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Product) DisplayName() string {
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	return p.Sku
}

// BackfillProductName sets the name of a product that was created from a
// bare SKU. Products that already carry a name are left untouched.
func BackfillProductName(ctx context.Context, db *gorm.DB, sku string, name string) (bool, error) {
	result := db.WithContext(ctx).Model(&Product{}).
		Where("sku = ? AND (name IS NULL OR name = '')", sku).
		Update("name", name)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
