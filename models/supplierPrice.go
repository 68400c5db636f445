package models

import (
	"time"

	"github.com/mmdatafocus/pricing_backend/pricing"
	"github.com/shopspring/decimal"
)

// SupplierPrice is one supplier's offer for a product. Only rows flagged
// Latest take part in allocation.
type SupplierPrice struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SupplierId     int             `gorm:"index;not null" json:"supplier_id"`
	ProductId      int             `gorm:"index:idx_supplier_price_product_latest;not null" json:"product_id"`
	Price          decimal.Decimal `gorm:"type:decimal(21,5);not null" json:"price"`
	AvailableStock int             `gorm:"not null;default:0" json:"available_stock"`
	Latest         bool            `gorm:"index:idx_supplier_price_product_latest;not null;default:true" json:"latest"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (sp SupplierPrice) Offer() pricing.Offer {
	return pricing.Offer{
		ID:             sp.ID,
		SupplierId:     sp.SupplierId,
		Price:          sp.Price,
		AvailableStock: sp.AvailableStock,
	}
}

func Offers(prices []SupplierPrice) []pricing.Offer {
	offers := make([]pricing.Offer, 0, len(prices))
	for _, sp := range prices {
		offers = append(offers, sp.Offer())
	}
	return offers
}
