package models

import (
	"time"

	"github.com/mmdatafocus/pricing_backend/pricing"
	"github.com/shopspring/decimal"
)

// PurchaseOrder is read-only history: what a customer bought before and at what price.
type PurchaseOrder struct {
	ID         int             `gorm:"primary_key" json:"id"`
	CustomerId int             `gorm:"index:idx_po_customer_product;not null" json:"customer_id"`
	ProductId  int             `gorm:"index:idx_po_customer_product;not null" json:"product_id"`
	OrderedAt  time.Time       `gorm:"not null" json:"ordered_at"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	Unit       string          `gorm:"size:20" json:"unit"`
	Price      decimal.Decimal `gorm:"type:decimal(21,5);not null" json:"price"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (po PurchaseOrder) Total() decimal.Decimal {
	return po.Price.Mul(decimal.NewFromInt(int64(po.Quantity)))
}

func (po PurchaseOrder) HistoricalPrice() pricing.HistoricalPrice {
	return pricing.HistoricalPrice{Quantity: po.Quantity, Price: po.Price}
}

func HistoricalPrices(orders []PurchaseOrder) []pricing.HistoricalPrice {
	history := make([]pricing.HistoricalPrice, 0, len(orders))
	for _, po := range orders {
		history = append(history, po.HistoricalPrice())
	}
	return history
}
