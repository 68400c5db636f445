package models

import "time"

// RequestForQuotation asks for a price on Quantity units of a product.
// DecidedAt stays nil until every allocation of a priced decision is recorded.
type RequestForQuotation struct {
	ID         int        `gorm:"primary_key" json:"id"`
	CustomerId int        `gorm:"index;not null" json:"customer_id"`
	ProductId  int        `gorm:"index;not null" json:"product_id"`
	Quantity   int        `gorm:"not null" json:"quantity"`
	Unit       string     `gorm:"size:20" json:"unit"`
	DecidedAt  *time.Time `gorm:"index" json:"decided_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RequestForQuotation) TableName() string {
	return "request_for_quotations"
}

func (r RequestForQuotation) Decided() bool {
	return r.DecidedAt != nil
}
