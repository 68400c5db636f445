package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one priced allocation of an RFQ to a supplier offer.
// (rfq_id, supplier_price_id) is unique so re-running a batch never duplicates rows.
type Transaction struct {
	ID                   int               `gorm:"primary_key" json:"id"`
	RfqId                int               `gorm:"uniqueIndex:uniq_rfq_supplier_price;not null" json:"rfq_id"`
	SupplierPriceId      int               `gorm:"uniqueIndex:uniq_rfq_supplier_price;not null" json:"supplier_price_id"`
	Status               TransactionStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ChosenPrice          decimal.Decimal   `gorm:"type:decimal(21,5);not null" json:"chosen_price"`
	FinalPrice           decimal.Decimal   `gorm:"type:decimal(21,5);not null" json:"final_price"`
	AnalyzedProfitMargin decimal.Decimal   `gorm:"type:decimal(8,5);not null" json:"analyzed_profit_margin"`
	Quantity             int               `gorm:"not null" json:"quantity"`
	Note                 string            `gorm:"type:text" json:"note"`
	CreatedAt            time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t Transaction) Profit() decimal.Decimal {
	return t.FinalPrice.Sub(t.ChosenPrice)
}

func (t Transaction) Revenue() decimal.Decimal {
	return t.FinalPrice.Mul(decimal.NewFromInt(int64(t.Quantity)))
}
