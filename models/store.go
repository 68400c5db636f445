package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/pricing_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PricingStore reads RFQ inputs and records decisions. Every method returns
// plain records; nothing is lazily loaded.
type PricingStore struct {
	db *gorm.DB
}

func NewPricingStore(db *gorm.DB) *PricingStore {
	return &PricingStore{db: db}
}

// ListPendingRFQs returns up to limit undecided RFQs with id > afterId, by id.
func (s *PricingStore) ListPendingRFQs(ctx context.Context, afterId int, limit int) ([]RequestForQuotation, error) {
	var rfqs []RequestForQuotation
	err := s.db.WithContext(ctx).
		Where("decided_at IS NULL AND id > ?", afterId).
		Order("id ASC").
		Limit(limit).
		Find(&rfqs).Error
	return rfqs, err
}

func (s *PricingStore) PurchaseOrderHistory(ctx context.Context, customerId int, productId int) ([]PurchaseOrder, error) {
	var orders []PurchaseOrder
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND product_id = ?", customerId, productId).
		Order("ordered_at ASC, id ASC").
		Find(&orders).Error
	return orders, err
}

// LatestSupplierPrices returns the current offers for a product, skipping
// suppliers that were soft deleted.
func (s *PricingStore) LatestSupplierPrices(ctx context.Context, productId int) ([]SupplierPrice, error) {
	var prices []SupplierPrice
	err := s.db.WithContext(ctx).
		Joins("JOIN suppliers ON suppliers.id = supplier_prices.supplier_id AND suppliers.deleted_at IS NULL").
		Where("supplier_prices.product_id = ? AND supplier_prices.latest = ?", productId, true).
		Order("supplier_prices.id ASC").
		Find(&prices).Error
	return prices, err
}

// InsertTransactionIfAbsent inserts txn unless a row for the same
// (rfq, supplier price) pair exists. The conflict is resolved by the
// database, so concurrent runs cannot both insert.
func (s *PricingStore) InsertTransactionIfAbsent(ctx context.Context, txn *Transaction) (InsertOutcome, error) {
	if txn.Status == "" {
		txn.Status = TransactionStatusPending
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rfq_id"}, {Name: "supplier_price_id"}},
			DoNothing: true,
		}).
		Create(txn)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return InsertOutcomeAlreadyPresent, nil
	}
	return InsertOutcomeInserted, nil
}

func (s *PricingStore) MarkRFQDecided(ctx context.Context, rfqId int, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&RequestForQuotation{}).
		Where("id = ? AND decided_at IS NULL", rfqId).
		Update("decided_at", at).Error
}

func (s *PricingStore) GetRFQ(ctx context.Context, id int) (*RequestForQuotation, error) {
	var rfq RequestForQuotation
	if err := s.db.WithContext(ctx).First(&rfq, id).Error; err != nil {
		return nil, utils.RecordNotFound(err)
	}
	return &rfq, nil
}

func (s *PricingStore) GetProduct(ctx context.Context, id int) (*Product, error) {
	var product Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, utils.RecordNotFound(err)
	}
	return &product, nil
}

func (s *PricingStore) GetCustomer(ctx context.Context, id int) (*Customer, error) {
	var customer Customer
	if err := s.db.WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, utils.RecordNotFound(err)
	}
	return &customer, nil
}

// ListSupplierPricesByProduct returns every offer, latest or not, cheapest first.
func (s *PricingStore) ListSupplierPricesByProduct(ctx context.Context, productId int) ([]SupplierPrice, error) {
	var prices []SupplierPrice
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productId).
		Order("price ASC, id ASC").
		Find(&prices).Error
	return prices, err
}

func (s *PricingStore) ListTransactionsByRFQ(ctx context.Context, rfqId int) ([]Transaction, error) {
	var txns []Transaction
	err := s.db.WithContext(ctx).
		Where("rfq_id = ?", rfqId).
		Order("id ASC").
		Find(&txns).Error
	return txns, err
}

// GetSuppliersByIds includes soft deleted suppliers so historic rows still resolve.
func (s *PricingStore) GetSuppliersByIds(ctx context.Context, ids []int) (map[int]Supplier, error) {
	suppliers := make(map[int]Supplier, len(ids))
	if len(ids) == 0 {
		return suppliers, nil
	}
	var rows []Supplier
	if err := s.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		suppliers[row.ID] = row
	}
	return suppliers, nil
}
