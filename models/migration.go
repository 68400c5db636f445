package models

import (
	"log"

	"github.com/mmdatafocus/pricing_backend/config"
	"gorm.io/gorm"
)

// AllModels lists every table owned by the pricing backend, parents first.
func AllModels() []interface{} {
	return []interface{}{
		&Region{}, &Product{}, &Customer{}, &Supplier{},
		&PurchaseOrder{}, &SupplierPrice{}, &RequestForQuotation{},
		&Transaction{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
