package models

import "github.com/mmdatafocus/mfg_backend/config"

func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Business{},
		&Part{},
		&Product{},
		&BomItem{},
		&InventoryRecord{},
		&StockTransaction{},
		&SalesOrder{},
		&SalesOrderDetail{},
		&PurchaseOrder{},
		&PurchaseOrderDetail{},
		&MrpResult{},
		&OutboxRecord{},
	)
}
