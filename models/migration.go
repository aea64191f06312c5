package models

import "github.com/yoeldevsoft25/LA-CAJA-sub003/config"

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&EventRecord{},
		&Product{},
		&Customer{},
		&Warehouse{},
		&WarehouseStock{},
		&Sale{},
		&SaleItem{},
		&InventoryMovement{},
		&StockEscrow{},
		&EscrowGrant{},
		&Debt{},
		&DebtPayment{},
		&CashSession{},
	)
	if err != nil {
		panic(err)
	}
}
