package workflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/utils"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/workflow"
)

// End-to-end projection semantics against a real MySQL. Covers the
// guarantees replaying terminals depend on:
// - folding the same event twice changes nothing
// - sales consume device escrow before warehouse stock
// - a partially projected sale is completed on re-drive
// - debt rollover closes the parent and opens a child for the remainder
// - a sale without an actor rolls back completely
//
// Run (requires Docker): INTEGRATION_TESTS=1 go test ./workflow -run Projection -v

func TestProjectionIntegration(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "lacaja_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	logger := config.GetLogger()

	storeID := uuid.NewString()
	deviceID := uuid.NewString()
	actorID := uuid.NewString()
	productID := uuid.NewString()
	customerID := uuid.NewString()

	// Warehouses are provisioned server-side, not via terminal events.
	warehouse := models.Warehouse{
		ID:        uuid.NewString(),
		StoreId:   storeID,
		Name:      "Main",
		IsDefault: utils.NewTrue(),
		IsActive:  utils.NewTrue(),
	}
	if err := db.Create(&warehouse).Error; err != nil {
		t.Fatalf("create warehouse: %v", err)
	}

	fold := func(t *testing.T, ev *models.EventRecord) {
		t.Helper()
		if err := workflow.ProjectEvent(ctx, db, logger, ev); err != nil {
			t.Fatalf("ProjectEvent(%s): %v", ev.Type, err)
		}
	}
	warehouseQty := func(t *testing.T) decimal.Decimal {
		t.Helper()
		var ws models.WarehouseStock
		err := db.Where("store_id = ? AND warehouse_id = ? AND product_id = ?", storeID, warehouse.ID, productID).
			First(&ws).Error
		if err != nil {
			t.Fatalf("fetch warehouse stock: %v", err)
		}
		return ws.Qty
	}

	// Seed catalog + customer + 20 units of stock.
	fold(t, makeEvent(t, models.EventTypeProductCreated, storeID, nil, &actorID, map[string]any{
		"product_id": productID,
		"name":       "Harina PAN",
		"price_usd":  "1.5",
	}))
	fold(t, makeEvent(t, models.EventTypeCustomerCreated, storeID, nil, &actorID, map[string]any{
		"customer_id": customerID,
		"name":        "Maria Perez",
	}))
	receiveEvent := makeEvent(t, models.EventTypeStockReceived, storeID, nil, &actorID, map[string]any{
		"movement_id": uuid.NewString(),
		"product_id":  productID,
		"qty":         "20",
		"reason":      "initial load",
	})
	fold(t, receiveEvent)

	t.Run("replayed stock receipt applies once", func(t *testing.T) {
		fold(t, receiveEvent)
		if got := warehouseQty(t); !got.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("expected qty 20 after replay, got %s", got)
		}
		var movements int64
		if err := db.Model(&models.InventoryMovement{}).
			Where("store_id = ? AND kind = ?", storeID, models.MovementKindReceived).
			Count(&movements).Error; err != nil {
			t.Fatalf("count movements: %v", err)
		}
		if movements != 1 {
			t.Fatalf("expected 1 received movement, got %d", movements)
		}
	})

	t.Run("sales consume escrow before warehouse", func(t *testing.T) {
		grantEvent := makeEvent(t, models.EventTypeStockQuotaGranted, storeID, nil, &actorID, map[string]any{
			"grant_id":   uuid.NewString(),
			"product_id": productID,
			"device_id":  deviceID,
			"qty":        "10",
		})
		fold(t, grantEvent)
		fold(t, grantEvent) // duplicate delivery grants nothing twice

		var escrow models.StockEscrow
		if err := db.Where("store_id = ? AND product_id = ? AND device_id = ?", storeID, productID, deviceID).
			First(&escrow).Error; err != nil {
			t.Fatalf("fetch escrow: %v", err)
		}
		if !escrow.QtyGranted.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("expected quota 10 after duplicate grant, got %s", escrow.QtyGranted)
		}

		// Sale of 6 fits the quota: warehouse untouched.
		fold(t, makeEvent(t, models.EventTypeSaleCreated, storeID, &deviceID, &actorID, map[string]any{
			"sale_id":        uuid.NewString(),
			"payment_method": string(models.PaymentMethodCash),
			"total_usd":      "9",
			"items": []map[string]any{
				{"item_id": uuid.NewString(), "product_id": productID, "qty": "6", "unit_price_usd": "1.5"},
			},
		}))
		if got := warehouseQty(t); !got.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("expected warehouse untouched at 20, got %s", got)
		}

		// Sale of 10 drains the remaining quota of 4, rest hits the warehouse.
		secondSale := makeEvent(t, models.EventTypeSaleCreated, storeID, &deviceID, &actorID, map[string]any{
			"sale_id":        uuid.NewString(),
			"payment_method": string(models.PaymentMethodCash),
			"total_usd":      "15",
			"items": []map[string]any{
				{"item_id": uuid.NewString(), "product_id": productID, "qty": "10", "unit_price_usd": "1.5"},
			},
		})
		fold(t, secondSale)
		if got := warehouseQty(t); !got.Equal(decimal.NewFromInt(14)) {
			t.Fatalf("expected warehouse 14 after quota drained, got %s", got)
		}

		// Replay of the whole sale deducts nothing more.
		fold(t, secondSale)
		if got := warehouseQty(t); !got.Equal(decimal.NewFromInt(14)) {
			t.Fatalf("expected warehouse stable at 14 after replay, got %s", got)
		}

		if err := db.Where("store_id = ? AND product_id = ? AND device_id = ?", storeID, productID, deviceID).
			First(&escrow).Error; err != nil {
			t.Fatalf("fetch escrow after sales: %v", err)
		}
		if !escrow.QtyGranted.IsZero() {
			t.Fatalf("expected quota exhausted, got %s", escrow.QtyGranted)
		}
	})

	t.Run("expired quota contributes nothing", func(t *testing.T) {
		otherDevice := uuid.NewString()
		expired := time.Now().UTC().Add(-time.Hour)
		fold(t, makeEvent(t, models.EventTypeStockQuotaGranted, storeID, nil, &actorID, map[string]any{
			"grant_id":   uuid.NewString(),
			"product_id": productID,
			"device_id":  otherDevice,
			"qty":        "5",
			"expires_at": expired.Format(time.RFC3339),
		}))

		before := warehouseQty(t)
		fold(t, makeEvent(t, models.EventTypeSaleCreated, storeID, &otherDevice, &actorID, map[string]any{
			"sale_id":        uuid.NewString(),
			"payment_method": string(models.PaymentMethodCash),
			"total_usd":      "3",
			"items": []map[string]any{
				{"item_id": uuid.NewString(), "product_id": productID, "qty": "2", "unit_price_usd": "1.5"},
			},
		}))
		if got := warehouseQty(t); !got.Equal(before.Sub(decimal.NewFromInt(2))) {
			t.Fatalf("expected full warehouse deduction past expiry: before=%s got=%s", before, got)
		}
	})

	t.Run("partially projected sale is completed on re-drive", func(t *testing.T) {
		saleID := uuid.NewString()
		// Header exists but items and movements are missing, as after an
		// interrupted projection under an older, non-transactional build.
		header := models.Sale{
			ID:            saleID,
			StoreId:       storeID,
			SoldByUserId:  actorID,
			PaymentMethod: models.PaymentMethodCash,
			SoldAt:        time.Now().UTC(),
		}
		if err := db.Create(&header).Error; err != nil {
			t.Fatalf("seed partial sale header: %v", err)
		}

		before := warehouseQty(t)
		fold(t, makeEvent(t, models.EventTypeSaleCreated, storeID, nil, &actorID, map[string]any{
			"sale_id":        saleID,
			"payment_method": string(models.PaymentMethodCash),
			"total_usd":      "4.5",
			"items": []map[string]any{
				{"item_id": uuid.NewString(), "product_id": productID, "qty": "1", "unit_price_usd": "1.5"},
				{"item_id": uuid.NewString(), "product_id": productID, "qty": "2", "unit_price_usd": "1.5"},
			},
		}))

		var items, movements int64
		if err := db.Model(&models.SaleItem{}).Where("sale_id = ?", saleID).Count(&items).Error; err != nil {
			t.Fatalf("count items: %v", err)
		}
		if err := db.Model(&models.InventoryMovement{}).Where("sale_id = ?", saleID).Count(&movements).Error; err != nil {
			t.Fatalf("count movements: %v", err)
		}
		if items != 2 || movements != 2 {
			t.Fatalf("expected 2 items and 2 movements after re-drive, got %d/%d", items, movements)
		}
		if got := warehouseQty(t); !got.Equal(before.Sub(decimal.NewFromInt(3))) {
			t.Fatalf("expected deduction of 3 on re-drive: before=%s got=%s", before, got)
		}
	})

	t.Run("debt rollover closes parent and opens child", func(t *testing.T) {
		debtID := uuid.NewString()
		fold(t, makeEvent(t, models.EventTypeDebtCreated, storeID, nil, &actorID, map[string]any{
			"debt_id":     debtID,
			"customer_id": customerID,
			"amount_usd":  "100",
		}))

		fold(t, makeEvent(t, models.EventTypeDebtPaymentRecorded, storeID, nil, &actorID, map[string]any{
			"payment_id": uuid.NewString(),
			"debt_id":    debtID,
			"amount_usd": "40",
		}))
		var debt models.Debt
		if err := db.Where("id = ?", debtID).First(&debt).Error; err != nil {
			t.Fatalf("fetch debt: %v", err)
		}
		if debt.Status != models.DebtStatusPartial {
			t.Fatalf("expected partial after $40 of $100, got %s", debt.Status)
		}

		childID := uuid.NewString()
		fold(t, makeEvent(t, models.EventTypeDebtPaymentRecorded, storeID, nil, &actorID, map[string]any{
			"payment_id":       uuid.NewString(),
			"debt_id":          debtID,
			"amount_usd":       "30",
			"rollover":         true,
			"rollover_debt_id": childID,
		}))

		if err := db.Where("id = ?", debtID).First(&debt).Error; err != nil {
			t.Fatalf("fetch debt after rollover: %v", err)
		}
		if debt.Status != models.DebtStatusPaid {
			t.Fatalf("expected parent paid after rollover, got %s", debt.Status)
		}
		var child models.Debt
		if err := db.Where("id = ?", childID).First(&child).Error; err != nil {
			t.Fatalf("fetch child debt: %v", err)
		}
		if child.ParentDebtId == nil || *child.ParentDebtId != debtID {
			t.Fatalf("expected child parent link to %s, got %v", debtID, child.ParentDebtId)
		}
		if !child.AmountUsd.Equal(decimal.NewFromInt(30)) {
			t.Fatalf("expected child remainder 30, got %s", child.AmountUsd)
		}
		if child.Status != models.DebtStatusOpen {
			t.Fatalf("expected child open, got %s", child.Status)
		}
	})

	t.Run("sale without actor rolls back completely", func(t *testing.T) {
		saleID := uuid.NewString()
		before := warehouseQty(t)
		ev := makeEvent(t, models.EventTypeSaleCreated, storeID, nil, nil, map[string]any{
			"sale_id":        saleID,
			"payment_method": string(models.PaymentMethodCash),
			"total_usd":      "1.5",
			"items": []map[string]any{
				{"item_id": uuid.NewString(), "product_id": productID, "qty": "1", "unit_price_usd": "1.5"},
			},
		})
		if err := workflow.ProjectEvent(ctx, db, logger, ev); err == nil {
			t.Fatalf("expected error for sale without actor")
		}

		var count int64
		if err := db.Model(&models.Sale{}).Where("id = ?", saleID).Count(&count).Error; err != nil {
			t.Fatalf("count sales: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected no sale row after rollback, got %d", count)
		}
		if got := warehouseQty(t); !got.Equal(before) {
			t.Fatalf("expected no stock mutation after rollback: before=%s got=%s", before, got)
		}
	})
}

func makeEvent(t *testing.T, typ models.EventType, storeID string, deviceID, actorID *string, payload map[string]any) *models.EventRecord {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &models.EventRecord{
		ID:          uuid.NewString(),
		Type:        typ,
		StoreId:     storeID,
		DeviceId:    deviceID,
		ActorUserId: actorID,
		Payload:     raw,
		CreatedAt:   time.Now().UTC(),
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lacaja-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lacaja-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=lacaja_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
