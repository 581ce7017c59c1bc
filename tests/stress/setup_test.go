package stress

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/fairyhunter13/flash-sale-checkout/internal/cache"
	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/repository"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

var testPool *pgxpool.Pool

const (
	testHoldTTL = 2 * time.Minute
	testRetries = 3
)

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct pool: %s", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_PASSWORD=testpass",
			"POSTGRES_USER=testuser",
			"POSTGRES_DB=testdb",
			"listen_addresses='*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start resource: %s", err)
	}

	hostAndPort := resource.GetHostPort("5432/tcp")
	databaseURL := fmt.Sprintf("postgres://testuser:testpass@%s/testdb?sslmode=disable", hostAndPort)

	log.Println("Connecting to database on url:", databaseURL)

	_ = resource.Expire(120) // Tell docker to kill the container after 120 seconds

	// Retry connection
	pool.MaxWait = 120 * time.Second
	if err = pool.Retry(func() error {
		var err error
		testPool, err = pgxpool.New(context.Background(), databaseURL)
		if err != nil {
			return err
		}
		return testPool.Ping(context.Background())
	}); err != nil {
		log.Fatalf("Could not connect to database: %s", err)
	}

	// Run migrations
	if err := database.Migrate(context.Background(), testPool); err != nil {
		log.Fatalf("Could not run migrations: %s", err)
	}

	code := m.Run()

	// Cleanup
	if err := pool.Purge(resource); err != nil {
		log.Fatalf("Could not purge resource: %s", err)
	}

	os.Exit(code)
}

func cleanupTables(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		"TRUNCATE TABLE webhook_logs, orders, holds, products RESTART IDENTITY CASCADE")
	if err != nil {
		t.Fatalf("Failed to cleanup tables: %v", err)
	}
}

// testServices wires the real service stack over the dockertest database,
// with the product cache disabled so the database is the only state.
type testServices struct {
	holds    *service.HoldService
	orders   *service.OrderService
	webhooks *service.WebhookService
}

func newTestServices() *testServices {
	productRepo := repository.NewProductRepository(testPool)
	holdRepo := repository.NewHoldRepository(testPool)
	orderRepo := repository.NewOrderRepository(testPool)
	webhookRepo := repository.NewWebhookRepository(testPool)
	noCache := cache.NewProductCache(nil, 0)

	holdSvc := service.NewHoldService(testPool, productRepo, holdRepo, noCache, testHoldTTL, testRetries)
	orderSvc := service.NewOrderService(testPool, productRepo, holdRepo, orderRepo, noCache, testRetries)
	webhookSvc := service.NewWebhookService(testPool, webhookRepo, orderRepo, orderSvc, noCache, testRetries)

	return &testServices{holds: holdSvc, orders: orderSvc, webhooks: webhookSvc}
}

// createTestProduct inserts a product directly and returns its id.
func createTestProduct(t *testing.T, name, price string, stock int) int64 {
	t.Helper()
	var id int64
	err := testPool.QueryRow(context.Background(),
		"INSERT INTO products (name, description, price, stock) VALUES ($1, '', $2::numeric, $3) RETURNING id",
		name, price, stock).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test product: %v", err)
	}
	return id
}

func getProductStock(t *testing.T, id int64) int {
	t.Helper()
	var stock int
	err := testPool.QueryRow(context.Background(),
		"SELECT stock FROM products WHERE id = $1", id).Scan(&stock)
	if err != nil {
		t.Fatalf("Failed to get product stock: %v", err)
	}
	return stock
}

// heldUnits sums quantities of active holds for a product.
func heldUnits(t *testing.T, productID int64) int {
	t.Helper()
	var units int
	err := testPool.QueryRow(context.Background(),
		"SELECT COALESCE(SUM(quantity), 0) FROM holds WHERE product_id = $1 AND status = 'active'",
		productID).Scan(&units)
	if err != nil {
		t.Fatalf("Failed to sum active holds: %v", err)
	}
	return units
}

// orderedUnits sums quantities of pending and paid orders for a product.
// Cancelled orders returned their units to stock and do not count.
func orderedUnits(t *testing.T, productID int64) int {
	t.Helper()
	var units int
	err := testPool.QueryRow(context.Background(),
		"SELECT COALESCE(SUM(quantity), 0) FROM orders WHERE product_id = $1 AND status IN ('pending', 'paid')",
		productID).Scan(&units)
	if err != nil {
		t.Fatalf("Failed to sum order units: %v", err)
	}
	return units
}

func countOrdersForHold(t *testing.T, holdID int64) int {
	t.Helper()
	var count int
	err := testPool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM orders WHERE hold_id = $1", holdID).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count orders: %v", err)
	}
	return count
}

func getOrderStatus(t *testing.T, orderID int64) string {
	t.Helper()
	var status string
	err := testPool.QueryRow(context.Background(),
		"SELECT status FROM orders WHERE id = $1", orderID).Scan(&status)
	if err != nil {
		t.Fatalf("Failed to get order status: %v", err)
	}
	return status
}

func countWebhookLogs(t *testing.T, key string) int {
	t.Helper()
	var count int
	err := testPool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM webhook_logs WHERE idempotency_key = $1", key).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count webhook logs: %v", err)
	}
	return count
}

func webhookRequest(key string, orderID int64, status string) *model.WebhookRequest {
	return &model.WebhookRequest{
		IdempotencyKey: key,
		OrderID:        &orderID,
		PaymentStatus:  status,
	}
}

// expireHold rewinds a hold's deadline so the sweeper and conversion paths
// both see it as stale.
func expireHold(t *testing.T, holdID int64) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		"UPDATE holds SET expires_at = NOW() - INTERVAL '1 second' WHERE id = $1", holdID)
	if err != nil {
		t.Fatalf("Failed to expire hold: %v", err)
	}
}
