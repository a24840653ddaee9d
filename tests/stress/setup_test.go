//go:build stress

// Package stress runs the discount stack against a real PostgreSQL started
// with dockertest. Usage:
//
//	go test -v -race -tags stress ./tests/stress/...
package stress

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-pricing-engine/internal/model"
	"github.com/fairyhunter13/order-pricing-engine/internal/repository"
	"github.com/fairyhunter13/order-pricing-engine/pkg/database"
)

var testPool *pgxpool.Pool

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

	if _, err := database.Migrate(context.Background(), testPool); err != nil {
		log.Fatalf("Could not run migrations: %s", err)
	}

	code := m.Run()

	testPool.Close()
	if err := pool.Purge(resource); err != nil {
		log.Fatalf("Could not purge resource: %s", err)
	}

	os.Exit(code)
}

func cleanupTables(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), "TRUNCATE TABLE discount_usage_batches, discounts CASCADE")
	if err != nil {
		t.Fatalf("Failed to cleanup tables: %v", err)
	}
}

// createTestDiscount inserts a live fixed discount through the repository.
func createTestDiscount(t *testing.T, code string, usageLimit *int) *model.DiscountRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	record := &model.DiscountRecord{
		ID:         uuid.New(),
		Code:       code,
		Kind:       model.DiscountFixed,
		Value:      decimal.NewFromInt(50),
		UsageLimit: usageLimit,
		Categories: []string{model.AllCategories},
		Active:     true,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(24 * time.Hour),
	}
	if err := repository.NewDiscountRepository(testPool).Insert(ctx, record); err != nil {
		t.Fatalf("Failed to create test discount: %v", err)
	}
	return record
}

// getUsageFromDB returns usage_count and the batch rows recorded for id.
func getUsageFromDB(t *testing.T, id uuid.UUID) (usageCount, batchRows, batchTotal int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := testPool.QueryRow(ctx, "SELECT usage_count FROM discounts WHERE id = $1", id).Scan(&usageCount)
	if err != nil {
		t.Fatalf("Failed to get usage_count: %v", err)
	}

	err = testPool.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(SUM(count), 0) FROM discount_usage_batches WHERE discount_id = $1",
		id).Scan(&batchRows, &batchTotal)
	if err != nil {
		t.Fatalf("Failed to get usage batches: %v", err)
	}
	return usageCount, batchRows, batchTotal
}
