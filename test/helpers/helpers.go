// test/helpers/helpers.go
package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/inventory-bot/internal/adapters/db"
	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
	"github.com/ammerola/inventory-bot/internal/pkg/config"
)

// TestDB represents a test database instance
type TestDB struct {
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// MemoryRepository is a versioned in-memory DocumentRepository.
// Save rejects a document whose version no longer matches, like the Postgres driver.
type MemoryRepository struct {
	mu       sync.Mutex
	doc      *domain.Document
	loads    int
	saves    int
	LoadErr  error
	SaveErr  error
	SaveHook func(attempt int) error
}

var _ ports.DocumentRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates a repository holding doc, or the default document when nil
func NewMemoryRepository(doc *domain.Document) *MemoryRepository {
	if doc == nil {
		doc = domain.NewDocument()
	}
	return &MemoryRepository{doc: doc.Clone()}
}

// Load returns a copy of the stored document
func (r *MemoryRepository) Load(ctx context.Context) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	c := r.doc.Clone()
	c.Version = r.doc.Version
	return c, nil
}

// Save stores a copy of doc and bumps the version
func (r *MemoryRepository) Save(ctx context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.SaveHook != nil {
		if err := r.SaveHook(r.saves); err != nil {
			return err
		}
	}
	if r.SaveErr != nil {
		return r.SaveErr
	}
	if doc.Version != r.doc.Version {
		return domain.ErrStaleDocument
	}
	stored := doc.Clone()
	stored.Version = r.doc.Version + 1
	r.doc = stored
	doc.Version = stored.Version
	return nil
}

// Document returns a copy of the stored document
func (r *MemoryRepository) Document() *domain.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Clone()
}

// Saves returns how many times Save was called
func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// NewTestDocument returns a document with the given admins and no products
func NewTestDocument(admins ...int64) *domain.Document {
	doc := domain.NewDocument()
	doc.Admins = append(doc.Admins, admins...)
	return doc
}

// CreateTestProduct creates a test product
func CreateTestProduct(overrides ...func(*domain.Product)) domain.Product {
	p := domain.Product{
		CompanyName: "Acme",
		ProductID:   "P100",
		Quantity:    10,
		Price:       5.5,
		Category:    "floors",
		ImageURL:    "http://x/img.png",
	}
	for _, override := range overrides {
		override(&p)
	}
	return p
}

// CreateTestProducts creates multiple test products with distinct ids
func CreateTestProducts(count int) []domain.Product {
	categories := []string{"floors", "walls", "tools", "paint"}
	products := make([]domain.Product, count)
	for i := 0; i < count; i++ {
		products[i] = CreateTestProduct(func(p *domain.Product) {
			p.ProductID = fmt.Sprintf("P%03d", i+1)
			p.CompanyName = fmt.Sprintf("Company %d", i+1)
			p.Category = categories[i%len(categories)]
			p.Quantity = i * 10
			p.Price = float64(i) + 0.5
		})
	}
	return products
}

// SetupTestDB creates a PostgreSQL container for integration tests
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_inventory",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_inventory",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		EnableQueryLogging: testing.Verbose(),
	}

	var database *db.Database
	err = pool.Retry(func() error {
		ctx := context.Background()
		var err error
		database, err = db.NewDatabase(ctx, dbConfig, TestLogger())
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")
	t.Cleanup(database.Close)

	err = db.RunMigrationsWithRetry(context.Background(), database.SQL(), TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis creates a mock Redis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// SetupMockDB creates a mock database for unit testing
func SetupMockDB(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock DB")

	t.Cleanup(func() {
		db.Close()
	})

	return mock, db
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "inventory-bot-test",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Bot: config.BotConfig{
			Token:                "123456:test-token",
			DataFile:             "data.json",
			StoreDriver:          config.StoreDriverFile,
			DefaultThreshold:     domain.DefaultLowStockThreshold,
			SessionTTL:           30 * time.Minute,
			SessionSweepInterval: time.Minute,
			WebhookPath:          "/api/v1/webhook",
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			DB:       0,
			PoolSize: 10,
		},
		Storage: config.StorageConfig{
			Driver:   config.StorageDriverLocal,
			LocalDir: os.TempDir(),
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			RequesterLimit:    30,
			RequesterWindow:   time.Minute,
			DedupeTTL:         24 * time.Hour,
			AllowedOrigins:    []string{"*"},
		},
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           "8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			HandlerTimeout: 10 * time.Second,
		},
	}
}

// CreateTempFile creates a temporary file for testing
func CreateTempFile(t *testing.T, content []byte, extension string) string {
	t.Helper()

	file, err := os.CreateTemp(t.TempDir(), fmt.Sprintf("test-*%s", extension))
	require.NoError(t, err, "Failed to create temp file")

	_, err = file.Write(content)
	require.NoError(t, err, "Failed to write to temp file")

	require.NoError(t, file.Close())
	return file.Name()
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}
