package testhelpers

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container images used by integration tests.
const (
	MongoImage    = "mongo:7.0"
	PostgresImage = "postgres:16-alpine"
)

const startupTimeout = 60 * time.Second

// TestMongo holds a shared MongoDB container. Tests isolate themselves by
// using their own database name.
type TestMongo struct {
	Container testcontainers.Container
	URI       string
}

// TestPostgres holds a shared PostgreSQL container and a pool on its database.
type TestPostgres struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

// shared starts a container at most once per test binary.
type shared[T any] struct {
	once sync.Once
	val  *T
	err  error
}

func (s *shared[T]) get(t *testing.T, name string, start func(context.Context) (*T, error)) *T {
	t.Helper()
	if testing.Short() {
		t.Skipf("Skipping %s integration test in short mode (requires Docker)", name)
	}
	s.once.Do(func() {
		s.val, s.err = start(context.Background())
	})
	if s.err != nil {
		t.Fatalf("Failed to start test %s: %v", name, s.err)
	}
	return s.val
}

var (
	mongoContainer    shared[TestMongo]
	postgresContainer shared[TestPostgres]
)

// GetTestMongo returns the MongoDB container shared by the package's tests.
func GetTestMongo(t *testing.T) *TestMongo {
	t.Helper()
	return mongoContainer.get(t, "MongoDB", startMongo)
}

// GetTestPostgres returns the PostgreSQL container shared by the package's tests.
func GetTestPostgres(t *testing.T) *TestPostgres {
	t.Helper()
	return postgresContainer.get(t, "PostgreSQL", startPostgres)
}

// startContainer runs req and returns the host:port mapped to port.
func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (testcontainers.Container, string, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start %s container: %w", req.Image, err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return nil, "", fmt.Errorf("failed to get container port %s: %w", port, err)
	}
	return c, net.JoinHostPort(host, mapped.Port()), nil
}

func startMongo(ctx context.Context) (*TestMongo, error) {
	c, addr, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        MongoImage,
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(startupTimeout),
	}, "27017")
	if err != nil {
		return nil, err
	}
	return &TestMongo{Container: c, URI: "mongodb://" + addr + "/"}, nil
}

func startPostgres(ctx context.Context) (*TestPostgres, error) {
	c, addr, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "mongofilm_test",
			"POSTGRES_USER":     "mongofilm",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The server restarts once after initdb, so the ready line appears twice.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(startupTimeout),
	}, "5432")
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("postgres://mongofilm:test_password@%s/mongofilm_test?sslmode=disable", addr)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		err = pool.Ping(ctx)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres container not reachable: %w", err)
	}

	return &TestPostgres{Container: c, Pool: pool, ConnStr: connStr}, nil
}
