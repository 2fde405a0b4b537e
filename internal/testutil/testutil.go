// Package testutil connects integration tests to the Postgres and Redis instances
// from the docker-compose test profile. Tests skip when the infrastructure is
// unreachable unless TEST_REQUIRE_INFRA (or the per-store TEST_REQUIRE_DB /
// TEST_REQUIRE_REDIS) is set.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	// Register the pgx driver with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/target/microshop-ui/config"
	"github.com/target/microshop-ui/internal/migrate"
)

const (
	localTestDBPort    = 55432
	localTestRedisAddr = "localhost:56379"
	probeTimeout       = 2 * time.Second
	redisLockTTL       = 30 * time.Minute
)

// auditTables are emptied between tests sharing one database.
var auditTables = []string{"auth_events"}

// TestTime is a fixed instant for deterministic timestamps.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// TestDBConfig reads TEST_DB_* with the same keys the service reads under DB_*.
// The port defaults to the local test profile instead of 5432.
func TestDBConfig() (config.DBConfig, error) {
	var cfg config.DBConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "TEST_DB_"}); err != nil {
		return config.DBConfig{}, fmt.Errorf("parse TEST_DB_*: %w", err)
	}
	if os.Getenv("TEST_DB_PORT") == "" {
		cfg.Port = localTestDBPort
	}
	return cfg, nil
}

// SetupAutoDB returns a migrated database closed at test end. With
// TEST_DB_EPHEMERAL set, every test gets its own schema; otherwise the shared
// schema is emptied first.
func SetupAutoDB(t testing.TB) *sql.DB {
	t.Helper()

	cfg, err := TestDBConfig()
	if err != nil {
		t.Fatal(err)
	}
	dsn := cfg.DSN()
	probe(t, requireFor("DB"), "postgres", func(ctx context.Context) error { return pingDSN(ctx, dsn) })

	if envBool("TEST_DB_EPHEMERAL") {
		schema := newSchemaName()
		admin := openDB(t, dsn)
		exec(t, admin, "CREATE SCHEMA IF NOT EXISTS "+schema)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, dropErr := admin.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); dropErr != nil {
				t.Logf("drop schema %s: %v", schema, dropErr)
			}
			_ = admin.Close()
		})
		t.Logf("using ephemeral schema %s", schema)
		dsn = withSearchPath(t, dsn, schema)
	}

	db := openDB(t, dsn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := migrate.Run(ctx, db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	for _, table := range auditTables {
		exec(t, db, "DELETE FROM "+table)
	}
	return db
}

// SetupTestRedis returns a client on an otherwise unused logical database,
// flushed before use and closed at test end.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()

	addr := findRedis()
	probe(t, requireFor("REDIS"), "redis at "+addr, func(ctx context.Context) error {
		c := redis.NewClient(&redis.Options{Addr: addr})
		defer c.Close()
		return c.Ping(ctx).Err()
	})

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveRedisDB(t, addr)})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test redis: %v", err)
	}
	return client
}

func probe(t testing.TB, required bool, what string, ping func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := ping(ctx); err != nil {
		if required {
			t.Fatalf("%s not available: %v", what, err)
		}
		t.Skipf("%s not available: %v", what, err)
	}
}

func pingDSN(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}

func openDB(t testing.TB, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	db.SetMaxOpenConns(5)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func exec(t testing.TB, db *sql.DB, stmt string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		t.Fatalf("%s: %v", stmt, err)
	}
}

func withSearchPath(t testing.TB, dsn, schema string) string {
	t.Helper()
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse test dsn: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schema+",public")
	u.RawQuery = q.Encode()
	return u.String()
}

func newSchemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b)
}

// findRedis prefers REDIS_ADDR, then the CI service name, then the local test profile.
func findRedis() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	for _, candidate := range []string{"redis:6379", "localhost:6379"} {
		c := redis.NewClient(&redis.Options{Addr: candidate})
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		err := c.Ping(ctx).Err()
		cancel()
		_ = c.Close()
		if err == nil {
			return candidate
		}
	}
	return localTestRedisAddr
}

// reserveRedisDB picks TEST_REDIS_DB, or claims one of DB 1..15 with a lock key
// kept in DB 0 so parallel packages never flush each other's data.
func reserveRedisDB(t testing.TB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	defer meta.Close()

	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= 15; i++ {
		key := "microshop:testutil:db_lock:" + strconv.Itoa(i)
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		ok, err := meta.SetNX(ctx, key, owner, redisLockTTL).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			c := redis.NewClient(&redis.Options{Addr: addr})
			defer c.Close()
			ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
			defer cancel()
			_ = c.Del(ctx, key).Err()
		})
		return i
	}
	return 1
}

func requireFor(store string) bool {
	return envBool("TEST_REQUIRE_"+store) || envBool("TEST_REQUIRE_INFRA")
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
