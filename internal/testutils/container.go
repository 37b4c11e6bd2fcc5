// SPDX-License-Identifier: Apache-2.0

// Package testutils provides a shared Postgres testcontainer for package
// tests, following xataio/pgroll's pkg/testutils/util.go pattern: one
// container per test binary, a fresh database per test.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultPostgresVersion = "16.3"

var sharedConnStr string

// SharedTestMain starts one Postgres container for the whole test binary.
// Individual tests each get a freshly created database via
// NewDatabase.
func SharedTestMain(m *testing.M) {
	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(30 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.Run(ctx, "postgres:"+pgVersion,
		testcontainers.WithWaitStrategy(waitForLogs),
	)
	if err != nil {
		log.Printf("failed to start postgres container: %v", err)
		os.Exit(1)
	}

	sharedConnStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Printf("failed to read container connection string: %v", err)
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := ctr.Terminate(ctx); err != nil {
		log.Printf("failed to terminate postgres container: %v", err)
	}

	os.Exit(exitCode)
}

// NewDatabase creates a fresh, empty database in the shared container and
// returns a connection to it along with its connection string.
func NewDatabase(t *testing.T) (*sql.DB, string) {
	t.Helper()
	ctx := context.Background()

	adminConn, err := sql.Open("postgres", sharedConnStr)
	if err != nil {
		t.Fatalf("connecting to shared container: %v", err)
	}
	defer adminConn.Close()

	name := randomDBName()
	_, err = adminConn.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(name)))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}

	t.Cleanup(func() {
		cleanupConn, err := sql.Open("postgres", sharedConnStr)
		if err != nil {
			return
		}
		defer cleanupConn.Close()
		cleanupConn.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", pq.QuoteIdentifier(name)))
	})

	dbConnStr, err := replaceDBName(sharedConnStr, name)
	if err != nil {
		t.Fatalf("building connection string for %q: %v", name, err)
	}

	conn, err := sql.Open("postgres", dbConnStr)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn, dbConnStr
}

func randomDBName() string {
	const length = 15
	const charset = "abcdefghijklmnopqrstuvwxyz"

	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))] // #nosec G404
	}

	return "testdb_" + string(b)
}
