// SPDX-License-Identifier: Apache-2.0

// Package sandbox implements the shadow executor (spec §4.6): a blank,
// single-tenant database used to materialize desired-state SQL into a
// comparable catalog, and to validate a generated plan by replaying it.
// Provisioning is either a locally-started container or a user-supplied
// URL; the rest of the package only ever requires "a connection to a
// blank database" (spec §1, "Out of scope").
package sandbox

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pgmt-dev/pgmt/internal/dbx"
)

// DockerOptions configures an auto-provisioned shadow container (spec §6,
// "databases.shadow.docker.*").
type DockerOptions struct {
	Image         string
	Env           map[string]string
	ContainerName string
	Network       string
	Volumes       []string
	AutoCleanup   bool
}

const defaultImage = "postgres:16-alpine"

// Sandbox is a connection to a blank, single-tenant database plus its
// teardown. Close is idempotent-safe to call from any exit path,
// including panics, so callers should always `defer sb.Close(ctx)`
// immediately after a successful Provision/Connect (spec §5, "Docker
// container handles ... held by a scope-bound owner that guarantees
// teardown on all exit paths").
type Sandbox struct {
	DB       *dbx.RDB
	connStr  string
	teardown func(context.Context) error
	fsys     fs.FS

	// SessionID identifies one provisioned or connected sandbox, for
	// correlating its output (the default container name, the
	// ApplyDirectory spinner text) across a run that may provision several shadow databases in
	// sequence (baseline create, validate, apply all open their own).
	SessionID string
}

// ConnStr returns the connection string this sandbox was opened with.
func (sb *Sandbox) ConnStr() string { return sb.connStr }

// Close tears down the sandbox: the container, if one was started, or a
// no-op if Connect opened a user-supplied URL. PGMT_KEEP_SHADOW_ON_FAILURE
// set to a non-empty value skips container teardown, for debugging a
// failed shadow apply (spec §6, "Environment").
func (sb *Sandbox) Close(ctx context.Context) error {
	dbErr := sb.DB.Close()
	if os.Getenv("PGMT_KEEP_SHADOW_ON_FAILURE") != "" {
		return dbErr
	}
	if sb.teardown == nil {
		return dbErr
	}
	if err := sb.teardown(ctx); err != nil {
		if dbErr != nil {
			return fmt.Errorf("%w (also failed closing db connection: %v)", err, dbErr)
		}
		return err
	}
	return dbErr
}

// Connect opens a sandbox against an already-running, user-supplied blank
// database (spec §6, "databases.shadow.url"). There is no container to
// tear down; Close only closes the connection.
func Connect(ctx context.Context, connStr string) (*Sandbox, error) {
	conn, err := dbx.ConnectWithRetry(ctx, connStr, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Sandbox{DB: &dbx.RDB{DB: conn}, connStr: connStr, SessionID: uuid.NewString()}, nil
}

// Provision starts a local Postgres container and returns a sandbox
// connected to it (spec §6, "databases.shadow.auto"). The container is
// owned by the returned Sandbox; callers must Close it.
func Provision(ctx context.Context, opts DockerOptions) (*Sandbox, error) {
	image := opts.Image
	if image == "" {
		image = defaultImage
	}

	sessionID := uuid.NewString()
	name := opts.ContainerName
	if name == "" {
		// Without an explicit name, give each provisioned container a
		// unique one anyway: letting Docker pick reuses its own random
		// names, which collide often enough under concurrent shadow runs
		// (several `pgmt` invocations against the same engine) to be
		// worth avoiding outright.
		name = "pgmt-shadow-" + sessionID
	}

	var containerOpts []testcontainers.ContainerCustomizer
	if len(opts.Env) > 0 {
		containerOpts = append(containerOpts, testcontainers.WithEnv(opts.Env))
	}
	containerOpts = append(containerOpts,
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
		testcontainers.WithName(name),
	)
	if opts.Network != "" {
		containerOpts = append(containerOpts, testcontainers.WithNetwork([]string{opts.Network}, opts.Network))
	}
	if mounts := parseVolumes(opts.Volumes); len(mounts) > 0 {
		containerOpts = append(containerOpts, testcontainers.WithMounts(mounts...))
	}

	ctr, err := postgres.Run(ctx, image, containerOpts...)
	if err != nil {
		return nil, fmt.Errorf("starting shadow container: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("resolving shadow container connection string: %w", err)
	}

	conn, err := dbx.ConnectWithRetry(ctx, connStr, 0, 0)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, err
	}

	teardown := func(ctx context.Context) error { return ctr.Terminate(ctx) }
	if !opts.AutoCleanup {
		teardown = func(context.Context) error { return nil }
	}

	return &Sandbox{DB: &dbx.RDB{DB: conn}, connStr: connStr, teardown: teardown, SessionID: sessionID}, nil
}

// parseVolumes parses docker-compose-style "host:container" bind strings
// (spec §6, "databases.shadow.docker.volumes"); entries that don't match
// are skipped rather than failing provisioning outright.
func parseVolumes(volumes []string) []testcontainers.ContainerMount {
	var mounts []testcontainers.ContainerMount
	for _, v := range volumes {
		parts := strings.SplitN(v, ":", 2)
		if len(parts) != 2 {
			continue
		}
		mounts = append(mounts, testcontainers.BindMount(parts[0], testcontainers.ContainerMountTarget(parts[1])))
	}
	return mounts
}
