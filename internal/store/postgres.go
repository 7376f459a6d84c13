// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const fixColumns = `timestamp, sentence_kind, system, latitude, longitude, altitude,
	satellites_in_use, satellite_id, elevation_deg, azimuth_deg, snr, used_in_fix,
	pdop, hdop, vdop, speed_knots, direction_deg`

// Postgres stores records in the satellite_fixes table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and migrates the schema.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create connection pool: %w", ErrUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrUnavailable, err)
	}

	if err := migrateSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	slog.Info("Database connected", "max_conns", poolCfg.MaxConns)
	return &Postgres{pool: pool}, nil
}

func migrateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	migrationFS, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn.Conn(), "public.schema_version")
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(migrationFS); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, fix gps.SatelliteFix) error {
	defer observe("postgres", "append", time.Now())

	_, err := p.pool.Exec(ctx, `
		INSERT INTO satellite_fixes (`+fixColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		fix.Timestamp.UTC(), string(fix.SentenceKind), fix.System,
		fix.Latitude, fix.Longitude, fix.Altitude,
		fix.SatellitesInUse, fix.SatelliteID, fix.ElevationDeg, fix.AzimuthDeg, fix.SignalToNoiseRatio,
		fix.UsedInFix, fix.PDOP, fix.HDOP, fix.VDOP, fix.SpeedKnots, fix.DirectionDeg,
	)
	if err != nil {
		return fmt.Errorf("failed to insert satellite fix: %w", err)
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, from, to time.Time, system string) ([]gps.SatelliteFix, error) {
	defer observe("postgres", "query", time.Now())

	rows, err := p.pool.Query(ctx, `
		SELECT `+fixColumns+`
		FROM satellite_fixes
		WHERE timestamp >= $1 AND timestamp <= $2 AND ($3 = '' OR system = $3)
		ORDER BY timestamp, id`,
		from.UTC(), to.UTC(), system,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query satellite fixes: %w", err)
	}

	fixes, err := pgx.CollectRows(rows, scanFix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan satellite fixes: %w", err)
	}
	return fixes, nil
}

func scanFix(row pgx.CollectableRow) (gps.SatelliteFix, error) {
	var (
		fix  gps.SatelliteFix
		kind string
	)
	err := row.Scan(
		&fix.Timestamp, &kind, &fix.System,
		&fix.Latitude, &fix.Longitude, &fix.Altitude,
		&fix.SatellitesInUse, &fix.SatelliteID, &fix.ElevationDeg, &fix.AzimuthDeg, &fix.SignalToNoiseRatio,
		&fix.UsedInFix, &fix.PDOP, &fix.HDOP, &fix.VDOP, &fix.SpeedKnots, &fix.DirectionDeg,
	)
	fix.SentenceKind = gps.SentenceKind(kind)
	fix.Timestamp = fix.Timestamp.UTC()
	return fix, err
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
