// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
)

func startPostgres(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("tracker"),
		postgres.WithUsername("tracker"),
		postgres.WithPassword("tracker"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pg, err := NewPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })
	return pg
}

func startRedis(t *testing.T, capacity int) *Redis {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rs, err := NewRedis(ctx, "redis://"+endpoint, "test:fixes", capacity)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs
}

func satelliteAt(offset time.Duration) gps.SatelliteFix {
	id, snr := 17, 41
	el, az := 40.0, 83.0
	return gps.SatelliteFix{
		Timestamp:          epoch.Add(offset),
		SentenceKind:       gps.KindGSV,
		System:             "GPS",
		SatelliteID:        &id,
		ElevationDeg:       &el,
		AzimuthDeg:         &az,
		SignalToNoiseRatio: &snr,
	}
}

// exerciseStore runs the behaviour every network backend shares.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Append(ctx, fixAt(2*time.Second, "GPS")))
	require.NoError(t, s.Append(ctx, fixAt(1*time.Second, "GLONASS")))
	require.NoError(t, s.Append(ctx, satelliteAt(3*time.Second)))
	// identical records are both kept
	require.NoError(t, s.Append(ctx, satelliteAt(3*time.Second)))
	require.NoError(t, s.Append(ctx, fixAt(time.Hour, "GPS")))

	fixes, err := s.Query(ctx, epoch, epoch.Add(time.Minute), "")
	require.NoError(t, err)
	require.Len(t, fixes, 4)
	assert.Equal(t, "GLONASS", fixes[0].System, "oldest first")
	assert.True(t, fixes[0].Timestamp.Equal(epoch.Add(time.Second)))
	require.NotNil(t, fixes[1].Latitude)
	assert.InDelta(t, 48.1173, *fixes[1].Latitude, 1e-9)
	assert.Nil(t, fixes[1].SatelliteID)

	gsv := fixes[2]
	assert.Equal(t, gps.KindGSV, gsv.SentenceKind)
	require.NotNil(t, gsv.SatelliteID)
	assert.Equal(t, 17, *gsv.SatelliteID)
	assert.Nil(t, gsv.Latitude)

	glonass, err := s.Query(ctx, epoch, epoch.Add(2*time.Hour), "GLONASS")
	require.NoError(t, err)
	assert.Len(t, glonass, 1)

	none, err := s.Query(ctx, epoch.Add(-time.Hour), epoch, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostgres_Integration(t *testing.T) {
	exerciseStore(t, startPostgres(t))
}

func TestPostgres_BreakerWrapped(t *testing.T) {
	pg := startPostgres(t)
	b := NewBreaker("postgres", pg)
	require.NoError(t, b.Append(context.Background(), fixAt(0, "GPS")))

	require.NoError(t, pg.Close())
	err := b.Ping(context.Background())
	assert.Error(t, err)
}

func TestRedis_Integration(t *testing.T) {
	exerciseStore(t, startRedis(t, 100))
}

func TestRedis_TrimsToCapacity(t *testing.T) {
	ctx := context.Background()
	rs := startRedis(t, 3)

	for i := 0; i < 6; i++ {
		require.NoError(t, rs.Append(ctx, fixAt(time.Duration(i)*time.Second, "GPS")))
	}

	fixes, err := rs.Query(ctx, epoch, epoch.Add(time.Minute), "")
	require.NoError(t, err)
	require.Len(t, fixes, 3)
	assert.True(t, fixes[0].Timestamp.Equal(epoch.Add(3*time.Second)))
}
