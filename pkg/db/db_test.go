package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"shipmentportal/pkg/config"
)

func TestDSN(t *testing.T) {
	cfg := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "vhc_shipments"}
	assert.Equal(t, "postgres://u:p@db:5432/vhc_shipments?sslmode=disable", DSN(cfg))

	cfg.SSLMode = "require"
	assert.Equal(t, "postgres://u:p@db:5432/vhc_shipments?sslmode=require", DSN(cfg))

	cfg.DSN = "postgres://override"
	assert.Equal(t, "postgres://override", DSN(cfg))
}

func TestQueryOperation(t *testing.T) {
	assert.Equal(t, "select", queryOperation("\n\t SELECT * FROM shipments"))
	assert.Equal(t, "update", queryOperation("update milestones set x = 1"))
	assert.Equal(t, "other", queryOperation("VACUUM"))
	assert.Equal(t, "unknown", queryOperation("   "))
}

func TestSlowQueryTracer_WarnsOnlyAboveThreshold(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(zap.New(core), 50*time.Millisecond)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracer.now = func() time.Time { return clock }

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	clock = clock.Add(10 * time.Millisecond)
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})
	assert.Equal(t, 0, logs.Len())

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT pg_sleep(1)"})
	clock = clock.Add(time.Second)
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})
	if assert.Equal(t, 1, logs.Len()) {
		assert.Equal(t, "slow-query", logs.All()[0].Message)
	}
}
