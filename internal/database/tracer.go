package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// multiTracer chains several pgx query tracers.
//
// pgx accepts a single Tracer in ConnConfig; this adapter lets the New Relic
// tracer, the local SQL trace log and the slow query log run side by side.
type multiTracer struct {
	tracers []pgx.QueryTracer
}

func (mt *multiTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, tracer := range mt.tracers {
		ctx = tracer.TraceQueryStart(ctx, conn, data)
	}
	return ctx
}

func (mt *multiTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, tracer := range mt.tracers {
		tracer.TraceQueryEnd(ctx, conn, data)
	}
}

type slowQueryKey struct{}

type slowQueryStart struct {
	sql   string
	start time.Time
}

// slowQueryTracer logs a warning for every query that runs longer than
// threshold.
type slowQueryTracer struct {
	threshold time.Duration
	log       *zerolog.Logger
	now       func() time.Time
}

func newSlowQueryTracer(threshold time.Duration, logger *zerolog.Logger) *slowQueryTracer {
	return &slowQueryTracer{threshold: threshold, log: logger, now: time.Now}
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, slowQueryKey{}, slowQueryStart{sql: data.SQL, start: t.now()})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	started, ok := ctx.Value(slowQueryKey{}).(slowQueryStart)
	if !ok {
		return
	}

	elapsed := t.now().Sub(started.start)
	if elapsed <= t.threshold {
		return
	}

	t.log.Warn().
		Str("sql", started.sql).
		Dur("duration", elapsed).
		Dur("threshold", t.threshold).
		Err(data.Err).
		Msg("slow query")
}
