package testinfra

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var Pool *pgxpool.Pool

func init() {
	Pool = SetupDB()
}

func SetupDB() *pgxpool.Pool {

	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:17.2-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections"),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	if err != nil {
		log.Panicf("start postgres: %v", err)
	}

	pgHostPort, err := pgC.Endpoint(ctx, "")
	if err != nil {
		log.Panicf("postgres endpoint: %v", err)
	}
	pgDSN := fmt.Sprintf("postgres://postgres:password@%s/testdb?sslmode=disable", pgHostPort)

	pool, err := pgxpool.New(ctx, pgDSN)
	if err != nil {
		log.Panicf("pgxpool connect: %v", err)
	}

	ok := false
	for i := 0; i < 20; i++ {
		slog.Info("ping db", "try", i)
		ctxPing, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		err = pool.Ping(ctxPing)
		cancel()
		if err == nil {
			ok = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !ok {
		log.Panic("db did not respond after 20 attempts")
	}

	_, err = pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS builder;
		CREATE TABLE IF NOT EXISTS builder.sites (
			id BIGSERIAL PRIMARY KEY,
			creator_id UUID NOT NULL,
			website_id TEXT NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			is_generating BOOLEAN NOT NULL DEFAULT false,
			generation_step SMALLINT NOT NULL DEFAULT -1,
			sitemap_uid TEXT NOT NULL DEFAULT '',
			business_name TEXT NOT NULL,
			business_description TEXT NOT NULL DEFAULT '',
			business_type TEXT NOT NULL DEFAULT '',
			website_type TEXT NOT NULL DEFAULT 'basic',
			theme JSONB,
			pages_meta JSONB,
			seo JSONB,
			site_url TEXT NOT NULL DEFAULT '',
			admin_url TEXT NOT NULL DEFAULT '',
			preview_url TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			last_event_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS sites_website_id_key ON builder.sites (website_id) WHERE website_id <> '';
		CREATE TABLE IF NOT EXISTS builder.subscriptions (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID NOT NULL,
			site_id BIGINT NOT NULL DEFAULT 0,
			plan_id BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL,
			stripe_customer_id TEXT NOT NULL DEFAULT '',
			stripe_subscription_id TEXT NOT NULL UNIQUE,
			current_period_end TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
			trial_end TIMESTAMPTZ,
			metadata JSONB NOT NULL DEFAULT '{}',
			last_event_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS builder.payment_plans (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			stripe_price_id TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS builder.webhook_events (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			payload JSONB NOT NULL,
			received_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS builder.outbox (
			id BIGSERIAL PRIMARY KEY,
			event TEXT NOT NULL,
			status INT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		log.Panicf("create tables: %v", err)
	}

	return pool
}
