package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitegen-backend/internal/application"
	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/events"
	"github.com/sitecraft/sitegen-backend/internal/application/processors"
	"github.com/sitecraft/sitegen-backend/internal/infra/client/builder"
	"github.com/sitecraft/sitegen-backend/internal/infra/db"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	"github.com/sitecraft/sitegen-backend/internal/testinfra"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
)

func newPoller(t *testing.T) (*OutboxPoller, *dbs.UOWFactory) {
	t.Helper()
	uowFactory := dbs.NewUoWFactory(testinfra.Pool)
	pipelines := &application.Processors{
		GenerateSite: processors.NewGenerateSite(uowFactory, builder.NewBuilderClient(builder.NewBuilderConfig())),
	}
	return NewOutboxPoller(pipelines, uowFactory, &OutboxConfig{limit: 5, interval: 1}), uowFactory
}

func TestPollTableProcessesPendingEvent(t *testing.T) {
	poller, uowFactory := newPoller(t)
	ctx := context.Background()

	uow := uowFactory.GetUoW()
	tx, err := uow.Begin()
	require.NoError(t, err)

	now := time.Now()
	siteID, err := repo.NewSiteRepo(tx).InsertSite(ctx, db.Site{
		CreatorID:    uuid.New(),
		Status:       string(consts.SiteStatusDraft),
		BusinessName: "Vine & Barrel",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)

	payload, err := json.Marshal(events.GenerateSite{SiteID: siteID})
	require.NoError(t, err)
	var outboxID uint64
	err = tx.QueryRow(ctx,
		"INSERT INTO builder.outbox (event, status, payload, created_at) VALUES ($1,$2,$3,$4) RETURNING id",
		events.GenerateSite{}.GetType(), int(consts.NotProcessed), payload, now).Scan(&outboxID)
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	// The site is not marked generating, so the processor skips it and the
	// event still completes.
	poller.pollTable(ctx)

	var status int
	err = testinfra.Pool.QueryRow(ctx, "SELECT status FROM builder.outbox WHERE id = $1", outboxID).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, int(consts.Processed), status)
}

func TestPollTableReleasesConnectionOnError(t *testing.T) {
	poller, _ := newPoller(t)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	// Every tick fails its first query; each must give its connection back.
	for i := 0; i < 50; i++ {
		poller.pollTable(canceled)
	}

	require.EqualValues(t, 0, testinfra.Pool.Stat().AcquiredConns(),
		"failed poll ticks must not pin pool connections")
}