package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"n8n-ingest/backend/pkg/models"
)

func setupStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	require.NoError(t, Migrate(connStr))
	// A second run must be a no-op.
	require.NoError(t, Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	return NewPostgresStore(pool), pool
}

func ptr[T any](v T) *T { return &v }

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	store, pool := setupStore(t)

	orgA := uuid.NewString()
	orgB := uuid.NewString()

	t.Run("Ping", func(t *testing.T) {
		var repo Repository = store
		assert.NoError(t, repo.Ping(ctx))
	})

	t.Run("LookupActiveToken", func(t *testing.T) {
		require.NoError(t, store.CreateToken(ctx, &models.IngestToken{Token: "sk_live_active", OrgID: orgA, Name: "n8n", IsActive: true}))
		require.NoError(t, store.CreateToken(ctx, &models.IngestToken{Token: "sk_live_revoked", OrgID: orgA, Name: "old", IsActive: false}))

		tok, err := store.LookupActiveToken(ctx, "sk_live_active")
		require.NoError(t, err)
		assert.Equal(t, orgA, tok.OrgID)
		assert.Equal(t, "n8n", tok.Name)
		assert.True(t, tok.IsActive)
		assert.False(t, tok.CreatedAt.IsZero())

		_, err = store.LookupActiveToken(ctx, "sk_live_revoked")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.LookupActiveToken(ctx, "sk_live_unknown")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("RecordWorkflowRun reuses the workflow per org and name", func(t *testing.T) {
		started := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		ended := started.Add(2500 * time.Millisecond)

		first := &models.WorkflowRun{
			OrgID:      orgA,
			StartedAt:  started,
			EndedAt:    &ended,
			Status:     models.RunStatusSuccess,
			DurationMs: models.RunDuration(started, &ended),
			Payload:    models.Document(`{"k":"v"}`),
		}
		require.NoError(t, store.RecordWorkflowRun(ctx, "Daily Report", first))
		assert.NotZero(t, first.ID)
		assert.NotEmpty(t, first.WorkflowID)

		second := &models.WorkflowRun{
			OrgID:        orgA,
			StartedAt:    started.Add(time.Hour),
			Status:       models.RunStatusFailed,
			ErrorMessage: ptr("boom"),
		}
		require.NoError(t, store.RecordWorkflowRun(ctx, "Daily Report", second))
		assert.Equal(t, first.WorkflowID, second.WorkflowID)
		assert.Greater(t, second.ID, first.ID)

		other := &models.WorkflowRun{OrgID: orgB, StartedAt: started, Status: models.RunStatusRunning}
		require.NoError(t, store.RecordWorkflowRun(ctx, "Daily Report", other))
		assert.NotEqual(t, first.WorkflowID, other.WorkflowID)

		var workflows int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM workflows WHERE org_id = $1 AND name = 'Daily Report'`, orgA).Scan(&workflows))
		assert.Equal(t, 1, workflows)

		var runs int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM workflow_runs WHERE workflow_id = $1`, first.WorkflowID).Scan(&runs))
		assert.Equal(t, 2, runs)

		var duration *int64
		var payload []byte
		var endedAt *time.Time
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT duration_ms, payload, ended_at FROM workflow_runs WHERE id = $1`, first.ID).Scan(&duration, &payload, &endedAt))
		require.NotNil(t, duration)
		assert.Equal(t, int64(2500), *duration)
		assert.JSONEq(t, `{"k":"v"}`, string(payload))
		require.NotNil(t, endedAt)
		assert.True(t, ended.Equal(*endedAt))

		require.NoError(t, pool.QueryRow(ctx,
			`SELECT duration_ms, payload, ended_at FROM workflow_runs WHERE id = $1`, second.ID).Scan(&duration, &payload, &endedAt))
		assert.Nil(t, duration)
		assert.Nil(t, endedAt)
		assert.JSONEq(t, `{}`, string(payload))
	})

	t.Run("RecordWorkflowRun creates one workflow under concurrent first runs", func(t *testing.T) {
		const writers = 8
		started := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		ids := make(chan string, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				run := &models.WorkflowRun{OrgID: orgB, StartedAt: started, Status: models.RunStatusRunning}
				if err := store.RecordWorkflowRun(ctx, "Burst Sync", run); err != nil {
					errs <- err
					return
				}
				ids <- run.WorkflowID
			}()
		}
		wg.Wait()
		close(errs)
		close(ids)

		for err := range errs {
			require.NoError(t, err)
		}
		seen := map[string]bool{}
		for id := range ids {
			seen[id] = true
		}
		assert.Len(t, seen, 1)

		var workflows int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM workflows WHERE org_id = $1 AND name = 'Burst Sync'`, orgB).Scan(&workflows))
		assert.Equal(t, 1, workflows)

		var runs int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM workflow_runs r JOIN workflows w ON w.id = r.workflow_id
			 WHERE w.org_id = $1 AND w.name = 'Burst Sync'`, orgB).Scan(&runs))
		assert.Equal(t, writers, runs)
	})

	t.Run("CreateApproval stores assets in order with one event", func(t *testing.T) {
		approval := &models.Approval{
			ID:                   uuid.NewString(),
			OrgID:                orgA,
			Type:                 models.ApprovalTypeOrder,
			Status:               models.ApprovalStatusPending,
			Title:                "Order #1",
			Preview:              models.Document(`{"total":10}`),
			Data:                 models.Document(`{"id":1}`),
			N8NExecuteWebhookURL: "https://n8n.example/webhook/1",
		}
		roles := []string{"invoice", "photo", "receipt"}
		assets := make([]models.ApprovalAsset, len(roles))
		for i, role := range roles {
			assets[i] = models.ApprovalAsset{
				ID:              uuid.NewString(),
				ApprovalID:      approval.ID,
				Position:        i,
				Role:            role,
				StorageProvider: models.StorageProviderMinio,
				ExternalURL:     "https://files.example/" + role,
			}
		}
		event := &models.ApprovalEvent{
			ID:         uuid.NewString(),
			ApprovalID: approval.ID,
			Event:      models.ApprovalEventCreated,
			Metadata:   models.Document(`{"type":"order","asset_count":3,"token_name":"n8n"}`),
		}

		require.NoError(t, store.CreateApproval(ctx, approval, assets, event))

		rows, err := pool.Query(ctx,
			`SELECT role FROM approval_assets WHERE approval_id = $1 ORDER BY position`, approval.ID)
		require.NoError(t, err)
		var got []string
		for rows.Next() {
			var role string
			require.NoError(t, rows.Scan(&role))
			got = append(got, role)
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, roles, got)

		var status string
		require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM approvals WHERE id = $1`, approval.ID).Scan(&status))
		assert.Equal(t, "pending", status)

		var events int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM approval_events WHERE approval_id = $1 AND event = 'created'`,
			approval.ID).Scan(&events))
		assert.Equal(t, 1, events)

		var metadata []byte
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT metadata FROM approval_events WHERE approval_id = $1`, approval.ID).Scan(&metadata))
		var meta map[string]any
		require.NoError(t, json.Unmarshal(metadata, &meta))
		assert.Equal(t, float64(3), meta["asset_count"])
	})

	t.Run("CreateApproval rolls back on failure", func(t *testing.T) {
		approval := &models.Approval{
			ID:                   uuid.NewString(),
			OrgID:                orgA,
			Type:                 models.ApprovalTypeGmailReply,
			Status:               models.ApprovalStatusPending,
			Title:                "Reply",
			N8NExecuteWebhookURL: "https://n8n.example/webhook/2",
		}
		assets := []models.ApprovalAsset{
			{ID: uuid.NewString(), ApprovalID: approval.ID, Position: 0, Role: "a", StorageProvider: models.StorageProviderS3, ExternalURL: "https://x/a"},
			// rejected by the storage_provider check constraint
			{ID: uuid.NewString(), ApprovalID: approval.ID, Position: 1, Role: "b", StorageProvider: "ftp", ExternalURL: "https://x/b"},
		}
		event := &models.ApprovalEvent{ID: uuid.NewString(), ApprovalID: approval.ID, Event: models.ApprovalEventCreated}

		assert.Error(t, store.CreateApproval(ctx, approval, assets, event))

		var n int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM approvals WHERE id = $1`, approval.ID).Scan(&n))
		assert.Zero(t, n)
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM approval_assets WHERE approval_id = $1`, approval.ID).Scan(&n))
		assert.Zero(t, n)
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM approval_events WHERE approval_id = $1`, approval.ID).Scan(&n))
		assert.Zero(t, n)
	})
}
