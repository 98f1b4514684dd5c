package generation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/mediaforge-api/internal/domain/credit"
	"github.com/mediaforge/mediaforge-api/internal/domain/generation"
	"github.com/mediaforge/mediaforge-api/internal/domain/pricing"
	"github.com/mediaforge/mediaforge-api/internal/pkg/database/dbtest"
	"github.com/mediaforge/mediaforge-api/internal/pkg/render"
	"github.com/mediaforge/mediaforge-api/internal/pkg/storage"
)

type failingRenderer struct{}

func (failingRenderer) Submit(_ context.Context, req render.SubmitRequest) (*render.Job, error) {
	return &render.Job{ID: "r_" + req.JobID, State: render.StateQueued}, nil
}

func (failingRenderer) Status(_ context.Context, jobID string) (*render.Job, error) {
	return &render.Job{ID: jobID, State: render.StateFailed, Error: "gpu lost"}, nil
}

func (failingRenderer) Download(context.Context, string) (*render.Asset, error) {
	return nil, errors.New("no output")
}

func TestPostgresFailedRenderRefundsOnce(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	table := pricing.NewTable(pricing.DefaultFeaturePricing(), pricing.DefaultPackages())
	credits := credit.NewService(credit.NewRepository(db), table)
	store, err := storage.NewLocalStorage(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)
	repo := generation.NewRepository(db)
	svc := generation.NewService(repo, credits, failingRenderer{}, store, nil, nil)

	userID := "user_gen_" + uuid.NewString()[:12]
	t.Cleanup(func() {
		db.Exec(`DELETE FROM generations WHERE user_id = $1`, userID)
		db.Exec(`DELETE FROM credit_ledger_entries WHERE user_id = $1`, userID)
		db.Exec(`DELETE FROM user_credits WHERE user_id = $1`, userID)
	})

	_, err = credits.AddCredits(ctx, userID, 20, credit.ReasonBonus, "test grant", credit.Metadata{})
	require.NoError(t, err)

	g, err := svc.Create(ctx, userID, generation.CreateInput{
		Feature:  "video-generation",
		Provider: "veo2",
		Prompt:   "ocean at dusk",
		Params:   map[string]any{"duration": 8},
	})
	require.NoError(t, err)
	assert.Equal(t, 15, g.CreditsCharged)

	bal, err := credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, bal.Balance)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Get(ctx, userID, g.ID)
		}()
	}
	wg.Wait()

	got, err := repo.GetByIDForUser(ctx, userID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusFailed, got.Status)
	assert.True(t, got.Refunded)
	require.NotNil(t, got.Error)
	assert.Equal(t, "gpu lost", *got.Error)
	assert.EqualValues(t, 8, got.Params["duration"])

	bal, err = credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 20, bal.Balance)

	var refunds int
	require.NoError(t, db.Get(&refunds, `SELECT COUNT(*) FROM credit_ledger_entries WHERE user_id = $1 AND reason = 'refund'`, userID))
	assert.Equal(t, 1, refunds)

	_, err = repo.GetByIDForUser(ctx, "someone_else", g.ID)
	assert.ErrorIs(t, err, generation.ErrNotFound)
}
