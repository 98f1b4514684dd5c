package purchase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/mediaforge-api/internal/domain/credit"
	"github.com/mediaforge/mediaforge-api/internal/domain/pricing"
	"github.com/mediaforge/mediaforge-api/internal/domain/purchase"
	"github.com/mediaforge/mediaforge-api/internal/pkg/database/dbtest"
)

func TestPostgresConcurrentConfirmCreditsOnce(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	_, err := pricing.NewRepository(db).SeedPackages(ctx, pricing.DefaultPackages())
	require.NoError(t, err)

	table := pricing.NewTable(pricing.DefaultFeaturePricing(), pricing.DefaultPackages())
	credits := credit.NewService(credit.NewRepository(db), table)
	repo := purchase.NewRepository(db)
	svc := purchase.NewService(repo, nil, nil, credits, nil, purchase.Config{})

	userID := "user_pur_" + uuid.NewString()[:12]
	sessionID := "cs_test_" + uuid.NewString()
	t.Cleanup(func() {
		db.Exec(`DELETE FROM purchases WHERE user_id = $1`, userID)
		db.Exec(`DELETE FROM credit_ledger_entries WHERE user_id = $1`, userID)
		db.Exec(`DELETE FROM user_credits WHERE user_id = $1`, userID)
	})

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, &purchase.Purchase{
		ID:            uuid.New(),
		UserID:        userID,
		PackageID:     "pro",
		AmountCents:   2999,
		Currency:      "usd",
		Credits:       200,
		Status:        purchase.StatusPending,
		TransactionID: sessionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	const goroutines = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	credited := 0
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ConfirmPayment(ctx, sessionID, "pi_test")
			if err == nil && res.Credited {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, credited)

	bal, err := credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 200, bal.Balance)
	assert.Equal(t, 200, bal.TotalPurchased)

	list, err := svc.ListPurchases(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, purchase.StatusCompleted, list[0].Status)
	require.NotNil(t, list[0].PaymentIntentID)
	assert.Equal(t, "pi_test", *list[0].PaymentIntentID)

	// a completed purchase cannot be failed afterwards
	require.NoError(t, svc.FailPayment(ctx, sessionID))
	list, _ = svc.ListPurchases(ctx, userID)
	assert.Equal(t, purchase.StatusCompleted, list[0].Status)
}
