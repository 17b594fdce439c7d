package provision_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/kashguard/go-keypool/internal/infra/notify"
	"github.com/kashguard/go-keypool/internal/infra/provision"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/mailer"
	"github.com/kashguard/go-keypool/internal/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	ok, failed int
}

func (r *countingRecorder) ObserveProvision(coin string, err error) {
	if err != nil {
		r.failed++
		return
	}
	r.ok++
}

type fixture struct {
	store    *storage.MemoryStore
	mailer   *mailer.Mailer
	recorder *countingRecorder
	service  *provision.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := time2.NewMockClock(test.FixedNow)
	store := storage.NewMemoryStore(clock)
	deriver := key.NewDerivationService()

	masters, err := deriver.GenerateMasterKeys(key.GenerateOptions{KeyType: "btc", Extended: true, Count: 2})
	require.NoError(t, err)
	_, err = store.InsertMasterKeys(context.Background(), masters)
	require.NoError(t, err)

	coins, err := config.ParseCoins("btc:btc:derivable", nil)
	require.NoError(t, err)

	issuer := key.NewIssuer(key.IssuerConfig{
		Coins:              coins,
		ProviderID:         "keypool",
		ProviderHMACSecret: "provider-secret",
	}, key.NewAllocator(store, nil), store, deriver, clock)

	m := test.NewTestMailer(t)
	executor := notify.NewExecutor(notify.ExecutorConfig{
		EmailTimeout:   time.Second,
		WebhookTimeout: 200 * time.Millisecond,
	}, m, nil, nil)

	rec := &countingRecorder{}

	return &fixture{
		store:    store,
		mailer:   m,
		recorder: rec,
		service:  provision.NewService(issuer, executor, rec),
	}
}

func TestProvisionUnreachableWebhook(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res, err := f.service.Provision(context.Background(), key.ProvisionRequest{
		Coin:            "btc",
		CustomerID:      "C1",
		OwnerEmail:      "owner@example.com",
		NotificationURL: url,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NotEmpty(t, res.WalletKey.PublicKey)
	assert.Equal(t, uint32(0), res.WalletKey.DerivationPath)

	assert.Len(t, test.SentMails(t, f.mailer), 1)
	assert.Equal(t, 1, f.recorder.ok)
}

func TestProvisionOwnerMailFailure(t *testing.T) {
	f := newFixture(t)
	test.MockTransport(t, f.mailer).SetSendError(errors.New("smtp down"))
	ctx := context.Background()

	res, err := f.service.Provision(ctx, key.ProvisionRequest{Coin: "btc", CustomerID: "C1", OwnerEmail: "owner@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, key.ErrNotificationDeliveryFailed)

	// the wallet key stays issued
	require.NotNil(t, res)
	issued, err := f.store.ExistsByPublicKey(ctx, res.WalletKey.PublicKey)
	require.NoError(t, err)
	assert.True(t, issued)
	assert.Equal(t, 1, f.recorder.failed)
}

func TestProvisionEngineErrorSkipsEffects(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.Provision(context.Background(), key.ProvisionRequest{Coin: "doge", CustomerID: "C1", OwnerEmail: "owner@example.com"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, key.ErrUnsupportedCoin)
	assert.Empty(t, test.SentMails(t, f.mailer))
	assert.Equal(t, 1, f.recorder.failed)
}
