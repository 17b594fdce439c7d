package test

import (
	"context"
	"testing"
	"time"

	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/api/router"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/key"
)

const (
	TestManagementSecret = "mgmt-test-secret"
	TestRequesterID      = "exchange"
	TestRequesterSecret  = "exchange-secret"
	TestCoins            = "btc:btc:derivable,eth:eth:derivable,xlm:xlm:single-use:ed25519"
)

// NewTestServerConfig returns a config running against the in-memory pool with the mock mailer.
func NewTestServerConfig() config.Server {
	cfg := config.DefaultServiceConfigFromEnv()

	coins, err := config.ParseCoins(TestCoins, nil)
	if err != nil {
		panic(err)
	}
	cfg.Coins = coins

	cfg.Pool.Backend = config.PoolBackendMemory
	cfg.Pool.AlertLatch = config.PoolBackendMemory
	cfg.Pool.LowSupplyThresholds = []int{1}
	cfg.Mailer.Transporter = config.MailerTransporterMock.String()
	cfg.Mailer.DefaultSender = TestMailerDefaultSender
	cfg.Mailer.Send = true
	cfg.Management.Secret = TestManagementSecret
	cfg.Provider.HMACSecret = "provider-test-secret"
	cfg.Notification.EmailTimeout = time.Second
	cfg.Notification.WebhookTimeout = 200 * time.Millisecond
	cfg.Notification.DisableEmail = false
	cfg.Notification.MarketingListURL = ""
	cfg.RequesterAuth = config.RequesterAuth{
		Required:    false,
		Credentials: map[string]string{TestRequesterID: TestRequesterSecret},
		TokenSecret: "token-test-secret",
		TokenIssuer: "go-keypool",
		TokenTTL:    15 * time.Minute,
	}

	return cfg
}

// WithTestServer executes closure with a fully wired server using NewTestServerConfig.
func WithTestServer(t *testing.T, closure func(s *api.Server)) {
	t.Helper()

	WithTestServerConfigurable(t, NewTestServerConfig(), closure)
}

func WithTestServerConfigurable(t *testing.T, cfg config.Server, closure func(s *api.Server)) {
	t.Helper()

	s, err := api.InitNewServerWithDB(cfg, nil, t)
	if err != nil {
		t.Fatalf("Failed to init server: %v", err)
	}

	router.Init(s)

	closure(s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if errs := s.Shutdown(ctx); len(errs) > 0 {
		t.Fatalf("Failed to shutdown server: %v", errs)
	}
}

// FillPool generates count master keys for the coin's key type and adds them to the server's pool.
func FillPool(t *testing.T, s *api.Server, ticker string, count int) {
	t.Helper()

	coin, ok := s.Config.Coins[ticker]
	if !ok {
		t.Fatalf("Coin %q is not configured", ticker)
	}

	masters, err := key.NewDerivationService().GenerateMasterKeys(key.GenerateOptions{
		KeyType:  coin.KeyType,
		Curve:    coin.Curve,
		Extended: coin.Curve == config.CurveSecp256k1,
		Count:    count,
	})
	if err != nil {
		t.Fatalf("Failed to generate master keys: %v", err)
	}

	if _, err := s.Store.InsertMasterKeys(context.Background(), masters); err != nil {
		t.Fatalf("Failed to insert master keys: %v", err)
	}
}
