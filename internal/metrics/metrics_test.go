package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/kashguard/go-keypool/internal/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureReason(t *testing.T) {
	assert.Equal(t, metrics.ReasonPoolExhausted, metrics.FailureReason(errors.Wrap(key.ErrPoolExhausted, "key type btc")))
	assert.Equal(t, metrics.ReasonNotification, metrics.FailureReason(errors.Wrapf(key.ErrNotificationDeliveryFailed, "smtp down")))
	assert.Equal(t, metrics.ReasonInternal, metrics.FailureReason(errors.New("boom")))
}

func TestServiceCollectors(t *testing.T) {
	cfg := config.DefaultServiceConfigFromEnv()
	s := metrics.New(cfg)

	s.ObserveProvision("btc", nil)
	s.ObserveProvision("btc", errors.Wrap(key.ErrNotificationDeliveryFailed, "smtp down"))
	s.ObserveProvision("btc", key.ErrPoolExhausted)
	s.ObservePoolSupply("btc", 42)
	s.ObserveLowSupplyAlert("btc")
	s.ObserveNotification("webhook", errors.New("unreachable"))

	count, err := testutil.GatherAndCount(s.Registry(), "keypool_wallet_keys_issued_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, `keypool_wallet_keys_issued_total{coin="btc"} 2`)
	assert.Contains(t, out, `keypool_wallet_keys_failures_total{coin="btc",reason="notification"} 1`)
	assert.Contains(t, out, `keypool_wallet_keys_failures_total{coin="btc",reason="pool_exhausted"} 1`)
	assert.Contains(t, out, `keypool_pool_unassigned_master_keys{key_type="btc"} 42`)
	assert.Contains(t, out, `keypool_pool_low_supply_alerts_total{key_type="btc"} 1`)
	assert.Contains(t, out, `keypool_notifications_delivered_total{effect="webhook",result="failed"} 1`)
}
