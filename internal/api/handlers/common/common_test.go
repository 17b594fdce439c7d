package common_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReady(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, http.MethodGet, "/-/ready", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		assert.Equal(t, "Ready.", res.Body.String())
	})
}

func TestGetReadyNotInitialized(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		provision := s.Provision
		s.Provision = nil
		defer func() { s.Provision = provision }()

		res := test.PerformRequest(t, s, http.MethodGet, "/-/ready", nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, res.Result().StatusCode)
	})
}

func TestGetHealthy(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, http.MethodGet, "/-/healthy", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodGet, "/-/healthy?mgmt-secret=wrong", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodGet, "/-/healthy?mgmt-secret="+test.TestManagementSecret, nil, nil)
		assert.Equal(t, http.StatusOK, res.Result().StatusCode)
	})
}

func TestGetMetrics(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		test.FillPool(t, s, "btc", 1)

		res := test.PerformRequest(t, s, http.MethodPost, "/api/v1/wallet-keys", map[string]string{
			"coin":       "btc",
			"customerId": "C1",
			"userEmail":  "owner@example.com",
		}, nil)
		require.Equal(t, http.StatusCreated, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodGet, "/-/metrics", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodGet, "/-/metrics?mgmt-secret="+test.TestManagementSecret, nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `keypool_wallet_keys_issued_total{coin="btc"} 1`)
		assert.Contains(t, string(body), `keypool_pool_low_supply_alerts_total{key_type="btc"} 1`)
	})
}
