package walletkeys_test

import (
	"net/http"
	"testing"

	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/test"
	"github.com/kashguard/go-keypool/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostLookupPub(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		test.FillPool(t, s, "btc", 1)

		res := test.PerformRequest(t, s, http.MethodPost, provisionPath, provisionBody("btc", "C1", "owner@example.com"), nil)
		require.Equal(t, http.StatusCreated, res.Result().StatusCode)

		var issued types.ProvisionWalletKeyResponse
		test.ParseResponseAndValidate(t, res, &issued)

		tests := []struct {
			name string
			pub  string
			want bool
		}{
			{"issued key", *issued.Pub, true},
			{"master key is not a wallet key", *issued.MasterKey, false},
			{"unknown key", "xpub-unknown", false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := test.PerformRequest(t, s, http.MethodPost, "/api/v1/wallet-keys/lookup/pub", map[string]string{"pub": tt.pub}, nil)
				require.Equal(t, http.StatusOK, res.Result().StatusCode)

				var response types.LookupPubResponse
				test.ParseResponseAndValidate(t, res, &response)
				assert.Equal(t, tt.want, *response.IsWalletKey)
				assert.Equal(t, tt.pub, *response.Pub)
			})
		}
	})
}

func TestPostLookupEmail(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		test.FillPool(t, s, "btc", 1)

		res := test.PerformRequest(t, s, http.MethodPost, provisionPath, provisionBody("btc", "C1", "owner@example.com"), nil)
		require.Equal(t, http.StatusCreated, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodPost, "/api/v1/wallet-keys/lookup/email", map[string]string{"email": "owner@example.com"}, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var response types.LookupEmailResponse
		test.ParseResponseAndValidate(t, res, &response)
		assert.True(t, *response.IsUser)
		assert.Equal(t, "owner@example.com", *response.Email)

		res = test.PerformRequest(t, s, http.MethodPost, "/api/v1/wallet-keys/lookup/email", map[string]string{"email": "stranger@example.com"}, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		test.ParseResponseAndValidate(t, res, &response)
		assert.False(t, *response.IsUser)

		res = test.PerformRequest(t, s, http.MethodPost, "/api/v1/wallet-keys/lookup/email", map[string]string{"email": "nope"}, nil)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)
	})
}

func TestPostLookupRequesterRequired(t *testing.T) {
	cfg := test.NewTestServerConfig()
	cfg.RequesterAuth.Required = true

	test.WithTestServerConfigurable(t, cfg, func(s *api.Server) {
		res := test.PerformRequest(t, s, http.MethodPost, "/api/v1/wallet-keys/lookup/pub", map[string]string{"pub": "xpub"}, nil)
		assert.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodPost, "/api/v1/wallet-keys/lookup/email", map[string]string{
			"email":           "owner@example.com",
			"requesterId":     test.TestRequesterID,
			"requesterSecret": test.TestRequesterSecret,
		}, nil)
		assert.Equal(t, http.StatusOK, res.Result().StatusCode)
	})
}
