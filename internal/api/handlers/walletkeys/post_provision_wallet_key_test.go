package walletkeys_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/test"
	"github.com/kashguard/go-keypool/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const provisionPath = "/api/v1/wallet-keys"

func provisionBody(coin, customerID, email string) map[string]interface{} {
	return map[string]interface{}{
		"coin":       coin,
		"customerId": customerID,
		"userEmail":  email,
	}
}

func TestPostProvisionWalletKeySuccess(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		test.FillPool(t, s, "btc", 2)

		body := provisionBody("btc", "C1", "owner@example.com")
		body["custom"] = map[string]interface{}{"label": "savings"}

		res := test.PerformRequest(t, s, http.MethodPost, provisionPath, body, nil)
		require.Equal(t, http.StatusCreated, res.Result().StatusCode)

		var first types.ProvisionWalletKeyResponse
		test.ParseResponseAndValidate(t, res, &first)
		assert.Equal(t, int64(0), *first.Path)
		assert.NotEmpty(t, *first.Pub)
		assert.NotEmpty(t, *first.MasterKey)
		assert.Equal(t, "owner@example.com", *first.UserEmail)
		assert.Equal(t, "savings", first.Custom["label"])

		test.RequireWalletKeyIssuedMail(t, s.Mailer, "owner@example.com", "btc", *first.Pub)

		// same customer reuses the master key at the next index
		res = test.PerformRequest(t, s, http.MethodPost, provisionPath, provisionBody("btc", "C1", "owner@example.com"), nil)
		require.Equal(t, http.StatusCreated, res.Result().StatusCode)

		var second types.ProvisionWalletKeyResponse
		test.ParseResponseAndValidate(t, res, &second)
		assert.Equal(t, *first.MasterKey, *second.MasterKey)
		assert.Equal(t, int64(1), *second.Path)
		assert.NotEqual(t, *first.Pub, *second.Pub)

		remaining, err := s.Store.CountUnassigned(context.Background(), "btc")
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)
	})
}

func TestPostProvisionWalletKeySingleUse(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		test.FillPool(t, s, "xlm", 2)

		var pubs []string
		for i := 0; i < 2; i++ {
			res := test.PerformRequest(t, s, http.MethodPost, provisionPath, provisionBody("xlm", "C1", "owner@example.com"), nil)
			require.Equal(t, http.StatusCreated, res.Result().StatusCode)

			var response types.ProvisionWalletKeyResponse
			test.ParseResponseAndValidate(t, res, &response)
			assert.Equal(t, int64(0), *response.Path)
			assert.Equal(t, *response.MasterKey, *response.Pub)
			pubs = append(pubs, *response.Pub)
		}

		assert.NotEqual(t, pubs[0], pubs[1])

		res := test.PerformRequest(t, s, http.MethodPost, provisionPath, provisionBody("xlm", "C1", "owner@example.com"), nil)
		require.Equal(t, http.StatusServiceUnavailable, res.Result().StatusCode)
	})
}

func TestPostProvisionWalletKeyErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantType types.PublicHTTPErrorType
	}{
		{
			name:     "unsupported coin",
			body:     provisionBody("doge", "C1", "owner@example.com"),
			wantCode: http.StatusBadRequest,
			wantType: types.PublicHTTPErrorTypeUnsupportedCoin,
		},
		{
			name:     "empty pool",
			body:     provisionBody("eth", "C1", "owner@example.com"),
			wantCode: http.StatusServiceUnavailable,
			wantType: types.PublicHTTPErrorTypePoolExhausted,
		},
		{
			name:     "invalid email",
			body:     provisionBody("btc", "C1", "not-an-email"),
			wantCode: http.StatusBadRequest,
			wantType: types.PublicHTTPErrorTypeGeneric,
		},
		{
			name:     "missing customer",
			body:     map[string]interface{}{"coin": "btc", "userEmail": "owner@example.com"},
			wantCode: http.StatusBadRequest,
			wantType: types.PublicHTTPErrorTypeGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.WithTestServer(t, func(s *api.Server) {
				test.FillPool(t, s, "btc", 1)

				res := test.PerformRequest(t, s, http.MethodPost, provisionPath, tt.body, nil)
				require.Equal(t, tt.wantCode, res.Result().StatusCode)

				var response types.PublicHTTPError
				test.ParseResponseAndValidate(t, res, &response)
				assert.Equal(t, tt.wantType, *response.Type)
				assert.Empty(t, test.SentMails(t, s.Mailer))
			})
		})
	}
}

func TestPostProvisionWalletKeyRequesterRequired(t *testing.T) {
	cfg := test.NewTestServerConfig()
	cfg.RequesterAuth.Required = true

	test.WithTestServerConfigurable(t, cfg, func(s *api.Server) {
		test.FillPool(t, s, "btc", 1)
		ctx := context.Background()

		body := provisionBody("btc", "C1", "owner@example.com")
		body["requesterId"] = test.TestRequesterID

		res := test.PerformRequest(t, s, http.MethodPost, provisionPath, body, nil)
		require.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)

		var response types.PublicHTTPError
		test.ParseResponseAndValidate(t, res, &response)
		assert.Equal(t, types.PublicHTTPErrorTypeUnauthorizedRequester, *response.Type)

		remaining, err := s.Store.CountUnassigned(ctx, "btc")
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)
		assert.Empty(t, test.SentMails(t, s.Mailer))

		body["requesterSecret"] = test.TestRequesterSecret
		res = test.PerformRequest(t, s, http.MethodPost, provisionPath, body, nil)
		require.Equal(t, http.StatusCreated, res.Result().StatusCode)
	})
}

func TestPostProvisionWalletKeyBearerToken(t *testing.T) {
	cfg := test.NewTestServerConfig()
	cfg.RequesterAuth.Required = true

	test.WithTestServerConfigurable(t, cfg, func(s *api.Server) {
		test.FillPool(t, s, "btc", 1)

		res := test.PerformRequest(t, s, http.MethodPost, "/api/v1/auth/token", map[string]string{
			"requesterId":     test.TestRequesterID,
			"requesterSecret": test.TestRequesterSecret,
		}, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var token types.RequesterTokenResponse
		test.ParseResponseAndValidate(t, res, &token)

		headers := http.Header{}
		headers.Set("Authorization", "Bearer "+*token.AccessToken)

		res = test.PerformRequest(t, s, http.MethodPost, provisionPath, provisionBody("btc", "C1", "owner@example.com"), headers)
		require.Equal(t, http.StatusCreated, res.Result().StatusCode)

		headers.Set("Authorization", "Bearer forged")
		res = test.PerformRequest(t, s, http.MethodPost, provisionPath, provisionBody("btc", "C2", "other@example.com"), headers)
		assert.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)
	})
}

func TestPostProvisionWalletKeyOwnerMailFailure(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		test.FillPool(t, s, "btc", 1)
		test.MockTransport(t, s.Mailer).SetSendError(assert.AnError)

		res := test.PerformRequest(t, s, http.MethodPost, provisionPath, provisionBody("btc", "C1", "owner@example.com"), nil)
		require.Equal(t, http.StatusInternalServerError, res.Result().StatusCode)

		var response types.PublicHTTPError
		test.ParseResponseAndValidate(t, res, &response)
		assert.Equal(t, types.PublicHTTPErrorTypeNotificationFailed, *response.Type)

		known, err := s.Lookup.IsKnownOwner(context.Background(), "owner@example.com")
		require.NoError(t, err)
		assert.True(t, known)
	})
}
