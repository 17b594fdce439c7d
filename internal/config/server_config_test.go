package config_test

import (
	"encoding/json"
	"testing"

	"github.com/kashguard/go-keypool/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintServiceEnv(t *testing.T) {
	config := config.DefaultServiceConfigFromEnv()
	_, err := json.MarshalIndent(config, "", "  ")

	if err != nil {
		t.Fatal(err)
	}
}

func TestParseCoins(t *testing.T) {
	coins, err := config.ParseCoins("btc:btc:derivable, ETH:eth:derivable,xlm:xlm:single-use:ed25519", []string{"xlm"})
	require.NoError(t, err)
	require.Len(t, coins, 3)

	assert.Equal(t, config.Coin{Ticker: "btc", KeyType: "btc", Class: config.CoinClassDerivable, Curve: config.CurveSecp256k1}, coins["btc"])
	assert.Equal(t, "eth", coins["eth"].Ticker)
	assert.False(t, coins["eth"].SingleUse())
	assert.True(t, coins["xlm"].SingleUse())
	assert.Equal(t, config.CurveEd25519, coins["xlm"].Curve)
	assert.True(t, coins["xlm"].DisableEmail)
	assert.False(t, coins["btc"].DisableEmail)
}

func TestParseCoinsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		table string
	}{
		{"missing class", "btc:btc"},
		{"unknown class", "btc:btc:reusable"},
		{"unknown curve", "btc:btc:derivable:p256"},
		{"duplicate", "btc:btc:derivable,btc:btc2:derivable"},
		{"empty ticker", ":btc:derivable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseCoins(tt.table, nil)
			assert.Error(t, err)
		})
	}
}

func TestParseCredentials(t *testing.T) {
	creds, err := config.ParseCredentials("app1:s3cr3t, app2:other:with:colons")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"app1": "s3cr3t", "app2": "other:with:colons"}, creds)

	_, err = config.ParseCredentials("app1")
	assert.Error(t, err)

	creds, err = config.ParseCredentials("")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestDatabaseConnectionString(t *testing.T) {
	db := config.Database{
		Host:     "localhost",
		Port:     5432,
		Username: "user",
		Password: "pass",
		Database: "keys",
		AdditionalParams: map[string]string{
			"sslmode":         "require",
			"connect_timeout": "5",
		},
	}

	assert.Equal(t, "host=localhost port=5432 user=user password=pass dbname=keys connect_timeout=5 sslmode=require", db.ConnectionString())

	db.AdditionalParams = nil
	assert.Equal(t, "host=localhost port=5432 user=user password=pass dbname=keys sslmode=disable", db.ConnectionString())
}
