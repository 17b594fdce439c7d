package mailer_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kashguard/go-keypool/internal/mailer"
	"github.com/kashguard/go-keypool/internal/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendWalletKeyIssued(t *testing.T) {
	m := test.NewTestMailer(t)

	err := m.SendWalletKeyIssued(context.Background(), mailer.WalletKeyIssuedData{
		UserEmail: "owner@example.com",
		Coin:      "btc",
		Pub:       "xpub-child",
		Path:      7,
		IssuedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)

	mail := test.RequireWalletKeyIssuedMail(t, m, "owner@example.com", "btc", "xpub-child")
	assert.Equal(t, mail, test.LastSentMail(t, m))
	assert.True(t, strings.Contains(string(mail.HTML), "2024-01-02 03:04:05 UTC"))
}

func TestSendLowSupplyAlert(t *testing.T) {
	m := test.NewTestMailer(t)

	err := m.SendLowSupplyAlert(context.Background(), "ops@example.com", mailer.LowSupplyAlertData{KeyType: "btc", Remaining: 5, Threshold: 5})
	require.NoError(t, err)

	mail := test.RequireLowSupplyMail(t, m, "ops@example.com", "btc", 5)
	assert.Contains(t, string(mail.HTML), "threshold 5")
}

func TestSendFailure(t *testing.T) {
	m := test.NewTestMailer(t)
	test.MockTransport(t, m).SetSendError(errors.New("smtp down"))

	err := m.SendWalletKeyIssued(context.Background(), mailer.WalletKeyIssuedData{UserEmail: "owner@example.com", Coin: "btc"})
	require.Error(t, err)
	assert.Empty(t, test.SentMails(t, m))
}

func TestSendDisabled(t *testing.T) {
	m := test.NewTestMailer(t)
	m.Config.Send = false

	err := m.SendWalletKeyIssued(context.Background(), mailer.WalletKeyIssuedData{UserEmail: "owner@example.com", Coin: "btc"})
	require.NoError(t, err)
	assert.Nil(t, test.LastSentMail(t, m))
}
