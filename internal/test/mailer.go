package test

import (
	"fmt"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/mailer"
	"github.com/kashguard/go-keypool/internal/mailer/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMailerDefaultSender is the From address of every mail sent by NewTestMailer.
const TestMailerDefaultSender = "keypool@example.com"

// NewTestMailer returns a sending mailer with parsed templates backed by an
// in-memory transport.
func NewTestMailer(t *testing.T) *mailer.Mailer {
	t.Helper()

	cfg := config.DefaultServiceConfigFromEnv().Mailer
	cfg.DefaultSender = TestMailerDefaultSender
	cfg.Send = true

	m := mailer.New(cfg, transport.NewMock())
	require.NoError(t, m.ParseTemplates(), "Failed to parse mailer templates")

	return m
}

func MockTransport(t *testing.T, m *mailer.Mailer) *transport.MockMailTransport {
	t.Helper()

	mt, ok := m.Transport.(*transport.MockMailTransport)
	require.Truef(t, ok, "invalid mailer transport type, got %T, want *transport.MockMailTransport", m.Transport)

	return mt
}

func SentMails(t *testing.T, m *mailer.Mailer) []*email.Email {
	t.Helper()
	return MockTransport(t, m).GetSentMails()
}

func LastSentMail(t *testing.T, m *mailer.Mailer) *email.Email {
	t.Helper()
	return MockTransport(t, m).GetLastSentMail()
}

// RequireWalletKeyIssuedMail asserts that the owner got exactly one mail and
// that it announces pub for coin.
func RequireWalletKeyIssuedMail(t *testing.T, m *mailer.Mailer, owner, coin, pub string) *email.Email {
	t.Helper()

	mail := requireSingleMailTo(t, m, owner)
	assert.Equal(t, TestMailerDefaultSender, mail.From)
	assert.Equal(t, fmt.Sprintf("Your new %s wallet key", coin), mail.Subject)
	assert.Contains(t, string(mail.HTML), pub)

	return mail
}

// RequireLowSupplyMail asserts that to got exactly one low supply alert for keyType.
func RequireLowSupplyMail(t *testing.T, m *mailer.Mailer, to, keyType string, remaining int) *email.Email {
	t.Helper()

	mail := requireSingleMailTo(t, m, to)
	assert.Equal(t, fmt.Sprintf("[keypool] %s pool low: %d remaining", keyType, remaining), mail.Subject)
	assert.Contains(t, string(mail.HTML), keyType)

	return mail
}

func requireSingleMailTo(t *testing.T, m *mailer.Mailer, to string) *email.Email {
	t.Helper()

	var matched []*email.Email
	for _, mail := range SentMails(t, m) {
		for _, rcpt := range mail.To {
			if rcpt == to {
				matched = append(matched, mail)
				break
			}
		}
	}
	require.Lenf(t, matched, 1, "expected exactly one mail to %s", to)

	return matched[0]
}
