package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/jordan-wright/email"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/mailer/transport"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/pkg/errors"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	templateWalletKeyIssued = "wallet_key_issued.tmpl"
	templateLowSupplyAlert  = "low_supply_alert.tmpl"
)

var (
	ErrEmailTemplateNotFound = errors.New("email template not found")
)

type Mailer struct {
	Config    config.Mailer
	Transport transport.MailTransporter
	Templates map[string]*template.Template
}

func New(config config.Mailer, transport transport.MailTransporter) *Mailer {
	return &Mailer{
		Config:    config,
		Transport: transport,
		Templates: map[string]*template.Template{},
	}
}

func (m *Mailer) ParseTemplates() error {
	files, err := templateFS.ReadDir("templates")
	if err != nil {
		return errors.Wrap(err, "failed to read email templates")
	}

	for _, file := range files {
		t, err := template.ParseFS(templateFS, "templates/"+file.Name())
		if err != nil {
			return errors.Wrapf(err, "failed to parse email template %s", file.Name())
		}

		m.Templates[file.Name()] = t
	}

	return nil
}

type WalletKeyIssuedData struct {
	UserEmail string
	Coin      string
	Pub       string
	Path      uint32
	IssuedAt  time.Time
}

// SendWalletKeyIssued informs the owner of a freshly issued wallet key.
func (m *Mailer) SendWalletKeyIssued(ctx context.Context, data WalletKeyIssuedData) error {
	return m.sendTemplate(ctx, data.UserEmail, fmt.Sprintf("Your new %s wallet key", data.Coin), templateWalletKeyIssued, data)
}

type LowSupplyAlertData struct {
	KeyType   string
	Remaining int
	Threshold int
}

func (m *Mailer) SendLowSupplyAlert(ctx context.Context, to string, data LowSupplyAlertData) error {
	return m.sendTemplate(ctx, to, fmt.Sprintf("[keypool] %s pool low: %d remaining", data.KeyType, data.Remaining), templateLowSupplyAlert, data)
}

func (m *Mailer) sendTemplate(ctx context.Context, to string, subject string, templateName string, data interface{}) error {
	log := util.LogFromContext(ctx).With().Str("template", templateName).Logger()

	t, ok := m.Templates[templateName]
	if !ok {
		log.Error().Msg("Email template not found")
		return ErrEmailTemplateNotFound
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Failed to execute email template")
		return errors.Wrap(err, "failed to execute email template")
	}

	if !m.Config.Send {
		log.Warn().Str("to", to).Msg("Sending has been disabled in mailer config, skipping email")
		return nil
	}

	e := email.NewEmail()
	e.From = m.Config.DefaultSender
	e.To = []string{to}
	e.Subject = subject
	e.HTML = buf.Bytes()

	// jordan-wright/email has no context support, so the send races the deadline.
	done := make(chan error, 1)
	go func() {
		done <- m.Transport.Send(e)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Str("to", to).Msg("Failed to send email")
			return err
		}
	case <-ctx.Done():
		log.Error().Err(ctx.Err()).Str("to", to).Msg("Timed out sending email")
		return errors.Wrap(ctx.Err(), "failed to send email")
	}

	log.Debug().Str("to", to).Msg("Sent email")

	return nil
}
