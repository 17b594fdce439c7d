package transport

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/pkg/errors"
)

type SMTPMailTransport struct {
	config SMTPMailTransportConfig
	addr   string
	auth   smtp.Auth
}

func NewSMTP(config SMTPMailTransportConfig) *SMTPMailTransport {
	m := &SMTPMailTransport{
		config: config,
		addr:   fmt.Sprintf("%s:%d", config.Host, config.Port),
	}

	switch config.AuthType {
	case SMTPAuthTypePlain:
		m.auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	case SMTPAuthTypeCRAMMD5:
		m.auth = smtp.CRAMMD5Auth(config.Username, config.Password)
	}

	return m
}

func (m *SMTPMailTransport) Send(mail *email.Email) error {
	var err error
	if m.config.UseTLS {
		err = mail.SendWithTLS(m.addr, m.auth, m.config.TLSConfig)
	} else {
		err = mail.Send(m.addr, m.auth)
	}

	return errors.Wrapf(err, "failed to send mail via %s", m.addr)
}
