package transport

import "github.com/jordan-wright/email"

// MailTransporter delivers a fully assembled mail.
type MailTransporter interface {
	Send(mail *email.Email) error
}
