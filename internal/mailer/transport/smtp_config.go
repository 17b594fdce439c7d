package transport

import (
	"crypto/tls"
	"strings"
)

type SMTPAuthType int

const (
	SMTPAuthTypeNone SMTPAuthType = iota
	SMTPAuthTypePlain
	SMTPAuthTypeCRAMMD5
)

func (t SMTPAuthType) String() string {
	switch t {
	case SMTPAuthTypePlain:
		return "plain"
	case SMTPAuthTypeCRAMMD5:
		return "crammd5"
	default:
		return "none"
	}
}

// SMTPAuthTypeFromString maps a config value to its auth type, unknown values disable auth.
func SMTPAuthTypeFromString(s string) SMTPAuthType {
	switch strings.ToLower(s) {
	case "plain":
		return SMTPAuthTypePlain
	case "crammd5", "cram-md5":
		return SMTPAuthTypeCRAMMD5
	default:
		return SMTPAuthTypeNone
	}
}

type SMTPMailTransportConfig struct {
	Host      string
	Port      int
	AuthType  SMTPAuthType `json:",omitempty"`
	Username  string       `json:",omitempty"`
	Password  string       `json:"-"` // sensitive
	UseTLS    bool         `json:",omitempty"`
	TLSConfig *tls.Config  `json:"-"`
}
