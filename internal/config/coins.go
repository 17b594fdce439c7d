package config

import (
	"strings"

	"github.com/pkg/errors"
)

// CoinClass tells how wallet keys of a coin are produced from master keys.
type CoinClass string

const (
	// CoinClassDerivable coins derive many wallet keys from one shared master key.
	CoinClassDerivable CoinClass = "derivable"
	// CoinClassSingleUse coins forbid key reuse: every wallet claims its own master key.
	CoinClassSingleUse CoinClass = "single-use"
)

const (
	CurveSecp256k1 = "secp256k1"
	CurveEd25519   = "ed25519"
)

// Coin is one entry of the supported coin table.
type Coin struct {
	Ticker       string
	KeyType      string
	Class        CoinClass
	Curve        string
	DisableEmail bool
}

func (c Coin) SingleUse() bool {
	return c.Class == CoinClassSingleUse
}

// ParseCoins parses the coin table. Entries are separated by "," and have the form
// ticker:keyType:class[:curve], e.g. "btc:btc:derivable,xlm:xlm:single-use:ed25519".
// Tickers listed in disableEmail get DisableEmail set.
func ParseCoins(table string, disableEmail []string) (map[string]Coin, error) {
	coins := make(map[string]Coin)

	for _, entry := range strings.Split(table, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, errors.Errorf("invalid coin entry %q: want ticker:keyType:class[:curve]", entry)
		}

		coin := Coin{
			Ticker:  strings.ToLower(strings.TrimSpace(parts[0])),
			KeyType: strings.ToLower(strings.TrimSpace(parts[1])),
			Class:   CoinClass(strings.ToLower(strings.TrimSpace(parts[2]))),
			Curve:   CurveSecp256k1,
		}
		if len(parts) == 4 {
			coin.Curve = strings.ToLower(strings.TrimSpace(parts[3]))
		}

		if coin.Ticker == "" || coin.KeyType == "" {
			return nil, errors.Errorf("invalid coin entry %q: empty ticker or key type", entry)
		}

		switch coin.Class {
		case CoinClassDerivable, CoinClassSingleUse:
		default:
			return nil, errors.Errorf("invalid coin entry %q: unknown class %q", entry, coin.Class)
		}

		switch coin.Curve {
		case CurveSecp256k1, CurveEd25519:
		default:
			return nil, errors.Errorf("invalid coin entry %q: unknown curve %q", entry, coin.Curve)
		}

		if _, exists := coins[coin.Ticker]; exists {
			return nil, errors.Errorf("duplicate coin %q", coin.Ticker)
		}

		coins[coin.Ticker] = coin
	}

	for _, ticker := range disableEmail {
		ticker = strings.ToLower(strings.TrimSpace(ticker))
		if c, ok := coins[ticker]; ok {
			c.DisableEmail = true
			coins[ticker] = c
		}
	}

	return coins, nil
}

// ParseCredentials parses "id:secret,id2:secret2" into a map.
func ParseCredentials(table string) (map[string]string, error) {
	creds := make(map[string]string)

	for _, entry := range strings.Split(table, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, secret, ok := strings.Cut(entry, ":")
		if !ok || id == "" || secret == "" {
			return nil, errors.Errorf("invalid credential entry for requester %q", id)
		}

		creds[id] = secret
	}

	return creds, nil
}

type MailerTransporter string

const (
	MailerTransporterMock MailerTransporter = "mock"
	MailerTransporterSMTP MailerTransporter = "smtp"
)

func (m MailerTransporter) String() string {
	return string(m)
}
