package key

import (
	"strings"

	"github.com/kashguard/go-keypool/internal/config"
	"github.com/pkg/errors"
)

// CoinClass 币种派生类别，每个请求入口处解析一次
// Derivable: 从共享主密钥派生子公钥
// SingleUse: 每个钱包独占一个主密钥，主公钥直接作为钱包公钥
type CoinClass interface {
	Coin() config.Coin
	isCoinClass()
}

type Derivable struct {
	Entry config.Coin
}

type SingleUse struct {
	Entry config.Coin
}

func (d Derivable) Coin() config.Coin { return d.Entry }
func (Derivable) isCoinClass()        {}

func (s SingleUse) Coin() config.Coin { return s.Entry }
func (SingleUse) isCoinClass()        {}

// ResolveCoinClass 从币种表解析 ticker 的类别
func ResolveCoinClass(coins map[string]config.Coin, ticker string) (CoinClass, error) {
	coin, ok := coins[strings.ToLower(strings.TrimSpace(ticker))]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedCoin, "coin %q", ticker)
	}

	if coin.SingleUse() {
		return SingleUse{Entry: coin}, nil
	}

	return Derivable{Entry: coin}, nil
}
