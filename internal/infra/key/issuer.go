package key

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/notify"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/pkg/errors"
)

const WebhookStateCreated = "created"

// ProvisionRequest 钱包公钥签发请求
type ProvisionRequest struct {
	Coin                     string
	CustomerID               string
	OwnerEmail               string
	NotificationURL          string
	CustomMetadata           map[string]interface{}
	DisableNotificationEmail bool
}

// ProvisionResult 签发结果，Effects 需要由调用方在返回后执行
type ProvisionResult struct {
	Class     CoinClass
	MasterKey *storage.MasterKey
	WalletKey *storage.WalletKey
	Effects   []notify.Effect
}

// IssuerConfig 签发器配置
type IssuerConfig struct {
	Coins               map[string]config.Coin
	NeverReuseMasterKey bool
	ProviderID          string
	ProviderHMACSecret  string
	DisableEmail        bool
	MarketingEnabled    bool
}

// NewIssuerConfig 从服务配置构造签发器配置
func NewIssuerConfig(cfg config.Server) IssuerConfig {
	return IssuerConfig{
		Coins:               cfg.Coins,
		NeverReuseMasterKey: cfg.Pool.NeverReuseMasterKey,
		ProviderID:          cfg.Provider.ID,
		ProviderHMACSecret:  cfg.Provider.HMACSecret,
		DisableEmail:        cfg.Notification.DisableEmail,
		MarketingEnabled:    cfg.Notification.MarketingListURL != "",
	}
}

// Issuer 钱包公钥签发器
// 顺序：选择主密钥 → 原子预留派生索引 → 派生 → 持久化 → 返回副作用列表
type Issuer struct {
	config    IssuerConfig
	allocator *Allocator
	store     storage.Store
	deriver   Deriver
	clock     time2.Clock
}

// NewIssuer 创建签发器
func NewIssuer(cfg IssuerConfig, allocator *Allocator, store storage.Store, deriver Deriver, clock time2.Clock) *Issuer {
	return &Issuer{
		config:    cfg,
		allocator: allocator,
		store:     store,
		deriver:   deriver,
		clock:     clock,
	}
}

// Provision 签发一个钱包公钥
func (i *Issuer) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, errors.Wrap(ErrValidation, "customer id is required")
	}
	if strings.TrimSpace(req.OwnerEmail) == "" {
		return nil, errors.Wrap(ErrValidation, "user email is required")
	}

	class, err := ResolveCoinClass(i.config.Coins, req.Coin)
	if err != nil {
		return nil, err
	}
	coin := class.Coin()

	log := util.LogFromContext(ctx).With().
		Str("coin", coin.Ticker).
		Str("customer_id", req.CustomerID).
		Logger()

	_, singleUse := class.(SingleUse)
	alwaysFresh := i.config.NeverReuseMasterKey || singleUse

	allocation, err := i.allocator.SelectMasterKey(ctx, class, req.CustomerID, alwaysFresh)
	if err != nil {
		return nil, err
	}
	mk := allocation.MasterKey

	var (
		pub  string
		path uint32
	)

	switch class.(type) {
	case SingleUse:
		// 主密钥一次性使用，不消耗派生索引
		pub = mk.PublicKey
		path = 0
	case Derivable:
		path, err = i.store.ReserveDerivationIndex(ctx, mk.ID)
		if err != nil {
			if errors.Is(err, storage.ErrIndexExhausted) {
				log.Error().Str("master_key_id", mk.ID).Msg("Master key has no derivation indices left")
				return nil, errors.Wrapf(ErrDerivationIndexExhausted, "master key %s", mk.ID)
			}
			return nil, errors.Wrap(err, "failed to reserve derivation index")
		}

		pub, err = i.deriver.Derive(mk, path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive wallet key at index %d", path)
		}
	default:
		return nil, errors.Errorf("unknown coin class %T", class)
	}

	wk := &storage.WalletKey{
		PublicKey:       pub,
		MasterKeyID:     mk.ID,
		DerivationPath:  path,
		CoinType:        coin.Ticker,
		CustomerID:      req.CustomerID,
		OwnerEmail:      req.OwnerEmail,
		NotificationURL: req.NotificationURL,
		CustomMetadata:  req.CustomMetadata,
		IssuedAt:        i.clock.Now(),
	}

	if err := i.store.SaveWalletKey(ctx, wk); err != nil {
		if errors.Is(err, storage.ErrDuplicateDerivation) {
			log.Error().
				Str("master_key_id", mk.ID).
				Uint32("derivation_path", path).
				Msg("Derivation collision detected, refusing to issue wallet key")
			return nil, errors.Wrapf(ErrDerivationCollision, "master key %s path %d", mk.ID, path)
		}
		return nil, errors.Wrap(err, "failed to save wallet key")
	}

	log.Info().
		Str("master_key_id", mk.ID).
		Uint32("derivation_path", path).
		Bool("fresh_master_key", allocation.Fresh).
		Msg("Issued wallet key")

	return &ProvisionResult{
		Class:     class,
		MasterKey: mk,
		WalletKey: wk,
		Effects:   i.effects(req, coin, wk, allocation.Alert),
	}, nil
}

func (i *Issuer) effects(req ProvisionRequest, coin config.Coin, wk *storage.WalletKey, alert *notify.LowSupplyAlert) []notify.Effect {
	effects := make([]notify.Effect, 0, 4)

	if !req.DisableNotificationEmail && !i.config.DisableEmail && !coin.DisableEmail {
		effects = append(effects, notify.OwnerMail{
			To:       wk.OwnerEmail,
			Coin:     coin.Ticker,
			Pub:      wk.PublicKey,
			Path:     wk.DerivationPath,
			IssuedAt: wk.IssuedAt,
		})
	}

	if wk.NotificationURL != "" {
		effects = append(effects, notify.Webhook{
			URL:     wk.NotificationURL,
			Payload: NewWebhookPayload(i.config.ProviderID, i.config.ProviderHMACSecret, wk.OwnerEmail, wk.PublicKey),
		})
	}

	if i.config.MarketingEnabled {
		effects = append(effects, notify.MarketingSync{
			Email:      wk.OwnerEmail,
			Coin:       coin.Ticker,
			CustomerID: wk.CustomerID,
		})
	}

	if alert != nil {
		effects = append(effects, *alert)
	}

	return effects
}

// NewWebhookPayload 构造回调请求体，hmac 为 xpub 在 provider 密钥下的 HMAC-SHA256 (hex)
func NewWebhookPayload(providerID, secret, userEmail, pub string) notify.WebhookPayload {
	return notify.WebhookPayload{
		UserEmail: userEmail,
		Provider:  providerID,
		State:     WebhookStateCreated,
		Xpub:      pub,
		HMAC:      SignPublicKey(secret, pub),
	}
}

// SignPublicKey hex(HMAC-SHA256(secret, pub))
func SignPublicKey(secret, pub string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(pub))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPublicKeySignature 常量时间比较回调中的 hmac
func VerifyPublicKeySignature(secret, pub, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(pub))
	return hmac.Equal(mac.Sum(nil), expected)
}
