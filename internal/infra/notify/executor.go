package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/mailer"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/pkg/errors"
)

// ErrOwnerNotificationFailed 所有者邮件发送失败，需要对调用方可见
var ErrOwnerNotificationFailed = errors.New("owner notification failed")

// Recorder 记录副作用执行结果 (metrics)
type Recorder interface {
	ObserveNotification(effect string, err error)
	ObserveLowSupplyAlert(keyType string)
}

// ExecutorConfig 副作用执行配置，每类副作用单独限时
type ExecutorConfig struct {
	EmailTimeout     time.Duration
	WebhookTimeout   time.Duration
	MarketingTimeout time.Duration
	MarketingListURL string
	MarketingAPIKey  string
	AlertEmail       string
}

func NewExecutorConfig(cfg config.Server) ExecutorConfig {
	return ExecutorConfig{
		EmailTimeout:     cfg.Notification.EmailTimeout,
		WebhookTimeout:   cfg.Notification.WebhookTimeout,
		MarketingTimeout: cfg.Notification.MarketingTimeout,
		MarketingListURL: cfg.Notification.MarketingListURL,
		MarketingAPIKey:  cfg.Notification.MarketingAPIKey,
		AlertEmail:       cfg.Pool.AlertEmail,
	}
}

// Executor 在钱包公钥持久化之后执行副作用
// 只有所有者邮件失败会返回错误；webhook、营销同步与告警失败只记录日志
type Executor struct {
	config   ExecutorConfig
	mailer   *mailer.Mailer
	client   *http.Client
	recorder Recorder
}

// NewExecutor client 为 nil 时使用默认 http.Client；recorder 可以为 nil
func NewExecutor(cfg ExecutorConfig, m *mailer.Mailer, client *http.Client, recorder Recorder) *Executor {
	if client == nil {
		client = &http.Client{}
	}

	return &Executor{
		config:   cfg,
		mailer:   m,
		client:   client,
		recorder: recorder,
	}
}

// Execute 依次执行所有副作用；某一项失败不会阻止后续项
func (e *Executor) Execute(ctx context.Context, effects []Effect) error {
	var ownerErr error

	for _, effect := range effects {
		log := util.LogFromContext(ctx).With().Str("effect", effect.Name()).Logger()

		var err error
		switch ef := effect.(type) {
		case OwnerMail:
			err = e.sendOwnerMail(ctx, ef)
			if err != nil {
				log.Error().Err(err).Str("to", ef.To).Msg("Failed to send owner notification")
				ownerErr = errors.Wrapf(ErrOwnerNotificationFailed, "%v", err)
			}
		case Webhook:
			err = e.callWebhook(ctx, ef)
			if err != nil {
				log.Warn().Err(err).Str("url", ef.URL).Msg("Webhook delivery failed")
			}
		case MarketingSync:
			err = e.syncMarketing(ctx, ef)
			if err != nil {
				log.Warn().Err(err).Str("email", ef.Email).Msg("Marketing list sync failed")
			}
		case LowSupplyAlert:
			err = e.raiseAlert(ctx, ef)
			if err != nil {
				log.Warn().Err(err).Str("key_type", ef.KeyType).Msg("Failed to send low supply alert")
			}
		default:
			log.Warn().Msgf("Unknown effect type %T, skipping", effect)
			continue
		}

		if e.recorder != nil {
			e.recorder.ObserveNotification(effect.Name(), err)
		}
	}

	return ownerErr
}

func (e *Executor) sendOwnerMail(ctx context.Context, m OwnerMail) error {
	ctx, cancel := withTimeout(ctx, e.config.EmailTimeout)
	defer cancel()

	return e.mailer.SendWalletKeyIssued(ctx, mailer.WalletKeyIssuedData{
		UserEmail: m.To,
		Coin:      m.Coin,
		Pub:       m.Pub,
		Path:      m.Path,
		IssuedAt:  m.IssuedAt,
	})
}

func (e *Executor) callWebhook(ctx context.Context, w Webhook) error {
	ctx, cancel := withTimeout(ctx, e.config.WebhookTimeout)
	defer cancel()

	return e.postJSON(ctx, w.URL, "", w.Payload)
}

type marketingContact struct {
	Email      string `json:"email"`
	Coin       string `json:"coin"`
	CustomerID string `json:"customerId"`
}

func (e *Executor) syncMarketing(ctx context.Context, m MarketingSync) error {
	if e.config.MarketingListURL == "" {
		return nil
	}

	ctx, cancel := withTimeout(ctx, e.config.MarketingTimeout)
	defer cancel()

	return e.postJSON(ctx, e.config.MarketingListURL, e.config.MarketingAPIKey, marketingContact{
		Email:      m.Email,
		Coin:       m.Coin,
		CustomerID: m.CustomerID,
	})
}

func (e *Executor) raiseAlert(ctx context.Context, a LowSupplyAlert) error {
	if e.recorder != nil {
		e.recorder.ObserveLowSupplyAlert(a.KeyType)
	}

	if e.config.AlertEmail == "" {
		return nil
	}

	ctx, cancel := withTimeout(ctx, e.config.EmailTimeout)
	defer cancel()

	return e.mailer.SendLowSupplyAlert(ctx, e.config.AlertEmail, mailer.LowSupplyAlertData{
		KeyType:   a.KeyType,
		Remaining: a.Remaining,
		Threshold: a.Threshold,
	})
}

func (e *Executor) postJSON(ctx context.Context, url string, bearer string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := e.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer res.Body.Close()

	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return errors.Errorf("unexpected status code %d", res.StatusCode)
	}

	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
