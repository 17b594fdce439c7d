package notify

import "time"

// Effect 签发成功后需要执行的副作用，由 Executor 在持久化之后依次执行
type Effect interface {
	Name() string
}

// OwnerMail 向钱包所有者发送签发通知邮件；失败对调用方可见
type OwnerMail struct {
	To       string
	Coin     string
	Pub      string
	Path     uint32
	IssuedAt time.Time
}

func (OwnerMail) Name() string { return "owner_mail" }

// WebhookPayload POST 到 notificationURL 的请求体
type WebhookPayload struct {
	UserEmail string `json:"userEmail"`
	Provider  string `json:"provider"`
	State     string `json:"state"`
	Xpub      string `json:"xpub"`
	HMAC      string `json:"hmac"`
}

// Webhook 回调通知；失败只记录日志
type Webhook struct {
	URL     string
	Payload WebhookPayload
}

func (Webhook) Name() string { return "webhook" }

// MarketingSync 营销列表同步；失败只记录日志
type MarketingSync struct {
	Email      string
	Coin       string
	CustomerID string
}

func (MarketingSync) Name() string { return "marketing_sync" }

// LowSupplyAlert 主密钥池低库存告警
type LowSupplyAlert struct {
	KeyType   string
	Remaining int
	Threshold int
}

func (LowSupplyAlert) Name() string { return "low_supply_alert" }
