package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kashguard/go-keypool/internal/mailer/transport"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/rs/zerolog"
)

type Database struct {
	Host             string
	Port             int
	Username         string
	Password         string `json:"-"` // sensitive
	Database         string
	AdditionalParams map[string]string `json:",omitempty"` // Optional additional connection parameters mapped into the connection string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ConnectionString generates a connection string to be passed to sql.Open or equivalents, assuming Postgres syntax
func (c Database) ConnectionString() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s", c.Host, c.Port, c.Username, c.Password, c.Database))

	if _, ok := c.AdditionalParams["sslmode"]; !ok {
		b.WriteString(" sslmode=disable")
	}

	if len(c.AdditionalParams) > 0 {
		params := make([]string, 0, len(c.AdditionalParams))
		for param := range c.AdditionalParams {
			params = append(params, param)
		}

		sort.Strings(params)

		for _, param := range params {
			fmt.Fprintf(&b, " %s=%s", param, c.AdditionalParams[param])
		}
	}

	return b.String()
}

type EchoServer struct {
	Debug         bool
	ListenAddress string
	EnableTLS     bool
	TLSCertFile   string
	TLSKeyFile    string
	TLSCACertFile string
}

type Redis struct {
	Address  string
	Password string `json:"-"` // sensitive
	DB       int
}

const (
	PoolBackendPostgres = "postgres"
	PoolBackendRedis    = "redis"
	PoolBackendMemory   = "memory"
)

type Pool struct {
	// Backend selects the master key pool store: postgres, redis or memory.
	Backend string
	// NeverReuseMasterKey disables master key reuse for every coin.
	NeverReuseMasterKey bool
	// LowSupplyThresholds remaining-key counts at which an alert is raised.
	LowSupplyThresholds []int
	// AlertLatch selects where raised alerts are remembered: memory or redis.
	AlertLatch string
	// AlertEmail receives low-supply alerts; empty disables the alert mail.
	AlertEmail string
}

// RequesterAuth configures the capability check in front of every wallet key operation.
type RequesterAuth struct {
	Required    bool
	Credentials map[string]string `json:"-"` // sensitive, requesterID -> secret
	TokenSecret string            `json:"-"` // sensitive
	TokenIssuer string
	TokenTTL    time.Duration
}

type Provider struct {
	ID         string
	HMACSecret string `json:"-"` // sensitive
}

type Notification struct {
	DisableEmail      bool
	DisableEmailCoins []string
	EmailTimeout      time.Duration
	WebhookTimeout    time.Duration
	MarketingListURL  string
	MarketingAPIKey   string `json:"-"` // sensitive
	MarketingTimeout  time.Duration
}

type Mailer struct {
	DefaultSender string
	Send          bool
	// Transporter is either "smtp" or "mock".
	Transporter string
}

type LoggerServer struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	LogRequestBody     bool
	LogResponseBody    bool
	PrettyPrintConsole bool
}

type ManagementServer struct {
	Secret string `json:"-"` // sensitive
}

type Server struct {
	Database      Database
	Echo          EchoServer
	Redis         Redis
	Pool          Pool
	Coins         map[string]Coin
	RequesterAuth RequesterAuth
	Provider      Provider
	Notification  Notification
	Mailer        Mailer
	SMTP          transport.SMTPMailTransportConfig
	Logger        LoggerServer
	Management    ManagementServer
}

// DefaultServiceConfigFromEnv returns the server config as parsed from environment variables
// and their respective defaults defined below.
// We don't expect that ENV_VARs change while we are running our application or our tests
// (and it would be a bad thing to do anyways with parallel testing).
// Do NOT use os.Setenv / os.Unsetenv in tests utilizing DefaultServiceConfigFromEnv()!
func DefaultServiceConfigFromEnv() Server {
	coins, err := ParseCoins(
		util.GetEnv("SERVER_POOL_COINS", "btc:btc:derivable,tbtc:tbtc:derivable,eth:eth:derivable,xlm:xlm:single-use:ed25519"),
		util.GetEnvAsStringArr("SERVER_NOTIFICATION_DISABLE_EMAIL_COINS", []string{}),
	)
	if err != nil {
		panic(fmt.Sprintf("invalid SERVER_POOL_COINS: %v", err))
	}

	credentials, err := ParseCredentials(util.GetEnv("SERVER_REQUESTER_AUTH_CREDENTIALS", ""))
	if err != nil {
		panic(fmt.Sprintf("invalid SERVER_REQUESTER_AUTH_CREDENTIALS: %v", err))
	}

	return Server{
		Database: Database{
			Host:     util.GetEnv("PGHOST", "postgres"),
			Port:     util.GetEnvAsInt("PGPORT", 5432),
			Database: util.GetEnv("PGDATABASE", "development"),
			Username: util.GetEnv("PGUSER", "dbuser"),
			Password: util.GetEnv("PGPASSWORD", ""),
			AdditionalParams: map[string]string{
				"sslmode": util.GetEnv("PGSSLMODE", "disable"),
			},
			MaxOpenConns:    util.GetEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    util.GetEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: time.Second * time.Duration(util.GetEnvAsInt("DB_CONN_MAX_LIFETIME_SEC", 60)),
		},
		Echo: EchoServer{
			Debug:         util.GetEnvAsBool("SERVER_ECHO_DEBUG", false),
			ListenAddress: util.GetEnv("SERVER_ECHO_LISTEN_ADDRESS", ":8080"),
			EnableTLS:     util.GetEnvAsBool("SERVER_ECHO_ENABLE_TLS", false),
			TLSCertFile:   util.GetEnv("SERVER_ECHO_TLS_CERT_FILE", "certs/server.crt"),
			TLSKeyFile:    util.GetEnv("SERVER_ECHO_TLS_KEY_FILE", "certs/server.key"),
			TLSCACertFile: util.GetEnv("SERVER_ECHO_TLS_CA_CERT_FILE", "certs/ca.crt"),
		},
		Redis: Redis{
			Address:  util.GetEnv("SERVER_REDIS_ADDRESS", ""),
			Password: util.GetEnv("SERVER_REDIS_PASSWORD", ""),
			DB:       util.GetEnvAsInt("SERVER_REDIS_DB", 0),
		},
		Pool: Pool{
			Backend:             util.GetEnvEnum("SERVER_POOL_BACKEND", PoolBackendPostgres, []string{PoolBackendPostgres, PoolBackendRedis, PoolBackendMemory}),
			NeverReuseMasterKey: util.GetEnvAsBool("SERVER_POOL_NEVER_REUSE_MASTER_KEY", false),
			LowSupplyThresholds: util.GetEnvAsIntArr("SERVER_POOL_LOW_SUPPLY_THRESHOLDS", []int{100, 50, 10, 5, 1}),
			AlertLatch:          util.GetEnvEnum("SERVER_POOL_ALERT_LATCH", PoolBackendMemory, []string{PoolBackendMemory, PoolBackendRedis}),
			AlertEmail:          util.GetEnv("SERVER_POOL_ALERT_EMAIL", ""),
		},
		Coins: coins,
		RequesterAuth: RequesterAuth{
			Required:    util.GetEnvAsBool("SERVER_REQUESTER_AUTH_REQUIRED", false),
			Credentials: credentials,
			TokenSecret: util.GetEnv("SERVER_REQUESTER_AUTH_TOKEN_SECRET", ""),
			TokenIssuer: util.GetEnv("SERVER_REQUESTER_AUTH_TOKEN_ISSUER", "go-keypool"),
			TokenTTL:    time.Second * time.Duration(util.GetEnvAsInt("SERVER_REQUESTER_AUTH_TOKEN_TTL_SEC", 900)),
		},
		Provider: Provider{
			ID:         util.GetEnv("SERVER_PROVIDER_ID", "keypool"),
			HMACSecret: util.GetEnv("SERVER_PROVIDER_HMAC_SECRET", ""),
		},
		Notification: Notification{
			DisableEmail:      util.GetEnvAsBool("SERVER_NOTIFICATION_DISABLE_EMAIL", false),
			DisableEmailCoins: util.GetEnvAsStringArr("SERVER_NOTIFICATION_DISABLE_EMAIL_COINS", []string{}),
			EmailTimeout:      time.Second * time.Duration(util.GetEnvAsInt("SERVER_NOTIFICATION_EMAIL_TIMEOUT_SEC", 10)),
			WebhookTimeout:    time.Second * time.Duration(util.GetEnvAsInt("SERVER_NOTIFICATION_WEBHOOK_TIMEOUT_SEC", 5)),
			MarketingListURL:  util.GetEnv("SERVER_NOTIFICATION_MARKETING_LIST_URL", ""),
			MarketingAPIKey:   util.GetEnv("SERVER_NOTIFICATION_MARKETING_API_KEY", ""),
			MarketingTimeout:  time.Second * time.Duration(util.GetEnvAsInt("SERVER_NOTIFICATION_MARKETING_TIMEOUT_SEC", 5)),
		},
		Mailer: Mailer{
			DefaultSender: util.GetEnv("SERVER_MAILER_DEFAULT_SENDER", "keypool@example.com"),
			Send:          util.GetEnvAsBool("SERVER_MAILER_SEND", true),
			Transporter:   util.GetEnvEnum("SERVER_MAILER_TRANSPORTER", MailerTransporterMock.String(), []string{MailerTransporterSMTP.String(), MailerTransporterMock.String()}),
		},
		SMTP: transport.SMTPMailTransportConfig{
			Host:      util.GetEnv("SERVER_SMTP_HOST", "mailhog"),
			Port:      util.GetEnvAsInt("SERVER_SMTP_PORT", 1025),
			Username:  util.GetEnv("SERVER_SMTP_USERNAME", ""),
			Password:  util.GetEnv("SERVER_SMTP_PASSWORD", ""),
			AuthType:  transport.SMTPAuthTypeFromString(util.GetEnv("SERVER_SMTP_AUTH_TYPE", transport.SMTPAuthTypeNone.String())),
			UseTLS:    util.GetEnvAsBool("SERVER_SMTP_USE_TLS", false),
			TLSConfig: nil,
		},
		Logger: LoggerServer{
			Level:              util.LogLevelFromString(util.GetEnv("SERVER_LOGGER_LEVEL", zerolog.DebugLevel.String())),
			RequestLevel:       util.LogLevelFromString(util.GetEnv("SERVER_LOGGER_REQUEST_LEVEL", zerolog.DebugLevel.String())),
			LogRequestBody:     util.GetEnvAsBool("SERVER_LOGGER_LOG_REQUEST_BODY", false),
			LogResponseBody:    util.GetEnvAsBool("SERVER_LOGGER_LOG_RESPONSE_BODY", false),
			PrettyPrintConsole: util.GetEnvAsBool("SERVER_LOGGER_PRETTY_PRINT_CONSOLE", false),
		},
		Management: ManagementServer{
			Secret: util.GetMgmtSecret("SERVER_MANAGEMENT_SECRET"),
		},
	}
}
