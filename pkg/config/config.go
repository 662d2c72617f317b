package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Payment      PaymentConfig
	Cart         CartConfig
	Bridge       BridgeConfig
	Checkout     CheckoutConfig
	WhatsApp     WhatsAppConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payment.validate(); err != nil {
		return nil, err
	}
	cfg.Cart.normalize()
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	ConnectTimeout time.Duration `envconfig:"STOREFRONT_DB_CONNECT_TIMEOUT" default:"5s"`
	SlowQuery      time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AuthConfig describes how tokens minted by the hosted auth service are verified.
type AuthConfig struct {
	JWTSecret string `envconfig:"STOREFRONT_AUTH_JWT_SECRET" required:"true"`
	Audience  string `envconfig:"STOREFRONT_AUTH_AUDIENCE" default:"authenticated"`
	Issuer    string `envconfig:"STOREFRONT_AUTH_ISSUER"`
	AdminRole string `envconfig:"STOREFRONT_AUTH_ADMIN_ROLE" default:"admin"`
}

// PaymentConfig holds the payment processor's hosted page URLs. Checkout cannot
// run without them so they are required at startup.
type PaymentConfig struct {
	PublicKey   string `envconfig:"STOREFRONT_PAYMENT_PUBLIC_KEY" required:"true"`
	CheckoutURL string `envconfig:"STOREFRONT_PAYMENT_CHECKOUT_URL" required:"true"`
	CallbackURL string `envconfig:"STOREFRONT_PAYMENT_CALLBACK_URL" required:"true"`
	UpsellURL   string `envconfig:"STOREFRONT_PAYMENT_UPSELL_URL"`
	Currency    string `envconfig:"STOREFRONT_PAYMENT_CURRENCY" default:"BRL"`
	// ReturnSecret signs the session handed to the processor. Without it the
	// return callback trusts any session id it is given.
	ReturnSecret string        `envconfig:"STOREFRONT_PAYMENT_RETURN_SECRET"`
	ReturnTTL    time.Duration `envconfig:"STOREFRONT_PAYMENT_RETURN_TTL" default:"24h"`
}

type CartConfig struct {
	SnapshotTTL    time.Duration `envconfig:"STOREFRONT_CART_SNAPSHOT_TTL" default:"720h"`
	PersistTimeout time.Duration `envconfig:"STOREFRONT_CART_PERSIST_TIMEOUT" default:"8s"`
	LoadTimeout    time.Duration `envconfig:"STOREFRONT_CART_LOAD_TIMEOUT" default:"8s"`
	RemoteTier     bool          `envconfig:"STOREFRONT_CART_REMOTE_TIER" default:"true"`
	IdleTTL        time.Duration `envconfig:"STOREFRONT_CART_IDLE_TTL" default:"30m"`
	SweepInterval  time.Duration `envconfig:"STOREFRONT_CART_SWEEP_INTERVAL" default:"1m"`
}

// normalize caps the in-memory idle lifetime at the snapshot lifetime, so a
// dropped cart can always be restored.
func (c *CartConfig) normalize() {
	if c.SnapshotTTL > 0 && (c.IdleTTL <= 0 || c.IdleTTL > c.SnapshotTTL) {
		c.IdleTTL = c.SnapshotTTL
	}
}

type BridgeConfig struct {
	AllowedOrigins []string      `envconfig:"STOREFRONT_BRIDGE_ALLOWED_ORIGINS"`
	LoadingTimeout time.Duration `envconfig:"STOREFRONT_BRIDGE_LOADING_TIMEOUT" default:"10s"`
	Broker         string        `envconfig:"STOREFRONT_BRIDGE_BROKER" default:"redis"`
	MessageLimit   int           `envconfig:"STOREFRONT_BRIDGE_MESSAGE_LIMIT" default:"120"`
}

type CheckoutConfig struct {
	AbandonWindow time.Duration `envconfig:"STOREFRONT_CHECKOUT_ABANDON_WINDOW" default:"10m"`
	AbandonLimit  int           `envconfig:"STOREFRONT_CHECKOUT_ABANDON_LIMIT" default:"10"`
	AbandonIPCap  int           `envconfig:"STOREFRONT_CHECKOUT_ABANDON_IP_LIMIT" default:"30"`
}

type WhatsAppConfig struct {
	Endpoint  string        `envconfig:"STOREFRONT_WHATSAPP_ENDPOINT"`
	Token     string        `envconfig:"STOREFRONT_WHATSAPP_TOKEN"`
	Timeout   time.Duration `envconfig:"STOREFRONT_WHATSAPP_TIMEOUT" default:"8s"`
	ResumeURL string        `envconfig:"STOREFRONT_WHATSAPP_RESUME_URL"`
}

// Enabled reports whether outbound customer messaging is configured.
func (w WhatsAppConfig) Enabled() bool {
	return strings.TrimSpace(w.Endpoint) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (p *PaymentConfig) validate() error {
	for env, raw := range map[string]string{
		EnvPaymentCheckoutURL: p.CheckoutURL,
		EnvPaymentCallbackURL: p.CallbackURL,
	} {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute url", env)
		}
	}
	if p.UpsellURL != "" {
		if u, err := url.Parse(p.UpsellURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute url", EnvPaymentUpsellURL)
		}
	}
	code, err := enums.ParseCurrency(p.Currency)
	if err != nil {
		return fmt.Errorf("%s: %w", EnvPaymentCurrency, err)
	}
	p.Currency = code.String()
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
