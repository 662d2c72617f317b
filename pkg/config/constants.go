package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvAuthJWTSecret = "STOREFRONT_AUTH_JWT_SECRET"

	EnvPaymentPublicKey   = "STOREFRONT_PAYMENT_PUBLIC_KEY"
	EnvPaymentCheckoutURL = "STOREFRONT_PAYMENT_CHECKOUT_URL"
	EnvPaymentCallbackURL = "STOREFRONT_PAYMENT_CALLBACK_URL"
	EnvPaymentUpsellURL   = "STOREFRONT_PAYMENT_UPSELL_URL"
	EnvPaymentCurrency    = "STOREFRONT_PAYMENT_CURRENCY"
	EnvPaymentReturnKey   = "STOREFRONT_PAYMENT_RETURN_SECRET"

	EnvCartSnapshotTTL = "STOREFRONT_CART_SNAPSHOT_TTL"
	EnvCartIdleTTL     = "STOREFRONT_CART_IDLE_TTL"

	EnvBridgeAllowedOrigins = "STOREFRONT_BRIDGE_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
