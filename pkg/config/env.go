package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv           = "STOREFRONT_APP_ENV"
	EnvPort             = "STOREFRONT_APP_PORT"
	EnvDBDSN            = "STOREFRONT_DB_DSN"
	EnvDBHost           = "STOREFRONT_DB_HOST"
	EnvDBUser           = "STOREFRONT_DB_USER"
	EnvDBName           = "STOREFRONT_DB_NAME"
	EnvUseSQLite        = "STOREFRONT_USE_SQLITE"
	EnvRedisURL         = "STOREFRONT_REDIS_URL"
	EnvJWTSecret        = "STOREFRONT_JWT_SECRET"
	EnvShopCurrency     = "STOREFRONT_SHOP_CURRENCY"
	EnvShopCartTimeout  = "STOREFRONT_SHOP_CART_TIMEOUT"
	EnvShopReceiptFrom  = "STOREFRONT_SHOP_RECEIPT_FROM"
	EnvShopAdminEmail   = "STOREFRONT_SHOP_ADMIN_EMAIL"
	EnvPubSubOrderTopic = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
