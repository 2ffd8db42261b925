package config

const (
	EnvPrefix = "ORDERFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "ORDERFLOW_APP_ENV"
	EnvPort     = "ORDERFLOW_APP_PORT"
	EnvLogLevel = "ORDERFLOW_LOG_LEVEL"

	EnvDBDSN  = "ORDERFLOW_DB_DSN"
	EnvDBHost = "ORDERFLOW_DB_HOST"
	EnvDBPort = "ORDERFLOW_DB_PORT"
	EnvDBUser = "ORDERFLOW_DB_USER"
	EnvDBPass = "ORDERFLOW_DB_PASSWORD"
	EnvDBName = "ORDERFLOW_DB_NAME"

	EnvRedisURL = "ORDERFLOW_REDIS_URL"

	EnvJWTSecret  = "ORDERFLOW_JWT_SECRET"
	EnvJWTIssuer  = "ORDERFLOW_JWT_ISSUER"
	EnvJWTExpMins = "ORDERFLOW_JWT_EXPIRATION_MINUTES"

	EnvVNPayTmnCode    = "ORDERFLOW_VNPAY_TMN_CODE"
	EnvVNPayHashSecret = "ORDERFLOW_VNPAY_HASH_SECRET"
	EnvVNPayReturnURL  = "ORDERFLOW_VNPAY_RETURN_URL"
	EnvVNPayTimezone   = "ORDERFLOW_VNPAY_TIMEZONE"

	EnvGCPProjectID          = "ORDERFLOW_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic     = "ORDERFLOW_PUBSUB_ORDERS_TOPIC"
	EnvPubSubPaymentsTopic   = "ORDERFLOW_PUBSUB_PAYMENTS_TOPIC"
	EnvPubSubNotificationTop = "ORDERFLOW_PUBSUB_NOTIFICATION_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
