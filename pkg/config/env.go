package config

const (
	EnvPrefix = "FIXERS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "FIXERS_APP_ENV"
	EnvPort     = "FIXERS_APP_PORT"
	EnvLogLevel = "FIXERS_LOG_LEVEL"

	EnvDBDSN  = "FIXERS_DB_DSN"
	EnvDBHost = "FIXERS_DB_HOST"
	EnvDBUser = "FIXERS_DB_USER"
	EnvDBName = "FIXERS_DB_NAME"

	EnvRedisURL = "FIXERS_REDIS_URL"

	EnvJWTSecret  = "FIXERS_JWT_SECRET"
	EnvJWTIssuer  = "FIXERS_JWT_ISSUER"
	EnvJWTExpMins = "FIXERS_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey = "FIXERS_STRIPE_API_KEY"
	EnvStripeSecret = "FIXERS_STRIPE_SECRET"

	EnvSMTPHost   = "FIXERS_SMTP_HOST"
	EnvAdminEmail = "FIXERS_ADMIN_EMAIL"

	EnvBadgeMaxFailedPayments   = "FIXERS_BADGE_MAX_FAILED_PAYMENTS"
	EnvBadgeTopPerformerPercent = "FIXERS_BADGE_TOP_PERFORMER_PERCENT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
