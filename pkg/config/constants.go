package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// SNS_-prefixed names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "SNS_APP_ENV"
	EnvPort     = "SNS_APP_PORT"
	EnvDBDSN    = "SNS_DB_DSN"
	EnvDBHost   = "SNS_DB_HOST"
	EnvDBUser   = "SNS_DB_USER"
	EnvDBName   = "SNS_DB_NAME"
	EnvRedisURL = "SNS_REDIS_URL"

	EnvJWTSecret = "SNS_JWT_SECRET"
	EnvJWTIssuer = "SNS_JWT_ISSUER"

	EnvGCPProjectID = "SNS_GCP_PROJECT_ID"

	EnvPubSubAlarmTopic        = "SNS_PUBSUB_ALARM_TOPIC"
	EnvPubSubAlarmSubscription = "SNS_PUBSUB_ALARM_SUBSCRIPTION"
)
