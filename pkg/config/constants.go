package config

// EnvPrefix namespaces every CardRail environment variable.
const EnvPrefix = "CARDRAIL"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "CARDRAIL_APP_ENV"
	EnvPort     = "CARDRAIL_APP_PORT"
	EnvDBDSN    = "CARDRAIL_DB_DSN"
	EnvDBHost   = "CARDRAIL_DB_HOST"
	EnvDBUser   = "CARDRAIL_DB_USER"
	EnvDBName   = "CARDRAIL_DB_NAME"
	EnvRedisURL = "CARDRAIL_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
