package config

const (
	EnvPrefix = "TOPSHOPES"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv   = "TOPSHOPES_APP_ENV"
	EnvPort     = "TOPSHOPES_APP_PORT"
	EnvLogLvl   = "TOPSHOPES_LOG_LEVEL"
	EnvDBDSN    = "TOPSHOPES_DB_DSN"
	EnvDBHost   = "TOPSHOPES_DB_HOST"
	EnvDBPort   = "TOPSHOPES_DB_PORT"
	EnvDBUser   = "TOPSHOPES_DB_USER"
	EnvDBPass   = "TOPSHOPES_DB_PASSWORD"
	EnvDBName   = "TOPSHOPES_DB_NAME"
	EnvDBSSL    = "TOPSHOPES_DB_SSLMODE"
	EnvDBDrv    = "TOPSHOPES_DB_DRIVER"
	EnvRedisURL = "TOPSHOPES_REDIS_URL"

	EnvJWTSecret  = "TOPSHOPES_JWT_SECRET"
	EnvJWTIssuer  = "TOPSHOPES_JWT_ISSUER"
	EnvJWTExpMins = "TOPSHOPES_JWT_EXPIRATION_MINUTES"

	EnvReservationAcquireTimeout = "TOPSHOPES_RESERVATION_ACQUIRE_TIMEOUT"
	EnvSettlementGracePeriod     = "TOPSHOPES_SETTLEMENT_GRACE_PERIOD"
	EnvSettlementMaxAttempts     = "TOPSHOPES_SETTLEMENT_MAX_ATTEMPTS"

	EnvPubSubOrdersTopic  = "TOPSHOPES_PUBSUB_ORDERS_TOPIC"
	EnvPubSubPayoutsTopic = "TOPSHOPES_PUBSUB_PAYOUTS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
