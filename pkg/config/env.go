package config

const (
	EnvPrefix = "MEMENTO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EventingBackendNone   = "none"
	EventingBackendPubSub = "pubsub"
	EventingBackendKafka  = "kafka"

	EnvAppEnv            = "MEMENTO_APP_ENV"
	EnvPort              = "MEMENTO_APP_PORT"
	EnvDBDSN             = "MEMENTO_DB_DSN"
	EnvDBHost            = "MEMENTO_DB_HOST"
	EnvDBUser            = "MEMENTO_DB_USER"
	EnvDBName            = "MEMENTO_DB_NAME"
	EnvRedisURL          = "MEMENTO_REDIS_URL"
	EnvJWTSecret         = "MEMENTO_JWT_SECRET"
	EnvUseSQLite         = "MEMENTO_USE_SQLITE"
	EnvEventingBackend   = "MEMENTO_EVENTING_BACKEND"
	EnvGCPProjectID      = "MEMENTO_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "MEMENTO_PUBSUB_ORDERS_TOPIC"
	EnvKafkaBrokers      = "MEMENTO_KAFKA_BROKERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
