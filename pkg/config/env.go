package config

const EnvPrefix = "ASSETLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	StatusSourceStatic = "static"
	StatusSourceDB     = "db"
)

const (
	EnvAppEnv = "ASSETLEDGER_APP_ENV"

	EnvDBDSN  = "ASSETLEDGER_DB_DSN"
	EnvDBHost = "ASSETLEDGER_DB_HOST"
	EnvDBUser = "ASSETLEDGER_DB_USER"
	EnvDBName = "ASSETLEDGER_DB_NAME"

	EnvReceivingLocation    = "ASSETLEDGER_INVENTORY_RECEIVING_LOCATION"
	EnvOverReceiptTolerance = "ASSETLEDGER_INVENTORY_OVER_RECEIPT_TOLERANCE_PCT"
	EnvMaxRetries           = "ASSETLEDGER_INVENTORY_MAX_RETRIES"
	EnvStatusSource         = "ASSETLEDGER_INVENTORY_STATUS_SOURCE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
