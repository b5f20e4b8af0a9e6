package config

const (
	EnvPrefix = "RENTIVA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "RENTIVA_DB_DSN"
	EnvDBHost = "RENTIVA_DB_HOST"
	EnvDBUser = "RENTIVA_DB_USER"
	EnvDBName = "RENTIVA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
