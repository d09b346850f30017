package config

const (
	EnvPrefix = "gharbazaar"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "GHARBAZAAR_DB_DSN"
	EnvDBHost = "GHARBAZAAR_DB_HOST"
	EnvDBUser = "GHARBAZAAR_DB_USER"
	EnvDBName = "GHARBAZAAR_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
