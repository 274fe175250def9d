package config

const (
	EnvPrefix = "MERCHOPS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MERCHOPS_DB_DSN"
	EnvDBHost = "MERCHOPS_DB_HOST"
	EnvDBUser = "MERCHOPS_DB_USER"
	EnvDBName = "MERCHOPS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
