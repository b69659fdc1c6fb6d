package config

// EnvPrefix is the envconfig prefix shared by every TaskHive binary.
const EnvPrefix = "taskhive"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TASKHIVE_DB_DSN"
	EnvDBHost = "TASKHIVE_DB_HOST"
	EnvDBUser = "TASKHIVE_DB_USER"
	EnvDBName = "TASKHIVE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
