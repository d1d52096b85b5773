package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	ContextUserKey      = "user"
	ContextConfigKey    = "config"
	ContextRequestIDKey = "requestId"
	HeaderRequestID     = "X-Request-ID"
)
