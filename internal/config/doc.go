// Package config loads the rowkit YAML configuration.
//
// Example:
//
//	database:
//	  driver: sqlite3
//	  dsn: app.db
//	models: models
//	datetime_format: "Y-m-d H:i"
//	auto_timestamp: datetime
//	timezone: UTC
//	log_level: debug
//
// ROWKIT_DB_DRIVER and ROWKIT_DB_DSN override the database settings.
package config
