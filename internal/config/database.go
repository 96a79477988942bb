// internal/config/database.go
package config

import (
	"fmt"
)

// DSN builds the Postgres connection string. Timestamps are stored and
// compared in UTC so the enrollment window math never depends on the
// server's zone.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}
