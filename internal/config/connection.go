// Package config holds the run configuration: environment connection strings
// and the YAML run file.
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/remap/internal/store"
)

// Supported environment drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultTimeout bounds connecting to an environment.
const DefaultTimeout = 10 * time.Minute

// Connection describes how to reach one environment.
type Connection struct {
	Driver    string
	DSN       string
	Username  string
	Password  string
	Timeout   time.Duration
	Integrity bool
}

// ParseConnection parses "key=value;key=value". Keys are case-insensitive:
//
//	driver     sqlite (default) or postgres
//	dsn        database file (sqlite) or connection string (postgres)
//	username   postgres user
//	password   postgres password
//	timeout    duration ("90s") or whole minutes ("10")
//	integrity  reject writes referencing missing records (true|false)
//
// Unknown keys are an error.
func ParseConnection(s string) (Connection, error) {
	c := Connection{Driver: DriverSQLite, Timeout: DefaultTimeout}

	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return Connection{}, fmt.Errorf("connection string: %q is not key=value", pair)
		}
		key, value = strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)

		switch key {
		case "driver":
			c.Driver = strings.ToLower(value)
		case "dsn":
			c.DSN = value
		case "username":
			c.Username = value
		case "password":
			c.Password = value
		case "timeout":
			d, err := parseTimeout(value)
			if err != nil {
				return Connection{}, fmt.Errorf("connection string: timeout: %w", err)
			}
			c.Timeout = d
		case "integrity":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return Connection{}, fmt.Errorf("connection string: integrity: %w", err)
			}
			c.Integrity = b
		default:
			return Connection{}, fmt.Errorf("connection string: unknown key %q", key)
		}
	}

	if c.Driver != DriverSQLite && c.Driver != DriverPostgres {
		return Connection{}, fmt.Errorf("connection string: unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return Connection{}, fmt.Errorf("connection string: dsn is required")
	}
	return c, nil
}

func parseTimeout(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", n)
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

// String renders the connection with the password hidden.
func (c Connection) String() string {
	parts := []string{"driver=" + c.Driver, "dsn=" + c.DSN}
	if c.Username != "" {
		parts = append(parts, "username="+c.Username)
	}
	if c.Password != "" {
		parts = append(parts, "password=****")
	}
	parts = append(parts, "timeout="+c.Timeout.String())
	if c.Integrity {
		parts = append(parts, "integrity=true")
	}
	return strings.Join(parts, ";")
}

// postgresDSN appends credentials to a keyword/value connection string.
// URL-style DSNs carry their own credentials and are used as given.
func (c Connection) postgresDSN() string {
	dsn := c.DSN
	if strings.Contains(dsn, "://") {
		return dsn
	}
	if c.Username != "" {
		dsn += " user=" + quoteDSNValue(c.Username)
	}
	if c.Password != "" {
		dsn += " password=" + quoteDSNValue(c.Password)
	}
	return dsn
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Open connects to the environment.
func (c Connection) Open(ctx context.Context) (*store.Store, error) {
	var opts []store.Option
	if c.Integrity {
		opts = append(opts, store.WithReferentialIntegrity())
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	switch c.Driver {
	case DriverPostgres:
		return store.OpenPostgres(ctx, c.postgresDSN(), opts...)
	default:
		return store.Open(c.DSN, opts...)
	}
}
