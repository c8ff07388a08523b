package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DBConfig locates the PostgreSQL database that stores users, jobs and the task queue.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"jobmatch"`
	Password string `env:"PASSWORD" envDefault:"jobmatch"`
	Name     string `env:"NAME"     envDefault:"jobmatch"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN renders a postgres:// URL. Credentials are escaped.
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// RedisConfig locates the Redis deployment holding sessions and upload rate-limit windows.
//
// A single node is addressed by URI, either host:port or a redis:// or rediss:// URL.
// Setting MasterName selects Sentinel, with Addrs naming the sentinels. UseCluster selects
// cluster mode, seeded from Addrs or, when empty, from URI.
type RedisConfig struct {
	URI              string   `env:"URI"               envDefault:"localhost:6379"`
	Password         string   `env:"PASSWORD"`
	DB               int      `env:"DB"                envDefault:"0"`
	Addrs            []string `env:"ADDRS"`
	MasterName       string   `env:"MASTER_NAME"`
	SentinelPassword string   `env:"SENTINEL_PASSWORD"`
	UseCluster       bool     `env:"USE_CLUSTER"       envDefault:"false"`
}

// Configured reports whether any Redis endpoint is set.
func (c RedisConfig) Configured() bool {
	if strings.TrimSpace(c.URI) != "" {
		return true
	}
	for _, a := range c.Addrs {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}
