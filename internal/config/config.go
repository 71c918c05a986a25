package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseDSN        string
	CredentialSecret   string
	Env                string
	PlatformIdentity   string
	RetentionSeconds   int
	SweepPeriodSeconds int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func Load() Config {
	// .env 存在则加载，不存在也不算错误。
	_ = godotenv.Load()

	port := getenv("APP_PORT", "8080")
	dsn := getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=tankchat port=5432 sslmode=disable TimeZone=UTC")
	secret := getenv("CREDENTIAL_SECRET", "dev-secret-change-me")
	env := getenv("APP_ENV", "dev")
	platform := getenv("PLATFORM_IDENTITY", "platform")
	retentionStr := getenv("RETENTION_SECONDS", "60")
	sweepStr := getenv("SWEEP_PERIOD_SECONDS", "60")
	retention, _ := strconv.Atoi(retentionStr)
	sweep, _ := strconv.Atoi(sweepStr)
	return Config{
		Port:               port,
		DatabaseDSN:        dsn,
		CredentialSecret:   secret,
		Env:                env,
		PlatformIdentity:   platform,
		RetentionSeconds:   retention,
		SweepPeriodSeconds: sweep,
	}
}

// RetentionWindow 消息保留窗口，早于 now-窗口 的消息会被周期清理删除。
func (c Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionSeconds) * time.Second
}

// SweepPeriod 过期清理的触发周期。
func (c Config) SweepPeriod() time.Duration {
	return time.Duration(c.SweepPeriodSeconds) * time.Second
}
