package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"SELLERSYNC_APP_NAME":                os.Getenv("SELLERSYNC_APP_NAME"),
		"SELLERSYNC_APP_ENV":                 os.Getenv("SELLERSYNC_APP_ENV"),
		"SELLERSYNC_APP_PORT":                os.Getenv("SELLERSYNC_APP_PORT"),
		"SELLERSYNC_DATABASE_HOST":           os.Getenv("SELLERSYNC_DATABASE_HOST"),
		"SELLERSYNC_DATABASE_PORT":           os.Getenv("SELLERSYNC_DATABASE_PORT"),
		"SELLERSYNC_DATABASE_USER":           os.Getenv("SELLERSYNC_DATABASE_USER"),
		"SELLERSYNC_DATABASE_PASSWORD":       os.Getenv("SELLERSYNC_DATABASE_PASSWORD"),
		"SELLERSYNC_DATABASE_DBNAME":         os.Getenv("SELLERSYNC_DATABASE_DBNAME"),
		"SELLERSYNC_DATABASE_SSLMODE":        os.Getenv("SELLERSYNC_DATABASE_SSLMODE"),
		"SELLERSYNC_DATABASE_MAX_OPEN_CONNS": os.Getenv("SELLERSYNC_DATABASE_MAX_OPEN_CONNS"),
		"SELLERSYNC_DATABASE_MAX_IDLE_CONNS": os.Getenv("SELLERSYNC_DATABASE_MAX_IDLE_CONNS"),
		"SELLERSYNC_JWT_SECRET":              os.Getenv("SELLERSYNC_JWT_SECRET"),
		"SELLERSYNC_MELI_CLIENT_ID":          os.Getenv("SELLERSYNC_MELI_CLIENT_ID"),
		"SELLERSYNC_MELI_CLIENT_SECRET":      os.Getenv("SELLERSYNC_MELI_CLIENT_SECRET"),
		"SELLERSYNC_MELI_PAGE_SIZE":          os.Getenv("SELLERSYNC_MELI_PAGE_SIZE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "sellersync-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "sellersync", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "https://api.mercadolibre.com", cfg.Meli.APIBaseURL)
		assert.Equal(t, 50, cfg.Meli.PageSize)
		assert.Equal(t, 10, cfg.Meli.MaxItemLookups)
		assert.Equal(t, 500, cfg.Sync.DefaultMaxOrders)
	})

	t.Run("loads values from environment variables with SELLERSYNC prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("SELLERSYNC_APP_NAME", "test-app")
		os.Setenv("SELLERSYNC_APP_PORT", "9000")
		os.Setenv("SELLERSYNC_DATABASE_HOST", "testdb.local")
		os.Setenv("SELLERSYNC_DATABASE_PASSWORD", "testpass")
		os.Setenv("SELLERSYNC_MELI_CLIENT_ID", "app-123")
		os.Setenv("SELLERSYNC_MELI_PAGE_SIZE", "25")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "app-123", cfg.Meli.ClientID)
		assert.Equal(t, 25, cfg.Meli.PageSize)
	})

	t.Run("page size above upstream cap falls back to 50", func(t *testing.T) {
		clearEnv()
		os.Setenv("SELLERSYNC_MELI_PAGE_SIZE", "200")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Meli.PageSize)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("SELLERSYNC_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("SELLERSYNC_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"SELLERSYNC_APP_ENV":            os.Getenv("SELLERSYNC_APP_ENV"),
		"SELLERSYNC_JWT_SECRET":         os.Getenv("SELLERSYNC_JWT_SECRET"),
		"SELLERSYNC_DATABASE_PASSWORD":  os.Getenv("SELLERSYNC_DATABASE_PASSWORD"),
		"SELLERSYNC_DATABASE_SSLMODE":   os.Getenv("SELLERSYNC_DATABASE_SSLMODE"),
		"SELLERSYNC_MELI_CLIENT_ID":     os.Getenv("SELLERSYNC_MELI_CLIENT_ID"),
		"SELLERSYNC_MELI_CLIENT_SECRET": os.Getenv("SELLERSYNC_MELI_CLIENT_SECRET"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	setValidProductionBase := func() {
		os.Setenv("SELLERSYNC_APP_ENV", "production")
		os.Setenv("SELLERSYNC_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		os.Setenv("SELLERSYNC_DATABASE_PASSWORD", "secure-password")
		os.Setenv("SELLERSYNC_DATABASE_SSLMODE", "require")
		os.Setenv("SELLERSYNC_MELI_CLIENT_ID", "app-123")
		os.Setenv("SELLERSYNC_MELI_CLIENT_SECRET", "app-secret")
	}

	t.Run("requires meli credentials in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("SELLERSYNC_MELI_CLIENT_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "meli.client_id and meli.client_secret are required")
	})

	t.Run("requires jwt.secret in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("SELLERSYNC_JWT_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret is required in production")
	})

	t.Run("requires jwt.secret at least 32 characters in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("SELLERSYNC_JWT_SECRET", "short-secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret must be at least 32 characters")
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("SELLERSYNC_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("SELLERSYNC_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", cfg.Addr())
}
