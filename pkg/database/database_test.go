package database

import (
	"examprep_backend/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestDialectorSelection(t *testing.T) {
	d, err := dialector(&config.DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, DBName: "examprep", Charset: "utf8mb4", ParseTime: true})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	d, err = dialector(&config.DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, DBName: "examprep", SSLMode: "disable"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = dialector(&config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, logLevel("silent"))
	assert.Equal(t, logger.Info, logLevel("info"))
	assert.Equal(t, logger.Warn, logLevel("whatever"))
}
