package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-portal-api/pkg/config"
)

func TestConnectionStrings(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5433, User: "portal", Password: "p@ss", Name: "sma_portal", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5433 user=portal password=p@ss dbname=sma_portal sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://portal:p%40ss@db:5433/sma_portal?sslmode=disable", URL(cfg))
}
