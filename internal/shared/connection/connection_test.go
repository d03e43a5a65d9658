package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresOptions_DSN(t *testing.T) {
	opts := PostgresOptions{
		Host:     "db",
		Port:     "5432",
		User:     "hr",
		Password: "secret",
		Name:     "go_ems",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=db user=hr password=secret dbname=go_ems port=5432 sslmode=disable", opts.DSN())
}
