package db

import (
	"testing"

	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{
			name: "postgres defaults sslmode",
			cfg:  config.Config{DBType: "postgres", DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "invoicer", DBPort: "5432"},
			want: "host=db user=u password=p dbname=invoicer port=5432 sslmode=disable TimeZone=UTC",
		},
		{
			name: "sqlite bare name",
			cfg:  config.Config{DBType: "sqlite", DBName: "invoicer"},
			want: "file:invoicer.db?_pragma=foreign_keys%281%29",
		},
		{
			name: "sqlite explicit dsn",
			cfg:  config.Config{DBType: "sqlite", DBName: "file:dev.db?mode=rwc"},
			want: "file:dev.db?mode=rwc",
		},
		{
			name: "mysql",
			cfg:  config.Config{DBType: "mysql", DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "invoicer", DBPort: "3306"},
			want: "u:p@tcp(db:3306)/invoicer?charset=utf8mb4&parseTime=True&loc=UTC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DSN(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}
