package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantDatabaseName(t *testing.T) {
	assert.Equal(t, "school_42", TenantDatabaseName("school_", 42))
	assert.Equal(t, TenantDatabaseName("school_", 7), TenantDatabaseName("school_", 7))
}

func TestDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{
			name: "replaces path",
			base: "postgres://admin:pw@db:5432/postgres?sslmode=disable",
			want: "postgres://admin:pw@db:5432/school_42?sslmode=disable",
		},
		{
			name: "adds path",
			base: "postgresql://db:5432",
			want: "postgresql://db:5432/school_42",
		},
		{
			name:    "key value dsn",
			base:    "host=db user=admin",
			wantErr: true,
		},
		{
			name:    "wrong scheme",
			base:    "mysql://db/postgres",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DatabaseURL(tt.base, "school_42")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
