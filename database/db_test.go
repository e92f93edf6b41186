package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
)

func TestBuildDSN(t *testing.T) {
	base := config.Database{
		Host: "db.internal", Port: "3306", User: "svc", Pass: "s3cret", Name: "quests",
		Params: "charset=utf8mb4&parseTime=True",
	}

	tests := []struct {
		name     string
		mutate   func(*config.Database)
		wantDSN  string
		wantSafe string
	}{
		{
			name:     "defaults append timeouts",
			mutate:   func(*config.Database) {},
			wantDSN:  "svc:s3cret@tcp(db.internal:3306)/quests?charset=utf8mb4&parseTime=True&timeout=10s&readTimeout=10s&writeTimeout=10s",
			wantSafe: "svc:******@tcp(db.internal:3306)/quests?charset=utf8mb4&parseTime=True&timeout=10s&readTimeout=10s&writeTimeout=10s",
		},
		{
			name: "verified tls uses the custom config",
			mutate: func(d *config.Database) {
				d.TLS, d.TLSVerify = "true", true
				d.Params = "timeout=3s&readTimeout=3s&writeTimeout=3s"
			},
			wantDSN:  "svc:s3cret@tcp(db.internal:3306)/quests?timeout=3s&readTimeout=3s&writeTimeout=3s&tls=custom",
			wantSafe: "svc:******@tcp(db.internal:3306)/quests?timeout=3s&readTimeout=3s&writeTimeout=3s&tls=custom",
		},
		{
			name: "explicit dsn wins",
			mutate: func(d *config.Database) {
				d.DSN = "svc:s3cret@unix(/tmp/mysql.sock)/quests"
			},
			wantDSN:  "svc:s3cret@unix(/tmp/mysql.sock)/quests",
			wantSafe: "svc:******@unix(/tmp/mysql.sock)/quests",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			dsn, safe := BuildDSN(cfg)
			assert.Equal(t, tt.wantDSN, dsn)
			assert.Equal(t, tt.wantSafe, safe)
			assert.NotContains(t, safe, "s3cret")
		})
	}
}
