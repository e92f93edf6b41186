package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
)

// BuildDSN returns the DSN to dial and a copy with the password masked for
// logging. An explicit DSN wins; otherwise TLS and timeout parameters are
// appended unless the configured params already carry them.
func BuildDSN(cfg config.Database) (dsn, safe string) {
	dsn = cfg.DSN
	if dsn == "" {
		params := cfg.Params
		if !strings.Contains(params, "tls=") && (cfg.TLS == "true" || cfg.TLS == "preferred") {
			if cfg.TLSVerify {
				params += "&tls=custom"
			} else {
				params += "&tls=true"
			}
		}
		for _, p := range []string{"timeout", "readTimeout", "writeTimeout"} {
			if !strings.Contains(params, p+"=") {
				params += "&" + p + "=10s"
			}
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name, strings.TrimPrefix(params, "&"))
	}
	safe = dsn
	if cfg.Pass != "" {
		safe = strings.Replace(safe, cfg.Pass, "******", 1)
	}
	return dsn, safe
}

// Connect opens the MySQL pool, retrying with exponential backoff.
func Connect(ctx context.Context, cfg config.Database, env string, lg *log.Logger) (*gorm.DB, error) {
	if lg == nil {
		lg = log.Default()
	}
	dsn, safe := BuildDSN(cfg)
	lg.Printf("[database] using DSN: %s", safe)

	if strings.Contains(dsn, "tls=custom") {
		tlsCfg, err := customTLS(cfg)
		if err != nil {
			return nil, err
		}
		if err := mysqldriver.RegisterTLSConfig("custom", tlsCfg); err != nil {
			return nil, fmt.Errorf("register DB TLS config: %w", err)
		}
	}

	gormLogger := logger.Default.LogMode(logger.Silent)
	if env == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	var db *gorm.DB
	var err error
	backoff := time.Second
	for attempt := 1; attempt <= retries; attempt++ {
		db, err = gorm.Open(gormmysql.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
		if err == nil {
			break
		}
		lg.Printf("[database] connect attempt %d/%d failed: %v", attempt, retries, err)
		if attempt == retries {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if cfg.PingOnConnect {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
	}
	return db, nil
}

func customTLS(cfg config.Database) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSCAPath != "" {
		caCert, err := os.ReadFile(cfg.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("failed reading DB TLS CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to append CA certs")
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.TLSClientCert != "" && cfg.TLSClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSClientCert, cfg.TLSClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}
