package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the global handle. Used by tools that open their own connection.
func SetDB(conn *gorm.DB) {
	db = conn
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// ConnectDatabaseWithRetry connects and sets the global DB.
// It keeps retrying with capped backoff until the database answers.
func ConnectDatabaseWithRetry() {
	var attempt int
	for {
		attempt++
		conn, err := OpenDatabase()
		if err == nil {
			db = conn
			log.Printf("connected to database (driver=%s attempt=%d)", databaseDriver(), attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// OpenDatabase opens one connection using DB_* env and tunes its pool.
func OpenDatabase() (*gorm.DB, error) {
	dialector, err := openDialector()
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, initConfig())
	if err != nil {
		return nil, err
	}

	// Env overrides (optional):
	// - DB_MAX_OPEN_CONNS (default 20)
	// - DB_MAX_IDLE_CONNS (default 10)
	// - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
	// - DB_CONN_MAX_IDLE_TIME_SECONDS (default 60)
	if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
		maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 20)
		maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 10)
		connMaxLife := time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second
		connMaxIdle := time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second

		if maxOpen > 0 {
			sqlDB.SetMaxOpenConns(maxOpen)
		}
		if maxIdle >= 0 {
			sqlDB.SetMaxIdleConns(maxIdle)
		}
		if connMaxLife > 0 {
			sqlDB.SetConnMaxLifetime(connMaxLife)
		}
		if connMaxIdle > 0 {
			sqlDB.SetConnMaxIdleTime(connMaxIdle)
		}
	}

	if pluginErr := conn.Use(otelgorm.NewPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}
	return conn, nil
}

func databaseDriver() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if v == "" {
		return "mysql"
	}
	return v
}

func openDialector() (gorm.Dialector, error) {
	switch driver := databaseDriver(); driver {
	case "mysql":
		return mysql.Open(MysqlDSN()), nil
	case "postgres":
		return postgres.Open(PostgresDSN()), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// MysqlDSN builds the go-sql-driver DSN.
// When DB_HOST is "/cloudsql/<CONNECTION_NAME>" the unix socket of the
// Cloud SQL Auth Proxy is used.
func MysqlDSN() string {
	dbHost := os.Getenv("DB_HOST")
	cfg := mysqlDriver.NewConfig()
	cfg.User = os.Getenv("DB_USER")
	cfg.Passwd = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", dbHost, os.Getenv("DB_PORT"))
	if strings.HasPrefix(dbHost, "/cloudsql/") {
		cfg.Net = "unix"
		cfg.Addr = dbHost
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

func PostgresDSN() string {
	dbHost := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		dbHost,
		port,
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		sslMode,
	)
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("%s=%q is not an integer; using default %d", key, v, def)
		return def
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	level := logger.Error
	if os.Getenv("GORM_LOG") == "info" {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      level,
			SlowThreshold: time.Second,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
