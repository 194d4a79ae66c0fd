package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/lab-scheduler/internal/logging"
)

// Config captures environment driven configuration values for the lab scheduler.
type Config struct {
	HTTPPort       int
	DatabaseDriver string
	DatabaseDSN    string
	JWTSecret      string
	Location       *time.Location

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL           string
	NotificationQueue string
	AuditQueue        string

	SweepSchedule string

	LabCapacity        int
	MaxBookingsPerDay  int
	ConfirmationWindow time.Duration

	SeatCatalogFile string
	LogLevel        slog.Level
}

// Defaults.
const (
	DefaultDatabaseDSN       = "file:labscheduler.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	DefaultNotificationQueue = "lab.notifications"
	DefaultAuditQueue        = "lab.audit"
	DefaultSweepSchedule     = "@every 1m"
)

// Load reads dotenv files (".env" when none are given) and then the process
// environment.
//
// Files that do not exist are skipped and values already present in the
// environment are never overridden. Optional fields fall back to defaults;
// missing required and malformed values are reported together.
func Load(envFiles ...string) (Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPPort:           8080,
		DatabaseDriver:     "sqlite",
		DatabaseDSN:        DefaultDatabaseDSN,
		Location:           time.UTC,
		NotificationQueue:  DefaultNotificationQueue,
		AuditQueue:         DefaultAuditQueue,
		SweepSchedule:      DefaultSweepSchedule,
		LabCapacity:        20,
		MaxBookingsPerDay:  2,
		ConfirmationWindow: 15 * time.Minute,
		LogLevel:           slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	positiveInt := func(key string, target *int) {
		value := env(key)
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, key)
			return
		}
		*target = n
	}

	positiveInt("LAB_HTTP_PORT", &cfg.HTTPPort)

	if driver := strings.ToLower(env("LAB_DB_DRIVER")); driver != "" {
		switch driver {
		case "sqlite", "mysql":
			cfg.DatabaseDriver = driver
		default:
			invalid = append(invalid, "LAB_DB_DRIVER")
		}
	}
	if dsn := env("LAB_DB_DSN"); dsn != "" {
		cfg.DatabaseDSN = dsn
	} else if cfg.DatabaseDriver == "mysql" {
		missing = append(missing, "LAB_DB_DSN")
	}

	if secret := env("LAB_JWT_SECRET"); secret == "" {
		missing = append(missing, "LAB_JWT_SECRET")
	} else {
		cfg.JWTSecret = secret
	}

	if tz := env("LAB_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "LAB_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	cfg.RedisAddr = env("LAB_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("LAB_REDIS_PASSWORD")
	if db := env("LAB_REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil || n < 0 {
			invalid = append(invalid, "LAB_REDIS_DB")
		} else {
			cfg.RedisDB = n
		}
	}

	cfg.AMQPURL = env("LAB_AMQP_URL")
	if queue := env("LAB_NOTIFICATION_QUEUE"); queue != "" {
		cfg.NotificationQueue = queue
	}
	if queue := env("LAB_AUDIT_QUEUE"); queue != "" {
		cfg.AuditQueue = queue
	}

	if schedule := env("LAB_ATTENDANCE_SWEEP"); schedule != "" {
		cfg.SweepSchedule = schedule
	}

	positiveInt("LAB_CAPACITY", &cfg.LabCapacity)
	positiveInt("LAB_MAX_BOOKINGS_PER_DAY", &cfg.MaxBookingsPerDay)

	if window := env("LAB_CONFIRMATION_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil || d <= 0 {
			invalid = append(invalid, "LAB_CONFIRMATION_WINDOW")
		} else {
			cfg.ConfirmationWindow = d
		}
	}

	cfg.SeatCatalogFile = env("LAB_SEAT_CATALOG")

	if level, err := logging.ParseLevel(env("LAB_LOG_LEVEL")); err != nil {
		invalid = append(invalid, "LAB_LOG_LEVEL")
	} else {
		cfg.LogLevel = level
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("read env file %s: %w", file, err)
		}
		present = append(present, file)
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}
