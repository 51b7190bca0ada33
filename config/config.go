package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/member-portal/logging"
)

const (
	defaultSessionTTL       = 12 * time.Hour
	defaultSupportRetention = 24 * time.Hour
)

// Config holds the project config values
type Config struct {
	URL                  string
	DatabaseName         string
	BaseURL              string
	Port                 string
	Environment          string
	SessionTTL           time.Duration
	SupportRoomRetention time.Duration
	DepartmentsFile      string
	Departments          *Departments
}

// New sets up all config related services
func New() *Config {

	//setup zap logger and replace default logger
	env := os.Getenv("ENVIRONMENT")
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:                  os.Getenv("DB_URI"),
		DatabaseName:         os.Getenv("DB_NAME"),
		BaseURL:              os.Getenv("BASE_URL"),
		Port:                 getenv("PORT", "3000"),
		Environment:          env,
		SessionTTL:           durationEnv("SESSION_TTL", defaultSessionTTL),
		SupportRoomRetention: durationEnv("SUPPORT_ROOM_RETENTION", defaultSupportRetention),
		DepartmentsFile:      os.Getenv("DEPARTMENTS_FILE"),
		Departments:          DefaultDepartments(),
	}
}

// LoadDepartments replaces the built-in department directory with the
// configured file, if there is one
func (c *Config) LoadDepartments() error {
	if c.DepartmentsFile == "" {
		return nil
	}
	d, err := LoadDepartmentsFile(c.DepartmentsFile)
	if err != nil {
		return err
	}
	c.Departments = d
	return nil
}

func setLogger(env string) (*zap.Logger, error) {
	return logging.New(env)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		zap.S().Warnw("invalid duration, using default",
			"key", key,
			"value", v,
			"default", fallback)
		return fallback
	}
	return d
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}
