package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func init() {
	// Auto-load .env file if present (don't override existing env vars)
	loadDotEnv(".env")
}

func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		// Remove surrounding quotes
		if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
			val = val[1 : len(val)-1]
		}
		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

const (
	defaultPort        = "4400"
	defaultEnvironment = "development"
	defaultLogLevel    = "info"

	defaultQueuePageSize    = 1000
	defaultEmployeePageSize = 100
	defaultMigrationsDir    = "./migrations"
)

// EngineConfig holds the prioritization/assignment engine defaults. Shops
// can override the page sizes through shop_settings.
type EngineConfig struct {
	QueuePageSize    int
	EmployeePageSize int
}

type Config struct {
	Port          string
	DatabaseURL   string
	Environment   string
	LogLevel      string
	MigrationsDir string
	AutoMigrate   bool
	Engine        EngineConfig
}

func Load() (Config, error) {
	cfg := Config{
		Port:        firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), defaultPort),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Environment: resolveEnvironment(),
		LogLevel: firstNonEmpty(
			strings.TrimSpace(os.Getenv("LOG_LEVEL")),
			defaultLogLevel,
		),
		MigrationsDir: firstNonEmpty(
			strings.TrimSpace(os.Getenv("MIGRATIONS_DIR")),
			defaultMigrationsDir,
		),
	}

	autoMigrate, err := parseBool("AUTO_MIGRATE", true)
	if err != nil {
		return Config{}, err
	}
	cfg.AutoMigrate = autoMigrate

	queuePageSize, err := parseInt("ENGINE_QUEUE_PAGE_SIZE", defaultQueuePageSize)
	if err != nil {
		return Config{}, err
	}
	cfg.Engine.QueuePageSize = queuePageSize

	employeePageSize, err := parseInt("ENGINE_EMPLOYEE_PAGE_SIZE", defaultEmployeePageSize)
	if err != nil {
		return Config{}, err
	}
	cfg.Engine.EmployeePageSize = employeePageSize

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Engine.QueuePageSize <= 0 {
		return fmt.Errorf("ENGINE_QUEUE_PAGE_SIZE must be greater than zero")
	}
	if c.Engine.EmployeePageSize <= 0 {
		return fmt.Errorf("ENGINE_EMPLOYEE_PAGE_SIZE must be greater than zero")
	}
	if isNonDevelopment(c.Environment) && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in non-development environments")
	}
	return nil
}

func resolveEnvironment() string {
	return strings.ToLower(firstNonEmpty(
		strings.TrimSpace(os.Getenv("APP_ENV")),
		strings.TrimSpace(os.Getenv("ENVIRONMENT")),
		strings.TrimSpace(os.Getenv("GO_ENV")),
		defaultEnvironment,
	))
}

func isNonDevelopment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "dev", "development", "local", "test":
		return false
	default:
		return true
	}
}

func parseBool(name string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return defaultValue, nil
	}

	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be a boolean value", name)
	}
}

func parseInt(name string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", name, err)
	}
	return parsed, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
