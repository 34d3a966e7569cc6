package appconf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	Production  Environment = "production"
)

// EnvFromString returns the environment named by s, defaulting to Development.
func EnvFromString(s string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case Test:
		return Test
	case Production:
		return Production
	default:
		return Development
	}
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	GTFS    GTFSConfig    `yaml:"gtfs"`
	Routing RoutingConfig `yaml:"routing"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port      int         `yaml:"port" validate:"min=1,max=65535"`
	Env       Environment `yaml:"env" validate:"oneof=development test production"`
	APIKeys   []string    `yaml:"apiKeys" validate:"dive,required"`
	RateLimit int         `yaml:"rateLimit" validate:"min=0"`
}

type GTFSConfig struct {
	StaticURL           string        `yaml:"staticUrl" validate:"required"`
	TripUpdatesURL      string        `yaml:"tripUpdatesUrl" validate:"omitempty,url"`
	VehiclePositionsURL string        `yaml:"vehiclePositionsUrl" validate:"omitempty,url"`
	AuthHeaderKey       string        `yaml:"authHeaderKey"`
	AuthHeaderValue     string        `yaml:"authHeaderValue"`
	DataPath            string        `yaml:"dataPath"`
	StaticRefresh       time.Duration `yaml:"staticRefresh" validate:"min=0"`
	RealtimeRefresh     time.Duration `yaml:"realtimeRefresh" validate:"min=0"`
}

type RoutingConfig struct {
	SearchWindow        time.Duration `yaml:"searchWindow" validate:"min=0"`
	MaxTransfers        int           `yaml:"maxTransfers" validate:"min=0,max=20"`
	BoardSlack          time.Duration `yaml:"boardSlack" validate:"min=0"`
	AlightSlack         time.Duration `yaml:"alightSlack" validate:"min=0"`
	TransferSlack       time.Duration `yaml:"transferSlack" validate:"min=0"`
	WalkSpeed           float64       `yaml:"walkSpeed" validate:"gt=0,lte=5"`
	MaxWalkDistance     float64       `yaml:"maxWalkDistance" validate:"gt=0,lte=5000"`
	MaxTransferDistance float64       `yaml:"maxTransferDistance" validate:"min=0,lte=2000"`
	Heuristics          bool          `yaml:"heuristics"`
	SnapshotCacheSize   int           `yaml:"snapshotCacheSize" validate:"min=1"`
	NearbyCacheSize     int           `yaml:"nearbyCacheSize" validate:"min=1"`
	RequestTimeout      time.Duration `yaml:"requestTimeout" validate:"min=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:      4000,
			Env:       Development,
			APIKeys:   []string{"test"},
			RateLimit: 100,
		},
		GTFS: GTFSConfig{
			DataPath:        "./gtfs.db",
			StaticRefresh:   24 * time.Hour,
			RealtimeRefresh: 30 * time.Second,
		},
		Routing: RoutingConfig{
			SearchWindow:        time.Hour,
			MaxTransfers:        5,
			BoardSlack:          0,
			AlightSlack:         0,
			TransferSlack:       time.Minute,
			WalkSpeed:           1.33,
			MaxWalkDistance:     1000,
			MaxTransferDistance: 400,
			Heuristics:          true,
			SnapshotCacheSize:   4,
			NearbyCacheSize:     10000,
			RequestTimeout:      10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env (when present) and the YAML file at path on top of Default,
// applies environment overrides, then overrides (command-line flags), and validates
// the result. An empty path skips the file.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	for _, override := range overrides {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags of every section.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PLANNER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PLANNER_PORT: %q", v)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("PLANNER_ENV"); v != "" {
		cfg.Server.Env = EnvFromString(v)
	}
	if v := os.Getenv("PLANNER_API_KEYS"); v != "" {
		cfg.Server.APIKeys = SplitList(v)
	}
	if v := os.Getenv("PLANNER_RATE_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PLANNER_RATE_LIMIT: %q", v)
		}
		cfg.Server.RateLimit = limit
	}

	cfg.GTFS.StaticURL = getenvDefault("GTFS_STATIC_URL", cfg.GTFS.StaticURL)
	cfg.GTFS.TripUpdatesURL = getenvDefault("GTFS_TRIP_UPDATES_URL", cfg.GTFS.TripUpdatesURL)
	cfg.GTFS.VehiclePositionsURL = getenvDefault("GTFS_VEHICLE_POSITIONS_URL", cfg.GTFS.VehiclePositionsURL)
	cfg.GTFS.AuthHeaderKey = getenvDefault("GTFS_AUTH_HEADER_KEY", cfg.GTFS.AuthHeaderKey)
	cfg.GTFS.AuthHeaderValue = getenvDefault("GTFS_AUTH_HEADER_VALUE", cfg.GTFS.AuthHeaderValue)
	cfg.GTFS.DataPath = getenvDefault("GTFS_DATA_PATH", cfg.GTFS.DataPath)

	cfg.Logging.Level = getenvDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getenvDefault("LOG_FORMAT", cfg.Logging.Format)
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
