package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	InputPaths []string
	OutputDir  string
	AliasFile  string

	TolerancePSI float64
	Energy       domain.EnergyModel
	Groupings    [][]domain.Field
	RankingTopN  int
	Workers      int

	// ReferenceOptimal fills a missing optimal pressure from the axle class.
	ReferenceOptimal bool

	CSVBOM      bool
	XLSXEnabled bool

	KafkaBrokers   []string
	KafkaSinkTopic string
	SQLitePath     string

	FTPAddr     string
	FTPUser     string
	FTPPassword string
	FTPDir      string
	FTPTimeout  time.Duration

	HTTPAddr        string
	PushgatewayURL  string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is loaded first if present;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	tol, err := parseFloat("TOL_PSI", domain.DefaultTolerancePSI)
	if err != nil {
		return nil, err
	}
	if tol <= 0 {
		return nil, errors.New("invalid TOL_PSI: must be positive")
	}

	energy, err := parseEnergyModel()
	if err != nil {
		return nil, err
	}

	groupings, err := ParseGroupings(sharedcfg.EnvOrDefault("GROUP_BY", "patente,operacion,patente+operacion,ruta,sede"))
	if err != nil {
		return nil, err
	}

	topN, err := parseInt("RANKING_TOP_N", 10)
	if err != nil {
		return nil, err
	}
	if topN < 0 {
		return nil, errors.New("invalid RANKING_TOP_N")
	}

	workers, err := parseInt("WORKERS", 4)
	if err != nil {
		return nil, err
	}
	if workers < 1 || workers > 64 {
		return nil, errors.New("invalid WORKERS: must be between 1 and 64")
	}

	ftpTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FTP_TIMEOUT", "30s"))
	if err != nil || ftpTimeout <= 0 {
		return nil, errors.New("invalid FTP_TIMEOUT")
	}

	// Local inputs default to data/input unless files come from FTP.
	defaultInput := "data/input"
	if os.Getenv("FTP_ADDR") != "" {
		defaultInput = ""
	}

	cfg := &Config{
		InputPaths: splitList(sharedcfg.EnvOrDefault("INPUT_PATHS", defaultInput)),
		OutputDir:  strings.TrimSpace(sharedcfg.EnvOrDefault("OUTPUT_DIR", "data/output")),
		AliasFile:  os.Getenv("ALIAS_FILE"),

		TolerancePSI:     tol,
		Energy:           energy,
		Groupings:        groupings,
		RankingTopN:      topN,
		Workers:          workers,
		ReferenceOptimal: parseBool("REFERENCE_OPTIMAL", false),

		CSVBOM:      parseBool("CSV_BOM", true),
		XLSXEnabled: parseBool("XLSX_ENABLED", true),

		KafkaBrokers:   sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "tire-pressure-readings"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),

		FTPAddr:     os.Getenv("FTP_ADDR"),
		FTPUser:     sharedcfg.EnvOrDefault("FTP_USER", "anonymous"),
		FTPPassword: sharedcfg.EnvOrDefault("FTP_PASSWORD", "anonymous"),
		FTPDir:      sharedcfg.EnvOrDefault("FTP_DIR", "/"),
		FTPTimeout:  ftpTimeout,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if len(cfg.InputPaths) == 0 && cfg.FTPAddr == "" {
		return nil, errors.New("INPUT_PATHS or FTP_ADDR is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// MetricConfig returns the metric calculator settings.
func (c *Config) MetricConfig() domain.MetricConfig {
	return domain.MetricConfig{TolerancePSI: c.TolerancePSI, Energy: c.Energy}
}

func parseEnergyModel() (domain.EnergyModel, error) {
	m := domain.DefaultEnergyModel()

	variant, err := domain.ParseEnergyVariant(sharedcfg.EnvOrDefault("ENERGY_VARIANT", string(domain.EnergyAbsolute)))
	if err != nil {
		return m, errors.New("invalid ENERGY_VARIANT: must be absolute or percentage")
	}
	m.Variant = variant

	if m.Factor, err = parseFloat("ENERGY_FACTOR", m.Factor); err != nil {
		return m, err
	}
	if m.K, err = parseFloat("ENERGY_K", m.K); err != nil {
		return m, err
	}
	if m.MJBase100km, err = parseFloat("MJ_BASE_100KM", m.MJBase100km); err != nil {
		return m, err
	}
	if m.Factor < 0 || m.K < 0 || m.MJBase100km < 0 {
		return m, errors.New("invalid energy parameters: ENERGY_FACTOR, ENERGY_K and MJ_BASE_100KM must not be negative")
	}
	return m, nil
}

// ParseGroupings parses a comma-separated list of groupings where each
// grouping joins field names with '+', e.g. "patente,patente+operacion".
func ParseGroupings(s string) ([][]domain.Field, error) {
	var out [][]domain.Field
	for _, item := range splitList(s) {
		var group []domain.Field
		seen := make(map[domain.Field]bool)
		for _, name := range strings.Split(item, "+") {
			f, err := domain.ParseField(name)
			if err != nil {
				return nil, fmt.Errorf("invalid GROUP_BY: %w", err)
			}
			if seen[f] {
				return nil, fmt.Errorf("invalid GROUP_BY: %s repeated in %q", f, item)
			}
			seen[f] = true
			group = append(group, f)
		}
		out = append(out, group)
	}
	if len(out) == 0 {
		return nil, errors.New("invalid GROUP_BY: at least one grouping is required")
	}
	return out, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

// splitList is a trimmed comma split; the shared broker parser does exactly that.
func splitList(s string) []string {
	return sharedcfg.ParseBrokers(s)
}
