package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/reusedev/detect-hub/internal/consts"
	"gopkg.in/yaml.v3"
)

var GConfig *Config

func Init(config []byte) {
	initFromYaml(config)
	// .env is optional, missing file is fine
	_ = godotenv.Load()
	GConfig.applyEnv()
	err := GConfig.Verify()
	if err != nil {
		panic(err)
	}
}

func initFromYaml(config []byte) {
	c, err := Parse(config)
	if err != nil {
		panic(err)
	}
	GConfig = c
}

func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

func Default() *Config {
	return &Config{
		LogLevel:        "info",
		LogMaxSize:      100,
		LogMaxBackups:   7,
		LogMaxAge:       30,
		StorageSupplier: consts.StorageLocal.String(),
		UploadDir:       "./documents",
		CountBackend:    consts.CountBackendUpsert.String(),
		DefaultModel:    consts.DefaultModelID,
		Database:        Database{Driver: consts.DriverMySQL.String()},
		MySQL:           MySQL{Host: "127.0.0.1", Port: 3306, Charset: "utf8mb4", MaxIdleConns: 10, MaxOpenConns: 50},
		Thumbnail:       Thumbnail{Enabled: true, Ratio: 0.25},
		Cache:           Cache{SummaryTTL: "30s"},
	}
}

type Config struct {
	LogLevel        string              `yaml:"log_level"`
	LogFile         string              `yaml:"log_file"`
	LogMaxSize      int                 `yaml:"log_max_size"`
	LogMaxBackups   int                 `yaml:"log_max_backups"`
	LogMaxAge       int                 `yaml:"log_max_age"`
	StorageSupplier string              `yaml:"storage_supplier"`
	UploadDir       string              `yaml:"upload_dir"`
	CountBackend    string              `yaml:"count_backend"`
	DefaultModel    string              `yaml:"default_model"`
	Detectors       map[string]Detector `yaml:"detectors"`
	Database        `yaml:"database"`
	AliOss          `yaml:"ali_oss"`
	MySQL           `yaml:"mysql"`
	Thumbnail       `yaml:"thumbnail"`
	Cache           `yaml:"cache"`
	Download        `yaml:"download"`
}

func (c *Config) Verify() error {
	switch consts.StorageSupplier(c.StorageSupplier) {
	case consts.StorageLocal, consts.StorageAliOss:
	default:
		return fmt.Errorf("storage_supplier must be local or ali_oss, got %q", c.StorageSupplier)
	}
	switch consts.CountBackend(c.CountBackend) {
	case consts.CountBackendUpsert, consts.CountBackendReadWrite:
	default:
		return fmt.Errorf("count_backend must be upsert or read_write, got %q", c.CountBackend)
	}
	switch consts.DatabaseDriver(c.Database.Driver) {
	case consts.DriverMySQL:
	case consts.DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if len(c.Detectors) == 0 {
		return fmt.Errorf("at least one detector must be configured")
	}
	if _, ok := c.Detectors[c.DefaultModel]; !ok {
		return fmt.Errorf("default_model %q is not in detectors", c.DefaultModel)
	}
	for id, d := range c.Detectors {
		if err := d.Verify(); err != nil {
			return fmt.Errorf("detector %s: %w", id, err)
		}
	}
	if c.Thumbnail.Enabled && (c.Thumbnail.Ratio <= 0 || c.Thumbnail.Ratio > 1) {
		return fmt.Errorf("thumbnail.ratio must be in (0, 1]")
	}
	if ttl, err := time.ParseDuration(c.Cache.SummaryTTL); err != nil {
		return fmt.Errorf("cache.summary_ttl: %w", err)
	} else if ttl < 0 {
		return fmt.Errorf("cache.summary_ttl must not be negative")
	}
	return nil
}

// applyEnv lets deployments keep secrets and inference endpoints out of the yaml file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DETECT_DB_PASSWORD"); v != "" {
		c.MySQL.Password = v
	}
	host := os.Getenv("TFS_HOST")
	port, _ := strconv.Atoi(os.Getenv("TFS_PORT"))
	for id, d := range c.Detectors {
		if d.Type != consts.DetectorTFServing.String() {
			continue
		}
		if host != "" {
			d.Host = host
		}
		if port > 0 {
			d.Port = port
		}
		c.Detectors[id] = d
	}
}

func (c *Config) SummaryTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.SummaryTTL)
	return d
}

type Database struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type AliOss struct {
	AccessKeyId     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Directory       string `yaml:"directory"`
}

type MySQL struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type Detector struct {
	Type                string  `yaml:"type"`
	ModelID             string  `yaml:"model_id"`
	ModelName           string  `yaml:"model_name"`
	Host                string  `yaml:"host"`
	Port                int     `yaml:"port"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	LabelMapPath        string  `yaml:"label_map_path"`
	Timeout             string  `yaml:"timeout"` // default 30s
}

func (d Detector) Verify() error {
	if d.Type != consts.DetectorTFServing.String() {
		return fmt.Errorf("unsupported detector type %q", d.Type)
	}
	if d.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0.0 and 1.0")
	}
	if d.Timeout != "" {
		if _, err := time.ParseDuration(d.Timeout); err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
	}
	return nil
}

func (d Detector) RequestTimeout() time.Duration {
	if d.Timeout == "" {
		return 30 * time.Second
	}
	t, _ := time.ParseDuration(d.Timeout)
	return t
}

type Thumbnail struct {
	Enabled bool    `yaml:"enabled"`
	Ratio   float64 `yaml:"ratio"`
}

// Download limits which urls POST /v1/detect may fetch.
type Download struct {
	AllowedHosts []string `yaml:"allowed_hosts"`
	AllowPrivate bool     `yaml:"allow_private"`
}

type Cache struct {
	SummaryTTL string `yaml:"summary_ttl"`
}
