package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Storage backends
	StorageFS    = "fs"
	StorageMinio = "minio"

	// Default values
	DefaultPort             = 8080
	DefaultHost             = "127.0.0.1"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
	DefaultMaxFileSize      = 50 * 1024 * 1024 // 50MB
	DefaultDBDriver         = "sqlite"
	DefaultAutosaveInterval = 30 * time.Second
	DefaultSettleTimeout    = 5 * time.Second
	DefaultRenderCacheSize  = 32
	DefaultRemoteTimeout    = 60 * time.Second

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "MCP_PDF_TPL"
)

// Config holds all configuration for the template service
type Config struct {
	// Server configuration
	Mode        string // "server" or "stdio"
	Host        string
	Port        int
	CORSOrigins []string

	// Data configuration
	DataDirectory     string
	DownloadDirectory string
	DBDriver          string // "sqlite" or "postgres"
	DBDSN             string
	Storage           string // "fs" or "minio"
	Minio             MinioConfig

	// Editing and generation
	AutosaveInterval time.Duration
	SettleTimeout    time.Duration
	RenderCacheSize  int
	RemoteGenerator  string // base URL; empty generates locally
	RemoteTimeout    time.Duration
	BrandName        string
	BrandImage       string
	BrandColor       string

	// Application configuration
	ConfigFile  string
	Version     string
	ServerName  string
	LogLevel    string
	LogFormat   string // "console" or "json"
	MaxFileSize int64  // Maximum source document size in bytes
}

// MinioConfig holds the object store connection
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}
	dataDir := filepath.Join(currentDir, "data")

	return &Config{
		Mode:             ModeStdio, // Default to stdio mode for MCP compatibility
		Host:             DefaultHost,
		Port:             DefaultPort,
		CORSOrigins:      []string{"*"},
		DataDirectory:    dataDir,
		DBDriver:         DefaultDBDriver,
		Storage:          StorageFS,
		Minio:            MinioConfig{Bucket: "templates"},
		AutosaveInterval: DefaultAutosaveInterval,
		SettleTimeout:    DefaultSettleTimeout,
		RenderCacheSize:  DefaultRenderCacheSize,
		RemoteTimeout:    DefaultRemoteTimeout,
		BrandColor:       "#1F3A5F",
		Version:          "1.0.0",
		ServerName:       "mcp-pdf-templates",
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		MaxFileSize:      DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags, environment and the optional
// config file, and returns a validated configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	populateConfigFromViper(cfg)
	cfg.applyDerivedDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("cors-origins", cfg.CORSOrigins)
	viper.SetDefault("data-dir", cfg.DataDirectory)
	viper.SetDefault("download-dir", "")
	viper.SetDefault("db-driver", cfg.DBDriver)
	viper.SetDefault("db-dsn", "")
	viper.SetDefault("storage", cfg.Storage)
	viper.SetDefault("minio.endpoint", cfg.Minio.Endpoint)
	viper.SetDefault("minio.access-key", "")
	viper.SetDefault("minio.secret-key", "")
	viper.SetDefault("minio.bucket", cfg.Minio.Bucket)
	viper.SetDefault("minio.ssl", false)
	viper.SetDefault("autosave", cfg.AutosaveInterval)
	viper.SetDefault("settle-timeout", cfg.SettleTimeout)
	viper.SetDefault("render-cache", cfg.RenderCacheSize)
	viper.SetDefault("remote-generator", "")
	viper.SetDefault("remote-timeout", cfg.RemoteTimeout)
	viper.SetDefault("brand-name", "")
	viper.SetDefault("brand-image", "")
	viper.SetDefault("brand-color", cfg.BrandColor)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("logformat", cfg.LogFormat)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("config", "", "Optional YAML config file")
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.StringSlice("cors-origins", cfg.CORSOrigins, "Allowed CORS origins (server mode only)")
	pflag.String("data-dir", cfg.DataDirectory, "Directory for the local object store and sqlite database")
	pflag.String("download-dir", "", "Directory generated documents are delivered to (default <data-dir>/downloads)")
	pflag.String("db-driver", cfg.DBDriver, "Database driver: 'sqlite' or 'postgres'")
	pflag.String("db-dsn", "", "Database DSN (default <data-dir>/templates.db for sqlite)")
	pflag.String("storage", cfg.Storage, "Object storage backend: 'fs' or 'minio'")
	pflag.String("minio-endpoint", cfg.Minio.Endpoint, "MinIO endpoint host:port")
	pflag.String("minio-bucket", cfg.Minio.Bucket, "MinIO bucket")
	pflag.Bool("minio-ssl", false, "Use TLS for MinIO")
	pflag.Duration("autosave", cfg.AutosaveInterval, "Editor autosave interval (0 disables)")
	pflag.Duration("settle-timeout", cfg.SettleTimeout, "How long a render waits for its assets")
	pflag.Int("render-cache", cfg.RenderCacheSize, "Number of rendered pages kept in memory")
	pflag.String("remote-generator", "", "Base URL of a remote instance to generate documents with")
	pflag.Duration("remote-timeout", cfg.RemoteTimeout, "Timeout of remote generation requests")
	pflag.String("brand-name", "", "Brand name drawn in the page header")
	pflag.String("brand-image", "", "PNG drawn in the page header instead of the brand name")
	pflag.String("brand-color", cfg.BrandColor, "Brand name color")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("logformat", cfg.LogFormat, "Log format (console, json)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum source document size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"config", "mode", "host", "port", "cors-origins", "data-dir", "download-dir",
		"db-driver", "db-dsn", "storage", "autosave", "settle-timeout", "render-cache",
		"remote-generator", "remote-timeout", "brand-name", "brand-image", "brand-color",
		"loglevel", "logformat", "maxfilesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
	_ = viper.BindPFlag("minio.endpoint", pflag.Lookup("minio-endpoint"))
	_ = viper.BindPFlag("minio.bucket", pflag.Lookup("minio-bucket"))
	_ = viper.BindPFlag("minio.ssl", pflag.Lookup("minio-ssl"))
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Templates - map fields onto documents and generate filled PDFs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                             # stdio mode, ./data (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081                   # HTTP API\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --db-driver=postgres --db-dsn=postgres://... # shared database\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  Every flag can be set as %s_<FLAG>, e.g. %s_DB_DSN, %s_MINIO_ACCESS_KEY\n",
			envPrefix, envPrefix, envPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.ConfigFile = viper.GetString("config")
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.CORSOrigins = viper.GetStringSlice("cors-origins")
	cfg.DataDirectory = viper.GetString("data-dir")
	cfg.DownloadDirectory = viper.GetString("download-dir")
	cfg.DBDriver = viper.GetString("db-driver")
	cfg.DBDSN = viper.GetString("db-dsn")
	cfg.Storage = viper.GetString("storage")
	cfg.Minio = MinioConfig{
		Endpoint:  viper.GetString("minio.endpoint"),
		AccessKey: viper.GetString("minio.access-key"),
		SecretKey: viper.GetString("minio.secret-key"),
		Bucket:    viper.GetString("minio.bucket"),
		UseSSL:    viper.GetBool("minio.ssl"),
	}
	cfg.AutosaveInterval = viper.GetDuration("autosave")
	cfg.SettleTimeout = viper.GetDuration("settle-timeout")
	cfg.RenderCacheSize = viper.GetInt("render-cache")
	cfg.RemoteGenerator = viper.GetString("remote-generator")
	cfg.RemoteTimeout = viper.GetDuration("remote-timeout")
	cfg.BrandName = viper.GetString("brand-name")
	cfg.BrandImage = viper.GetString("brand-image")
	cfg.BrandColor = viper.GetString("brand-color")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.LogFormat = viper.GetString("logformat")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// applyDerivedDefaults fills paths that depend on the data directory
func (c *Config) applyDerivedDefaults() {
	if c.DataDirectory != "" {
		if expandedPath, err := filepath.Abs(c.DataDirectory); err == nil {
			c.DataDirectory = expandedPath
		}
	}
	if c.DownloadDirectory == "" && c.DataDirectory != "" {
		c.DownloadDirectory = filepath.Join(c.DataDirectory, "downloads")
	}
	if c.DBDSN == "" && c.DBDriver == DefaultDBDriver && c.DataDirectory != "" {
		c.DBDSN = filepath.Join(c.DataDirectory, "templates.db")
	}
}

// ObjectRoot is the root of the filesystem object store
func (c *Config) ObjectRoot() string {
	return filepath.Join(c.DataDirectory, "objects")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate data directory
	if c.DataDirectory == "" {
		return errors.New("data directory cannot be empty")
	}
	if _, err := os.Stat(c.DataDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DataDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create data directory %s: %w", c.DataDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access data directory %s: %w", c.DataDirectory, err)
	}

	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("postgres requires a DSN")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite or postgres)", c.DBDriver)
	}

	switch c.Storage {
	case StorageFS:
	case StorageMinio:
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return errors.New("minio storage requires an endpoint and a bucket")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be fs or minio)", c.Storage)
	}

	if c.AutosaveInterval < 0 {
		return errors.New("autosave interval cannot be negative")
	}
	if c.SettleTimeout <= 0 {
		return errors.New("settle timeout must be positive")
	}
	if c.RemoteGenerator != "" && !strings.HasPrefix(c.RemoteGenerator, "http://") && !strings.HasPrefix(c.RemoteGenerator, "https://") {
		return fmt.Errorf("remote generator must be an http(s) URL: %s", c.RemoteGenerator)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.LogFormat)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. Secrets
// are never included.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Address: %s, DataDirectory: %s, DB: %s, Storage: %s, Remote: %q, LogLevel: %s}",
		c.Mode, c.Address(), c.DataDirectory, c.DBDriver, c.Storage, c.RemoteGenerator, c.LogLevel)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
