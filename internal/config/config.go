package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every configuration section of the portal backend.
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Chat     ChatConfig
	Log      LogConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}
	// Chat requests wait for the model inside the request timeout.
	if server.RequestTimeout <= ai.Timeout {
		return nil, fmt.Errorf("HTTP_REQUEST_TIMEOUT (%s) must be longer than AI_TIMEOUT (%s)", server.RequestTimeout, ai.Timeout)
	}

	database, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Database: database,
		Auth:     auth,
		Storage:  storage,
		Chat:     chat,
		Log:      logCfg,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5000"
	}

	timeout, err := parseDurationEnv("HTTP_REQUEST_TIMEOUT", 60*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	origins := parseListEnv("CORS_ALLOWED_ORIGINS")
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// ":5000" and "127.0.0.1:5000" are accepted as-is.
		if _, _, err := net.SplitHostPort(port); err != nil {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	return ServerConfig{Addr: addr, RequestTimeout: timeout, AllowedOrigins: origins}, nil
}

// AIConfig describes the text-generation model used by the responder.
type AIConfig struct {
	APIKey           string
	AccessKey        string
	SecretKey        string
	Model            string
	BaseURL          string
	Region           string
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	Timeout          time.Duration
	SentimentEnabled bool
}

// Enabled reports whether credentials and a model name were supplied.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_MODEL and ARK_API_KEY (or ARK_ACCESS_KEY + ARK_SECRET_KEY)")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		val := 0.7
		temperature = &val
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens == nil {
		val := 500
		maxTokens = &val
	}

	timeout, err := parseDurationEnv("AI_TIMEOUT", 20*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	sentiment, err := parseBoolEnv("AI_SENTIMENT_ENABLED", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:           strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:        strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:        strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:            strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:          getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:           getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:      temperature,
		TopP:             topP,
		MaxTokens:        maxTokens,
		Timeout:          timeout,
		SentimentEnabled: sentiment,
	}, nil
}

// DatabaseConfig selects and describes the relational store.
type DatabaseConfig struct {
	// Type is "memory" or "postgres".
	Type     string
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns a gorm/pgx connection string. DATABASE_URL wins over the
// individual DB_* variables.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	storageType := strings.ToLower(getEnvOrDefault("STORAGE_TYPE", "memory"))
	if storageType != "memory" && storageType != "postgres" {
		return DatabaseConfig{}, fmt.Errorf("invalid STORAGE_TYPE value %q: want memory or postgres", storageType)
	}

	cfg := DatabaseConfig{
		Type:     storageType,
		URL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     strings.TrimSpace(os.Getenv("DB_USER")),
		Password: strings.TrimSpace(os.Getenv("DB_PASSWORD")),
		Name:     strings.TrimSpace(os.Getenv("DB_NAME")),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	if storageType == "postgres" && cfg.URL == "" && (cfg.User == "" || cfg.Name == "") {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL or DB_USER/DB_NAME is required when STORAGE_TYPE=postgres")
	}
	return cfg, nil
}

// AuthConfig describes bearer-token issuance and verification.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	// DevLogin lets members sign in with an email alone. Never enable in production.
	DevLogin bool
	// AdminEmail and AdminPassword seed the review-panel account at startup.
	AdminEmail    string
	AdminPassword string
}

func loadAuthConfig() (AuthConfig, error) {
	ttl, err := parseDurationEnv("JWT_TTL", 24*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return AuthConfig{}, fmt.Errorf("JWT_SECRET is required")
	}

	devLogin, err := parseBoolEnv("AUTH_DEV_LOGIN", false)
	if err != nil {
		return AuthConfig{}, err
	}

	adminEmail := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail != "" && adminPassword == "" {
		return AuthConfig{}, fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}

	return AuthConfig{
		JWTSecret:     secret,
		TokenTTL:      ttl,
		DevLogin:      devLogin,
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
	}, nil
}

// StorageConfig describes the MinIO bucket holding member documents.
type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	MaxUploadBytes int64
}

// Enabled reports whether an object store endpoint was configured.
func (c StorageConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

func loadStorageConfig() (StorageConfig, error) {
	useSSL, err := parseBoolEnv("MINIO_USE_SSL", false)
	if err != nil {
		return StorageConfig{}, err
	}

	maxUpload := int64(10 << 20)
	if override, err := parseOptionalIntEnv("UPLOAD_MAX_BYTES"); err != nil {
		return StorageConfig{}, err
	} else if override != nil && *override > 0 {
		maxUpload = int64(*override)
	}

	return StorageConfig{
		Endpoint:       strings.TrimSpace(os.Getenv("MINIO_ENDPOINT")),
		AccessKey:      strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY")),
		Bucket:         getEnvOrDefault("MINIO_BUCKET", "member-documents"),
		UseSSL:         useSSL,
		MaxUploadBytes: maxUpload,
	}, nil
}

// ChatConfig bounds chat requests.
type ChatConfig struct {
	HistoryLimit     int
	MaxHistoryLimit  int
	MaxMessageLength int
}

func loadChatConfig() (ChatConfig, error) {
	cfg := ChatConfig{HistoryLimit: 50, MaxHistoryLimit: 200, MaxMessageLength: 4000}

	if v, err := parseOptionalIntEnv("CHAT_HISTORY_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.HistoryLimit = *v
	}

	if v, err := parseOptionalIntEnv("CHAT_MAX_MESSAGE_LENGTH"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.MaxMessageLength = *v
	}

	if cfg.HistoryLimit > cfg.MaxHistoryLimit {
		cfg.MaxHistoryLimit = cfg.HistoryLimit
	}
	return cfg, nil
}

// LogConfig controls the zap/lumberjack sinks.
type LogConfig struct {
	Dir     string
	Level   string
	Console bool
}

func loadLogConfig() (LogConfig, error) {
	console, err := parseBoolEnv("LOG_CONSOLE", true)
	if err != nil {
		return LogConfig{}, err
	}

	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q", level)
	}

	return LogConfig{
		Dir:     getEnvOrDefault("LOG_DIR", "./logs"),
		Level:   level,
		Console: console,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
