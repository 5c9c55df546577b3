package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "MAMMO_CONFIG"
	defaultConfigPath = "config/config.yaml"

	BackendGemini   = "gemini"
	BackendLlamaCpp = "llamacpp"

	DriverMemory = "memory"
)

type Config struct {
	Model    ModelConfig    `yaml:"model"`
	HTTP     HTTPConfig     `yaml:"http"`
	Telegram TelegramConfig `yaml:"telegram"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ModelConfig struct {
	ID             string `yaml:"id"`
	Adapter        string `yaml:"adapter"`
	Backend        string `yaml:"backend"`
	LoadRetries    int    `yaml:"loadRetries"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	Workers        int    `yaml:"workers"`
	PromptsPath    string `yaml:"promptsPath"`
	PromptName     string `yaml:"promptName"`
	ImageMaxSide   int    `yaml:"imageMaxSide"`
	GeminiAPIKey   string `yaml:"geminiApiKey"`
	LlamaCppURL    string `yaml:"llamacppUrl"`

	// UnloadOnRelease выгружать модель с llama-server при остановке.
	UnloadOnRelease bool `yaml:"unloadOnRelease"`
}

type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	CORSOrigin string `yaml:"corsOrigin"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Load собирает конфигурацию: значения по умолчанию, YAML-файл, затем переменные окружения.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := defaultConfig()

	path, explicit := os.LookupEnv(configPathEnv)
	if !explicit {
		path = defaultConfigPath
	}
	if err := cfg.readFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"IMAGE_TEXT_TO_TEXT_MODEL": &c.Model.ID,
		"MODEL_ADAPTER":            &c.Model.Adapter,
		"MODEL_BACKEND":            &c.Model.Backend,
		"GEMINI_API_KEY":           &c.Model.GeminiAPIKey,
		"LLAMACPP_URL":             &c.Model.LlamaCppURL,
		"PROMPTS_PATH":             &c.Model.PromptsPath,
		"HTTP_ADDR":                &c.HTTP.Addr,
		"CORS_ORIGIN":              &c.HTTP.CORSOrigin,
		"TELEGRAM_TOKEN":           &c.Telegram.Token,
		"DATABASE_DRIVER":          &c.Database.Driver,
		"DATABASE_URL":             &c.Database.URL,
		"LOG_LEVEL":                &c.Log.Level,
		"LOG_FILE":                 &c.Log.File,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MODEL_LOAD_RETRIES":    &c.Model.LoadRetries,
		"MODEL_TIMEOUT_SECONDS": &c.Model.TimeoutSeconds,
		"MODEL_WORKERS":         &c.Model.Workers,
		"IMAGE_MAX_SIDE":        &c.Model.ImageMaxSide,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"LOG_CONSOLE":             &c.Log.Console,
		"LLAMACPP_UNLOAD_ON_EXIT": &c.Model.UnloadOnRelease,
	}
	for key, dst := range bools {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// Validate проверяет обязательные поля и диапазоны.
func (c *Config) Validate() error {
	var errs []error

	if c.Model.ID == "" {
		errs = append(errs, errors.New("IMAGE_TEXT_TO_TEXT_MODEL is required"))
	}
	if c.Model.LoadRetries < 1 {
		errs = append(errs, fmt.Errorf("model load retries must be positive, got %d", c.Model.LoadRetries))
	}
	if c.Model.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("model timeout must be positive, got %d", c.Model.TimeoutSeconds))
	}
	if c.Model.Workers < 1 {
		errs = append(errs, fmt.Errorf("model workers must be positive, got %d", c.Model.Workers))
	}

	switch c.Model.Backend {
	case BackendGemini:
		if c.Model.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini backend"))
		}
	case BackendLlamaCpp:
		if c.Model.LlamaCppURL == "" {
			errs = append(errs, errors.New("LLAMACPP_URL is required for the llamacpp backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model backend %q", c.Model.Backend))
	}

	switch c.Database.Driver {
	case DriverMemory:
	case "sqlite", "pgx", "postgres":
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for driver %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	return errors.Join(errs...)
}

func defaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Backend:        BackendLlamaCpp,
			LoadRetries:    3,
			TimeoutSeconds: 120,
			Workers:        2,
			PromptsPath:    "config/prompts.yaml",
			PromptName:     "mammography_analysis",
			LlamaCppURL:    "http://localhost:8080",
		},
		HTTP: HTTPConfig{
			Addr:       ":5001",
			CORSOrigin: "*",
		},
		Database: DatabaseConfig{Driver: DriverMemory},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}
