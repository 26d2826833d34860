package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Recording   RecordingConfig
	Scanner     ScannerConfig
	Control     ControlConfig
	LiveKit     LiveKitConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port        int
	Host        string
	ReadTimeout time.Duration
}

// RecordingConfig: параметры записи экрана.
type RecordingConfig struct {
	ProductName    string // префикс имени файла
	OutputDir      string // каталог "загрузок" для сохранённых записей
	Width          int
	Height         int
	FrameRate      int
	SampleRate     int
	VideoBitRate   int
	AudioBitRate   int
	Timeslice      time.Duration // интервал выдачи данных рекордером
	DisplayTick    time.Duration
	AcquireTimeout time.Duration
}

// ScannerConfig: параметры сканера QR.
type ScannerConfig struct {
	Width          int
	Height         int
	SampleInterval time.Duration
	ConfirmHits    int
	StartDelay     time.Duration
	PlaybackWait   time.Duration
}

// ControlConfig: доступ к локальному API хоста.
type ControlConfig struct {
	Secret    string
	Issuer    string
	TokenTTL  time.Duration
	TokenFile string // сюда пишется токен для UI-оболочки, права 0600
}

// DefaultControlSecret годится только для разработки.
const DefaultControlSecret = "change-me-control-secret"

type LiveKitConfig struct {
	URL           string
	APIKey        string
	APISecret     string
	DefaultServer string // сервер по умолчанию для QR с одним именем комнаты
}

// DatabaseConfig: каталог записей. Пустой DSN отключает Postgres.
type DatabaseConfig struct {
	DSN            string
	MaxConnections int
}

// RedisConfig: история сканирований. Пустой Addr отключает Redis.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	HistoryTTL time.Duration
	HistoryLen int
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	// Загрузка .env файла (если существует)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8787),
			Host:        getEnv("SERVER_HOST", "127.0.0.1"),
			ReadTimeout: getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		},
		Recording: RecordingConfig{
			ProductName:    getEnv("RECORDING_PRODUCT_NAME", "medcom-meeting"),
			OutputDir:      getEnv("RECORDING_OUTPUT_DIR", defaultDownloadsDir()),
			Width:          getEnvAsInt("RECORDING_WIDTH", 1920),
			Height:         getEnvAsInt("RECORDING_HEIGHT", 1080),
			FrameRate:      getEnvAsInt("RECORDING_FRAME_RATE", 30),
			SampleRate:     getEnvAsInt("RECORDING_SAMPLE_RATE", 44100),
			VideoBitRate:   getEnvAsInt("RECORDING_VIDEO_BITRATE", 2_500_000),
			AudioBitRate:   getEnvAsInt("RECORDING_AUDIO_BITRATE", 128_000),
			Timeslice:      getEnvAsDuration("RECORDING_TIMESLICE", time.Second),
			DisplayTick:    getEnvAsDuration("RECORDING_DISPLAY_TICK", time.Second),
			AcquireTimeout: getEnvAsDuration("RECORDING_ACQUIRE_TIMEOUT", 2*time.Minute),
		},
		Scanner: ScannerConfig{
			Width:          getEnvAsInt("SCANNER_WIDTH", 640),
			Height:         getEnvAsInt("SCANNER_HEIGHT", 480),
			SampleInterval: getEnvAsDuration("SCANNER_SAMPLE_INTERVAL", 100*time.Millisecond),
			ConfirmHits:    getEnvAsInt("SCANNER_CONFIRM_HITS", 3),
			StartDelay:     getEnvAsDuration("SCANNER_START_DELAY", 200*time.Millisecond),
			PlaybackWait:   getEnvAsDuration("SCANNER_PLAYBACK_WAIT", 5*time.Second),
		},
		Control: ControlConfig{
			Secret:    getEnv("CONTROL_SECRET", DefaultControlSecret),
			Issuer:    getEnv("CONTROL_ISSUER", "medcom-capture"),
			TokenTTL:  getEnvAsDuration("CONTROL_TOKEN_TTL", 12*time.Hour),
			TokenFile: getEnv("CONTROL_TOKEN_FILE", defaultTokenFile()),
		},
		LiveKit: LiveKitConfig{
			URL:           getEnv("LIVEKIT_URL", "ws://localhost:7880"),
			APIKey:        getEnv("LIVEKIT_API_KEY", "devkey"),
			APISecret:     getEnv("LIVEKIT_API_SECRET", "secret"),
			DefaultServer: getEnv("DEFAULT_SERVER_URL", "https://meet.jit.si"),
		},
		Database: DatabaseConfig{
			DSN:            getEnv("DATABASE_DSN", ""),
			MaxConnections: getEnvAsInt("DATABASE_MAX_CONNECTIONS", 4),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			HistoryTTL: getEnvAsDuration("SCAN_HISTORY_TTL", 7*24*time.Hour),
			HistoryLen: getEnvAsInt("SCAN_HISTORY_LEN", 20),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Control.Secret == "" {
		return fmt.Errorf("control secret must be set")
	}
	if c.Control.Secret == DefaultControlSecret && c.Environment != "development" {
		return fmt.Errorf("default control secret is not allowed in %s", c.Environment)
	}
	if c.Control.TokenFile == "" {
		return fmt.Errorf("control token file must be set")
	}
	if c.Recording.OutputDir == "" {
		return fmt.Errorf("recording output dir must be set")
	}
	if strings.ContainsAny(c.Recording.ProductName, `/\:`) || c.Recording.ProductName == "" {
		return fmt.Errorf("invalid recording product name %q", c.Recording.ProductName)
	}
	if c.Recording.Timeslice <= 0 || c.Recording.DisplayTick <= 0 {
		return fmt.Errorf("recording intervals must be positive")
	}
	if c.Recording.AcquireTimeout <= 0 {
		return fmt.Errorf("recording acquire timeout must be positive")
	}
	if c.Scanner.SampleInterval <= 0 {
		return fmt.Errorf("scanner sample interval must be positive")
	}
	if c.Scanner.PlaybackWait <= 0 {
		return fmt.Errorf("scanner playback wait must be positive")
	}
	if c.Scanner.ConfirmHits < 1 {
		return fmt.Errorf("scanner confirm hits must be at least 1")
	}
	if c.Scanner.Width <= 0 || c.Scanner.Height <= 0 {
		return fmt.Errorf("scanner resolution must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// defaultDownloadsDir возвращает ~/Downloads, как это делает браузер при скачивании
func defaultDownloadsDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return os.TempDir()
	}
	return filepath.Join(home, "Downloads")
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "medcom-capture", "control.token")
}
