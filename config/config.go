package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "IMAGETOOLS"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Detect    DetectConfig    `mapstructure:"detect"`
	Resize    ResizeConfig    `mapstructure:"resize"`
	Composite CompositeConfig `mapstructure:"composite"`
	Session   SessionConfig   `mapstructure:"session"`
}

type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	Mode          string        `mapstructure:"mode"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
	AllowedTypes  []string      `mapstructure:"allowed_types"`
}

type DetectConfig struct {
	Provider  string        `mapstructure:"provider"` // mock | http
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MockDelay time.Duration `mapstructure:"mock_delay"`
	CacheSize int           `mapstructure:"cache_size"`
}

type ResizeConfig struct {
	Filter         string `mapstructure:"filter"` // nearest | bilinear | bicubic | mitchell | lanczos2 | lanczos3
	Format         string `mapstructure:"format"` // jpeg | png
	DefaultQuality int    `mapstructure:"default_quality"`
	MaxPixels      int64  `mapstructure:"max_pixels"` // 输出 width*height 上限
}

type CompositeConfig struct {
	Interpolator string `mapstructure:"interpolator"` // nearest | approx-bilinear | bilinear | catmull-rom
}

type SessionConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	SweepSpec string        `mapstructure:"sweep_spec"`
}

// Load 从 YAML 文件加载配置，环境变量 IMAGETOOLS_* 优先；同目录下的 .env 会先被读入环境
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 加载配置；文件不存在时退回默认配置，文件存在但读取或解析失败时返回错误
func New(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(configPath)
}

// Default 默认配置，同样受环境变量覆盖
func Default() *Config {
	var cfg Config
	_ = newViper().Unmarshal(&cfg)
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_size", 10*1024*1024)
	v.SetDefault("server.allowed_types", []string{"image/png", "image/jpeg", "image/webp"})

	v.SetDefault("detect.provider", "mock")
	v.SetDefault("detect.endpoint", "")
	v.SetDefault("detect.timeout", 30*time.Second)
	v.SetDefault("detect.mock_delay", 2*time.Second)
	v.SetDefault("detect.cache_size", 128)

	v.SetDefault("resize.filter", "lanczos3")
	v.SetDefault("resize.format", "jpeg")
	v.SetDefault("resize.default_quality", 90)
	v.SetDefault("resize.max_pixels", 8192*8192)

	v.SetDefault("composite.interpolator", "bilinear")

	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.sweep_spec", "@every 1m")
}
