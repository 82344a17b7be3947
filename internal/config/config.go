package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ==================== Config 应用配置 ====================

// Config 应用配置
// 先读可选的 YAML 文件，再用环境变量覆盖
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type AnalyticsConfig struct {
	BaseURL string `yaml:"base_url"`
}

// DSN 拼接 Postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Load 加载配置
// path 为空或文件不存在时只用默认值 + 环境变量
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "shopsync",
			SSLMode: "disable",
		},
		Analytics: AnalyticsConfig{BaseURL: "http://localhost:9090"},
	}

	if path != "" {
		file, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 环境变量覆盖
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Analytics.BaseURL = getEnv("ANALYTICS_BASE_URL", cfg.Analytics.BaseURL)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
