package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`

	Body struct {
		// ThrottleMS bounds how often an editable body re-encodes.
		ThrottleMS int `yaml:"throttle_ms"`
	} `yaml:"body"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Server.Listen = "127.0.0.1:45471"
	c.Body.ThrottleMS = 500
	c.Sqlite.Dsn = "mockbody.sqlite3"
	c.Sqlite.Prefix = "mockbody_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	c.Log.File = "mockbody.log"
	return c
}

// Load reads a yaml config file on top of the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}
