package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port         string
		AllowOrigins []string
	}
	Store struct {
		Driver string // memory | file | redis | postgres | sqlite
		Dir    string // file 模式的根目录
		DSN    string // postgres dsn 或 sqlite 文件路径
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level string
	}
	Engine struct {
		QueueSize int
	}
	Hub struct {
		SendBuffer int
	}
}

var C Config

const DefaultPath = "config/config.yaml"

// Load 读 config/config.yaml，环境变量 TRICK_* 覆盖
func Load() error {
	c, err := LoadFile(DefaultPath)
	if err != nil {
		return err
	}
	C = c
	return nil
}

// LoadFile 文件不存在时只用默认值 + 环境变量
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TRICK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.allowOrigins", []string{"*"})
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dir", "data")
	v.SetDefault("store.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("engine.queueSize", 64)
	v.SetDefault("hub.sendBuffer", 64)
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "memory", "file", "redis", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Engine.QueueSize <= 0 {
		return fmt.Errorf("engine.queueSize must be positive")
	}
	if c.Hub.SendBuffer <= 0 {
		return fmt.Errorf("hub.sendBuffer must be positive")
	}
	return nil
}
