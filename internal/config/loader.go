package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/reqtrace/reqtrace/internal/db"
)

// Server holds the HTTP and storage configuration.
type Server struct {
	Addr      string
	DataDir   string
	ExportDir string
	Database  db.Config
}

// DefaultServer returns the defaults used when no config file is present.
func DefaultServer() Server {
	return Server{
		Addr:      ":8080",
		DataDir:   "./data/projects",
		ExportDir: "./data/exports",
		Database:  db.DefaultConfig(),
	}
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Server, error) {
	cfg := DefaultServer()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()           // allow environment overrides
	v.SetEnvPrefix("REQTRACE") // map env vars like REQTRACE_ADDR

	v.BindEnv("server.addr")
	v.BindEnv("server.data_dir")
	v.BindEnv("server.export_dir")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("server.addr") {
		cfg.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.data_dir") {
		cfg.DataDir = v.GetString("server.data_dir")
	}
	if v.IsSet("server.export_dir") {
		cfg.ExportDir = v.GetString("server.export_dir")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}
