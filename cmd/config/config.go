package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-tasks/pkg/service"
	tasksync "github.com/mattsolo1/grove-tasks/pkg/sync"
)

var (
	cfgFile  string
	logLevel string
)

func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "tasks")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("TASKS")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server_url", "http://localhost:3000")
	viper.SetDefault("data_dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "tasks"))
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("task_root", ".tasks")
	viper.SetDefault("task_ext", ".md")

	// A missing config file is fine; everything has a default or an env var.
	_ = viper.ReadInConfig()
}

// NewLogger builds the stderr logger used by every command.
func NewLogger() (*logrus.Logger, error) {
	level := logLevel
	if level == "" {
		level = viper.GetString("log_level")
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(lvl)
	return logger, nil
}

// LoadServiceConfig reads the service settings from viper.
func LoadServiceConfig(logger logrus.FieldLogger) (*service.Config, error) {
	scan := tasksync.DefaultScanConfig()
	if raw := viper.GetStringMap("scan"); len(raw) > 0 {
		decoded, err := tasksync.DecodeScanConfig(raw)
		if err != nil {
			return nil, fmt.Errorf("config scan: %w", err)
		}
		scan = decoded
	}

	return &service.Config{
		ServerURL: viper.GetString("server_url"),
		Token:     viper.GetString("token"),
		DataDir:   viper.GetString("data_dir"),
		TaskRoot:  viper.GetString("task_root"),
		TaskExt:   viper.GetString("task_ext"),
		Scan:      scan,
		Logger:    logger,
	}, nil
}

func InitService() (*service.Service, error) {
	logger, err := NewLogger()
	if err != nil {
		return nil, err
	}
	config, err := LoadServiceConfig(logger)
	if err != nil {
		return nil, err
	}

	svc, err := service.New(config, nil)
	if err != nil {
		return nil, err
	}
	logger.WithField("server", config.ServerURL).WithField("data_dir", config.DataDir).Debug("service ready")
	return svc, nil
}

func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/tasks/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("server", "", "notes server URL")
	cmd.PersistentFlags().String("token", "", "bearer token for the notes server")
	cobra.CheckErr(viper.BindPFlag("server_url", cmd.PersistentFlags().Lookup("server")))
	cobra.CheckErr(viper.BindPFlag("token", cmd.PersistentFlags().Lookup("token")))
}
