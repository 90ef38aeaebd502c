package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"barobak/internal/backup"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type BackupServiceConfig struct {
	SaveFolder              string `mapstructure:"BarotraumaSaveFileFolder"`
	BackupFolder            string `mapstructure:"BarotraumaBackupFolder"`
	BackupSingleplayerSaves bool   `mapstructure:"BackupSingleplayerSaves"`
	BackupMultiplayerSaves  bool   `mapstructure:"BackupMultiplayerSaves"`
	BackupStrategy          string `mapstructure:"BackupStrategy"`
}

type Config struct {
	DaemonPort      int                 `mapstructure:"daemon_port"`
	BufferSize      int                 `mapstructure:"buffer_size"`
	DBPath          string              `mapstructure:"db_path"`
	CheckForUpdates bool                `mapstructure:"check_for_updates"`
	BackupService   BackupServiceConfig `mapstructure:"BackupService"`
}

var Default = Config{
	DaemonPort:      9011,
	BufferSize:      64,
	DBPath:          "barobak.db",
	CheckForUpdates: true,
	BackupService: BackupServiceConfig{
		BackupStrategy: string(backup.StrategyArchive),
	},
}

// Dir is the per-user configuration directory, ~/.barobak.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".barobak"), nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	cfg, err := load(v)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(configDir, cfg.DBPath)
	}

	return cfg, nil
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("buffer_size", Default.BufferSize)
	v.SetDefault("db_path", Default.DBPath)
	v.SetDefault("check_for_updates", Default.CheckForUpdates)
	v.SetDefault("BackupService.BarotraumaSaveFileFolder", "")
	v.SetDefault("BackupService.BarotraumaBackupFolder", "")
	v.SetDefault("BackupService.BackupSingleplayerSaves", false)
	v.SetDefault("BackupService.BackupMultiplayerSaves", false)
	v.SetDefault("BackupService.BackupStrategy", Default.BackupService.BackupStrategy)

	v.SetEnvPrefix("BAROBAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate expands environment variables in the folder settings and checks
// that they name existing directories.
func (c *Config) Validate() error {
	bs := &c.BackupService

	if strings.TrimSpace(bs.SaveFolder) == "" {
		return fmt.Errorf("%w: BarotraumaSaveFileFolder is not set", ErrInvalidConfig)
	}

	bs.SaveFolder = ExpandEnv(bs.SaveFolder)
	if !isDir(bs.SaveFolder) {
		return fmt.Errorf("%w: BarotraumaSaveFileFolder '%s' cannot be found or is not a directory",
			ErrInvalidConfig, bs.SaveFolder)
	}

	if bs.BackupFolder != "" {
		bs.BackupFolder = ExpandEnv(bs.BackupFolder)
		if !isDir(bs.BackupFolder) {
			return fmt.Errorf("%w: BarotraumaBackupFolder '%s' cannot be found or is not a directory",
				ErrInvalidConfig, bs.BackupFolder)
		}
	}

	if _, err := backup.ParseStrategy(bs.BackupStrategy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

func (c *Config) Strategy() backup.Strategy {
	s, _ := backup.ParseStrategy(c.BackupService.BackupStrategy)
	return s
}

var windowsEnvRef = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_()]*)%`)

// ExpandEnv expands $VAR, ${VAR} and %VAR% references. Unknown %VAR%
// references are left as written.
func ExpandEnv(s string) string {
	s = windowsEnvRef.ReplaceAllStringFunc(s, func(ref string) string {
		if val, ok := os.LookupEnv(ref[1 : len(ref)-1]); ok {
			return val
		}
		return ref
	})
	return os.ExpandEnv(s)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
