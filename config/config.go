package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir       string // database and state
	RecordingsDir string // finished audio artifacts
	LogDir        string // subprocess diagnostic logs
	SocketPath    string // daemon control socket

	FFmpegPath    string // capture subsystem binary
	PythonPath    string // interpreter for the speech scripts
	STTScript     string // streaming recognizer script
	DiarizeScript string // offline diarization script

	LogJSON bool
}

type fileConfig struct {
	DataDir       string `toml:"data_dir"`
	RecordingsDir string `toml:"recordings_dir"`
	LogDir        string `toml:"log_dir"`
	SocketPath    string `toml:"socket_path"`
	FFmpegPath    string `toml:"ffmpeg_path"`
	PythonPath    string `toml:"python_path"`
	STTScript     string `toml:"stt_script"`
	DiarizeScript string `toml:"diarize_script"`
	LogJSON       bool   `toml:"log_json"`
}

func Load() (*Config, error) {
	dataDir := defaultDataDir()

	cfg := &Config{
		DataDir:       dataDir,
		RecordingsDir: filepath.Join(dataDir, "recordings"),
		LogDir:        filepath.Join(dataDir, "logs"),
		SocketPath:    filepath.Join(dataDir, "meetingd.sock"),
		FFmpegPath:    "ffmpeg",
		PythonPath:    "python3",
		STTScript:     filepath.Join(dataDir, "scripts", "stream_stt.py"),
		DiarizeScript: filepath.Join(dataDir, "scripts", "diarize.py"),
	}

	if configPath := configFilePath(); configPath != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(configPath, &fc); err == nil {
			if fc.DataDir != "" {
				cfg.DataDir = expandTilde(fc.DataDir)
				cfg.RecordingsDir = filepath.Join(cfg.DataDir, "recordings")
				cfg.LogDir = filepath.Join(cfg.DataDir, "logs")
				cfg.SocketPath = filepath.Join(cfg.DataDir, "meetingd.sock")
			}
			if fc.RecordingsDir != "" {
				cfg.RecordingsDir = expandTilde(fc.RecordingsDir)
			}
			if fc.LogDir != "" {
				cfg.LogDir = expandTilde(fc.LogDir)
			}
			if fc.SocketPath != "" {
				cfg.SocketPath = expandTilde(fc.SocketPath)
			}
			if fc.FFmpegPath != "" {
				cfg.FFmpegPath = expandTilde(fc.FFmpegPath)
			}
			if fc.PythonPath != "" {
				cfg.PythonPath = expandTilde(fc.PythonPath)
			}
			if fc.STTScript != "" {
				cfg.STTScript = expandTilde(fc.STTScript)
			}
			if fc.DiarizeScript != "" {
				cfg.DiarizeScript = expandTilde(fc.DiarizeScript)
			}
			cfg.LogJSON = fc.LogJSON
		}
	}

	applyEnvOverrides(cfg)

	// Ensure directories exist
	for _, dir := range []string{cfg.DataDir, cfg.RecordingsDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEETINGD_DATA_DIR"); v != "" {
		cfg.DataDir = expandTilde(v)
		cfg.RecordingsDir = filepath.Join(cfg.DataDir, "recordings")
		cfg.LogDir = filepath.Join(cfg.DataDir, "logs")
		cfg.SocketPath = filepath.Join(cfg.DataDir, "meetingd.sock")
	}
	if v := os.Getenv("MEETINGD_FFMPEG"); v != "" {
		cfg.FFmpegPath = expandTilde(v)
	}
	if v := os.Getenv("MEETINGD_PYTHON"); v != "" {
		cfg.PythonPath = expandTilde(v)
	}
	if v := os.Getenv("MEETINGD_SOCKET"); v != "" {
		cfg.SocketPath = expandTilde(v)
	}
}

// DBPath returns the SQLite database location inside the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "meetingd.sqlite")
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "meetingd")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "meetingd")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "meetingd")
	}
	return filepath.Join(".", "meetingd-data")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
