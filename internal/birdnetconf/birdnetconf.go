// Package birdnetconf reads a BirdNET-Go config.yaml to find where that
// application keeps its detection database and audio clips.
package birdnetconf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
)

// Database types reported by Info.
const (
	DatabaseSQLite  = "sqlite"
	DatabaseMySQL   = "mysql"
	DatabaseUnknown = "unknown"
)

const defaultMySQLPort = 3306

var configNames = []string{"config.yaml", "config.yml"}

// upstreamConfig mirrors the subset of BirdNET-Go settings this service needs.
type upstreamConfig struct {
	Output struct {
		SQLite struct {
			Enabled bool   `yaml:"enabled"`
			Path    string `yaml:"path"`
		} `yaml:"sqlite"`
		MySQL struct {
			Enabled  bool   `yaml:"enabled"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
			Database string `yaml:"database"`
			Host     string `yaml:"host"`
			Port     string `yaml:"port"`
		} `yaml:"mysql"`
	} `yaml:"output"`
	Realtime struct {
		Audio struct {
			Export struct {
				Path string `yaml:"path"`
			} `yaml:"export"`
		} `yaml:"audio"`
	} `yaml:"realtime"`
}

// MySQLInfo holds the upstream MySQL connection settings.
type MySQLInfo struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Info describes the upstream database and clip locations.
type Info struct {
	ConfigPath   string
	DatabaseType string
	// SQLitePath is the configured path, SQLiteResolved the existing file it
	// points at, or empty when no such file exists.
	SQLitePath     string
	SQLiteResolved string
	MySQL          MySQLInfo
	ClipsPath      string
}

// DefaultSearchDirs returns the directories BirdNET-Go installs usually live in.
func DefaultSearchDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, "birdnet-go-app"),
			filepath.Join(home, "BirdNET-Go"),
		)
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	return dirs
}

// Find locates a BirdNET-Go config file. When databasePath names an existing
// file, its parent and grandparent directories are tried first, then each of
// searchDirs. Every candidate directory is also checked for a config/ subdirectory.
func Find(databasePath string, searchDirs []string) (string, bool) {
	if databasePath != "" {
		if abs, err := filepath.Abs(databasePath); err == nil && isFile(abs) {
			parent := filepath.Dir(abs)
			for _, dir := range []string{parent, filepath.Dir(parent)} {
				if path, ok := findIn(dir); ok {
					return path, true
				}
			}
		}
	}

	for _, dir := range searchDirs {
		if !isDir(dir) {
			continue
		}
		if path, ok := findIn(dir); ok {
			return path, true
		}
	}
	return "", false
}

func findIn(dir string) (string, bool) {
	for _, name := range configNames {
		for _, base := range []string{dir, filepath.Join(dir, "config")} {
			candidate := filepath.Join(base, name)
			if isFile(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

// Load parses the config at path and resolves database and clip locations
// relative to the application root.
func Load(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("birdnetconf").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var cfg upstreamConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.New(err).
			Component("birdnetconf").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}

	return resolve(path, &cfg), nil
}

// Discover finds and loads the upstream config. An explicit override that
// names an existing file wins over the search. It returns nil, nil when no
// config can be found.
func Discover(override, databasePath string, searchDirs []string) (*Info, error) {
	path := ""
	if override != "" && isFile(override) {
		path = override
	}
	if path == "" {
		found, ok := Find(databasePath, searchDirs)
		if !ok {
			return nil, nil
		}
		path = found
	}
	return Load(path)
}

// appRoot returns the BirdNET-Go installation root for a config file: the
// directory holding it, or its parent when the file sits in a config/ dir.
func appRoot(configPath string) string {
	dir := filepath.Dir(configPath)
	if filepath.Base(dir) == "config" {
		return filepath.Dir(dir)
	}
	return dir
}

func resolve(configPath string, cfg *upstreamConfig) *Info {
	root := appRoot(configPath)
	info := &Info{DatabaseType: DatabaseUnknown}
	if abs, err := filepath.Abs(configPath); err == nil {
		info.ConfigPath = abs
	} else {
		info.ConfigPath = configPath
	}

	if cfg.Output.SQLite.Enabled {
		info.DatabaseType = DatabaseSQLite
		info.SQLitePath = cfg.Output.SQLite.Path
		if info.SQLitePath != "" {
			info.SQLiteResolved = resolveExisting(root, info.SQLitePath, filepath.Base(info.SQLitePath), isFile)
		}
	}

	// MySQL wins when both outputs are enabled.
	if cfg.Output.MySQL.Enabled {
		m := cfg.Output.MySQL
		info.DatabaseType = DatabaseMySQL
		info.MySQL = MySQLInfo{
			Host:     valueOr(m.Host, "localhost"),
			Port:     defaultMySQLPort,
			Database: valueOr(m.Database, "birdnet"),
			Username: m.Username,
			Password: m.Password,
		}
		if port, err := strconv.Atoi(strings.TrimSpace(m.Port)); err == nil && port > 0 {
			info.MySQL.Port = port
		}
	}

	if exportPath := cfg.Realtime.Audio.Export.Path; exportPath != "" {
		info.ClipsPath = resolveExisting(root, exportPath, strings.Trim(exportPath, "/"), isDir)
	}

	return info
}

// resolveExisting joins a relative path onto root and falls back to
// root/data/<fallback> when the first candidate does not exist.
func resolveExisting(root, path, fallback string, exists func(string) bool) string {
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	if exists(candidate) {
		return candidate
	}
	if alt := filepath.Join(root, "data", fallback); exists(alt) {
		return alt
	}
	return ""
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
