package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/agentplatform/logger"
)

// EnvPrefix marks environment variables that override file settings, e.g.
// AGENTPLATFORM_BASE_URL or AGENTPLATFORM_TLS_CA_FILE.
const EnvPrefix = "AGENTPLATFORM_"

// FileSystem abstracts the file lookups done by the loader.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
	UserHome() (string, error)
}

// OSFileSystem is the FileSystem backed by the operating system.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

func (OSFileSystem) UserHome() (string, error) {
	return os.UserHomeDir()
}

// Resolver finds the config and env files for an application.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles are the files the loader will read. Empty means none found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths from opts, searching for the rest.
func (r *Resolver) ResolveFiles(app string, opts LoaderConfig) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = r.first(r.configCandidates(app))
	}
	if files.EnvFile == "" {
		files.EnvFile = r.first(r.envCandidates(app))
	}
	return files
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

// configCandidates lists config.yml locations, most specific first.
func (r *Resolver) configCandidates(app string) []string {
	paths := []string{
		fmt.Sprintf("./cmd/%s/config.yml", app),
		fmt.Sprintf("../cmd/%s/config.yml", app),
		"./config/config.yml",
		"./config.yml",
	}
	if home, err := r.FileSystem.UserHome(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".agentplatform", "config.yml"))
	}
	return paths
}

func (r *Resolver) envCandidates(app string) []string {
	var paths []string
	for _, name := range []string{".env." + app, ".env"} {
		paths = append(paths,
			fmt.Sprintf("./cmd/%s/%s", app, name),
			fmt.Sprintf("./config/%s", name),
			"./"+name,
			"../"+name,
		)
	}
	return paths
}

// LoaderConfig holds loader dependencies and file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption configures Load and LoadInto.
type LoaderOption func(*LoaderConfig)

// WithFileSystem replaces the OS file system, for tests.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// LoadInto reads the resolved files for app into cfg. Precedence, lowest
// first: config file, .env file, process environment.
func LoadInto(app string, cfg any, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = OSFileSystem{}
	}

	files := (&Resolver{FileSystem: lc.FileSystem}).ResolveFiles(app, lc)
	return load(cfg, files, lc.FileSystem)
}

func load(cfg any, files ResolvedFiles, fs FileSystem) error {
	v := viper.New()
	log := logger.WithComponent("config")

	if files.ConfigFile != "" {
		if !fs.Exists(files.ConfigFile) {
			return fmt.Errorf("config: file %s not found", files.ConfigFile)
		}
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", files.ConfigFile, err)
		}
		log.Debug("config file loaded", logger.Fields("file", files.ConfigFile))
	}

	// godotenv never overrides variables already set in the process.
	if files.EnvFile != "" && fs.Exists(files.EnvFile) {
		if err := fs.LoadEnv(files.EnvFile); err != nil {
			log.Warn("env file not loaded", logger.Fields("file", files.EnvFile, logger.FieldError, err))
		}
	}
	bindEnv(v, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	return nil
}

// bindEnv sets every AGENTPLATFORM_* variable under each key it might name.
func bindEnv(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		for _, k := range envKeyVariants(strings.TrimPrefix(key, EnvPrefix)) {
			v.Set(k, value)
		}
	}
}

// envKeyVariants maps an env name to candidate config keys. Underscores are
// ambiguous: they separate nesting levels and also appear inside keys.
//
//	TLS_CA_FILE -> tls_ca_file, tls.ca.file, tls.ca_file, tls_ca.file
func envKeyVariants(name string) []string {
	lower := strings.ToLower(name)
	parts := strings.Split(lower, "_")
	if len(parts) == 1 {
		return []string{lower}
	}

	out := []string{lower, strings.Join(parts, ".")}
	for i := 1; i < len(parts); i++ {
		out = append(out,
			strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"),
			strings.Join(parts[:i], "_")+"."+strings.Join(parts[i:], "."),
		)
	}
	return dedupe(out)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
