package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"localshortcut/internal/accelerator"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry           = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond
	// maxValidPort is the highest TCP port number (2^16 - 1).
	// Port 0 is valid and means "OS auto-assign".
	maxValidPort = 65535

	appDirName = "localshortcut"
)

// Shortcut scopes accepted in the config file.
const (
	ScopeWindow = "window"
	ScopeApp    = "app"
)

const (
	defaultLogLevel      = "info"
	defaultInspectorAddr = "127.0.0.1:0"
)

// defaultConfigDirFn is a test seam; tests override it to simulate
// directory-resolution failures in validateConfigPath.
var defaultConfigDirFn = defaultConfigDir
var userHomeDirFn = os.UserHomeDir
var defaultPathWarningState struct {
	mu       sync.Mutex
	messages []string
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func recordDefaultPathWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	defaultPathWarningState.mu.Lock()
	defaultPathWarningState.messages = append(defaultPathWarningState.messages, trimmed)
	defaultPathWarningState.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears path-resolution warnings
// accumulated during DefaultPath() calls.
func ConsumeDefaultPathWarnings() []string {
	defaultPathWarningState.mu.Lock()
	defer defaultPathWarningState.mu.Unlock()
	if len(defaultPathWarningState.messages) == 0 {
		return nil
	}
	out := make([]string, len(defaultPathWarningState.messages))
	copy(out, defaultPathWarningState.messages)
	defaultPathWarningState.messages = nil
	return out
}

// Config is localshortcut runtime configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// SystemHotkeys selects the OS-level accelerator table where the
	// platform supports one. When false, keys are only delivered by the
	// frontend through App.HandleKey.
	SystemHotkeys bool             `yaml:"system_hotkeys" json:"system_hotkeys"`
	Inspector     InspectorConfig  `yaml:"inspector" json:"inspector"`
	Shortcuts     []ShortcutConfig `yaml:"shortcuts" json:"shortcuts"`
}

// InspectorConfig controls the localhost WebSocket activity stream.
type InspectorConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Addr must be a loopback host:port. Port 0 lets the OS pick.
	Addr string `yaml:"addr" json:"addr"`
}

// ShortcutConfig binds accelerators to a named action.
// Scope "window" binds to the main window; "app" binds to any window.
type ShortcutConfig struct {
	Accelerators []string `yaml:"accelerators" json:"accelerators"`
	Scope        string   `yaml:"scope" json:"scope"`
	Action       string   `yaml:"action" json:"action"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel:      defaultLogLevel,
		SystemHotkeys: true,
		Inspector: InspectorConfig{
			Addr: defaultInspectorAddr,
		},
		Shortcuts: []ShortcutConfig{
			{Accelerators: []string{"CmdOrCtrl+R", "F5"}, Scope: ScopeWindow, Action: "reload"},
			{Accelerators: []string{"CmdOrCtrl+Shift+P"}, Scope: ScopeApp, Action: "command-palette"},
		},
	}
}

// ParseLogLevel maps a config level name to a slog level.
// Unknown names map to Info.
func ParseLogLevel(name string) slog.Level {
	if level, ok := logLevels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return level
	}
	return slog.LevelInfo
}

// DefaultPath resolves the config file path, preferring LOCALAPPDATA over
// APPDATA, falling back to ~/.config when both are unset, and then to
// os.TempDir() if the home directory cannot be resolved.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
	if base == "" {
		base = strings.TrimSpace(os.Getenv("APPDATA"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", err)
			recordDefaultPathWarning(
				"Config path fallback: failed to resolve LOCALAPPDATA/APPDATA/home directory. Using temp directory; shortcut settings may not persist.",
			)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appDirName, "config.yaml")
}

// Load reads the config file. If the file does not exist, defaults are
// returned. Parse errors return defaults together with the error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// EnsureFile writes default config if missing and returns loaded config.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Clone returns a deep copy of cfg.
func Clone(src Config) Config {
	dst := src
	if src.Shortcuts != nil {
		dst.Shortcuts = make([]ShortcutConfig, len(src.Shortcuts))
		for i, sc := range src.Shortcuts {
			dst.Shortcuts[i] = sc
			dst.Shortcuts[i].Accelerators = slices.Clone(sc.Accelerators)
		}
	}
	return dst
}

// Save normalizes cfg and atomically writes it to path.
// Returns the normalized config that was actually written to disk.
func Save(path string, cfg Config) (Config, error) {
	normalizedPath, err := validateConfigPath(path)
	if err != nil {
		return cfg, err
	}
	cfg = Clone(cfg)
	applyDefaults(&cfg)

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(normalizedPath, raw); err != nil {
		return cfg, err
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", path)
	return cfg, nil
}

// atomicWrite writes config data using temp-file + rename to avoid partial
// writes and retries rename on Windows to tolerate transient file locks.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-CONFIG] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save config: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save config: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

// validateConfigPath normalizes path and enforces that config writes stay
// inside the default config directory.
func validateConfigPath(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return "", errors.New("config path required")
	}
	absolutePath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return "", fmt.Errorf("save config: resolve path: %w", err)
	}

	expectedDir, err := defaultConfigDirFn()
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	absoluteExpectedDir, err := filepath.Abs(expectedDir)
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	if !pathWithinDir(absolutePath, absoluteExpectedDir) {
		return "", fmt.Errorf("save config: path outside config directory: %q", absolutePath)
	}
	return absolutePath, nil
}

func defaultConfigDir() (string, error) {
	return filepath.Dir(DefaultPath()), nil
}

// pathWithinDir blocks directory traversal by ensuring path is under dir.
// It also rejects Windows cross-drive escapes because filepath.Rel returns
// an absolute path when roots differ.
func pathWithinDir(path string, dir string) bool {
	relativePath, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if relativePath == "." {
		return true
	}
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(relativePath)
}

// applyDefaults fills missing values and drops unusable entries.
// MUTATES: cfg is directly modified.
// Used by both Load and Save. Nothing here fails: bad values are logged
// and replaced so a broken config never blocks startup.
func applyDefaults(cfg *Config) {
	if isZeroConfig(*cfg) {
		*cfg = DefaultConfig()
		return
	}
	sanitizeLogLevel(cfg)
	sanitizeInspector(cfg)
	sanitizeShortcuts(cfg)
}

func sanitizeLogLevel(cfg *Config) {
	level := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if level == "" {
		cfg.LogLevel = defaultLogLevel
		return
	}
	if _, ok := logLevels[level]; !ok {
		slog.Warn("[WARN-CONFIG] unknown log_level, falling back to info", "configured", cfg.LogLevel)
		level = defaultLogLevel
	}
	cfg.LogLevel = level
}

// sanitizeInspector keeps the inspector on loopback. A non-loopback or
// malformed address falls back to the default instead of failing.
func sanitizeInspector(cfg *Config) {
	addr := strings.TrimSpace(cfg.Inspector.Addr)
	if addr == "" {
		cfg.Inspector.Addr = defaultInspectorAddr
		return
	}
	if err := validateLoopbackAddr(addr); err != nil {
		slog.Warn("[WARN-CONFIG] invalid inspector.addr, falling back to default",
			"configured", addr, "default", defaultInspectorAddr, "error", err)
		addr = defaultInspectorAddr
	}
	cfg.Inspector.Addr = addr
}

func validateLoopbackAddr(addr string) error {
	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return fmt.Errorf("port %q: %w", portText, err)
	}
	if port < 0 || port > maxValidPort {
		return fmt.Errorf("port %d out of range (0-%d)", port, maxValidPort)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("host %q is not a loopback address", host)
	}
	return nil
}

// sanitizeShortcuts drops entries that cannot be bound. Invalid
// accelerator syntax is only reported: the entry is kept and the shortcut
// manager warns again when it is registered.
func sanitizeShortcuts(cfg *Config) {
	if len(cfg.Shortcuts) == 0 {
		return
	}
	kept := make([]ShortcutConfig, 0, len(cfg.Shortcuts))
	for i, sc := range cfg.Shortcuts {
		sc.Action = strings.TrimSpace(sc.Action)
		if sc.Action == "" {
			slog.Warn("[WARN-CONFIG] shortcut skipped: empty action", "index", i)
			continue
		}
		sc.Scope = strings.ToLower(strings.TrimSpace(sc.Scope))
		if sc.Scope == "" {
			sc.Scope = ScopeWindow
		}
		if sc.Scope != ScopeWindow && sc.Scope != ScopeApp {
			slog.Warn("[WARN-CONFIG] shortcut skipped: unknown scope",
				"index", i, "action", sc.Action, "scope", sc.Scope)
			continue
		}
		accels := make([]string, 0, len(sc.Accelerators))
		for _, a := range sc.Accelerators {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			if !accelerator.IsValid(a) {
				slog.Warn("[WARN-CONFIG] shortcut has invalid accelerator",
					"index", i, "action", sc.Action, "accelerator", a)
			}
			accels = append(accels, a)
		}
		if len(accels) == 0 {
			slog.Warn("[WARN-CONFIG] shortcut skipped: no accelerators", "index", i, "action", sc.Action)
			continue
		}
		sc.Accelerators = accels
		kept = append(kept, sc)
	}
	cfg.Shortcuts = kept
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func isZeroConfig(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
