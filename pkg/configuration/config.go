package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config is the parsed settings file, keyed by section then key.
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// sectionOrder is the order sections are written to a generated settings file.
var sectionOrder = []string{"Server", "Desktop", "Terminal", "Session", "Network", "JWT", "TLS", "Metrics", "Debug"}

// Initialize loads the global configuration from configPath. A missing file is
// created with defaults. settings.local.cfg next to it overrides single keys.
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		localConfigPath := filepath.Join(filepath.Dir(configPath), "settings.local.cfg")
		if _, statErr := os.Stat(localConfigPath); statErr == nil {
			// A broken override file leaves the base values in place.
			_ = globalConfig.loadLocalConfig(localConfigPath)
		}
	})
	return err
}

// loadConfig reads filePath, writing a default file first when it is missing.
func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		config.createDefaultConfig()
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// Defaults first, so keys missing from an older file still resolve.
	config.createDefaultConfig()
	if err := config.parse(file); err != nil {
		return nil, err
	}
	return config, nil
}

// loadLocalConfig applies settings.local.cfg on top of the loaded values.
func (c *Config) loadLocalConfig(filePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()
	return c.parse(file)
}

// parse reads INI-style sections into c.settings, overwriting existing keys.
func (c *Config) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			if c.settings[currentSection] == nil {
				c.settings[currentSection] = make(map[string]string)
			}
			continue
		}

		if strings.Contains(line, "=") && currentSection != "" {
			parts := strings.SplitN(line, "=", 2)
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			c.settings[currentSection][key] = value
		}
	}
	return scanner.Err()
}

// createDefaultConfig fills in every key the desktop server reads.
func (c *Config) createDefaultConfig() {
	c.settings["Server"] = map[string]string{
		"static_dir":      "",
		"enable_gzip":     "true",
		"allowed_origins": "http://localhost:8080,http://127.0.0.1:8080",
	}

	c.settings["Desktop"] = map[string]string{
		"viewport_width":       "1280",
		"viewport_height":      "800",
		"min_window_width":     "300",
		"min_window_height":    "200",
		"edge_grab_margin":     "100",
		"title_bar_height":     "36",
		"resize_handle_size":   "8",
		"cascade_offset":       "32",
		"max_windows":          "24",
		"max_notifications":    "20",
		"open_terminal_on_new": "true",
	}

	c.settings["Terminal"] = map[string]string{
		"max_scrollback":      "1000",
		"max_history":         "200",
		"canned_delay":        "600ms",
		"installer_delay":     "1500ms",
		"spawn_buffer":        "500ms",
		"navigation_step":     "700ms",
		"max_script_lines":    "256",
		"max_input_length":    "512",
		"navigation_fixed_id": "1337",
	}

	c.settings["Session"] = map[string]string{
		"max_sessions_per_ip": "5",
		"max_inactive_time":   "30m",
		"cleanup_interval":    "1m",
	}

	c.settings["Network"] = map[string]string{
		"pong_timeout":            "90s",
		"write_wait_timeout":      "10s",
		"max_message_size_kb":     "64",
		"max_channel_buffer":      "256",
		"max_json_depth":          "6",
		"max_messages_per_minute": "1200",
	}

	c.settings["JWT"] = map[string]string{
		"token_expiration_hours": "24",
		"issuer":                 "webdesk",
	}

	c.settings["TLS"] = map[string]string{
		"enable_tls":           "false",
		"enable_letsencrypt":   "false",
		"domain":               "",
		"letsencrypt_email":    "",
		"cert_cache_dir":       "./certs",
		"force_https_redirect": "false",
		"cert_file":            "./certs/server.crt",
		"key_file":             "./certs/server.key",
		"http_port":            "8080",
		"https_port":           "8443",
		"self_signed":          "true",
	}

	c.settings["Metrics"] = map[string]string{
		"enable_metrics": "true",
		"path":           "/metrics",
	}

	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "debug.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		// per-area switches
		"log_websocket":  "false",
		"log_desktop":    "true",
		"log_window":     "false",
		"log_shell":      "false",
		"log_session":    "true",
		"log_filesystem": "false",
		"log_browser":    "false",
		"log_auth":       "true",
		"log_security":   "true",
		"log_config":     "true",
		"log_general":    "true",
		"log_metrics":    "false",
	}
}

// saveToFile writes sections in sectionOrder with sorted keys.
func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	w.WriteString("; webdesk configuration file\n")
	w.WriteString("; Generated automatically - modify with care\n")
	w.WriteString(";\n\n")

	for _, section := range sectionOrder {
		settings, exists := c.settings[section]
		if !exists {
			continue
		}
		fmt.Fprintf(w, "[%s]\n", section)

		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "%s = %s\n", key, settings[key])
		}
		w.WriteString("\n")
	}
	return w.Flush()
}

// GetString returns section.key, or defaultValue when it is unset or the
// configuration was never initialized.
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	if sectionMap, exists := globalConfig.settings[section]; exists {
		if value, exists := sectionMap[key]; exists {
			return value
		}
	}

	return defaultValue
}

func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(str); err == nil {
		return value
	}

	return defaultValue
}

func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}

	return defaultValue
}

// GetDuration parses values like "600ms" or "30m".
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := time.ParseDuration(str); err == nil {
		return value
	}

	return defaultValue
}

// GetList splits a comma separated value and trims every element.
func GetList(section, key, defaultValue string) []string {
	raw := GetString(section, key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetSection returns all key-value pairs from a configuration section
func GetSection(sectionName string) map[string]string {
	if globalConfig == nil {
		return make(map[string]string)
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	result := make(map[string]string)
	for key, value := range globalConfig.settings[sectionName] {
		result[key] = value
	}
	return result
}

// SetString changes a value in memory. Call Save to persist it.
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}

	globalConfig.mu.Lock()
	defer globalConfig.mu.Unlock()

	if globalConfig.settings[section] == nil {
		globalConfig.settings[section] = make(map[string]string)
	}

	globalConfig.settings[section][key] = value
}

func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	return globalConfig.saveToFile()
}
