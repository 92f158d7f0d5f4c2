// Package config loads and validates sync job configuration files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/sitepush/internal/session"
	"github.com/eugenetaranov/sitepush/internal/syncer"
)

// Format is a config file encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Config describes one sync job and the endpoint it targets.
type Config struct {
	// Path is the file the config was loaded from.
	Path string

	// Protocol is ftp, sftp or local (default: sftp).
	Protocol string

	// Host is the remote hostname or IP address.
	Host string

	// Port is the remote port. Zero means the protocol default.
	Port int

	// Username and Password authenticate the session.
	Username string
	Password string

	// LocalRoot is the local directory to upload.
	LocalRoot string

	// RemoteRoot is the remote directory to replace.
	RemoteRoot string

	// WorkingDir is where PreCommand and PostCommand run.
	WorkingDir string

	// PreCommand runs before the sync, typically a build step.
	PreCommand string

	// PostCommand runs after a successful sync.
	PostCommand string

	// KnownHosts enables SSH host key verification against this file.
	KnownHosts string

	// Timeout bounds connection establishment, e.g. "30s".
	Timeout string
}

// canonical keys and the Config field each one sets.
var fieldSetters = map[string]func(*Config, any) error{
	"protocol":     stringField(func(c *Config) *string { return &c.Protocol }),
	"host":         stringField(func(c *Config) *string { return &c.Host }),
	"port":         setPort,
	"username":     stringField(func(c *Config) *string { return &c.Username }),
	"password":     stringField(func(c *Config) *string { return &c.Password }),
	"local_root":   stringField(func(c *Config) *string { return &c.LocalRoot }),
	"remote_root":  stringField(func(c *Config) *string { return &c.RemoteRoot }),
	"working_dir":  stringField(func(c *Config) *string { return &c.WorkingDir }),
	"pre_command":  stringField(func(c *Config) *string { return &c.PreCommand }),
	"post_command": stringField(func(c *Config) *string { return &c.PostCommand }),
	"known_hosts":  stringField(func(c *Config) *string { return &c.KnownHosts }),
	"timeout":      stringField(func(c *Config) *string { return &c.Timeout }),
}

// legacyKeys maps the key names of older config files to canonical keys.
var legacyKeys = map[string]string{
	"ftp_host":        "host",
	"ftp_port":        "port",
	"ftp_user":        "username",
	"ftp_pass":        "password",
	"cmd_working_dir": "working_dir",
	"cmd_command":     "pre_command",
	"cmd_copy_source": "local_root",
	"ftp_target_path": "remote_root",
	"user":            "username",
}

// Load reads a config file. The format is chosen by extension: .json, or
// .yaml/.yml. Other extensions are tried as JSON first, then YAML.
func Load(name string) (*Config, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		cfg, err = Parse(data, FormatJSON)
	case ".yaml", ".yml":
		cfg, err = Parse(data, FormatYAML)
	default:
		cfg, err = Parse(data, FormatJSON)
		if err != nil {
			cfg, err = Parse(data, FormatYAML)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", name, err)
	}

	cfg.Path = name
	return cfg, nil
}

// Parse decodes a config document, resolving legacy keys and environment
// references. It does not validate.
func Parse(data []byte, format Format) (*Config, error) {
	return parseWith(data, format, NewInterpolator())
}

func parseWith(data []byte, format Format, ip *Interpolator) (*Config, error) {
	raw := map[string]any{}
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format: %q", format)
	}

	values, err := normalizeKeys(raw)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	for _, key := range sortedKeys(values) {
		v, err := ip.interpolateValue(values[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if err := fieldSetters[key](cfg, v); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}

	if cfg.Protocol == "" {
		cfg.Protocol = string(session.ProtocolSFTP)
	}
	return cfg, nil
}

// normalizeKeys rewrites legacy keys and rejects unknown ones. A canonical
// key wins over its legacy alias.
func normalizeKeys(raw map[string]any) (map[string]any, error) {
	values := make(map[string]any, len(raw))
	var unknown []string

	for _, key := range sortedKeys(raw) {
		v := raw[key]
		if _, ok := fieldSetters[key]; ok {
			values[key] = v
			continue
		}
		if canonical, ok := legacyKeys[key]; ok {
			if _, set := raw[canonical]; !set {
				values[canonical] = v
			}
			continue
		}
		unknown = append(unknown, key)
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown key(s): %s", strings.Join(unknown, ", "))
	}
	return values, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringField(field func(*Config) *string) func(*Config, any) error {
	return func(c *Config, v any) error {
		switch val := v.(type) {
		case nil:
			*field(c) = ""
		case string:
			*field(c) = val
		case json.Number, int, int64, float64, bool:
			*field(c) = fmt.Sprintf("%v", val)
		default:
			return fmt.Errorf("expected a string, got %T", v)
		}
		return nil
	}
}

func setPort(c *Config, v any) error {
	switch val := v.(type) {
	case nil:
		c.Port = 0
	case int:
		c.Port = val
	case int64:
		c.Port = int(val)
	case float64:
		if val != float64(int(val)) {
			return fmt.Errorf("invalid port: %v", val)
		}
		c.Port = int(val)
	case json.Number:
		n, err := strconv.Atoi(val.String())
		if err != nil {
			return fmt.Errorf("invalid port: %s", val)
		}
		c.Port = n
	case string:
		if strings.TrimSpace(val) == "" {
			c.Port = 0
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("invalid port: %q", val)
		}
		c.Port = n
	default:
		return fmt.Errorf("invalid port type %T", v)
	}
	return nil
}

// Overrides holds command-line values that replace config file values.
// Empty fields are ignored.
type Overrides struct {
	Protocol   string
	Host       string
	Port       int
	Username   string
	LocalRoot  string
	RemoteRoot string
}

// Apply copies every non-empty override into c.
func (c *Config) Apply(o Overrides) {
	if o.Protocol != "" {
		c.Protocol = o.Protocol
	}
	if o.Host != "" {
		c.Host = o.Host
	}
	if o.Port != 0 {
		c.Port = o.Port
	}
	if o.Username != "" {
		c.Username = o.Username
	}
	if o.LocalRoot != "" {
		c.LocalRoot = o.LocalRoot
	}
	if o.RemoteRoot != "" {
		c.RemoteRoot = o.RemoteRoot
	}
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	ep, err := c.Endpoint()
	if err != nil {
		return err
	}
	if err := ep.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(c.LocalRoot) == "" {
		return fmt.Errorf("missing required field: local_root")
	}
	remote := strings.TrimSpace(c.RemoteRoot)
	if remote == "" {
		return fmt.Errorf("missing required field: remote_root")
	}
	if path.Clean(remote) == "/" || path.Clean(remote) == "." {
		return fmt.Errorf("remote_root must not be the remote root directory: %q", c.RemoteRoot)
	}
	if strings.Contains(remote, `\`) {
		return fmt.Errorf("remote_root must use / separators: %q", c.RemoteRoot)
	}
	return nil
}

// Endpoint returns the session endpoint described by the config.
func (c *Config) Endpoint() (session.Endpoint, error) {
	protocol, err := session.ParseProtocol(c.Protocol)
	if err != nil {
		return session.Endpoint{}, err
	}

	var timeout time.Duration
	if c.Timeout != "" {
		timeout, err = parseTimeout(c.Timeout)
		if err != nil {
			return session.Endpoint{}, err
		}
	}

	return session.Endpoint{
		Protocol:       protocol,
		Host:           strings.TrimSpace(c.Host),
		Port:           c.Port,
		Username:       strings.TrimSpace(c.Username),
		Password:       c.Password,
		KnownHostsFile: expandHome(c.KnownHosts),
		Timeout:        timeout,
	}, nil
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~/")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}

// parseTimeout accepts a Go duration ("30s") or a bare number of seconds.
func parseTimeout(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid timeout: %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid timeout: %q", s)
	}
	return d, nil
}

// Job returns the sync job described by the config.
func (c *Config) Job() syncer.Job {
	return syncer.Job{
		LocalRoot:  c.LocalRoot,
		RemoteRoot: strings.TrimSpace(c.RemoteRoot),
	}
}
