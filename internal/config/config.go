// Package config loads server configuration from a YAML file with
// MCP_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`

	World    World    `yaml:"world"`
	Supabase Supabase `yaml:"supabase"`

	CORSOrigins []string `yaml:"cors_origins"`

	EnableAdminHTTP bool `yaml:"enable_admin_http"`
	EnablePprofHTTP bool `yaml:"enable_pprof_http"`
	DisableOpsIndex bool `yaml:"disable_ops_index"`
}

// World is the GDMC HTTP Interface endpoint on the Minecraft server.
type World struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
	BuildAreaTTLMS   int    `yaml:"build_area_ttl_ms"`
}

type Supabase struct {
	URL             string `yaml:"url"`
	AnonKey         string `yaml:"anon_key"`
	ServiceKey      string `yaml:"service_key"`
	BlueprintBucket string `yaml:"blueprint_bucket"`
	AssetBucket     string `yaml:"asset_bucket"`
}

func Defaults() Config {
	return Config{
		Listen:  ":8000",
		DataDir: "./data",
		World: World{
			Host:             "localhost",
			Port:             9000,
			RequestTimeoutMS: 30_000,
			BuildAreaTTLMS:   2_000,
		},
		Supabase: Supabase{
			BlueprintBucket: "blueprints",
			AssetBucket:     "assets",
		},
		CORSOrigins: []string{"*"},
	}
}

// Load reads the YAML config at path (missing file falls back to
// Defaults) and then applies environment overrides.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&c)
			return c, nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("server.yaml: %w", err)
	}
	applyEnv(&c)
	if c.World.Port <= 0 || c.World.Port > 65535 {
		return c, fmt.Errorf("world.port out of range: %d", c.World.Port)
	}
	return c, nil
}

func (w World) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", w.Host, w.Port)
}

func (w World) RequestTimeout() time.Duration {
	if w.RequestTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(w.RequestTimeoutMS) * time.Millisecond
}

func (w World) BuildAreaTTL() time.Duration {
	if w.BuildAreaTTLMS <= 0 {
		return 0
	}
	return time.Duration(w.BuildAreaTTLMS) * time.Millisecond
}

func applyEnv(c *Config) {
	if v := envStr("MCP_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := envStr("MCP_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := envStr("MCP_MINECRAFT_HOST"); v != "" {
		c.World.Host = v
	}
	if v, ok := envInt("MCP_MINECRAFT_HTTP_PORT"); ok {
		c.World.Port = v
	}
	if v := envStr("MCP_SUPABASE_URL"); v != "" {
		c.Supabase.URL = v
	}
	if v := envStr("MCP_SUPABASE_KEY"); v != "" {
		c.Supabase.AnonKey = v
	}
	if v := envStr("MCP_SUPABASE_SERVICE_KEY"); v != "" {
		c.Supabase.ServiceKey = v
	}
	if v := envStr("MCP_CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		c.CORSOrigins = out
	}
	c.EnableAdminHTTP = envBool("MCP_ENABLE_ADMIN_HTTP", c.EnableAdminHTTP)
	c.EnablePprofHTTP = envBool("MCP_ENABLE_PPROF_HTTP", c.EnablePprofHTTP)
	c.DisableOpsIndex = envBool("MCP_DISABLE_OPS_INDEX", c.DisableOpsIndex)
}

func envStr(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func envInt(key string) (int, bool) {
	v := envStr(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(envStr(key))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
