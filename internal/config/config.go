package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type MemoryConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Port  string `toml:"port"`
	Debug bool   `toml:"debug"`
}

type CityConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Timezone string `toml:"timezone"`
}

type BuildingConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Capacity int    `toml:"capacity"`
}

type PersonaConfig struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	SystemPrompt string `toml:"system_prompt"`
	Timezone     string `toml:"timezone"`
	Building     string `toml:"building"`
	// HomeCity and HomeURL mark personas whose decision loop runs on a
	// remote city's runtime; pulses for them are forwarded, not run here.
	HomeCity string `toml:"home_city"`
	HomeURL  string `toml:"home_url"`
}

type RemoteCityConfig struct {
	ID      string `toml:"id"`
	BaseURL string `toml:"base_url"`
}

type Config struct {
	LLM       LLMConfig          `toml:"llm"`
	Memory    MemoryConfig       `toml:"memory"`
	Storage   StorageConfig      `toml:"storage"`
	Server    ServerConfig       `toml:"server"`
	City      CityConfig         `toml:"city"`
	Buildings []BuildingConfig   `toml:"building"`
	Personas  []PersonaConfig    `toml:"persona"`
	Remotes   []RemoteCityConfig `toml:"remote_city"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides secrets and deploy knobs from the environment, the same
// override set the server bootstrap honors in every deployment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("MEMORY_URI"); v != "" {
		c.Memory.URI = v
	}
	if v := os.Getenv("MEMORY_USER"); v != "" {
		c.Memory.User = v
	}
	if v := os.Getenv("MEMORY_PASSWORD"); v != "" {
		c.Memory.Password = v
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
}
