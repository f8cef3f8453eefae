package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	Workers       int           `yaml:"workers"`
	Advisor       AdvisorConfig `yaml:"advisor"`
	Ollama        OllamaConfig  `yaml:"ollama"`
}

// AdvisorConfig controls the optional LLM coaching layer on top of the risk
// predictor. Disabled by default; the scoring engine never depends on it.
type AdvisorConfig struct {
	Enabled bool          `yaml:"enabled"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

func LoadConfig(path string) (*Config, error) {
	apiTimeout := 15 * time.Second
	tokenDuration := 8 * time.Hour

	cfg := &Config{
		Addr:          getEnv("MINESAFE_ADDR", ":8080"),
		JWTSecret:     getEnv("MINESAFE_JWT_SECRET", "supersecretkey"),
		APITimeout:    apiTimeout,
		DatabasePath:  getEnv("MINESAFE_DATABASE_PATH", "minesafe.db"),
		TokenDuration: tokenDuration,
		Workers:       2,
		Advisor: AdvisorConfig{
			Model:   "llama3",
			Timeout: 20 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL:                 getEnv("MINESAFE_OLLAMA_URL", "http://localhost:11434"),
			Timeout:                 30 * time.Second,
			Retries:                 3,
			Backoff:                 500 * time.Millisecond,
			CircuitFailureThreshold: 5,
			CircuitReset:            30 * time.Second,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate rejects configurations that are unsafe to run with. The shipped
// default JWT secret is only tolerated when MINESAFE_ENV is "development".
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.APITimeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.TokenDuration <= 0 {
		return errors.New("token_duration must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.JWTSecret == "supersecretkey" && os.Getenv("MINESAFE_ENV") != "development" {
		return errors.New("jwt_secret is the insecure default; set MINESAFE_JWT_SECRET or run with MINESAFE_ENV=development")
	}
	if c.Advisor.Enabled {
		if c.Advisor.Model == "" {
			return errors.New("advisor.model must be set when the advisor is enabled")
		}
		if c.Ollama.BaseURL == "" {
			return errors.New("ollama.base_url must be set when the advisor is enabled")
		}
	}
	if c.Ollama.Timeout <= 0 || c.Ollama.CircuitFailureThreshold <= 0 {
		return fmt.Errorf("ollama timeouts and circuit threshold must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
