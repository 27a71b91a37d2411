package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	JWTSecret    string             `mapstructure:"jwt_secret"`
	CORSOrigins  string             `mapstructure:"cors_origins"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// LLMConfig points at an OpenAI-compatible completion API. The default
// base URL targets Groq.
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type RetrievalConfig struct {
	EmbeddingModel string `mapstructure:"embedding_model"`
	PineconeAPIKey string `mapstructure:"pinecone_api_key"`
	PineconeHost   string `mapstructure:"pinecone_host"`
	Namespace      string `mapstructure:"namespace"`
	TopK           int    `mapstructure:"top_k"`
}

// OrchestratorConfig tunes the planner/researcher loop. The thresholds are
// policy constants, not load-bearing semantics; chunk_delay_ms exists only
// to pace perceived streaming and may be zero.
type OrchestratorConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
	ChunkSize     int `mapstructure:"chunk_size"`
	ChunkDelayMs  int `mapstructure:"chunk_delay_ms"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".shoplens"))
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No config file is fine; defaults plus env overrides apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "shoplens")
	viper.SetDefault("database.database", "shoplens")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("llm.model", "llama-3.3-70b-versatile")
	viper.SetDefault("llm.timeout_seconds", 60)
	viper.SetDefault("retrieval.embedding_model", "text-embedding-3-small")
	viper.SetDefault("retrieval.namespace", "orders-ns")
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("orchestrator.max_iterations", 10)
	viper.SetDefault("orchestrator.chunk_size", 50)
	viper.SetDefault("orchestrator.chunk_delay_ms", 50)
}

func loadEnvOverrides(cfg *Config) {
	if host := os.Getenv("SHOPLENS_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SHOPLENS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = p
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if model := os.Getenv("GROQ_MODEL"); model != "" {
		cfg.LLM.Model = model
	}

	if key := os.Getenv("PINECONE_API_KEY"); key != "" {
		cfg.Retrieval.PineconeAPIKey = key
	}
	if host := os.Getenv("PINECONE_INDEX_HOST"); host != "" {
		cfg.Retrieval.PineconeHost = host
	}

	if secret := os.Getenv("SHOPLENS_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if origins := os.Getenv("SHOPLENS_CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = origins
	}
}
