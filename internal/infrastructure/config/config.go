package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the full environment-driven configuration. The adapter secret is
// the process's access credential: missing it is a fatal startup error.
type Config struct {
	Port     string `env:"PORT,     default=8080"`
	Env      string `env:"ENV,      default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// AdapterSecret authenticates the seam to the chat-platform adapter in
	// both directions.
	AdapterSecret string `env:"ADAPTER_SECRET, required"`
	// AdapterURL is where outbound messages are posted. Empty means log-only.
	AdapterURL string `env:"ADAPTER_URL"`
	// OwnerID is the protected owner: always authorized, always admin.
	OwnerID int64 `env:"OWNER_ID, required"`

	Storage StorageConfig
	GitHub  GitHubConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

// StorageConfig selects and tunes the document backend.
type StorageConfig struct {
	// Backend is one of "file", "github", "mongodb".
	Backend     string        `env:"STORAGE_BACKEND, default=file"`
	RecordsPath string        `env:"RECORDS_PATH,    default=clan_data.json"`
	AuthPath    string        `env:"AUTH_PATH,       default=authorized_users.json"`
	DataDir     string        `env:"DATA_DIR,        default=./data"`
	SaveRetries int           `env:"SAVE_RETRIES,    default=3"`
	SaveBackoff time.Duration `env:"SAVE_BACKOFF,    default=500ms"`
}

// GitHubConfig configures the github backend.
type GitHubConfig struct {
	Token  string `env:"GITHUB_TOKEN"`
	Owner  string `env:"GITHUB_OWNER"`
	Repo   string `env:"GITHUB_REPO"`
	Branch string `env:"GITHUB_BRANCH, default=main"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=clan_registry"`
}

// RedisConfig configures the optional update-dedup store. An empty Addr
// disables deduplication.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
