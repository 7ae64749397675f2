package app

import (
	"fmt"
	"os"

	coreconfig "offersbot/core/config"
	coredatabase "offersbot/core/database"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// OffersConfig holds the bot-specific settings on top of the core config.
type OffersConfig struct {
	// AdminIDs is the allow-list of user ids permitted to manage offers.
	// An empty list means nobody is an admin.
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"ADMIN_USER_IDS"`
	// AnnounceChatID is the default announcement destination when none has
	// been saved via /setannounce. Zero falls back to the origin chat.
	AnnounceChatID    int64   `yaml:"announce_chat_id" envconfig:"ANNOUNCE_CHAT_ID"`
	ContactText       string  `yaml:"contact_text" envconfig:"CONTACT_TEXT"`
	UploadThresholdMB float64 `yaml:"upload_threshold_mb" envconfig:"UPLOAD_THRESHOLD_MB"`
	CatboxUserhash    string  `yaml:"catbox_userhash" envconfig:"CATBOX_USERHASH"`
}

// Config aggregates core, database and offers configuration.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Offers   OffersConfig        `yaml:"offers"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Core }

// IsAdmin reports whether the user is on the admin allow-list. The legacy
// single telegram.admin_id field counts as an admin when set.
func (c *Config) IsAdmin(userID int64) bool {
	if c.Core.Telegram.AdminID != 0 && userID == c.Core.Telegram.AdminID {
		return true
	}
	for _, id := range c.Offers.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Load reads configuration from a YAML file, layering .env and environment
// variables on top.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if cfg.Offers.UploadThresholdMB < 0 {
		return nil, fmt.Errorf("offers.upload_threshold_mb must be >= 0")
	}
	return &cfg, nil
}
