package assistant

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mhaberkorn/sparfuchs/catalog"
	"github.com/mhaberkorn/sparfuchs/embed"
	"github.com/mhaberkorn/sparfuchs/recommend"
	"github.com/mhaberkorn/sparfuchs/regions"
	"github.com/mhaberkorn/sparfuchs/scrape"
	"github.com/mhaberkorn/sparfuchs/textgen"
	"github.com/mhaberkorn/sparfuchs/vecstore"
)

// FileConfig is the full application configuration as loaded from YAML.
// Zero values fall back to each component's defaults; secrets (API keys,
// Qdrant URL) usually come from the environment instead.
type FileConfig struct {
	// Addr is the HTTP listen address. Default: ":8090".
	Addr string `yaml:"addr"`

	// QueryLogPath is the SQLite file for the query log.
	// Default: "db/querylog.db".
	QueryLogPath string `yaml:"query_log_path"`

	Qdrant    vecstore.Config  `yaml:"qdrant"`
	Embed     embed.Config     `yaml:"embed"`
	TextGen   textgen.Config   `yaml:"textgen"`
	Catalog   catalog.Config   `yaml:"catalog"`
	Regions   regions.Config   `yaml:"regions"`
	Recommend recommend.Config `yaml:"recommend"`
	Scrape    scrape.Config    `yaml:"scrape"`
}

func (c *FileConfig) defaults() {
	if c.Addr == "" {
		c.Addr = ":8090"
	}
	if c.QueryLogPath == "" {
		c.QueryLogPath = "db/querylog.db"
	}
}

// LoadConfig reads the YAML config at path. A missing path yields the
// defaults; a present but unreadable or malformed file is an error.
func LoadConfig(path string) (*FileConfig, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				cfg.defaults()
				return &cfg, nil
			}
			return nil, fmt.Errorf("assistant: read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("assistant: parse config %s: %w", path, err)
		}
	}
	cfg.defaults()
	return &cfg, nil
}
