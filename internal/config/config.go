package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"questforge/internal/domain"
)

// Config models questforge.yml.
type Config struct {
	Stages struct {
		AutoAdvance  bool                                     `yaml:"auto_advance" json:"auto_advance"`
		Requirements map[domain.Stage]domain.StageRequirement `yaml:"requirements" json:"requirements"`
	} `yaml:"stages" json:"stages"`
	Tracks struct {
		MaxChanges int                       `yaml:"max_changes" json:"max_changes"`
		Categories map[domain.Track][]string `yaml:"categories" json:"categories"`
	} `yaml:"tracks" json:"tracks"`
}

// LoadOptional falls back to Default when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Stages.Requirements == nil {
		return fmt.Errorf("config.stages.requirements is required")
	}
	for stage, req := range c.Stages.Requirements {
		if !stage.Valid() {
			return fmt.Errorf("config.stages.requirements has unknown stage %s", stage)
		}
		if stage == domain.StageIdea {
			return fmt.Errorf("config.stages.requirements: %s is the initial stage and cannot be a target", stage)
		}
		if req.MinQuestsCompleted < 0 || req.MinTeamMembers < 0 {
			return fmt.Errorf("stage %s has negative requirement", stage)
		}
	}
	for _, stage := range domain.Stages[1:] {
		if _, ok := c.Stages.Requirements[stage]; !ok {
			return fmt.Errorf("config.stages.requirements missing target stage %s", stage)
		}
	}
	if c.Tracks.MaxChanges < 0 {
		return fmt.Errorf("config.tracks.max_changes must be >= 0")
	}
	for track, cats := range c.Tracks.Categories {
		if _, ok := domain.ParseTrack(string(track)); !ok {
			return fmt.Errorf("config.tracks.categories has unknown track %s", track)
		}
		for _, cat := range cats {
			if strings.TrimSpace(cat) == "" {
				return fmt.Errorf("track %s has empty category", track)
			}
		}
	}
	return nil
}

// RequirementFor returns the requirements for entering target.
func (c *Config) RequirementFor(target domain.Stage) (domain.StageRequirement, bool) {
	req, ok := c.Stages.Requirements[target]
	return req, ok
}

// CategoriesFor returns the lower-cased category allow-list for a track.
func (c *Config) CategoriesFor(track domain.Track) []string {
	cats := c.Tracks.Categories[track]
	out := make([]string, 0, len(cats))
	for _, cat := range cats {
		out = append(out, strings.ToLower(strings.TrimSpace(cat)))
	}
	return out
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "questforge.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys absent from data keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `stages:
  auto_advance: false
  # keyed by the stage being entered
  requirements:
    PROTOTYPE:
      min_quests_completed: 2
      min_team_members: 1
    BUILD:
      min_quests_completed: 4
      min_team_members: 2
    PROJECT:
      min_quests_completed: 8
      min_team_members: 2
    INCUBATE:
      min_quests_completed: 12
      min_team_members: 3
    ACCELERATE:
      min_quests_completed: 18
      min_team_members: 4
    SCALE:
      min_quests_completed: 25
      min_team_members: 5

tracks:
  max_changes: 2
  categories:
    LEARNING: [learning, education, tutorial, skills, community]
    FOUNDER: [product, market, fundraising, startup]
    PROFESSIONAL: [career, networking, skills, leadership]
    FREELANCER: [clients, portfolio, business, marketing]
`
