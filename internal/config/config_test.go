package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questforge/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Stages.AutoAdvance)
	assert.Equal(t, 2, cfg.Tracks.MaxChanges)

	req, ok := cfg.RequirementFor(domain.StageProject)
	require.True(t, ok)
	assert.Equal(t, domain.StageRequirement{MinQuestsCompleted: 8, MinTeamMembers: 2}, req)

	_, ok = cfg.RequirementFor(domain.StageIdea)
	assert.False(t, ok, "IDEA is never a target")

	assert.Contains(t, cfg.CategoriesFor(domain.TrackFounder), "fundraising")
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
stages:
  auto_advance: true
  requirements:
    PROTOTYPE:
      min_quests_completed: 1
      min_team_members: 1
tracks:
  max_changes: 5
  categories:
    FOUNDER: [Product, "  Pitch "]
`))
	require.NoError(t, err)
	assert.True(t, cfg.Stages.AutoAdvance)
	assert.Equal(t, 5, cfg.Tracks.MaxChanges)
	req, _ := cfg.RequirementFor(domain.StagePrototype)
	assert.Equal(t, 1, req.MinQuestsCompleted)
	req, _ = cfg.RequirementFor(domain.StageScale)
	assert.Equal(t, 25, req.MinQuestsCompleted, "unlisted stages keep defaults")
	assert.Equal(t, []string{"product", "pitch"}, cfg.CategoriesFor(domain.TrackFounder))
	assert.Contains(t, cfg.CategoriesFor(domain.TrackLearning), "education")
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"unknown stage":    "stages:\n  requirements:\n    LAUNCH: {min_quests_completed: 1}\n",
		"idea as target":   "stages:\n  requirements:\n    IDEA: {min_quests_completed: 1}\n",
		"negative":         "stages:\n  requirements:\n    BUILD: {min_quests_completed: -1}\n",
		"negative changes": "tracks:\n  max_changes: -1\n",
		"unknown track":    "tracks:\n  categories:\n    PIRATE: [gold]\n",
		"empty category":   "tracks:\n  categories:\n    FOUNDER: [\"\"]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "questforge.yml"), []byte("tracks:\n  max_changes: 3\n"), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Tracks.MaxChanges)
}
