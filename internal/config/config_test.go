package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScoring() ScoringConfig {
	return ScoringConfig{
		Alpha:           2.0,
		MaxPositionSize: 0.05,
		MinScore:        50,
		PortfolioSize:   8,
		MinTotal:        32,
	}
}

func TestScoringConfigValidate(t *testing.T) {
	require.NoError(t, validScoring().Validate())

	tests := []struct {
		name   string
		mutate func(*ScoringConfig)
	}{
		{"negative alpha", func(s *ScoringConfig) { s.Alpha = -1 }},
		{"zero max position", func(s *ScoringConfig) { s.MaxPositionSize = 0 }},
		{"max position above one", func(s *ScoringConfig) { s.MaxPositionSize = 1.5 }},
		{"min score out of range", func(s *ScoringConfig) { s.MinScore = 150 }},
		{"zero portfolio size", func(s *ScoringConfig) { s.PortfolioSize = 0 }},
		{"negative min total", func(s *ScoringConfig) { s.MinTotal = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScoring()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestConfigValidateEngine(t *testing.T) {
	cfg := &Config{Port: 8080, DefaultEngine: "pillar", Scoring: validScoring()}
	require.NoError(t, cfg.Validate())

	cfg.DefaultEngine = "quantum"
	assert.Error(t, cfg.Validate(), "unknown engine names must be rejected")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OCTAVE_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "pillar", cfg.DefaultEngine)
	assert.Equal(t, 2.0, cfg.Scoring.Alpha)
	assert.Equal(t, 0.05, cfg.Scoring.MaxPositionSize)
	assert.Equal(t, 8, cfg.Scoring.PortfolioSize)
	assert.Equal(t, 32, cfg.Scoring.MinTotal)
	assert.NotEmpty(t, cfg.Universe)
	assert.Nil(t, cfg.Backup, "backups default to disabled")
}

func TestLoadUniverseOverride(t *testing.T) {
	t.Setenv("OCTAVE_DATA_DIR", t.TempDir())
	t.Setenv("OCTAVE_UNIVERSE", "AAPL, MSFT ,NVDA")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, cfg.Universe)
}
