package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/quest"
)

//go:embed defaults/league_tiers.yaml
var defaultLeagueTiers []byte

//go:embed defaults/quests.yaml
var defaultQuests []byte

type ladderFile struct {
	Tiers []league.Tier `yaml:"tiers"`
}

type questFile struct {
	Quests []quest.Definition `yaml:"quests"`
}

// LoadLadder reads the league ladder from path, or the embedded default when path is empty.
func LoadLadder(path string) (*league.Ladder, error) {
	raw, err := readOrDefault(path, defaultLeagueTiers)
	if err != nil {
		return nil, err
	}
	return ParseLadder(raw)
}

// ParseLadder decodes and validates a YAML ladder document.
func ParseLadder(raw []byte) (*league.Ladder, error) {
	var f ladderFile
	if err := decodeStrict(raw, &f); err != nil {
		return nil, fmt.Errorf("league tiers: %w", err)
	}
	ladder, err := league.NewLadder(f.Tiers)
	if err != nil {
		return nil, fmt.Errorf("league tiers: %w", err)
	}
	return ladder, nil
}

// LoadCatalog reads the quest catalog from path, or the embedded default when path is empty.
func LoadCatalog(path string) (*quest.Catalog, error) {
	raw, err := readOrDefault(path, defaultQuests)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a YAML quest catalog.
func ParseCatalog(raw []byte) (*quest.Catalog, error) {
	var f questFile
	if err := decodeStrict(raw, &f); err != nil {
		return nil, fmt.Errorf("quests: %w", err)
	}
	catalog, err := quest.NewCatalog(f.Quests)
	if err != nil {
		return nil, fmt.Errorf("quests: %w", err)
	}
	return catalog, nil
}

// Gamification bundles the validated ladder and catalog.
type Gamification struct {
	Ladder  *league.Ladder
	Catalog *quest.Catalog
}

// LoadGamification loads both documents referenced by the config.
func (c GamificationConfig) Load() (*Gamification, error) {
	ladder, err := LoadLadder(c.LeagueTiersFile)
	if err != nil {
		return nil, err
	}
	catalog, err := LoadCatalog(c.QuestsFile)
	if err != nil {
		return nil, err
	}
	return &Gamification{Ladder: ladder, Catalog: catalog}, nil
}

func readOrDefault(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

func decodeStrict(raw []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}
