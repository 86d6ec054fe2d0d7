package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tradechat-go/internal/dialogue"

	"gopkg.in/yaml.v2"
)

type TypoDictionary struct {
	Typos map[string]string `yaml:"typos"`
}

// LoadTypoDictionary reads extra misspelling corrections from a YAML file
// and merges them over the built-in map. File entries win.
func LoadTypoDictionary(typosFile string) (map[string]string, error) {
	var typosPath string
	if filepath.IsAbs(typosFile) {
		typosPath = typosFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		typosPath = filepath.Join(wd, typosFile)
	}

	data, err := os.ReadFile(typosPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", typosFile, err)
	}

	var dict TypoDictionary
	if err := yaml.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", typosFile, err)
	}

	merged := dialogue.DefaultTypos()
	for typo, canonical := range dict.Typos {
		typo = strings.ToLower(strings.TrimSpace(typo))
		canonical = strings.TrimSpace(canonical)
		if typo == "" {
			return nil, fmt.Errorf("typo dictionary %s has an empty key", typosFile)
		}
		if canonical == "" {
			return nil, fmt.Errorf("typo %q in %s has no correction", typo, typosFile)
		}
		merged[typo] = canonical
	}

	return merged, nil
}
