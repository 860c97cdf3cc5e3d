package sanitize

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Lexicon is the versioned keyword and pattern data the sanitizer matches against.
type Lexicon struct {
	Version            string              `yaml:"version"`
	GenericSafe        string              `yaml:"generic_safe"`
	NonVegetarian      []string            `yaml:"non_vegetarian"`
	Egg                []string            `yaml:"egg"`
	AllergenGroups     map[string][]string `yaml:"allergen_groups"`
	Families           map[string][]string `yaml:"families"`
	Units              []string            `yaml:"units"`
	Brands             []string            `yaml:"brands"`
	CorruptionPatterns []string            `yaml:"corruption_patterns"`
	Substitutes        map[string][]string `yaml:"substitutes"`
}

// DefaultLexicon returns the lexicon compiled into the binary.
func DefaultLexicon() (Lexicon, error) {
	return ParseLexicon(defaultLexicon)
}

// ParseLexicon decodes YAML lexicon data.
func ParseLexicon(data []byte) (Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("decode lexicon: %w", err)
	}
	if err := lex.validate(); err != nil {
		return Lexicon{}, err
	}
	return lex, nil
}

func (l Lexicon) validate() error {
	var errs []error
	if strings.TrimSpace(l.Version) == "" {
		errs = append(errs, errors.New("lexicon version is required"))
	}
	if strings.TrimSpace(l.GenericSafe) == "" {
		errs = append(errs, errors.New("generic_safe phrase is required"))
	}
	if len(l.NonVegetarian) == 0 {
		errs = append(errs, errors.New("non_vegetarian list is empty"))
	}
	if len(l.Egg) == 0 {
		errs = append(errs, errors.New("egg list is empty"))
	}
	for _, slot := range []string{"breakfast", "lunch", "dinner", "other"} {
		if len(l.Substitutes[slot]) == 0 {
			errs = append(errs, fmt.Errorf("no substitutes for %s", slot))
		}
	}
	return errors.Join(errs...)
}

// expand resolves "@family" references and the built-in "@egg" list.
func (l Lexicon) expand(terms []string) []string {
	var out []string
	for _, t := range terms {
		name, ok := strings.CutPrefix(t, "@")
		if !ok {
			out = append(out, t)
			continue
		}
		switch name {
		case "egg":
			out = append(out, l.Egg...)
		case "non_vegetarian":
			out = append(out, l.NonVegetarian...)
		default:
			out = append(out, l.Families[name]...)
		}
	}
	return out
}
