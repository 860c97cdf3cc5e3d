package sanitize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"mealrecal/plan"
)

// Reason names the check that forced a replacement.
type Reason string

const (
	ReasonCorrupt       Reason = "corrupt"
	ReasonNonVegetarian Reason = "non_vegetarian"
	ReasonEgg           Reason = "egg"
	ReasonAllergen      Reason = "allergen"
	ReasonDislike       Reason = "dislike"
)

// Finding describes what Check did to one slot.
type Finding struct {
	Slot     plan.MealType
	Original string
	Replaced bool
	Reason   Reason
	Match    string
}

// Sanitizer rewrites meal text that is corrupt or breaks a dietary constraint. It is safe for
// concurrent use; every method is total and idempotent.
type Sanitizer struct {
	lex           Lexicon
	nonVegetarian *matcher
	egg           *matcher
	unit          *regexp.Regexp
	patterns      []*regexp.Regexp
	brands        map[string]bool

	mu      sync.Mutex
	dynamic map[string]*matcher
}

// New compiles a lexicon. Substitutes that would themselves be rewritten are rejected.
func New(lex Lexicon) (*Sanitizer, error) {
	s := &Sanitizer{
		lex:     lex,
		brands:  make(map[string]bool, len(lex.Brands)),
		dynamic: make(map[string]*matcher),
	}

	var err error
	if s.nonVegetarian, err = newMatcher(lex.NonVegetarian); err != nil {
		return nil, fmt.Errorf("non_vegetarian lexicon: %w", err)
	}
	if s.egg, err = newMatcher(lex.Egg); err != nil {
		return nil, fmt.Errorf("egg lexicon: %w", err)
	}

	if len(lex.Units) > 0 {
		units := make([]string, 0, len(lex.Units))
		for _, u := range sortedTerms(lex.Units) {
			units = append(units, regexp.QuoteMeta(u))
		}
		s.unit, err = regexp.Compile(`^[\d\s.,/½¼¾⅓⅔]*(?:` + strings.Join(units, "|") + `)(?:s|es)?\.?$`)
		if err != nil {
			return nil, fmt.Errorf("units: %w", err)
		}
	}

	for _, p := range lex.CorruptionPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("corruption pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}

	for _, b := range lex.Brands {
		s.brands[strings.ToLower(strings.TrimSpace(b))] = true
	}

	strict := plan.Constraints{Vegetarian: true, NoEggs: true}
	candidates := []string{lex.GenericSafe}
	for _, subs := range lex.Substitutes {
		candidates = append(candidates, subs...)
	}
	for _, c := range candidates {
		if s.corrupt(c) {
			return nil, fmt.Errorf("substitute %q is flagged as corrupt", c)
		}
		if reason, match, bad := s.violation(c, strict); bad {
			return nil, fmt.Errorf("substitute %q violates %s (%q)", c, reason, match)
		}
	}
	return s, nil
}

// NewDefault compiles the embedded lexicon.
func NewDefault() (*Sanitizer, error) {
	lex, err := DefaultLexicon()
	if err != nil {
		return nil, err
	}
	return New(lex)
}

// LexiconVersion identifies the lexicon revision in use.
func (s *Sanitizer) LexiconVersion() string { return s.lex.Version }

// GenericSafe is the phrase used when no slot-specific substitute fits.
func (s *Sanitizer) GenericSafe() string { return s.lex.GenericSafe }

// Sanitize returns text, or a constraint-safe replacement for it.
func (s *Sanitizer) Sanitize(text string, slot plan.MealType, c plan.Constraints) string {
	out, _ := s.Check(text, slot, c)
	return out
}

// Check is Sanitize plus a description of what was replaced and why. Placeholder text is
// returned unchanged: rejecting placeholder-only plans is the validator's job.
func (s *Sanitizer) Check(text string, slot plan.MealType, c plan.Constraints) (string, Finding) {
	f := Finding{Slot: slot, Original: text}
	out := text

	switch {
	case strings.TrimSpace(text) == "":
		out, f.Reason = s.lex.GenericSafe, ReasonCorrupt
	case plan.IsPlaceholder(text):
		return text, f
	case s.corrupt(text):
		out, f.Reason = s.lex.GenericSafe, ReasonCorrupt
	}

	if reason, match, bad := s.violation(out, c); bad {
		if f.Reason == "" {
			f.Reason, f.Match = reason, match
		}
		out = s.substitute(slot, c)
	}

	f.Replaced = out != text
	return out, f
}

// SanitizeMeals checks every slot of a plan.
func (s *Sanitizer) SanitizeMeals(meals map[plan.MealType]string, c plan.Constraints) (map[plan.MealType]string, []Finding) {
	out := make(map[plan.MealType]string, len(meals))
	var findings []Finding
	for _, mt := range plan.MealTypes {
		text, ok := meals[mt]
		if !ok {
			continue
		}
		clean, f := s.Check(text, mt, c)
		out[mt] = clean
		if f.Replaced {
			findings = append(findings, f)
		}
	}
	return out, findings
}

// Contains reports the first keyword of the named lexicon found in text. It exposes the
// matcher used by Check so callers can assert coverage.
func (s *Sanitizer) Contains(text string, reason Reason) (string, bool) {
	switch reason {
	case ReasonNonVegetarian:
		return s.nonVegetarian.find(text)
	case ReasonEgg:
		return s.egg.find(text)
	}
	return "", false
}

func (s *Sanitizer) corrupt(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimSpace(strings.Trim(t, "®™"))
	if t == "" {
		return true
	}
	if repeatedRune(t) {
		return true
	}
	if s.brands[strings.TrimRight(t, ".!")] {
		return true
	}
	if s.unit != nil && s.unit.MatchString(t) {
		return true
	}
	for _, re := range s.patterns {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

func (s *Sanitizer) violation(text string, c plan.Constraints) (Reason, string, bool) {
	if c.Vegetarian {
		if m, ok := s.nonVegetarian.find(text); ok {
			return ReasonNonVegetarian, m, true
		}
	}
	if c.NoEggs {
		if m, ok := s.egg.find(text); ok {
			return ReasonEgg, m, true
		}
	}
	for _, a := range c.Allergens {
		if m, ok := s.allergenMatcher(a).find(text); ok {
			return ReasonAllergen, m, true
		}
	}
	for _, d := range c.Dislikes {
		if m, ok := s.termMatcher(d).find(text); ok {
			return ReasonDislike, m, true
		}
	}
	return "", "", false
}

func (s *Sanitizer) substitute(slot plan.MealType, c plan.Constraints) string {
	key := "other"
	switch slot {
	case plan.Breakfast, plan.Lunch, plan.Dinner:
		key = string(slot)
	}
	for _, cand := range s.lex.Substitutes[key] {
		if s.corrupt(cand) {
			continue
		}
		if _, _, bad := s.violation(cand, c); bad {
			continue
		}
		return cand
	}
	return s.lex.GenericSafe
}

func (s *Sanitizer) allergenMatcher(allergen string) *matcher {
	a := stem(strings.ToLower(strings.TrimSpace(allergen)))
	terms := []string{a}
	if group, ok := s.lex.AllergenGroups[a]; ok {
		terms = append(terms, s.lex.expand(group)...)
	}
	return s.cached("allergen:"+a, terms)
}

func (s *Sanitizer) termMatcher(term string) *matcher {
	t := stem(strings.ToLower(strings.TrimSpace(term)))
	return s.cached("term:"+t, []string{t})
}

func (s *Sanitizer) cached(key string, terms []string) *matcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.dynamic[key]; ok {
		return m
	}
	// Terms are quoted, so compilation cannot fail; a nil matcher never matches.
	m, _ := newMatcher(terms)
	s.dynamic[key] = m
	return m
}

// stem strips a simple English plural so "peanuts" also matches "peanut butter".
func stem(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 4:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "oes") && len(s) > 4:
		return s[:len(s)-2]
	case strings.HasSuffix(s, "ss"):
		return s
	case strings.HasSuffix(s, "s") && len(s) > 3:
		return s[:len(s)-1]
	}
	return s
}

func repeatedRune(s string) bool {
	if utf8.RuneCountInString(s) < 3 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	for _, r := range s {
		if r != first {
			return false
		}
	}
	return true
}

type matcher struct {
	re *regexp.Regexp
}

func newMatcher(terms []string) (*matcher, error) {
	var alts []string
	for _, t := range sortedTerms(terms) {
		words := strings.Fields(t)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		if len(words) > 0 {
			alts = append(alts, strings.Join(words, `[\s-]+`))
		}
	}
	if len(alts) == 0 {
		return nil, nil
	}
	re, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}])(` + strings.Join(alts, "|") + `)(?:s|es)?(?:[^\p{L}\p{N}]|$)`)
	if err != nil {
		return nil, err
	}
	return &matcher{re: re}, nil
}

func (m *matcher) find(text string) (string, bool) {
	if m == nil {
		return "", false
	}
	sm := m.re.FindStringSubmatch(text)
	if sm == nil {
		return "", false
	}
	return strings.ToLower(sm[1]), true
}

// sortedTerms lower-cases, de-duplicates and orders terms longest first so multi-word
// phrases win over their prefixes.
func sortedTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}
