// Package repute derives the display polarity of a user's genotype from
// its structured label, its matched genotype-table text, and the SNP-level
// repute reported by the wiki.
package repute

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/v64/genome-browser/internal/genotype"
	"github.com/v64/genome-browser/internal/label"
)

// Polarity is a good/bad/neutral judgment. The zero value means "no badge".
type Polarity string

const (
	None    Polarity = ""
	Good    Polarity = "good"
	Bad     Polarity = "bad"
	Neutral Polarity = "neutral"
)

// ParsePolarity maps wiki repute strings to a Polarity; anything
// unrecognized becomes None.
func ParsePolarity(s string) Polarity {
	switch p := Polarity(strings.ToLower(strings.TrimSpace(s))); p {
	case Good, Bad, Neutral:
		return p
	}
	return None
}

// Rule is one step of the text heuristic. Rules run in order and the
// first that decides wins.
type Rule struct {
	Name   string
	Decide func(s *Scan) (Polarity, bool)
}

// Scan is the state shared by rules while classifying one text.
type Scan struct {
	Text    string // case-folded interpretation
	Default Polarity
	Negated bool
	phrases *Phrases
}

// Classifier applies the label tier, the matcher tier and the ordered text rules.
type Classifier struct {
	phrases Phrases
	rules   []Rule
}

// NewClassifier creates a classifier using p (see DefaultPhrases).
func NewClassifier(p Phrases) *Classifier {
	c := &Classifier{phrases: p.folded()}
	c.rules = defaultRules()
	return c
}

// RuleNames returns the text-rule order, for review and tests.
func (c *Classifier) RuleNames() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}

// Classify returns the effective polarity of userGenotype.
//
// A valid structured label decides outright. Otherwise the genotype is
// reconciled against table; without interpretation text the result is
// None. The text is then run through the rule list.
func (c *Classifier) Classify(table map[string]string, userGenotype string, def Polarity, lbl label.Label) Polarity {
	if p, ok := FromLabel(lbl); ok {
		return p
	}

	m := genotype.MatchGenotype(table, userGenotype)
	if !m.Found() || strings.TrimSpace(m.Interpretation) == "" {
		return None
	}
	return c.ClassifyText(m.Interpretation, def)
}

// ClassifyText runs the text rules over interpretation.
func (c *Classifier) ClassifyText(interpretation string, def Polarity) Polarity {
	s := &Scan{
		Text:    fold(interpretation),
		Default: def,
		phrases: &c.phrases,
	}
	s.Negated = containsAny(s.Text, c.phrases.Negating)

	for _, r := range c.rules {
		if p, ok := r.Decide(s); ok {
			return p
		}
	}
	return def
}

// FromLabel maps a structured label onto a polarity. ok is false when lbl
// is empty or outside the vocabulary.
func FromLabel(lbl label.Label) (Polarity, bool) {
	switch label.Label(strings.ToLower(string(lbl))) {
	case label.Risk, label.Abnormal:
		return Bad, true
	case label.Protective:
		return Good, true
	case label.Normal, label.Neutral, label.Carrier, label.Rare:
		return None, true
	}
	return None, false
}

func defaultRules() []Rule {
	return []Rule{
		{Name: "risk", Decide: func(s *Scan) (Polarity, bool) {
			if s.Negated {
				return None, false
			}
			if hasPathogenic(s.Text) || containsAny(s.Text, s.phrases.Risk) {
				return Bad, true
			}
			return None, false
		}},
		{Name: "good", Decide: func(s *Scan) (Polarity, bool) {
			return Good, containsAny(s.Text, s.phrases.Good)
		}},
		{Name: "normal-word", Decide: func(s *Scan) (Polarity, bool) {
			t := strings.TrimSpace(s.Text)
			for _, w := range s.phrases.NormalWords {
				if t == w {
					return None, true
				}
			}
			return None, false
		}},
		{Name: "normal-phrase", Decide: func(s *Scan) (Polarity, bool) {
			return None, containsAny(s.Text, s.phrases.Normal)
		}},
		{Name: "negated-bad-default", Decide: func(s *Scan) (Polarity, bool) {
			return None, s.Default == Bad && s.Negated
		}},
		{Name: "negated", Decide: func(s *Scan) (Polarity, bool) {
			return None, s.Negated
		}},
		{Name: "default", Decide: func(s *Scan) (Polarity, bool) {
			return s.Default, true
		}},
	}
}

// hasPathogenic reports a bare "pathogenic" that is not part of a negated form.
func hasPathogenic(text string) bool {
	return strings.Contains(text, "pathogenic") &&
		!strings.Contains(text, "non-pathogenic") &&
		!strings.Contains(text, "not pathogenic")
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func fold(s string) string {
	return cases.Fold().String(s)
}
