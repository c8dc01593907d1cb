// Package label defines the closed genotype-label vocabulary and parses
// the machine-readable classification line the oracle appends to its answers.
package label

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Label classifies a user's genotype at one SNP.
type Label string

const (
	Normal     Label = "normal"
	Abnormal   Label = "abnormal"
	Rare       Label = "rare"
	Protective Label = "protective"
	Risk       Label = "risk"
	Carrier    Label = "carrier"
	Neutral    Label = "neutral"
)

// Labels lists the full vocabulary in display order.
var Labels = []Label{Normal, Abnormal, Rare, Protective, Risk, Carrier, Neutral}

// Confidence grades how sure the classifier was.
type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

// Confidences lists the confidence vocabulary.
var Confidences = []Confidence{High, Medium, Low}

var (
	// ErrInvalidLabel is returned when a label outside the vocabulary is supplied.
	ErrInvalidLabel = errors.New("invalid genotype label")
	// ErrInvalidConfidence is returned when a confidence outside the vocabulary is supplied.
	ErrInvalidConfidence = errors.New("invalid confidence")
)

// Valid reports whether l belongs to the vocabulary.
func (l Label) Valid() bool {
	for _, v := range Labels {
		if l == v {
			return true
		}
	}
	return false
}

// Valid reports whether c belongs to the vocabulary.
func (c Confidence) Valid() bool {
	switch c {
	case High, Medium, Low:
		return true
	}
	return false
}

// ParseLabel validates s strictly. It is used for user- and system-supplied
// labels, where an unknown value is a mistake rather than model noise.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, s)
	}
	return l, nil
}

// ParseConfidence validates s strictly. An empty string is allowed and
// yields an empty confidence.
func ParseConfidence(s string) (Confidence, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	c := Confidence(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidConfidence, s)
	}
	return c, nil
}

// GenotypeLabel is the stored label record for one SNP.
type GenotypeLabel struct {
	RSID       string
	Label      Label
	Confidence Confidence
	// Frequency is the population frequency in percent, nil when unknown.
	Frequency *float64
	Notes     string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the record before it is persisted.
func (g GenotypeLabel) Validate() error {
	if g.RSID == "" {
		return errors.New("genotype label: empty rsid")
	}
	if !g.Label.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, string(g.Label))
	}
	if g.Confidence != "" && !g.Confidence.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidConfidence, string(g.Confidence))
	}
	if g.Frequency != nil && (*g.Frequency < 0 || *g.Frequency > 100) {
		return fmt.Errorf("genotype label: frequency %.2f out of range", *g.Frequency)
	}
	return nil
}

// Count is a label with the number of SNPs carrying it.
type Count struct {
	Label Label
	Count int64
}
