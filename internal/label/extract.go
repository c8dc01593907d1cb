package label

import (
	"regexp"
	"strconv"
	"strings"
)

// classificationLine matches "CLASSIFICATION: label | confidence | frequency"
// on a line of its own.
var classificationLine = regexp.MustCompile(`(?im)^[ \t*_>-]*CLASSIFICATION[ \t*_]*:[ \t]*([^|\n]*)\|([^|\n]*)\|([^\n]*)$`)

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%?`)

// Extraction is a classification parsed from model output.
type Extraction struct {
	Label      Label
	Confidence Confidence
	// Frequency is the population frequency in percent, nil when absent.
	Frequency *float64
}

// Extract parses the last classification line in text and returns it with
// the display text (text minus that line). When no line is present it
// returns nil and the trimmed text unchanged.
//
// Unknown labels become Neutral and unknown confidences become Medium:
// the producer is a language model and partial answers are still useful.
func Extract(text string) (*Extraction, string) {
	locs := classificationLine.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil, strings.TrimSpace(text)
	}
	loc := locs[len(locs)-1]

	field := func(i int) string {
		return strings.TrimSpace(text[loc[2*i]:loc[2*i+1]])
	}

	ext := &Extraction{
		Label:      coerceLabel(field(1)),
		Confidence: coerceConfidence(field(2)),
		Frequency:  parseFrequency(field(3)),
	}

	display := strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	return ext, display
}

func coerceLabel(s string) Label {
	l := Label(strings.ToLower(strings.Trim(s, " \t*_`'\".")))
	if l.Valid() {
		return l
	}
	return Neutral
}

func coerceConfidence(s string) Confidence {
	c := Confidence(strings.ToLower(strings.Trim(s, " \t*_`'\".")))
	if c.Valid() {
		return c
	}
	return Medium
}

func parseFrequency(s string) *float64 {
	m := percentPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil || f > 100 {
		return nil
	}
	return &f
}
