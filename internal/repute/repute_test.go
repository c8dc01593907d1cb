package repute

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/v64/genome-browser/internal/label"
)

func newDefault() *Classifier {
	return NewClassifier(DefaultPhrases())
}

func TestClassifyText(t *testing.T) {
	c := newDefault()

	tests := []struct {
		name string
		text string
		def  Polarity
		want Polarity
	}{
		{"risk phrase", "2.5x increased risk of migraine", Neutral, Bad},
		{"pathogenic", "Pathogenic variant in BRCA1", None, Bad},
		{"negation before risk", "Not associated with increased risk of disease.", Bad, None},
		{"non-pathogenic", "Non-pathogenic polymorphism", Bad, None},
		{"baseline risk", "This is the common reference genotype with typical, baseline risk.", Bad, None},
		{"good phrase", "This genotype is protective against gout.", Neutral, Good},
		{"negated and protective", "Protective variant; reduced susceptibility.", Bad, Good},
		{"one-word normal", "  Normal ", Bad, None},
		{"normal phrase", "Normal metabolizer of caffeine.", Good, None},
		{"deficiency", "Deficient in lactase persistence", Neutral, Bad},
		{"negation with good default", "benign change", Good, None},
		{"falls through", "Slightly darker hair on average.", Good, Good},
		{"falls through neutral", "Associated with taste perception.", Neutral, Neutral},
		{"falls through unset", "Some prose.", None, None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ClassifyText(tt.text, tt.def))
		})
	}
}

func TestClassify(t *testing.T) {
	c := newDefault()
	table := map[string]string{
		"CC": "This is the common reference genotype with typical, baseline risk.",
		"CT": "1.5x increased risk of thrombosis",
		"TT": "Risk risk risk. Elevated risk of everything.",
	}

	tests := []struct {
		name string
		user string
		def  Polarity
		lbl  label.Label
		want Polarity
	}{
		{"reference genotype", "CC", Bad, "", None},
		{"complement strand risk", "AG", Bad, "", Bad},
		{"label beats risky text", "TT", Bad, label.Protective, Good},
		{"risk label", "CC", Good, label.Risk, Bad},
		{"abnormal label", "CC", Good, label.Abnormal, Bad},
		{"carrier label", "TT", Bad, label.Carrier, None},
		{"invalid label ignored", "TT", Neutral, "bogus", Bad},
		{"no interpretation", "GT", Bad, "", None},
		{"no-call", "--", Bad, "", None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(table, tt.user, tt.def, tt.lbl))
		})
	}
}

func TestClassify_LabelPrecedence(t *testing.T) {
	c := newDefault()
	texts := []string{
		"increased risk",
		"this genotype is protective",
		"normal",
		"",
	}
	want := map[label.Label]Polarity{
		label.Risk: Bad, label.Abnormal: Bad, label.Protective: Good,
		label.Normal: None, label.Neutral: None, label.Carrier: None, label.Rare: None,
	}
	for lbl, p := range want {
		for _, text := range texts {
			table := map[string]string{"AA": text}
			assert.Equal(t, p, c.Classify(table, "AA", Bad, lbl), "label %s text %q", lbl, text)
		}
	}
}

func TestRuleOrder(t *testing.T) {
	c := newDefault()
	assert.Equal(t, []string{
		"risk", "good", "normal-word", "normal-phrase",
		"negated-bad-default", "negated", "default",
	}, c.RuleNames())
}

func TestPhrasesMerge(t *testing.T) {
	base := DefaultPhrases()
	merged := base.Merge(Phrases{Risk: []string{"very bad"}})

	assert.Equal(t, []string{"very bad"}, merged.Risk)
	assert.Equal(t, base.Negating, merged.Negating)

	c := NewClassifier(merged)
	assert.Equal(t, Bad, c.ClassifyText("A VERY BAD outcome", Neutral))
	assert.Equal(t, Neutral, c.ClassifyText("increased risk", Neutral))
}

func TestParsePolarity(t *testing.T) {
	assert.Equal(t, Good, ParsePolarity("Good"))
	assert.Equal(t, Bad, ParsePolarity(" bad "))
	assert.Equal(t, Neutral, ParsePolarity("neutral"))
	assert.Equal(t, None, ParsePolarity("ugly"))
	assert.Equal(t, None, ParsePolarity(""))
}
