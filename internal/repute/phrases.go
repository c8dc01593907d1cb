package repute

// Phrases holds the substring tables consulted by the text heuristics.
// All matching is case-insensitive. The lists are configuration: an empty
// list in an override keeps the default.
type Phrases struct {
	Risk        []string `mapstructure:"risk_phrases" yaml:"risk_phrases"`
	Negating    []string `mapstructure:"negating_phrases" yaml:"negating_phrases"`
	Good        []string `mapstructure:"good_phrases" yaml:"good_phrases"`
	Normal      []string `mapstructure:"normal_phrases" yaml:"normal_phrases"`
	NormalWords []string `mapstructure:"normal_words" yaml:"normal_words"`
}

// DefaultPhrases returns the built-in tables.
func DefaultPhrases() Phrases {
	return Phrases{
		Risk: []string{
			"increased risk", "elevated risk", "higher risk", "greater risk",
			"risk factor", "risk variant", "risk allele",
			"fold increased", "fold higher", "-fold risk", "x increased",
			"increased susceptibility", "predisposition", "predisposed", "prone to",
			"likely pathogenic", "causes ", "associated with disease",
			"loss of function", "reduced function", "decreased function",
			"deficient", "deficiency", "impaired function",
			"carriers of this genotype face", "carriers face",
			"reduced memory", "lower performance", "reduced performance",
			"lack the beneficial", "lacks the protective",
			"intermediate risk",
		},
		Negating: []string{
			"no increased risk", "not associated with increased",
			"not associated with a significantly increased",
			"not associated with a higher", "not associated with any increased",
			"do not have increased risk", "does not have increased risk",
			"don't have increased risk", "doesn't have increased risk",
			"does not confer", "no elevated risk", "without the elevated risk",
			"typical risk", "normal risk", "baseline risk", "average risk",
			"standard population risk", "population risk",
			"reduced susceptibility", "lowest odds", "lowest risk", "lower odds",
			"protective allele", "protective variant",
			"non-pathogenic", "not pathogenic", "benign",
			"common reference genotype", "reference genotype",
			"normal function", "typical function",
			"normal allele", "not a carrier", "is not a carrier",
			"homozygous for the normal", "heterozygous for the normal",
			"'normal' variant", `"normal" variant`, "normal variant",
			"'common' variant", `"common" variant`, "common variant",
		},
		Good: []string{
			"this genotype is protective", "this is the protective",
			"protective genotype", "protective variant",
			"this genotype reduces risk", "this genotype lowers risk",
			"this genotype is beneficial", "this genotype is favorable",
			"confers protection", "provides protection",
		},
		Normal: []string{
			"normal function", "normal genotype", "typical genotype", "common genotype",
			"normal allele", "standard population risk", "typical risk", "average risk",
			"wild-type", "wildtype", "wild type", "reference allele", "reference genotype",
			"most common", "majority of", "vast majority",
			"does not carry", "do not carry", "not a carrier", "not carrier",
			"without the mutation", "is not a carrier",
			"normal metabolizer", "extensive metabolizer",
			"homozygous for the normal", "heterozygous for the normal",
		},
		NormalWords: []string{"normal", "common", "typical", "standard", "wild-type", "wildtype"},
	}
}

// Merge returns p with every non-empty list in override replacing its counterpart.
func (p Phrases) Merge(override Phrases) Phrases {
	pick := func(base, o []string) []string {
		if len(o) > 0 {
			return o
		}
		return base
	}
	return Phrases{
		Risk:        pick(p.Risk, override.Risk),
		Negating:    pick(p.Negating, override.Negating),
		Good:        pick(p.Good, override.Good),
		Normal:      pick(p.Normal, override.Normal),
		NormalWords: pick(p.NormalWords, override.NormalWords),
	}
}

func (p Phrases) folded() Phrases {
	f := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = fold(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return Phrases{
		Risk:        f(p.Risk),
		Negating:    f(p.Negating),
		Good:        f(p.Good),
		Normal:      f(p.Normal),
		NormalWords: f(p.NormalWords),
	}
}
