package genotype

// Tier identifies which reconciliation rule produced a match.
type Tier int

const (
	TierNone Tier = iota
	TierDirect
	TierReversed
	TierComplement
	TierComplementReversed
	// TierOppositeStrand means the table's alleles only make sense for the
	// complemented genotype, but the table has no text for it.
	TierOppositeStrand
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierReversed:
		return "reversed"
	case TierComplement:
		return "complement"
	case TierComplementReversed:
		return "complement-reversed"
	case TierOppositeStrand:
		return "opposite-strand"
	default:
		return "none"
	}
}

// Match is the outcome of reconciling a user genotype against a genotype table.
type Match struct {
	// Interpretation is the table text for the matched key; empty when none was found.
	Interpretation string
	// Key is the genotype in the table's orientation. It is set for every
	// tier except TierNone, including TierOppositeStrand where the
	// interpretation is empty.
	Key  string
	Tier Tier
}

// Found reports whether an interpretation was located.
func (m Match) Found() bool {
	return m.Tier != TierNone && m.Tier != TierOppositeStrand
}

// MatchGenotype finds the table entry describing userGenotype.
//
// Keys are tried in order: direct, reversed, complement, complement
// reversed. When no key matches but the user's alleles are disjoint from
// every allele used in the table while the complemented alleles are not,
// the complemented genotype is returned without interpretation.
func MatchGenotype(table map[string]string, userGenotype string) Match {
	if len(table) == 0 || IsNoCall(userGenotype) {
		return Match{}
	}

	g := Normalize(userGenotype)
	comp := Complement(g)

	candidates := [...]struct {
		key  string
		tier Tier
	}{
		{g, TierDirect},
		{Reverse(g), TierReversed},
		{comp, TierComplement},
		{Reverse(comp), TierComplementReversed},
	}
	for _, c := range candidates {
		if text, ok := table[c.key]; ok {
			return Match{Interpretation: text, Key: c.key, Tier: c.tier}
		}
	}

	tableAlleles := make(map[byte]struct{})
	for key := range table {
		for a := range alleleSet(Normalize(key)) {
			tableAlleles[a] = struct{}{}
		}
	}
	if !overlaps(alleleSet(g), tableAlleles) && overlaps(alleleSet(comp), tableAlleles) {
		return Match{Key: comp, Tier: TierOppositeStrand}
	}
	return Match{}
}

func overlaps(a, b map[byte]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
