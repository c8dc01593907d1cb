// Package genome reads consumer genotyping exports into SNP records.
package genome

import (
	"strings"

	"github.com/v64/genome-browser/internal/genotype"
)

// SNP is one genotyped position from the user's export.
type SNP struct {
	RSID       string
	Chromosome string
	Position   int64
	Genotype   string
}

// HasCall reports whether the SNP carries a usable genotype.
func (s *SNP) HasCall() bool {
	return s != nil && !genotype.IsNoCall(s.Genotype)
}

// NormalizeRSID lower-cases and trims an accession ("RS123 " -> "rs123").
func NormalizeRSID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IsRSID reports whether id looks like a dbSNP accession.
func IsRSID(id string) bool {
	id = NormalizeRSID(id)
	if len(id) < 3 || !strings.HasPrefix(id, "rs") {
		return false
	}
	for i := 2; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
