// Package genotype provides genotype normalization and strand reconciliation.
package genotype

import "strings"

// NoCall is the sentinel a genotyping chip reports when it could not call a position.
const NoCall = "--"

// Normalize returns the canonical form of a raw genotype call:
// separators (';' and '/') removed, alleles upper-cased.
// "A;g" and "a/G" both normalize to "AG".
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == ';' || c == '/':
			continue
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// IsNoCall reports whether raw carries no usable genotype.
func IsNoCall(raw string) bool {
	g := Normalize(strings.TrimSpace(raw))
	return g == "" || g == NoCall
}

// Complement returns the DNA complement of a canonical genotype.
// Insertion/deletion codes (I, D) and other non-base characters are kept as-is.
func Complement(g string) string {
	n := len(g)
	var buf [8]byte
	var result []byte
	if n <= len(buf) {
		result = buf[:n]
	} else {
		result = make([]byte, n)
	}
	for i := 0; i < n; i++ {
		result[i] = complementAllele(g[i])
	}
	return string(result)
}

// complementAllele returns the Watson-Crick partner of a single allele.
func complementAllele(a byte) byte {
	switch a {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'G':
		return 'C'
	case 'C':
		return 'G'
	default:
		return a
	}
}

// Reverse swaps allele order ("AG" -> "GA").
func Reverse(g string) string {
	n := len(g)
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = g[n-1-i]
	}
	return string(b)
}

// alleleSet returns the distinct alleles in g.
func alleleSet(g string) map[byte]struct{} {
	set := make(map[byte]struct{}, len(g))
	for i := 0; i < len(g); i++ {
		set[g[i]] = struct{}{}
	}
	return set
}
