package snpedia

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/repute"
)

// GenotypePages lists the genotype page suffixes probed for every SNP.
var GenotypePages = []string{
	"A;A", "A;C", "A;G", "A;T", "C;C", "C;G", "C;T", "G;G", "G;T", "T;T",
	"A;-", "C;-", "G;-", "T;-", "-;-", "I;I", "D;D", "I;D",
}

// GenotypePageName returns the wiki page name for rsid at genotype gt,
// e.g. ("rs1801133", "C;C") -> "Rs1801133(C;C)".
func GenotypePageName(rsid, gt string) string {
	rsid = strings.ToLower(rsid)
	if len(rsid) >= 2 {
		rsid = strings.ToUpper(rsid[:1]) + rsid[1:]
	}
	return rsid + "(" + gt + ")"
}

var (
	magnitudeRe = regexp.MustCompile(`(?i)\|magnitude\s*=\s*([\d.]+)`)
	reputeRe    = regexp.MustCompile(`(?i)\|repute\s*=\s*(\w+)`)
	geneRe      = regexp.MustCompile(`(?i)\|gene\s*=\s*([^|}]+)`)
	gtSummaryRe = regexp.MustCompile(`(?i)\|summary\s*=\s*([^|}]+)`)
	referenceRe = regexp.MustCompile(`\[https?://[^\]]+\]`)
	refURLRe    = regexp.MustCompile(`\[(https?://[^\s\]]+)`)

	templateRe  = regexp.MustCompile(`\{\{[^}]+\}\}`)
	wikiLinkRe  = regexp.MustCompile(`\[\[([^\]|]+)\|?([^\]]*)\]\]`)
	boldRe      = regexp.MustCompile(`'''?`)
	namedLinkRe = regexp.MustCompile(`\[https?://[^\]\s]+\s+([^\]]+)\]`)
	bareLinkRe  = regexp.MustCompile(`\[https?://[^\]]+\]`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

const maxReferences = 5

// ParseWikitext extracts an annotation from a main SNP page.
func ParseWikitext(rsid, wikitext string, categories []string) *annotation.Annotation {
	a := &annotation.Annotation{
		RSID:       strings.ToLower(rsid),
		Summary:    ExtractSummary(wikitext),
		Magnitude:  parseMagnitude(wikitext),
		Repute:     parseRepute(wikitext),
		Categories: annotation.MapCategories(categories),
		Source:     annotation.SourceWiki,
	}
	if m := geneRe.FindStringSubmatch(wikitext); m != nil {
		a.Gene = strings.TrimSpace(m[1])
	}
	refs := referenceRe.FindAllString(wikitext, maxReferences)
	for _, ref := range refs {
		a.References = append(a.References, extractURL(ref))
	}
	return a
}

func parseMagnitude(wikitext string) *float64 {
	m := magnitudeRe.FindStringSubmatch(wikitext)
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseRepute(wikitext string) repute.Polarity {
	m := reputeRe.FindStringSubmatch(wikitext)
	if m == nil {
		return repute.None
	}
	return repute.ParsePolarity(m[1])
}

// ExtractGenotypeSummary returns the summary field of a genotype page, or
// "" when it is missing or too short to be useful.
func ExtractGenotypeSummary(wikitext string) string {
	m := gtSummaryRe.FindStringSubmatch(wikitext)
	if m == nil {
		return ""
	}
	s := strings.TrimSpace(m[1])
	if len(s) <= 5 {
		return ""
	}
	return s
}

// ExtractSummary strips wiki markup from a page and keeps up to three
// leading sentences longer than 20 characters. Redirects yield "".
func ExtractSummary(wikitext string) string {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(wikitext)), "#REDIRECT") {
		return ""
	}

	text := templateRe.ReplaceAllString(wikitext, "")
	text = wikiLinkRe.ReplaceAllStringFunc(text, func(s string) string {
		m := wikiLinkRe.FindStringSubmatch(s)
		if m[2] != "" {
			return m[2]
		}
		return m[1]
	})
	text = boldRe.ReplaceAllString(text, "")
	text = namedLinkRe.ReplaceAllString(text, "$1")
	text = bareLinkRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))

	sentences := strings.Split(text, ".")
	if len(sentences) > 3 {
		sentences = sentences[:3]
	}
	var parts []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len(s) > 20 {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

func extractURL(ref string) string {
	if m := refURLRe.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	return ref
}

// genotypeFacts is what a single genotype page contributes.
type genotypeFacts struct {
	summary   string
	magnitude *float64
	repute    repute.Polarity
}

func parseGenotypePage(wikitext string) genotypeFacts {
	return genotypeFacts{
		summary:   ExtractGenotypeSummary(wikitext),
		magnitude: parseMagnitude(wikitext),
		repute:    parseRepute(wikitext),
	}
}
