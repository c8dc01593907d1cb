package enrich

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/genotype"
	"github.com/v64/genome-browser/internal/label"
	"github.com/v64/genome-browser/internal/oracle"
	"github.com/v64/genome-browser/internal/repute"
)

const systemPrompt = `You explain personal genetics to people without a genetics background.
Be accurate, say when evidence is weak, and never give medical advice.`

// FormatContext renders what is known about a SNP for a prompt. The
// table entry matching the user's genotype is marked.
func FormatContext(snp genome.SNP, a *annotation.Annotation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (Your genotype: %s)\n", snp.RSID, snp.Genotype)
	if a == nil {
		fmt.Fprintf(&b, "Location: Chr%s:%d\n", snp.Chromosome, snp.Position)
		return strings.TrimSpace(b.String())
	}
	if a.Gene != "" {
		fmt.Fprintf(&b, "Gene: %s\n", a.Gene)
	}
	fmt.Fprintf(&b, "Location: Chr%s:%d\n", snp.Chromosome, snp.Position)
	if a.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", a.Summary)
	}
	if a.Magnitude != nil {
		fmt.Fprintf(&b, "Importance: %s/10\n", formatMagnitude(*a.Magnitude))
	}
	if a.Repute != repute.None {
		fmt.Fprintf(&b, "Effect: %s\n", a.Repute)
	}
	mine := genotype.MatchGenotype(a.Genotypes, snp.Genotype)
	yours := ""
	if mine.Found() {
		yours = mine.Key
	}
	writeGenotypes(&b, a.Genotypes, yours)
	if len(a.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(a.Categories, ", "))
	}
	return strings.TrimSpace(b.String())
}

func writeGenotypes(b *strings.Builder, table map[string]string, yours string) {
	if len(table) == 0 {
		return
	}
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("Genotype interpretations:\n")
	for _, k := range keys {
		marker := ""
		if k == yours {
			marker = " (YOUR GENOTYPE)"
		}
		fmt.Fprintf(b, "  - %s%s: %s\n", k, marker, table[k])
	}
}

func formatMagnitude(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

// ImprovePrompt asks for a plain-language rewrite of the annotation plus a
// classification line for the user's genotype.
func ImprovePrompt(snp genome.SNP, a *annotation.Annotation) string {
	labels := make([]string, len(label.Labels))
	for i, l := range label.Labels {
		labels[i] = string(l)
	}
	return fmt.Sprintf(`I have this SNP annotation from SNPedia that needs to be rewritten in clearer, more accessible language.

Current annotation data:
%s

Please provide:
1. A clear, concise summary (2-3 sentences) explaining what this SNP does and why it matters
2. For each genotype variant, a clear explanation of what it means in plain English
3. A few short lower-case topic tags (for example "cardiovascular", "metabolism")

Return your response as JSON with this exact format:
{
    "summary": "Your improved summary here",
    "genotype_info": {
        "AA": "What having AA means",
        "AG": "What having AG means",
        "GG": "What having GG means"
    },
    "tags": ["tag1", "tag2"]
}

Only include genotypes that are actually relevant for this SNP. Make the language accessible to someone without a genetics background. Focus on practical implications.

After the JSON, add one final line classifying the genotype %s:
CLASSIFICATION: <label> | <confidence> | <population frequency in percent, or unknown>
where <label> is one of %s and <confidence> is one of high, medium, low.`,
		FormatContext(snp, a), snp.Genotype, strings.Join(labels, ", "))
}

// ErrUnparseableReply is returned when the oracle reply lacks a usable
// JSON object.
var ErrUnparseableReply = errors.New("unparseable oracle reply")

// Reply is the parsed answer to ImprovePrompt.
type Reply struct {
	Summary   string
	Genotypes map[string]string
	Tags      []string
	// Label is nil when the reply carried no classification line.
	Label *label.Extraction
	// Display is the reply with the classification line removed.
	Display string
}

// ParseReply extracts the improvement from an oracle reply. Non-string
// genotype texts and tags are dropped.
func ParseReply(text string) (*Reply, error) {
	ext, display := label.Extract(text)

	var raw struct {
		Summary      string         `json:"summary"`
		GenotypeInfo map[string]any `json:"genotype_info"`
		Tags         []any          `json:"tags"`
	}
	if err := oracle.ExtractJSONObject(display, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableReply, err)
	}
	summary := strings.TrimSpace(raw.Summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: empty summary", ErrUnparseableReply)
	}

	r := &Reply{Summary: summary, Label: ext, Display: display}
	table := make(map[string]string, len(raw.GenotypeInfo))
	for k, v := range raw.GenotypeInfo {
		if s, ok := v.(string); ok {
			table[k] = s
		}
	}
	if t := annotation.NormalizeTable(table); len(t) > 0 {
		r.Genotypes = t
	}
	for _, v := range raw.Tags {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			r.Tags = append(r.Tags, strings.TrimSpace(s))
		}
	}
	return r, nil
}
