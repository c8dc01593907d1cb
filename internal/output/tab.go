// Package output provides report formatters for the command line.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/v64/genome-browser/internal/enrich"
)

// TabWriter writes variant views in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#RSID",
			"Location",
			"Genotype",
			"Gene",
			"Magnitude",
			"Repute",
			"Effective_repute",
			"Label",
			"Match",
			"Interpretation",
			"Source",
			"Favorite",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single variant view.
func (tw *TabWriter) Write(v *enrich.View) error {
	snp := v.SNP
	location := fmt.Sprintf("%s:%d", snp.Chromosome, snp.Position)

	gene, magnitude, rep, source := "-", "-", "-", "-"
	if a := v.Annotation; a != nil {
		gene = orDash(a.Gene)
		if a.Magnitude != nil {
			magnitude = strconv.FormatFloat(*a.Magnitude, 'f', -1, 64)
		}
		rep = orDash(string(a.Repute))
		source = orDash(string(a.Source))
	}

	lbl := "-"
	if v.Label != nil {
		lbl = string(v.Label.Label)
	}

	match := "-"
	if v.Match.Key != "" {
		match = v.Match.Key + "/" + v.Match.Tier.String()
	}

	favorite := "-"
	if v.Favorite {
		favorite = "YES"
	}

	values := []string{
		snp.RSID,
		location,
		orDash(snp.Genotype),
		gene,
		magnitude,
		rep,
		orDash(string(v.Effective)),
		lbl,
		match,
		orDash(cell(v.Match.Interpretation)),
		source,
		favorite,
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// cell flattens s so it cannot break the row layout.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}
