package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/v64/genome-browser/internal/discovery"
	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/enrich"
	"github.com/v64/genome-browser/internal/knowledge"
	"github.com/v64/genome-browser/internal/label"
)

// WriteResults writes one line per improvement result followed by the
// outcome totals.
func WriteResults(w io.Writer, results []enrich.Result) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%-14s%-10s%v\n", r.RSID, r.Outcome, r.Err)
		case r.Reason != "":
			fmt.Fprintf(w, "%-14s%-10s%s\n", r.RSID, r.Outcome, r.Reason)
		default:
			fmt.Fprintf(w, "%-14s%s\n", r.RSID, r.Outcome)
		}
	}

	totals := enrich.Summarize(results)
	fmt.Fprintf(w, "\nImproved: %d  Skipped: %d  Failed: %d\n",
		totals[enrich.Improved], totals[enrich.Skipped], totals[enrich.Failed])
}

// WriteLabelCounts writes the label distribution, largest first.
func WriteLabelCounts(w io.Writer, counts []label.Count) {
	var total int64
	for _, c := range counts {
		total += c.Count
	}
	fmt.Fprintf(w, "Labels (%d SNPs):\n", total)

	sorted := append([]label.Count(nil), counts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Label < sorted[j].Label
	})
	for _, c := range sorted {
		fmt.Fprintf(w, "  %-14s%d\n", c.Label, c.Count)
	}
}

// WriteLabel writes a single stored label.
func WriteLabel(w io.Writer, l *label.GenotypeLabel) {
	fmt.Fprintf(w, "%s\t%s", l.RSID, l.Label)
	if l.Confidence != "" {
		fmt.Fprintf(w, "\tconfidence=%s", l.Confidence)
	}
	if l.Frequency != nil {
		fmt.Fprintf(w, "\tfrequency=%.1f%%", *l.Frequency)
	}
	if l.Source != "" {
		fmt.Fprintf(w, "\tsource=%s", l.Source)
	}
	fmt.Fprintln(w)
	if l.Notes != "" {
		fmt.Fprintf(w, "  %s\n", l.Notes)
	}
}

// WriteLog writes data log entries, one block per entry.
func WriteLog(w io.Writer, entries []duckdb.LogEntry, maxContent int) {
	for _, e := range entries {
		ref := e.ReferenceID
		if ref == "" {
			ref = "-"
		}
		fmt.Fprintf(w, "%s  %-14s%-24s%s\n",
			e.CreatedAt.Format(time.DateTime), e.Source, e.DataType, ref)
		fmt.Fprintf(w, "    %s\n", Truncate(cell(e.Content), maxContent))
	}
}

// WriteLogStats writes data log totals by source and by type.
func WriteLogStats(w io.Writer, stats duckdb.LogStats) {
	fmt.Fprintf(w, "Data log: %d entries\n", stats.Total)
	writeCounts(w, "By source", stats.BySource)
	writeCounts(w, "By type", stats.ByType)
}

func writeCounts(w io.Writer, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Fprintf(w, "\n  %s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-26s%d\n", k, counts[k])
	}
}

// WriteHits writes knowledge search results.
func WriteHits(w io.Writer, hits []knowledge.Hit, maxContent int) {
	for _, h := range hits {
		e := h.Entry
		fmt.Fprintf(w, "%2d. [%s] %s\n", h.Rank, e.Source, e.Query)
		if len(e.RSIDs) > 0 {
			fmt.Fprintf(w, "    rsids: %s\n", strings.Join(e.RSIDs, ", "))
		}
		fmt.Fprintf(w, "    %s\n", Truncate(cell(e.Content), maxContent))
		fmt.Fprintf(w, "    id: %s\n", e.ID)
	}
}

// WriteStatus writes a discovery worker snapshot on one line, followed by
// any recent errors.
func WriteStatus(w io.Writer, s discovery.Status) {
	state := "stopped"
	if s.Running {
		state = "running"
	}
	current := s.CurrentSNP
	if current == "" {
		current = "-"
	}
	fmt.Fprintf(w, "[%s] cycles=%d explored=%d queue=%d discovered=%d dropped=%d matched=%d improved=%d current=%s\n",
		state, s.Cycles, s.Explored, s.QueueSize, s.Discovered, s.Dropped, s.Matched, s.Improved, current)
	for _, e := range s.RecentErrors {
		fmt.Fprintf(w, "  error %s %s: %s\n", e.Time.Format(time.TimeOnly), e.Context, e.Error)
	}
}

// WriteActivity writes lines from the worker's activity log.
func WriteActivity(w io.Writer, lines []discovery.LogLine) {
	for _, l := range lines {
		fmt.Fprintf(w, "%s %-5s %s\n", l.Time.Format(time.TimeOnly), l.Level, l.Message)
	}
}

// Truncate shortens s to maxLen runes, adding "..." if truncated.
// maxLen <= 0 disables truncation.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Stats summarizes the contents of the database.
type Stats struct {
	File        *duckdb.GenomeFile
	SNPs        int64
	Chromosomes map[string]int64
	Annotations int64
	Labeled     int64
	Favorites   int
	Pages       duckdb.PageCacheStats
	LogEntries  int64
}

// WriteStats writes database totals followed by SNPs per chromosome in
// karyotype order.
func WriteStats(w io.Writer, s Stats) {
	if s.File != nil {
		fmt.Fprintf(w, "Genome file:   %s (loaded %s)\n", s.File.Path, s.File.LoadedAt.Format(time.DateTime))
	}
	fmt.Fprintf(w, "SNPs:          %d\n", s.SNPs)
	fmt.Fprintf(w, "Annotated:     %d\n", s.Annotations)
	fmt.Fprintf(w, "Labeled:       %d\n", s.Labeled)
	fmt.Fprintf(w, "Favorites:     %d\n", s.Favorites)
	fmt.Fprintf(w, "Cached pages:  %d (%d SNP, %d genotype)\n", s.Pages.Total, s.Pages.MainPages, s.Pages.GenotypePages)
	fmt.Fprintf(w, "Log entries:   %d\n", s.LogEntries)

	if len(s.Chromosomes) == 0 {
		return
	}
	chroms := make([]string, 0, len(s.Chromosomes))
	for c := range s.Chromosomes {
		chroms = append(chroms, c)
	}
	sort.Slice(chroms, func(i, j int) bool { return chromLess(chroms[i], chroms[j]) })
	fmt.Fprintf(w, "\n  By chromosome:\n")
	for _, c := range chroms {
		fmt.Fprintf(w, "    %-6s%d\n", c, s.Chromosomes[c])
	}
}

// chromLess orders numbered chromosomes numerically, then X, Y, MT and
// anything else alphabetically.
func chromLess(a, b string) bool {
	ra, rb := chromRank(a), chromRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func chromRank(c string) int {
	if n, err := strconv.Atoi(c); err == nil {
		return n
	}
	switch strings.ToUpper(c) {
	case "X":
		return 100
	case "Y":
		return 101
	case "MT", "M":
		return 102
	}
	return 200
}
