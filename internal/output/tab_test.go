package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/discovery"
	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/enrich"
	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/genotype"
	"github.com/v64/genome-browser/internal/knowledge"
	"github.com/v64/genome-browser/internal/label"
	"github.com/v64/genome-browser/internal/repute"
)

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := buf.String()
	for _, col := range []string{"#RSID", "Location", "Genotype", "Effective_repute", "Label", "Interpretation"} {
		assert.Contains(t, header, col)
	}
	assert.True(t, strings.HasSuffix(header, "\n"))
}

func TestTabWriter_Write_Annotated(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	mag := 3.5
	v := &enrich.View{
		Variant: duckdb.Variant{
			SNP: genome.SNP{RSID: "rs429358", Chromosome: "19", Position: 44908684, Genotype: "CT"},
			Annotation: &annotation.Annotation{
				RSID:      "rs429358",
				Gene:      "APOE",
				Magnitude: &mag,
				Repute:    repute.Bad,
				Source:    annotation.SourceModel,
			},
			Favorite: true,
		},
		Match:     genotype.Match{Key: "CT", Tier: genotype.TierDirect, Interpretation: "one copy\nof e4"},
		Label:     &label.GenotypeLabel{RSID: "rs429358", Label: label.Risk},
		Effective: repute.Bad,
	}

	require.NoError(t, w.Write(v))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	require.Len(t, fields, 12)
	assert.Equal(t, "rs429358", fields[0])
	assert.Equal(t, "19:44908684", fields[1])
	assert.Equal(t, "CT", fields[2])
	assert.Equal(t, "APOE", fields[3])
	assert.Equal(t, "3.5", fields[4])
	assert.Equal(t, "bad", fields[5])
	assert.Equal(t, "bad", fields[6])
	assert.Equal(t, "risk", fields[7])
	assert.Equal(t, "CT/direct", fields[8])
	assert.Equal(t, "one copy of e4", fields[9])
	assert.Equal(t, "model", fields[10])
	assert.Equal(t, "YES", fields[11])
}

func TestTabWriter_Write_Unannotated(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	v := &enrich.View{Variant: duckdb.Variant{
		SNP: genome.SNP{RSID: "rs1", Chromosome: "1", Position: 100, Genotype: "AA"},
	}}
	require.NoError(t, w.Write(v))
	require.NoError(t, w.Flush())

	assert.Equal(t, "rs1\t1:100\tAA\t-\t-\t-\t-\t-\t-\t-\t-\t-\n", buf.String())
}

// --- summaries ---

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	WriteResults(&buf, []enrich.Result{
		{RSID: "rs1", Outcome: enrich.Improved},
		{RSID: "rs2", Outcome: enrich.Skipped, Reason: enrich.ReasonNoCall},
		{RSID: "rs3", Outcome: enrich.Failed, Err: errors.New("boom")},
	})

	out := buf.String()
	assert.Contains(t, out, "rs2")
	assert.Contains(t, out, "no genotype call")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "Improved: 1  Skipped: 1  Failed: 1")
}

func TestWriteLabelCounts(t *testing.T) {
	var buf bytes.Buffer
	WriteLabelCounts(&buf, []label.Count{
		{Label: label.Risk, Count: 2},
		{Label: label.Normal, Count: 5},
	})

	out := buf.String()
	assert.Contains(t, out, "Labels (7 SNPs)")
	assert.Less(t, strings.Index(out, "normal"), strings.Index(out, "risk"))
}

func TestWriteLabel(t *testing.T) {
	var buf bytes.Buffer
	freq := 12.5
	WriteLabel(&buf, &label.GenotypeLabel{
		RSID: "rs1", Label: label.Carrier, Confidence: label.High, Frequency: &freq,
		Source: "user", Notes: "checked",
	})
	assert.Equal(t, "rs1\tcarrier\tconfidence=high\tfrequency=12.5%\tsource=user\n  checked\n", buf.String())
}

func TestWriteLogAndStats(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	WriteLog(&buf, []duckdb.LogEntry{
		{Source: "model", DataType: "annotation_improvement", ReferenceID: "rs1", Content: "a long\tcontent string", CreatedAt: at},
	}, 10)
	out := buf.String()
	assert.Contains(t, out, "2024-05-01 12:00:00")
	assert.Contains(t, out, "annotation_improvement")
	assert.Contains(t, out, "a long ...")

	buf.Reset()
	WriteLogStats(&buf, duckdb.LogStats{
		Total:    3,
		BySource: map[string]int64{"model": 1, "snpedia": 2},
		ByType:   map[string]int64{"main_page": 2, "annotation_improvement": 1},
	})
	out = buf.String()
	assert.Contains(t, out, "Data log: 3 entries")
	assert.Less(t, strings.Index(out, "snpedia"), strings.Index(out, "model"))
}

func TestWriteHits(t *testing.T) {
	var buf bytes.Buffer
	WriteHits(&buf, []knowledge.Hit{{
		Rank:  1,
		Entry: knowledge.Entry{ID: "k1", Query: "What is rs1?", Content: "text", Source: "user", RSIDs: []string{"rs1"}},
	}}, 0)
	out := buf.String()
	assert.Contains(t, out, " 1. [user] What is rs1?")
	assert.Contains(t, out, "rsids: rs1")
	assert.Contains(t, out, "id: k1")
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	WriteStatus(&buf, discovery.Status{
		Running: true, Cycles: 2, Explored: 3, QueueSize: 4, Discovered: 5, Matched: 1, CurrentSNP: "rs9",
		RecentErrors: []discovery.ErrorRecord{{Context: "cycle", Error: "timeout"}},
	})
	out := buf.String()
	assert.Contains(t, out, "[running] cycles=2 explored=3 queue=4 discovered=5 dropped=0 matched=1 improved=0 current=rs9")
	assert.Contains(t, out, "cycle: timeout")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"unlimited", 0, "unlimited"},
		{"ééééé", 4, "é..."},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
		})
	}
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	WriteStats(&buf, Stats{
		File: &duckdb.GenomeFile{
			FileFingerprint: duckdb.FileFingerprint{Path: "/data/genome.txt"},
			LoadedAt:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		SNPs:        6,
		Chromosomes: map[string]int64{"X": 1, "10": 1, "2": 2, "MT": 1, "1": 1},
		Annotations: 2,
		Pages:       duckdb.PageCacheStats{Total: 5, MainPages: 2, GenotypePages: 3},
	})
	out := buf.String()
	assert.Contains(t, out, "Genome file:   /data/genome.txt (loaded 2024-05-01 12:00:00)")
	assert.Contains(t, out, "Cached pages:  5 (2 SNP, 3 genotype)")

	var order []string
	for _, line := range strings.Split(out[strings.Index(out, "By chromosome:"):], "\n")[1:] {
		if f := strings.Fields(line); len(f) == 2 {
			order = append(order, f[0])
		}
	}
	assert.Equal(t, []string{"1", "2", "10", "X", "MT"}, order)
}

func TestWriteStats_Empty(t *testing.T) {
	var buf bytes.Buffer
	WriteStats(&buf, Stats{})
	assert.NotContains(t, buf.String(), "Genome file")
	assert.NotContains(t, buf.String(), "By chromosome")
	assert.Contains(t, buf.String(), "SNPs:          0")
}
