package genome

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testExport = `# This data file generated by 23andMe at: Mon Jan 01 00:00:00 2024
#
# rsid	chromosome	position	genotype
rs4477212	1	82154	AA
RS3094315	1	752566	AG
rs3131972	1	752721	--
i3000001	MT	1234	T
rs12124819	1	776546	AA	extra
rs11240777	1	798959	GG
rs999	X	notanumber	CC

rs1801133	1	11856378	GG
`

func TestParser_ReadAll(t *testing.T) {
	p := NewParserFromReader(strings.NewReader(testExport))
	defer p.Close()

	snps, err := p.ReadAll()
	require.NoError(t, err)

	require.Len(t, snps, 5)
	assert.Equal(t, SNP{RSID: "rs4477212", Chromosome: "1", Position: 82154, Genotype: "AA"}, snps[0])
	assert.Equal(t, "rs3094315", snps[1].RSID, "identifiers are lower-cased")
	assert.Equal(t, "i3000001", snps[2].RSID)
	assert.Equal(t, "T", snps[2].Genotype)
	assert.Equal(t, "rs11240777", snps[3].RSID)
	assert.Equal(t, "rs1801133", snps[4].RSID)

	assert.Equal(t, 3, p.Skipped(), "no-call, five-field line and bad position")
	assert.Len(t, p.Header(), 3)
}

func TestParser_CRLFAndNoTrailingNewline(t *testing.T) {
	p := NewParserFromReader(strings.NewReader("rs1\t1\t10\tAG\r\nrs2\t2\t20\tCT"))

	snps, err := p.ReadAll()
	require.NoError(t, err)
	require.Len(t, snps, 2)
	assert.Equal(t, "AG", snps[0].Genotype)
	assert.Equal(t, "CT", snps[1].Genotype)
}

func TestParser_EmptyIdentifier(t *testing.T) {
	p := NewParserFromReader(strings.NewReader("rs1\t1\t10\tAG\n\t1\t11\tCC\n"))

	_, err := p.Next()
	require.NoError(t, err)

	_, err = p.Next()
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
}

func TestParser_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(testExport))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "genome.txt.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	p, err := NewParser(path)
	require.NoError(t, err)
	defer p.Close()

	snps, err := p.ReadAll()
	require.NoError(t, err)
	assert.Len(t, snps, 5)
}

func TestParser_PlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genome.txt")
	require.NoError(t, os.WriteFile(path, []byte(testExport), 0644))

	p, err := NewParser(path)
	require.NoError(t, err)
	defer p.Close()

	snps, err := p.ReadAll()
	require.NoError(t, err)
	assert.Len(t, snps, 5)
}

func TestNewParser_Missing(t *testing.T) {
	_, err := NewParser(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestIsRSID(t *testing.T) {
	assert.True(t, IsRSID("rs123"))
	assert.True(t, IsRSID(" RS429358"))
	assert.False(t, IsRSID("rs"))
	assert.False(t, IsRSID("i3000001"))
	assert.False(t, IsRSID("rs12a"))
}

func TestSNPHasCall(t *testing.T) {
	assert.True(t, (&SNP{Genotype: "AG"}).HasCall())
	assert.False(t, (&SNP{Genotype: "--"}).HasCall())
	var missing *SNP
	assert.False(t, missing.HasCall())
}

func TestLooksLikeExport(t *testing.T) {
	assert.True(t, LooksLikeExport(testExport))
	assert.True(t, LooksLikeExport("# RSID\tCHROMOSOME\tPOSITION\tGENOTYPE"))
	assert.False(t, LooksLikeExport("##fileformat=VCFv4.2"))
}
