package genome

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Parser reads SNPs from a 23andMe-style raw data export:
// tab-separated rsid, chromosome, position, genotype with '#' comments.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	skipped    int
	header     []string
}

// NewParser opens path, transparently decompressing gzip input.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genome file: %w", err)
	}

	p := &Parser{file: file}

	buf := make([]byte, 2)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read genome header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek genome file: %w", err)
	}

	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReader(r)}
}

// Next returns the next SNP with a genotype call.
// Returns nil, nil at end of input. Comment lines, no-calls and lines
// without exactly four fields are skipped and counted.
func (p *Parser) Next() (*SNP, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read genome line: %w", err)
		}
		if line == "" && err == io.EOF {
			return nil, nil
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			p.header = append(p.header, line)
		default:
			snp, ok, perr := p.parseLine(line)
			if perr != nil {
				return nil, perr
			}
			if ok {
				return snp, nil
			}
			p.skipped++
		}

		if err == io.EOF {
			return nil, nil
		}
	}
}

// parseLine parses one data line. ok is false for lines that are skipped
// rather than rejected.
func (p *Parser) parseLine(line string) (*SNP, bool, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return nil, false, nil
	}

	rsid := NormalizeRSID(fields[0])
	if rsid == "rsid" {
		// Column header line without a leading '#'.
		return nil, false, nil
	}
	if rsid == "" {
		return nil, false, &ParseError{Line: p.lineNumber, Message: "empty identifier"}
	}

	genotype := strings.TrimSpace(fields[3])
	if genotype == "--" || genotype == "" {
		return nil, false, nil
	}

	pos, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return nil, false, nil
	}

	return &SNP{
		RSID:       rsid,
		Chromosome: strings.TrimSpace(fields[1]),
		Position:   pos,
		Genotype:   genotype,
	}, true, nil
}

// ReadAll drains the parser.
func (p *Parser) ReadAll() ([]SNP, error) {
	var out []SNP
	for {
		s, err := p.Next()
		if err != nil {
			return out, err
		}
		if s == nil {
			return out, nil
		}
		out = append(out, *s)
	}
}

// Header returns the comment lines seen so far.
func (p *Parser) Header() []string {
	return p.header
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Skipped returns the number of data lines dropped (no-calls, malformed).
func (p *Parser) Skipped() int {
	return p.skipped
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during genome parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("genome parse error at line %d: %s", e.Line, e.Message)
}

// LooksLikeExport reports whether head, the first lines of a file,
// resembles a 23andMe raw data export.
func LooksLikeExport(head string) bool {
	lower := strings.ToLower(head)
	return strings.Contains(head, "23andMe") || strings.Contains(lower, "rsid\tchromosome")
}
