// Package maf reads MAF (Mutation Annotation Format) files into feature entries.
package maf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/inodb/featureindex/internal/feature"
)

// Standard MAF column names
const (
	ColChromosome         = "Chromosome"
	ColStartPosition      = "Start_Position"
	ColEndPosition        = "End_Position"
	ColHugoSymbol         = "Hugo_Symbol"
	ColDbSNP              = "dbSNP_RS"
	ColTumorSampleBarcode = "Tumor_Sample_Barcode"
	ColVariantType        = "Variant_Type"
	ColVariantClass       = "Variant_Classification"
	ColNCBIBuild          = "NCBI_Build"
	ColFilter             = "FILTER"
	ColReferenceAllele    = "Reference_Allele"
	ColTumorSeqAllele2    = "Tumor_Seq_Allele2"
	ColTumorDepth         = "t_depth"
	ColTumorAltCount      = "t_alt_count"
	ColNormalDepth        = "n_depth"
	ColNormalAltCount     = "n_alt_count"
)

// categoricalColumns become categorical fields; numericColumns numeric ones.
// Every other non-empty column is kept in Info.
var (
	categoricalColumns = map[string]bool{
		ColTumorSampleBarcode: true,
		ColVariantType:        true,
		ColVariantClass:       true,
		ColNCBIBuild:          true,
		ColFilter:             true,
	}
	numericColumns = map[string]bool{
		ColTumorDepth:     true,
		ColTumorAltCount:  true,
		ColNormalDepth:    true,
		ColNormalAltCount: true,
	}
)

// Parser reads rows from a MAF file.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	header     []string
	chrom      int
	start      int
	end        int
}

// NewParser creates a new MAF parser for the given file.
// Supports both plain MAF and gzipped MAF (.maf.gz) files.
func NewParser(path string) (*Parser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maf file: %w", err)
	}

	p := &Parser{file: file}

	buf := make([]byte, 2)
	if _, err := io.ReadFull(file, buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("read maf header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek maf file: %w", err)
	}

	if buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{reader: bufio.NewReader(r)}
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// readLine returns the next non-empty, non-comment line, or io.EOF.
func (p *Parser) readLine() (string, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return "", err
		}
		p.lineNumber++
		line = strings.TrimRight(line, "\r\n")
		if line != "" && !strings.HasPrefix(line, "#") {
			return line, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// parseHeader reads the column header and locates the position columns.
func (p *Parser) parseHeader() error {
	line, err := p.readLine()
	if errors.Is(err, io.EOF) {
		return &ParseError{Line: p.lineNumber, Message: "no header line found"}
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	p.header = strings.Split(line, "\t")
	p.chrom, p.start, p.end = -1, -1, -1
	for i, col := range p.header {
		switch col {
		case ColChromosome:
			p.chrom = i
		case ColStartPosition:
			p.start = i
		case ColEndPosition:
			p.end = i
		}
	}
	for _, req := range []struct {
		name string
		idx  int
	}{{ColChromosome, p.chrom}, {ColStartPosition, p.start}, {ColEndPosition, p.end}} {
		if req.idx < 0 {
			return &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("required column '%s' not found in header", req.name),
			}
		}
	}
	return nil
}

// Next reads the next row as an entry. It returns nil, nil at end of input.
func (p *Parser) Next() (*feature.Entry, error) {
	line, err := p.readLine()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read maf line: %w", err)
	}
	return p.parseLine(line)
}

func (p *Parser) parseLine(line string) (*feature.Entry, error) {
	fields := strings.Split(line, "\t")
	if need := max(p.chrom, p.start, p.end) + 1; len(fields) < need {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", need, len(fields)),
		}
	}

	start, err := strconv.ParseInt(fields[p.start], 10, 64)
	if err != nil {
		return nil, &ParseError{Line: p.lineNumber, Message: fmt.Sprintf("invalid start position: %s", fields[p.start])}
	}
	end, err := strconv.ParseInt(fields[p.end], 10, 64)
	if err != nil {
		return nil, &ParseError{Line: p.lineNumber, Message: fmt.Sprintf("invalid end position: %s", fields[p.end])}
	}

	e := &feature.Entry{
		Chrom: fields[p.chrom],
		Start: start,
		End:   end,
		Type:  feature.TypeVariation,
	}
	for i, col := range p.header {
		if i >= len(fields) || i == p.chrom || i == p.start || i == p.end {
			continue
		}
		v := strings.TrimSpace(fields[i])
		// "-" is an allele in the allele columns and a null elsewhere.
		allele := col == ColReferenceAllele || col == ColTumorSeqAllele2
		if v == "" || v == "." || (v == "-" && !allele) {
			continue
		}
		switch {
		case col == ColHugoSymbol || col == ColDbSNP:
			if v != "Unknown" && v != "novel" {
				e.Identifiers = append(e.Identifiers, v)
			}
		case categoricalColumns[col]:
			if e.Categorical == nil {
				e.Categorical = make(map[string]string)
			}
			e.Categorical[col] = v
		case numericColumns[col]:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				if e.Numeric == nil {
					e.Numeric = make(map[string]float64)
				}
				e.Numeric[col] = n
				continue
			}
			fallthrough
		default:
			if e.Info == nil {
				e.Info = make(map[string]string)
			}
			e.Info[col] = v
		}
	}
	return e, nil
}

// Header returns the MAF column names.
func (p *Parser) Header() []string {
	return p.header
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
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

// ReadFile parses every row of a MAF file into entries.
func ReadFile(path string) ([]*feature.Entry, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	entries, err := readAll(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}

// Read parses MAF text from r into entries.
func Read(r io.Reader) ([]*feature.Entry, error) {
	p, err := NewParserFromReader(r)
	if err != nil {
		return nil, err
	}
	return readAll(p)
}

func readAll(p *Parser) ([]*feature.Entry, error) {
	var entries []*feature.Entry
	for {
		e, err := p.Next()
		if err != nil {
			return nil, err
		}
		if e == nil {
			return entries, nil
		}
		entries = append(entries, e)
	}
}

// ParseError represents an error during MAF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf parse error at line %d: %s", e.Line, e.Message)
}
