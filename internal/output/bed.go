package output

import (
	"bufio"
	"io"
	"strconv"

	"github.com/inodb/featureindex/internal/feature"
)

// BEDWriter writes entries as BED6. BED starts are 0-based, so Start-1 is
// written; the name is the first identifier and the score the QUAL or score
// field clamped to 0-1000.
type BEDWriter struct {
	w *bufio.Writer
}

// NewBEDWriter creates a BED writer.
func NewBEDWriter(w io.Writer) *BEDWriter {
	return &BEDWriter{w: bufio.NewWriter(w)}
}

// Write writes a single entry.
func (bw *BEDWriter) Write(e *feature.Entry) error {
	strand := e.Categorical["strand"]
	if strand == "" {
		strand = "."
	}
	line := e.Chrom + "\t" +
		strconv.FormatInt(e.Start-1, 10) + "\t" +
		strconv.FormatInt(e.End, 10) + "\t" +
		orDot(e.FirstIdentifier()) + "\t" +
		strconv.Itoa(bedScore(e)) + "\t" +
		strand + "\n"
	_, err := bw.w.WriteString(line)
	return err
}

// WriteAll writes every entry and flushes.
func (bw *BEDWriter) WriteAll(entries []*feature.Entry) error {
	for _, e := range entries {
		if err := bw.Write(e); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Flush flushes any buffered data to the underlying writer.
func (bw *BEDWriter) Flush() error {
	return bw.w.Flush()
}

func bedScore(e *feature.Entry) int {
	v, ok := e.Numeric["QUAL"]
	if !ok {
		v, ok = e.Numeric["score"]
	}
	if !ok {
		return 0
	}
	return int(min(max(v, 0), 1000))
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
