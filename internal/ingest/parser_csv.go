package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
)

// CSVParser parses a delimited notice export. The first row is the header
// defining field names; each data row becomes one RawRecord keyed by header
// name. Quoted fields may contain the delimiter and doubled quotes.
//
// Each physical line is one row. A malformed row (unbalanced quote, stray
// bytes) is dropped on its own: the open quote never runs on into later
// lines, so every other row still parses. Rows shorter than the header are
// padded with empty values so alias lookups never miss on trailing columns.
type CSVParser struct {
	Comma rune // Default: ','
}

func NewCSVParser() *CSVParser {
	return &CSVParser{Comma: ','}
}

func (p *CSVParser) Parse(ctx context.Context, r io.Reader) ([]RawRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading header row: %w", err)
		}
		return nil, nil
	}
	header, err := p.parseLine(scanner.Text())
	if err != nil {
		return nil, fmt.Errorf("reading header row: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var records []RawRecord
	dropped := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := p.parseLine(line)
		if err != nil {
			dropped++
			continue
		}

		rec := make(RawRecord, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(row) {
				rec[name] = strings.TrimSpace(row[i])
			} else {
				rec[name] = ""
			}
		}
		if len(rec) == 0 {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("reading rows: %w", err)
	}

	if dropped > 0 {
		log.Printf("[CSVParser] Dropped %d malformed rows (%d parsed)", dropped, len(records))
	}
	return records, nil
}

// parseLine parses one physical line as a CSV row. A line whose quotes never
// close is rejected here rather than handed to encoding/csv, which would
// treat the rest of the document as one quoted field.
func (p *CSVParser) parseLine(line string) ([]string, error) {
	if strings.Count(line, `"`)%2 != 0 {
		return nil, fmt.Errorf("unbalanced quote")
	}
	reader := csv.NewReader(strings.NewReader(line))
	if p.Comma != 0 {
		reader.Comma = p.Comma
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.Read()
}
