package fetcher

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/korvaus-labs/korvaus-cli/internal/table"
)

// BadLinePolicy controls what happens to malformed rows during parsing.
type BadLinePolicy string

const (
	// SkipBadLines drops rows with the wrong field count or per-record parse
	// errors and counts them; the feed is known to contain irregular rows.
	SkipBadLines BadLinePolicy = "skip"
	// FailBadLines aborts the parse on the first malformed row.
	FailBadLines BadLinePolicy = "fail"
)

// ReadOptions configures delimiter, encoding, and error tolerance for a parse.
type ReadOptions struct {
	Delimiter  rune          // 0 = sniff from the header line, ';' wins ties
	Encoding   string        // "latin1" (default), "windows-1252", "utf-8"
	BadLines   BadLinePolicy // default SkipBadLines
	LazyQuotes bool
}

// withDefaults fills unset options with the source feed's conventions.
func (o ReadOptions) withDefaults() ReadOptions {
	if o.Encoding == "" {
		o.Encoding = "latin1"
	}
	if o.BadLines == "" {
		o.BadLines = SkipBadLines
	}
	return o
}

// CacheKey renders the options in canonical form for memo keying.
func (o ReadOptions) CacheKey() string {
	o = o.withDefaults()
	d := o.Delimiter
	if d == 0 {
		d = '?'
	}
	lazy := "strict"
	if o.LazyQuotes {
		lazy = "lazy"
	}
	return string(d) + "|" + strings.ToLower(o.Encoding) + "|" + string(o.BadLines) + "|" + lazy
}

// decoder returns the text decoder for the configured encoding.
func decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(name) {
	case "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "utf-8", "utf8":
		return encoding.Nop.NewDecoder(), nil
	default:
		return nil, eris.Errorf("csv: unsupported encoding %q", name)
	}
}

// sniffDelimiter picks ';' or ',' by counting occurrences on the header line.
// Semicolon wins ties, matching the source feed.
func sniffDelimiter(line string) rune {
	if strings.Count(line, ",") > strings.Count(line, ";") {
		return ','
	}
	return ';'
}

// ParseTable reads delimited text into a raw table. The first record is the
// header; data rows whose field count differs from the header are handled per
// the bad-line policy. skipped counts the rows dropped under SkipBadLines.
func ParseTable(r io.Reader, opts ReadOptions) (*table.Table, int, error) {
	opts = opts.withDefaults()

	dec, err := decoder(opts.Encoding)
	if err != nil {
		return nil, 0, err
	}

	br := bufio.NewReader(transform.NewReader(r, dec))

	head, err := br.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, 0, eris.Wrap(err, "csv: peek header")
	}
	// Interactive hosting pages serve HTML with status 200; refuse to parse
	// them as delimited text so the caller can fall back to a raw-content URL.
	if strings.HasPrefix(strings.TrimLeft(string(head), " \t\r\n"), "<") {
		return nil, 0, eris.New("csv: content looks like an HTML page, not delimited text")
	}

	delim := opts.Delimiter
	if delim == 0 {
		first, _, _ := strings.Cut(string(head), "\n")
		delim = sniffDelimiter(first)
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // validated against the header below
	reader.TrimLeadingSpace = true

	var t *table.Table
	skipped := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if opts.BadLines == SkipBadLines && errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, skipped, eris.Wrap(err, "csv: read row")
		}

		if t == nil {
			t = table.New(trimAll(record))
			continue
		}

		if len(record) != len(t.Columns) {
			if opts.BadLines == SkipBadLines {
				skipped++
				continue
			}
			return nil, skipped, eris.Errorf("csv: row has %d fields, header has %d",
				len(record), len(t.Columns))
		}

		t.Rows = append(t.Rows, record)
	}

	if t == nil {
		return nil, skipped, eris.New("csv: no header row")
	}
	return t, skipped, nil
}

func trimAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	return out
}
