// Package adapter holds format adapters. Per-bank statement decoding lives
// outside this repository; the one adapter shipped here reads bento's own
// normalized CSV export format so the pipeline is runnable end to end.
package adapter

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xmou/bento/internal/model"
)

// magic is the first line of a normalized CSV export.
const magic = "# bento normalized export v1"

// Required columns, in no particular order. Any further column becomes an
// extra field on the record.
var requiredColumns = []string{
	"occurred_at", "posted_at", "direction", "amount",
	"currency", "counterparty", "description", "account_key",
}

// ErrNotNormalizedExport marks files that are not in the normalized format.
var ErrNotNormalizedExport = errors.New("not a bento normalized export")

// CSVAdapter reads normalized CSV exports for one configured source.
type CSVAdapter struct {
	source string
	logger *slog.Logger
}

// NewCSVAdapter creates an adapter bound to a source name; it only
// identifies exports whose header declares that source.
func NewCSVAdapter(source string, logger *slog.Logger) *CSVAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVAdapter{source: source, logger: logger}
}

// Name returns the source this adapter feeds.
func (a *CSVAdapter) Name() string {
	return a.source
}

// Identify reports whether the file is a normalized export for this
// adapter's source.
func (a *CSVAdapter) Identify(path string) bool {
	if !strings.HasSuffix(strings.ToLower(path), ".csv") {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	header, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return false
	}
	return header.source == a.source
}

// Extract decodes the statement.
func (a *CSVAdapter) Extract(path string) (*model.Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statement: %w", err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	header, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	if header.source != a.source {
		return nil, fmt.Errorf("%w: export is for source %q", ErrNotNormalizedExport, header.source)
	}

	stmt := &model.Statement{
		Title:      header.title,
		Date:       header.date,
		AccountKey: header.accountKey,
	}

	r := csv.NewReader(br)
	columns, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read column header: %w", err)
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[strings.TrimSpace(c)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrNotNormalizedExport, c)
		}
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			a.logger.Warn("skipping unreadable row", "path", path, "line", line, "error", err)
			continue
		}
		record, err := parseRecord(columns, index, row)
		if err != nil {
			a.logger.Warn("skipping row", "path", path, "line", line, "error", err)
			continue
		}
		stmt.Records = append(stmt.Records, record)
	}

	return stmt, nil
}

type exportHeader struct {
	source     string
	title      string
	accountKey string
	date       time.Time
}

// readHeader consumes the comment preamble up to the CSV column header.
func readHeader(br *bufio.Reader) (exportHeader, error) {
	var h exportHeader

	line, err := readLine(br)
	if err != nil || line != magic {
		return h, ErrNotNormalizedExport
	}

	for {
		peek, err := br.Peek(1)
		if err != nil {
			return h, fmt.Errorf("%w: truncated header", ErrNotNormalizedExport)
		}
		if peek[0] != '#' {
			break
		}
		line, err := readLine(br)
		if err != nil {
			return h, fmt.Errorf("%w: truncated header", ErrNotNormalizedExport)
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "#"), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "source":
			h.source = value
		case "title":
			h.title = value
		case "account":
			h.accountKey = value
		case "date":
			if d, err := time.Parse("2006-01-02", value); err == nil {
				h.date = d
			}
		}
	}

	if h.source == "" {
		return h, fmt.Errorf("%w: no source declared", ErrNotNormalizedExport)
	}
	return h, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseRecord(columns []string, index map[string]int, row []string) (model.NormalizedRecord, error) {
	var record model.NormalizedRecord

	field := func(name string) string {
		i := index[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	occurred, err := parseTimestamp(field("occurred_at"))
	if err != nil {
		return record, fmt.Errorf("bad occurred_at: %w", err)
	}
	record.OccurredAt = occurred

	if v := field("posted_at"); v != "" {
		posted, err := time.Parse("2006-01-02", v)
		if err != nil {
			return record, fmt.Errorf("bad posted_at: %w", err)
		}
		record.PostedAt = &posted
	}

	switch field("direction") {
	case string(model.DirectionExpense):
		record.Direction = model.DirectionExpense
	case string(model.DirectionIncome):
		record.Direction = model.DirectionIncome
	default:
		return record, fmt.Errorf("unknown direction %q", field("direction"))
	}

	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		return record, fmt.Errorf("bad amount: %w", err)
	}
	record.Amount = amount.Abs()

	record.Currency = field("currency")
	if record.Currency == "" {
		return record, errors.New("missing currency")
	}
	record.CounterpartyRaw = field("counterparty")
	record.DescriptionRaw = field("description")
	record.SourceAccountKey = field("account_key")

	for i, column := range columns {
		column = strings.TrimSpace(column)
		if isRequired(column) || i >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		if record.Extra == nil {
			record.Extra = make(map[string]string)
		}
		record.Extra[column] = value
	}

	return record, nil
}

func parseTimestamp(v string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

func isRequired(column string) bool {
	for _, c := range requiredColumns {
		if c == column {
			return true
		}
	}
	return false
}
