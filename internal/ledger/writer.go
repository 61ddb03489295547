// Package ledger renders pipeline output as ledger text. The exact file
// syntax is this collaborator's own business; the pipeline only hands over
// in-memory transactions.
package ledger

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/xmou/bento/internal/model"
)

// TextWriter formats transactions in beancount-style text to one output
// stream. Safe for concurrent use; each statement's block is written
// atomically.
type TextWriter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewTextWriter creates a writer over w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// Write renders one statement's transactions.
func (t *TextWriter) Write(stmt *model.Statement, txns []model.Transaction) error {
	var b strings.Builder
	if stmt.Title != "" {
		fmt.Fprintf(&b, "; %s\n", stmt.Title)
	}
	for _, txn := range txns {
		b.WriteString(Format(&txn))
		b.WriteByte('\n')
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		return fmt.Errorf("failed to write ledger output: %w", err)
	}
	return nil
}

// Format renders a single transaction.
func Format(txn *model.Transaction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s %q %q", txn.Date.Format("2006-01-02"), txn.Flag, txn.Payee, txn.Narration)
	for _, tag := range sortedKeys(txn.Tags) {
		fmt.Fprintf(&b, " #%s", tag)
	}
	for _, link := range sortedKeys(txn.Links) {
		fmt.Fprintf(&b, " ^%s", link)
	}
	b.WriteByte('\n')

	for _, entry := range txn.Meta {
		switch v := entry.Value.(type) {
		case bool:
			fmt.Fprintf(&b, "  %s: %s\n", entry.Key, strings.ToUpper(fmt.Sprintf("%t", v)))
		default:
			fmt.Fprintf(&b, "  %s: %q\n", entry.Key, v)
		}
	}

	for _, p := range txn.Postings {
		if p.Amount == nil {
			fmt.Fprintf(&b, "  %s\n", p.Account)
			continue
		}
		fmt.Fprintf(&b, "  %-50s %s %s\n", p.Account, p.Amount.StringFixed(2), p.Currency)
	}

	return b.String()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
