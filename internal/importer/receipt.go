// Package importer turns grocery receipts into draft pantry items. The
// output is deliberately rough: names and quantities only, for the caller
// to categorize and confirm before saving.
package importer

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Draft is a candidate pantry item recovered from one receipt line. It has
// no dates and no category; those come from the user and the categorizer.
type Draft struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
}

var (
	// Trailing prices, optionally repeated ("MILK 2.49 4.98").
	priceSuffixRe = regexp.MustCompile(`\s*\$?\d+[.,]\d{2}\s*$`)

	// "2 x Milk" and "2x Milk".
	qtyPrefixRe = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?)\s*x\s+(.+)$`)

	// "Milk x2" and "Milk x 2".
	qtySuffixRe = regexp.MustCompile(`(?i)^(.+?)\s+x\s*(\d+(?:[.,]\d+)?)$`)

	// "0.5 kg Chicken Breast".
	qtyUnitPrefixRe = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?)\s*(kg|g|lb|lbs|oz|l|ml|pcs?)\b\.?\s+(.+)$`)

	// Bare leading count: "2 Milk".
	countPrefixRe = regexp.MustCompile(`^(\d+)\s+(\D.+)$`)
)

// skipWords mark receipt bookkeeping lines, not items.
var skipWords = []string{
	"total", "subtotal", "tax", "change", "cash", "card", "credit",
	"debit", "balance", "payment", "receipt", "thank", "store",
	"cashier", "terminal", "invoice", "vat", "discount", "loyalty",
}

// ParsePDF extracts draft items from a PDF receipt. Rows are reassembled
// per page so multi-column receipts keep name and price on one line.
func ParsePDF(data []byte) ([]Draft, error) {
	if len(data) < 5 || string(data[:5]) != "%PDF-" {
		return nil, fmt.Errorf("importer: not a PDF file")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("importer: reading pdf: %w", err)
	}

	var lines []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("importer: extracting page %d: %w", i, err)
		}
		for _, row := range rows {
			var b strings.Builder
			for _, word := range row.Content {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(word.S)
			}
			lines = append(lines, b.String())
		}
	}

	drafts := ParseText(strings.Join(lines, "\n"))
	if len(drafts) == 0 {
		return nil, fmt.Errorf("importer: no items recognized in receipt")
	}
	return drafts, nil
}

// ParseText extracts draft items from plain receipt text, one candidate
// line at a time. Lines that do not look like items are dropped silently.
func ParseText(text string) []Draft {
	var drafts []Draft
	for _, line := range strings.Split(text, "\n") {
		if d, ok := parseLine(line); ok {
			drafts = append(drafts, d)
		}
	}
	return drafts
}

// parseLine applies the line heuristics in order: strip prices, reject
// bookkeeping lines, then try the quantity patterns. Anything left with a
// plausible name becomes a quantity-1 draft.
func parseLine(line string) (Draft, bool) {
	s := strings.TrimSpace(line)
	if s == "" {
		return Draft{}, false
	}

	for priceSuffixRe.MatchString(s) {
		s = strings.TrimSpace(priceSuffixRe.ReplaceAllString(s, ""))
	}
	if s == "" || isBookkeeping(s) || !hasLetters(s) {
		return Draft{}, false
	}

	if m := qtyUnitPrefixRe.FindStringSubmatch(s); m != nil {
		return draft(m[3], parseQuantity(m[1]), strings.ToLower(m[2]))
	}
	if m := qtyPrefixRe.FindStringSubmatch(s); m != nil {
		return draft(m[2], parseQuantity(m[1]), "")
	}
	if m := qtySuffixRe.FindStringSubmatch(s); m != nil {
		return draft(m[1], parseQuantity(m[2]), "")
	}
	if m := countPrefixRe.FindStringSubmatch(s); m != nil {
		return draft(m[2], parseQuantity(m[1]), "")
	}
	return draft(s, 1, "")
}

func draft(name string, qty float64, unit string) (Draft, bool) {
	name = strings.TrimSpace(name)
	if name == "" || qty <= 0 {
		return Draft{}, false
	}
	return Draft{Name: name, Quantity: qty, Unit: unit}, true
}

func isBookkeeping(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range skipWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func hasLetters(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

func parseQuantity(s string) float64 {
	q, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 1
	}
	return q
}
