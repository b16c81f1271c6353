package adapter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

var (
	errEmptyCSV    = errors.New("csv content is empty")
	errMissingRows = errors.New("csv content has a header but no rows")

	// Digits with optional valid thousands grouping and an optional fraction.
	amountPattern = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d+)(\.\d{1,4})?$`)
)

// ParseCSV reads header-keyed rows from CSV content. Rows are numbered from 1.
func ParseCSV(content string) ([]Row, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errEmptyCSV
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(rows)+1, err)
		}
		if isBlank(record) {
			continue
		}

		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				fields[name] = record[i]
			}
		}
		rows = append(rows, Row{Index: len(rows) + 1, Fields: fields})
	}

	if len(rows) == 0 {
		return nil, errMissingRows
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseAmount parses a currency amount. A leading "$", a sign or accounting
// parentheses are accepted; commas must form proper thousands groups. Any
// other shape, such as "1.234,56", is rejected rather than guessed at.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errors.New("amount is empty")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	switch {
	case strings.HasPrefix(s, "-"):
		if negative {
			return decimal.Zero, fmt.Errorf("ambiguous amount %q", raw)
		}
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")

	if !amountPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("malformed amount %q", raw)
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed amount %q: %w", raw, err)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// ParseDate tries each layout in order and returns the calendar date of the
// first exact match.
func ParseDate(raw string, layouts ...string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errors.New("date is empty")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ledger.TruncateDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// InferType maps an institution's type vocabulary onto the canonical types.
// Matching is case-insensitive. Anything unrecognized is a debit; imported
// history has always been normalized that way.
func InferType(raw string, vocabulary map[string]ledger.TransactionType) ledger.TransactionType {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := vocabulary[key]; ok {
		return t
	}
	switch key {
	case "credit":
		return ledger.TypeCredit
	case "transfer":
		return ledger.TypeTransfer
	}
	return ledger.TypeDebit
}

// signAmount applies the canonical sign convention: debits are negative,
// credits positive, transfers keep the source sign.
func signAmount(amount decimal.Decimal, t ledger.TransactionType) decimal.Decimal {
	switch t {
	case ledger.TypeDebit:
		return amount.Abs().Neg()
	case ledger.TypeCredit:
		return amount.Abs()
	}
	return amount
}

func parseStatus(raw string) ledger.TransactionStatus {
	if strings.EqualFold(strings.TrimSpace(raw), string(ledger.StatusPending)) {
		return ledger.StatusPending
	}
	return ledger.StatusPosted
}

func lastFour(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

func orUncategorized(s string) string {
	if strings.TrimSpace(s) == "" {
		return ledger.Uncategorized
	}
	return strings.TrimSpace(s)
}
