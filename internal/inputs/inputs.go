// Package inputs loads and validates the committed input files. All
// validation happens before any RPC call; a malformed file aborts the
// run without touching the network.
package inputs

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ValidateTxHash checks the 0x-prefixed 32-byte hex form.
func ValidateTxHash(hash string) error {
	if !txHashPattern.MatchString(hash) {
		return fmt.Errorf("invalid tx hash: %q", hash)
	}
	return nil
}

// TxHashList loads a CSV column of transaction hashes, deduplicating
// case-insensitively while preserving first-occurrence order.
func TxHashList(path, column string) ([]string, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	idx, err := columnIndex(rows.header, column, path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, len(rows.records))
	for i, record := range rows.records {
		hash := strings.TrimSpace(record[idx])
		if hash == "" {
			continue
		}
		if err := ValidateTxHash(hash); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		key := strings.ToLower(hash)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, hash)
	}
	return out, nil
}

// AmountRow is a tx hash paired with an expected human-unit amount.
type AmountRow struct {
	TxHash string
	Amount string
}

// AmountRows loads (tx_hash, amount) pairs from a CSV.
func AmountRows(path, amountColumn string) ([]AmountRow, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	hashIdx, err := columnIndex(rows.header, "tx_hash", path)
	if err != nil {
		return nil, err
	}
	amountIdx, err := columnIndex(rows.header, amountColumn, path)
	if err != nil {
		return nil, err
	}

	out := make([]AmountRow, 0, len(rows.records))
	for i, record := range rows.records {
		hash := strings.TrimSpace(record[hashIdx])
		amount := strings.TrimSpace(record[amountIdx])
		if hash == "" {
			continue
		}
		if err := ValidateTxHash(hash); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		if amount == "" {
			return nil, fmt.Errorf("%s row %d: empty %s", path, i+2, amountColumn)
		}
		out = append(out, AmountRow{TxHash: hash, Amount: amount})
	}
	return out, nil
}

// DatedTxRow is a tx hash with its ISO-8601 UTC timestamp.
type DatedTxRow struct {
	TxHash string
	ISOUTC string
}

// DatedTxRows loads (iso_utc, tx_hash) pairs from a CSV, optionally
// keeping only rows whose timestamp starts with datePrefix.
func DatedTxRows(path, datePrefix string) ([]DatedTxRow, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	hashIdx, err := columnIndex(rows.header, "tx_hash", path)
	if err != nil {
		return nil, err
	}
	dateIdx, err := columnIndex(rows.header, "iso_utc", path)
	if err != nil {
		return nil, err
	}

	out := make([]DatedTxRow, 0)
	for i, record := range rows.records {
		hash := strings.TrimSpace(record[hashIdx])
		iso := strings.TrimSpace(record[dateIdx])
		if hash == "" {
			continue
		}
		if err := ValidateTxHash(hash); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		if datePrefix != "" && !strings.HasPrefix(iso, datePrefix) {
			continue
		}
		out = append(out, DatedTxRow{TxHash: hash, ISOUTC: iso})
	}
	return out, nil
}

// Disbursement is one expected treasury ETH disbursement.
type Disbursement struct {
	TransactionHash string `json:"transaction_hash"`
	Recipient       string `json:"recipient"`
	AmountETH       string `json:"amount_eth"`
}

// Disbursements loads the phase-3 treasury disbursement list.
func Disbursements(path string) ([]Disbursement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc struct {
		Transactions []Disbursement `json:"transactions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, d := range doc.Transactions {
		if err := ValidateTxHash(strings.TrimSpace(d.TransactionHash)); err != nil {
			return nil, fmt.Errorf("%s transactions[%d]: %w", path, i, err)
		}
		if d.Recipient == "" || d.AmountETH == "" {
			return nil, fmt.Errorf("%s transactions[%d]: missing recipient or amount_eth", path, i)
		}
	}
	return doc.Transactions, nil
}

// Snapshot loads a committed expected-totals JSON into a flat
// key→string map. Numeric values are kept as their literal text so
// comparisons stay exact. Nested objects (e.g. "meta") are skipped.
func Snapshot(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for key, value := range raw {
		text := strings.TrimSpace(string(value))
		if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			out[key] = s
			continue
		}
		out[key] = text
	}
	return out, nil
}

type csvRows struct {
	header  []string
	records [][]string
}

func readCSV(path string) (csvRows, error) {
	file, err := os.Open(path)
	if err != nil {
		return csvRows{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return csvRows{}, fmt.Errorf("read header %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records := make([][]string, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return csvRows{}, fmt.Errorf("read %s: %w", path, err)
		}
		records = append(records, record)
	}
	return csvRows{header: header, records: records}, nil
}

func columnIndex(header []string, column, path string) (int, error) {
	for i, name := range header {
		if name == column {
			return i, nil
		}
	}
	return 0, fmt.Errorf("missing %s column: %s", column, path)
}
