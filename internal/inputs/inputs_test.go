package inputs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const (
	hashA = "0x21378158d6bf9602fbffa0c296ef509aa30c2718f5ac91c781af8d9afa78ee89"
	hashB = "0x7f1fe966e79a4123309c1bc292a31e3f53a2bd4b60140eb26a8be34bd7f03281"
)

func TestTxHashListDedupesPreservingOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hashes.csv",
		"tx_hash\n"+hashB+"\n"+hashA+"\n"+hashB+"\n")

	hashes, err := TxHashList(path, "tx_hash")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("expected 2 hashes, got %d", len(hashes))
	}
	if hashes[0] != hashB || hashes[1] != hashA {
		t.Fatalf("order not preserved: %v", hashes)
	}
}

func TestTxHashListRejectsMalformedHash(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hashes.csv", "tx_hash\n0x1234\n")

	if _, err := TxHashList(path, "tx_hash"); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}

func TestTxHashListRejectsMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hashes.csv", "hash\n"+hashA+"\n")

	if _, err := TxHashList(path, "tx_hash"); err == nil {
		t.Fatalf("expected error for missing column")
	}
}

func TestAmountRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "returns.csv",
		"tx_hash,amount_eth\n"+hashA+",0.5\n"+hashB+",1.25\n")

	rows, err := AmountRows(path, "amount_eth")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].TxHash != hashB || rows[1].Amount != "1.25" {
		t.Fatalf("row mismatch: %+v", rows[1])
	}
}

func TestDatedTxRowsFiltersByPrefix(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "txs.csv",
		"iso_utc,tx_hash\n2025-08-29T10:00:00+00:00,"+hashA+"\n2025-09-01T00:00:00+00:00,"+hashB+"\n")

	rows, err := DatedTxRows(path, "2025-08-29")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 || rows[0].TxHash != hashA {
		t.Fatalf("filter mismatch: %+v", rows)
	}
}

func TestSnapshotKeepsScalarLiterals(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "computed_totals.json", `{
  "phase1+2_ticket_eth": "12.5",
  "total_eth": "13.75",
  "meta": {"latest_block": 400000000}
}`)

	snapshot, err := Snapshot(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snapshot["phase1+2_ticket_eth"] != "12.5" {
		t.Fatalf("value mismatch: %q", snapshot["phase1+2_ticket_eth"])
	}
	if _, ok := snapshot["meta"]; ok {
		t.Fatalf("nested meta should be skipped")
	}
}

func TestDisbursementsValidation(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json",
		`{"transactions":[{"transaction_hash":"`+hashA+`","recipient":"0x8a8053c21696f27ed305a03bd1efc5d068d91d0e","amount_eth":"2.0"}]}`)
	bad := writeFile(t, dir, "bad.json",
		`{"transactions":[{"transaction_hash":"0xnope","recipient":"0x8a","amount_eth":"2.0"}]}`)

	rows, err := Disbursements(good)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 || rows[0].AmountETH != "2.0" {
		t.Fatalf("row mismatch: %+v", rows)
	}

	if _, err := Disbursements(bad); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}
