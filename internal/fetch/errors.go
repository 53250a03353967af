package fetch

import "fmt"

// FetchError is fatal to a run. It carries the failing block range or
// transaction hash so the operator can locate the failure; a chunk
// that cannot be fetched must never be silently omitted from totals.
type FetchError struct {
	From   uint64
	To     uint64
	TxHash string
	Err    error
}

func (e *FetchError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("fetch tx %s: %v", e.TxHash, e.Err)
	}
	return fmt.Sprintf("fetch blocks %d-%d: %v", e.From, e.To, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
