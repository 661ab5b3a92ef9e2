package ledger

import (
	"fmt"
	"strconv"
	"time"
)

// Document numbers are a date prefix plus a 4-digit sequence that restarts
// every day: orders 202401150001, transfers TR2401150001.

const seqWidth = 4

func OrderNoPrefix(date time.Time) string { return date.Format("20060102") }
func TransferCodePrefix(date time.Time) string { return "TR" + date.Format("060102") }

// NextNumber returns the number following latest within prefix. An empty
// latest starts the sequence at 1.
func NextNumber(prefix, latest string) (string, error) {
	seq := 0
	if latest != "" {
		if len(latest) != len(prefix)+seqWidth || latest[:len(prefix)] != prefix {
			return "", fmt.Errorf("document number %q does not match prefix %q", latest, prefix)
		}
		n, err := strconv.Atoi(latest[len(prefix):])
		if err != nil {
			return "", fmt.Errorf("document number %q: %w", latest, err)
		}
		seq = n
	}
	if seq >= 9999 {
		return "", Invalid("sequence", "daily sequence exhausted for %s", prefix)
	}
	return fmt.Sprintf("%s%0*d", prefix, seqWidth, seq+1), nil
}
