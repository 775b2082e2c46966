package analytics

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteCSV renders a bucket series with one row per bucket.
func WriteCSV(w io.Writer, buckets []TimeBucket) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"key", "label", "completed", "cancelled", "in_process", "total"}); err != nil {
		return err
	}
	for _, b := range buckets {
		if err := writer.Write([]string{
			b.Key,
			b.Label,
			strconv.Itoa(b.CompletedCount),
			strconv.Itoa(b.CancelledCount),
			strconv.Itoa(b.InProcess()),
			strconv.Itoa(b.TotalCount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
