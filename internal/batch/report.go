package batch

import (
	"io"
	"os"

	"github.com/gocarina/gocsv"
)

// WriteReport marshals rows to CSV via gocsv's struct-tag mapping,
// distinct from internal/writer's hand-built single-statement CSV:
// this is a fixed-shape summary table, exactly the kind of struct-to-
// CSV mapping gocsv is built for.
func WriteReport(rows []Row, out io.Writer) error {
	return gocsv.Marshal(rows, out)
}

// WriteReportFile writes the batch summary report to path.
func WriteReportFile(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteReport(rows, f)
}
