package strategy

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// WriteCSV writes the curve as price,pnl rows with a header.
func WriteCSV(w io.Writer, curve Curve) error {
	rows := []Point(curve)
	if rows == nil {
		rows = []Point{}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("strategy: write csv: %w", err)
	}
	return nil
}
