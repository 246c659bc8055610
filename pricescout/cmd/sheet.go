package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pricescout/pricescout/utils/types"
)

// ReadNames reads product names from column A, skipping the header row and
// blank cells.
func ReadNames(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var names []string
	for row := 0; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sheet: %w", err)
		}
		if row == 0 || len(record) == 0 {
			continue
		}
		if name := strings.TrimSpace(record[0]); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no product names found in column A", types.ErrInvalidRequest)
	}
	return names, nil
}

// WriteResults writes one "Product Name,Price,URL" row per product with its
// cheapest candidate. Products without candidates keep empty price and URL.
func WriteResults(w io.Writer, results []types.ProductResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Product Name", "Price", "URL"}); err != nil {
		return err
	}
	for _, res := range results {
		record := []string{res.ProductName, "", ""}
		if len(res.Candidates) > 0 {
			best := res.Candidates[0]
			record[1] = strconv.FormatFloat(best.Price, 'f', 2, 64)
			record[2] = best.DetailURL
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
