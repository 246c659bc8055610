package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"pricescout/pricescout/utils/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNames_ColumnAAfterHeader(t *testing.T) {
	sheet := "Producto,Notas\ntaladro percutor,urgente\n\n  amoladora 115mm ,\n,solo nota\n\"sierra, circular\"\n"
	names, err := ReadNames(strings.NewReader(sheet))
	require.NoError(t, err)
	assert.Equal(t, []string{"taladro percutor", "amoladora 115mm", "sierra, circular"}, names)
}

func TestReadNames_HeaderOnly(t *testing.T) {
	_, err := ReadNames(strings.NewReader("Producto\n"))
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestWriteResults(t *testing.T) {
	results := []types.ProductResult{
		{ProductName: "taladro", Candidates: []types.Listing{
			{Price: 45999.9, DetailURL: "https://item/1"},
			{Price: 50000, DetailURL: "https://item/2"},
		}},
		types.Failed("amoladora", errors.New("navigation failed")),
		{ProductName: "sierra", Candidates: []types.Listing{}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))
	assert.Equal(t,
		"Product Name,Price,URL\ntaladro,45999.90,https://item/1\namoladora,,\nsierra,,\n",
		buf.String())
}

func TestPrintResultTo(t *testing.T) {
	var buf bytes.Buffer
	printResultTo(&buf, 0, types.ProductResult{ProductName: "taladro", Candidates: []types.Listing{{Price: 10, DetailURL: "https://item/1"}}})
	printResultTo(&buf, 1, types.Failed("amoladora", errors.New("boom")))
	printResultTo(&buf, 2, types.ProductResult{ProductName: "sierra"})

	out := buf.String()
	assert.Contains(t, out, "taladro")
	assert.Contains(t, out, "10.00")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "no listings")
}
