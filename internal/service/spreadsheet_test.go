package service

import (
	"bytes"
	"testing"

	"catalyst/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sheetBytes(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, name, cell))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseStocks(t *testing.T) {
	data := sheetBytes(t, [][]string{
		{"股票名称", "股票代码"},
		{"贵州茅台", "600519"},
		{"  宁德时代  ", " 300750 "},
	})

	stocks, err := ParseStocks(data)
	require.NoError(t, err)
	assert.Equal(t, []model.StockInfo{
		{Name: "贵州茅台", Code: "600519"},
		{Name: "宁德时代", Code: "300750"},
	}, stocks)
}

func TestParseStocksSkipsIncompleteRows(t *testing.T) {
	data := sheetBytes(t, [][]string{
		{"名称", "代码"},
		{"只有名称", ""},
		{"", "600000"},
		{"完整行", "600001"},
	})

	stocks, err := ParseStocks(data)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "600001", stocks[0].Code)
}

func TestParseStocksHeaderOnly(t *testing.T) {
	data := sheetBytes(t, [][]string{{"名称", "代码"}})

	_, err := ParseStocks(data)
	assert.ErrorIs(t, err, ErrNoStocksFound)
}

func TestParseStocksRejectsGarbage(t *testing.T) {
	_, err := ParseStocks([]byte("this is not a spreadsheet"))
	assert.Error(t, err)
}
