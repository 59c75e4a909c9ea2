package service

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"catalyst/internal/model"

	"github.com/xuri/excelize/v2"
)

// ErrNoStocksFound is returned when the spreadsheet has no usable rows.
var ErrNoStocksFound = errors.New("no valid stock rows in spreadsheet")

// ParseStocks reads an XLSX stock list: column A is the stock name, column B
// the stock code, with the first row treated as a header. Rows missing either
// value are skipped.
func ParseStocks(data []byte) ([]model.StockInfo, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoStocksFound
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}

	var stocks []model.StockInfo
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		code := strings.TrimSpace(row[1])
		if name == "" || code == "" {
			continue
		}
		stocks = append(stocks, model.StockInfo{Name: name, Code: code})
	}
	if len(stocks) == 0 {
		return nil, ErrNoStocksFound
	}
	return stocks, nil
}
