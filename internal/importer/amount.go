package importer

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledgerfeed/internal/model"
)

var amountCleaner = strings.NewReplacer("$", "", "\u20ac", "", "\u00a3", "", ",", "", " ", "", "\u00a0", "")

// parseAmount reads a bank-export amount such as "-4.00", "$1,250.00" or
// "(12.50)".
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = amountCleaner.Replace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// sumAmounts totals column col over rows, returning the number of cells that
// could not be read as amounts.
func sumAmounts(rows []model.RawRow, col int) (total decimal.Decimal, bad int) {
	total = decimal.Zero
	for _, row := range rows {
		d, ok := parseAmount(row.Cell(col))
		if !ok {
			bad++
			continue
		}
		total = total.Add(d)
	}
	return total, bad
}
