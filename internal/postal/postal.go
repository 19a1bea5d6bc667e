// Package postal resolves Japanese postal codes to prefecture names.
package postal

import (
	"context"
	"strings"

	"golang.org/x/text/width"
)

// Lookup resolves a postal code to the name of the prefecture it belongs to.
// found is false when the code is not in the table, which is common for
// large-account codes assigned to a single business.
type Lookup interface {
	RegionForZip(ctx context.Context, zip string) (region string, found bool, err error)
}

var zipSeparators = strings.NewReplacer(
	"-", "", "‐", "", "－", "", "‑", "", "ー", "", "−", "", "‒", "", "–", "", "—", "", "―", "", "ｰ", "",
	" ", "", "　", "", "〒", "",
)

// NormalizeZip strips separators and folds full-width digits, so that
// "〒１００－０００１" and "100-0001" both become "1000001".
func NormalizeZip(zip string) string {
	return zipSeparators.Replace(width.Narrow.String(strings.TrimSpace(zip)))
}

// Table is an in-memory Lookup.
type Table struct {
	regions map[string]string
}

// NewTable builds a Table from entries. The first prefecture seen for a
// postal code wins.
func NewTable(entries []Entry) *Table {
	t := &Table{regions: make(map[string]string, len(entries))}
	for _, e := range entries {
		zip := NormalizeZip(e.Zip)
		if _, ok := t.regions[zip]; ok || zip == "" {
			continue
		}
		t.regions[zip] = e.Prefecture
	}
	return t
}

// RegionForZip implements Lookup.
func (t *Table) RegionForZip(_ context.Context, zip string) (string, bool, error) {
	region, ok := t.regions[NormalizeZip(zip)]
	return region, ok, nil
}

// Len returns the number of postal codes in t.
func (t *Table) Len() int {
	return len(t.regions)
}
