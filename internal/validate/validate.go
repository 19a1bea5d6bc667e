// Package validate flags plausibility problems in normalized records. It
// never rejects a record: every finding is a Warning the operator reviews.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/width"

	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/postal"
)

// Kind is a stable warning tag.
type Kind string

// Warning kinds, in the order the checks run.
const (
	InvalidURL        Kind = "invalid_url"
	InvalidTel        Kind = "invalid_tel"
	InvalidZip        Kind = "invalid_zip"
	HTMLMarkup        Kind = "html_markup"
	ZipRegionMismatch Kind = "zip_region_mismatch"
)

// Kinds returns every warning kind.
func Kinds() []Kind {
	return []Kind{InvalidURL, InvalidTel, InvalidZip, HTMLMarkup, ZipRegionMismatch}
}

// Warning is a single non-fatal finding.
type Warning struct {
	Kind   Kind   `json:"kind"`
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
}

var (
	separators = regexp.MustCompile(`[ \-‐－‑ー−‒–—―ｰ　]`)
	telPattern = regexp.MustCompile(`^0[0-9]{9,10}$`)
	zipPattern = regexp.MustCompile(`^[0-9]{7}$`)
)

// Validator runs the record checks.
type Validator struct {
	lookup postal.Lookup
	v      *validator.Validate
}

// New creates a Validator. A nil lookup disables the postal region check.
func New(lookup postal.Lookup) *Validator {
	return &Validator{lookup: lookup, v: validator.New()}
}

// Validate returns the warnings for rec in check order. An error means the
// postal lookup itself failed, not that the record is bad.
func (val *Validator) Validate(ctx context.Context, rec model.NormalizedRecord) ([]Warning, error) {
	var warnings []Warning
	add := func(w *Warning) {
		if w != nil {
			warnings = append(warnings, *w)
		}
	}

	add(val.checkURLs(rec.RawRecord))
	add(checkTel(rec.Tel))
	add(checkZip(rec.ZipCode))
	add(checkMarkup(rec.RawRecord))

	w, err := val.checkZipRegion(ctx, rec)
	if err != nil {
		return nil, err
	}
	add(w)

	return warnings, nil
}

func (val *Validator) checkURLs(r model.RawRecord) *Warning {
	var bad []string
	for _, f := range []struct{ name, value string }{
		{"official_page", r.OfficialPage},
		{"detail_page", r.DetailPage},
	} {
		v := strings.TrimSpace(f.value)
		if v == "" {
			continue
		}
		if err := val.v.Var(v, "http_url"); err != nil {
			bad = append(bad, f.name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &Warning{
		Kind:   InvalidURL,
		Field:  bad[0],
		Detail: fmt.Sprintf("malformed URL in %s", strings.Join(bad, ", ")),
	}
}

func stripSeparators(s string) string {
	return separators.ReplaceAllString(width.Narrow.String(strings.TrimSpace(s)), "")
}

func checkTel(tel string) *Warning {
	t := stripSeparators(tel)
	if t == "" || telPattern.MatchString(t) {
		return nil
	}
	return &Warning{
		Kind:   InvalidTel,
		Field:  "tel",
		Detail: fmt.Sprintf("tel %q is not 10 or 11 digits starting with 0", tel),
	}
}

func checkZip(zip string) *Warning {
	z := stripSeparators(zip)
	if z == "" || zipPattern.MatchString(z) {
		return nil
	}
	return &Warning{
		Kind:   InvalidZip,
		Field:  "zip_code",
		Detail: fmt.Sprintf("zip_code %q is not 7 digits", zip),
	}
}

func checkMarkup(r model.RawRecord) *Warning {
	var bad []string
	for _, f := range []struct{ name, value string }{
		{"shop_name", r.ShopName},
		{"address", r.Address},
		{"official_page", r.OfficialPage},
		{"detail_page", r.DetailPage},
		{"opening_hours", r.OpeningHours},
		{"closing_day", r.ClosingDay},
		{"area_name", r.AreaName},
	} {
		if HasMarkup(f.value) {
			bad = append(bad, f.name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &Warning{
		Kind:   HTMLMarkup,
		Field:  bad[0],
		Detail: fmt.Sprintf("HTML markup in %s", strings.Join(bad, ", ")),
	}
}

func (val *Validator) checkZipRegion(ctx context.Context, rec model.NormalizedRecord) (*Warning, error) {
	if val.lookup == nil || rec.NormalizedAddress == "" {
		return nil, nil
	}
	zip := stripSeparators(rec.ZipCode)
	if !zipPattern.MatchString(zip) {
		return nil, nil
	}

	region, found, err := val.lookup.RegionForZip(ctx, zip)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: region for zip %s", zip)
	}
	if !found {
		zap.L().Info("validate: unknown zip code, possibly a large-account code",
			zap.String("zip_code", rec.ZipCode),
			zap.String("shop_name", rec.ShopName),
		)
		return nil, nil
	}

	if strings.HasPrefix(rec.NormalizedAddress, region) {
		return nil, nil
	}
	return &Warning{
		Kind:   ZipRegionMismatch,
		Field:  "zip_code",
		Detail: fmt.Sprintf("zip_code %s belongs to %s but the address is %s", rec.ZipCode, region, rec.NormalizedAddress),
	}, nil
}
