package address

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// NormalizeError reports an address with no recognizable numbered-lot part.
type NormalizeError struct {
	Address string
}

func (e *NormalizeError) Error() string {
	return "address: no block/lot number in " + e.Address
}

const (
	numeral     = `(?:[0-9０-９]+|[一二三四五六七八九十百千万]+)`
	lotMarker   = `(?:丁目|丁|無番地|番地|番|号)`
	lotJoiner   = `(?:丁目|丁|無番地|番地|番|号|-|の|東|西|南|北)`
	lotTerminal = `(?:[0-9０-９]+|` + lotMarker + `{1,2})`
)

// lotPattern matches the numbered-lot run of an address ("1丁目8-3",
// "一丁目八番地三号", "1丁目無番地"). A lone kanji numeral cannot end a match,
// so place names such as 四谷 or 三軒茶屋 are not mistaken for lot numbers.
var lotPattern = regexp.MustCompile(numeral + `*(?:` + numeral + `|` + lotJoiner + `{1,2})*` + lotTerminal)

// dashes are folded to an ASCII hyphen before matching.
var dashes = strings.NewReplacer(
	"‐", "-", // hyphen
	"－", "-", // fullwidth hyphen-minus
	"‑", "-", // non-breaking hyphen
	"−", "-", // minus sign
	"‒", "-", // figure dash
	"–", "-", // en dash
	"—", "-", // em dash
	"―", "-", // horizontal bar
)

// Segments holds the two halves of a segmented address.
type Segments struct {
	Prefix string
	Lot    string
}

// String returns the geocodable address, Prefix followed by Lot.
func (s Segments) String() string {
	return s.Prefix + s.Lot
}

// Split locates the numbered-lot run of address and returns the text before
// it and the run itself. Anything after the run (building names, floors) is
// dropped. Split returns a *NormalizeError when no run exists.
func Split(address string) (Segments, error) {
	folded := FoldHyphens(strings.TrimSpace(address))
	loc := lotPattern.FindStringIndex(folded)
	if loc == nil {
		return Segments{}, &NormalizeError{Address: address}
	}
	return Segments{Prefix: folded[:loc[0]], Lot: folded[loc[0]:loc[1]]}, nil
}

// FoldHyphens replaces hyphen-like characters with "-". The katakana long
// vowel mark is only folded when a numeral follows it and a numeral or a lot
// marker (1丁目ー8) precedes it, so words like センター stay intact.
func FoldHyphens(s string) string {
	s = dashes.Replace(s)
	if !strings.ContainsAny(s, "ーｰ") {
		return s
	}
	runes := []rune(s)
	for i, r := range runes {
		if r != 'ー' && r != 'ｰ' {
			continue
		}
		if i == 0 || i == len(runes)-1 || !isNumeral(runes[i+1]) {
			continue
		}
		if isNumeral(runes[i-1]) || endsWithLotMarker(runes[:i]) {
			runes[i] = '-'
		}
	}
	return string(runes)
}

var lotMarkers = []string{"丁目", "丁", "番地", "番", "号"}

func endsWithLotMarker(runes []rune) bool {
	s := string(runes)
	for _, m := range lotMarkers {
		if strings.HasSuffix(s, m) {
			return true
		}
	}
	return false
}

func isNumeral(r rune) bool {
	if unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune("一二三四五六七八九十百千万", r)
}

// Segmenter produces geocodable addresses for a source region.
type Segmenter struct {
	regions *Regions
}

// NewSegmenter creates a Segmenter resolving region hints through regions.
func NewSegmenter(regions *Regions) *Segmenter {
	return &Segmenter{regions: regions}
}

// Segment returns the geocodable prefix of address, ending at the numbered-lot
// run and starting with the prefecture of regionHint. Empty input yields
// empty output. A missing lot run yields *NormalizeError; an unknown region
// hint yields ErrUnknownRegion.
func (s *Segmenter) Segment(address, regionHint string) (string, error) {
	if strings.TrimSpace(address) == "" {
		return "", nil
	}

	pref, err := s.regions.Prefecture(regionHint)
	if err != nil {
		return "", err
	}

	seg, err := Split(address)
	if err != nil {
		return "", err
	}
	return withPrefecture(pref, seg.String()), nil
}

// Qualify returns address trimmed and starting with the prefecture of
// regionHint, without looking for a lot run. It is used for records whose
// coordinates are already known. An unknown region hint yields
// ErrUnknownRegion.
func (s *Segmenter) Qualify(address, regionHint string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", nil
	}
	pref, err := s.regions.Prefecture(regionHint)
	if err != nil {
		return "", err
	}
	return withPrefecture(pref, address), nil
}

func withPrefecture(pref, address string) string {
	if strings.HasPrefix(address, pref) {
		return address
	}
	return pref + address
}

// IsNormalizeError reports whether err carries a *NormalizeError.
func IsNormalizeError(err error) bool {
	var ne *NormalizeError
	return eris.As(err, &ne)
}
