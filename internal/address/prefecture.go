// Package address extracts the geocodable part of Japanese postal addresses.
package address

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnknownRegion is returned when a region hint has no prefecture mapping.
// It indicates a misconfigured source, not bad data.
var ErrUnknownRegion = errors.New("address: unknown region")

// prefectures maps romanized slugs to canonical prefecture names.
var prefectures = map[string]string{
	"hokkaido":  "北海道",
	"aomori":    "青森県",
	"iwate":     "岩手県",
	"miyagi":    "宮城県",
	"akita":     "秋田県",
	"yamagata":  "山形県",
	"fukushima": "福島県",
	"ibaraki":   "茨城県",
	"tochigi":   "栃木県",
	"gunma":     "群馬県",
	"saitama":   "埼玉県",
	"chiba":     "千葉県",
	"tokyo":     "東京都",
	"kanagawa":  "神奈川県",
	"niigata":   "新潟県",
	"toyama":    "富山県",
	"ishikawa":  "石川県",
	"fukui":     "福井県",
	"yamanashi": "山梨県",
	"nagano":    "長野県",
	"gifu":      "岐阜県",
	"shizuoka":  "静岡県",
	"aichi":     "愛知県",
	"mie":       "三重県",
	"shiga":     "滋賀県",
	"kyoto":     "京都府",
	"osaka":     "大阪府",
	"hyogo":     "兵庫県",
	"nara":      "奈良県",
	"wakayama":  "和歌山県",
	"tottori":   "鳥取県",
	"shimane":   "島根県",
	"okayama":   "岡山県",
	"hiroshima": "広島県",
	"yamaguchi": "山口県",
	"tokushima": "徳島県",
	"kagawa":    "香川県",
	"ehime":     "愛媛県",
	"kochi":     "高知県",
	"fukuoka":   "福岡県",
	"saga":      "佐賀県",
	"nagasaki":  "長崎県",
	"kumamoto":  "熊本県",
	"oita":      "大分県",
	"miyazaki":  "宮崎県",
	"kagoshima": "鹿児島県",
	"okinawa":   "沖縄県",
}

// DefaultAliases maps source slugs that are not prefecture slugs onto one.
// Shizuoka publishes two separate voucher lists ("red" and "blue").
var DefaultAliases = map[string]string{
	"shizuoka_blue": "shizuoka",
}

// Regions resolves region hints to canonical prefecture names.
type Regions struct {
	aliases map[string]string
}

// NewRegions creates a resolver with DefaultAliases plus extra aliases.
// Every alias must point at a known prefecture slug.
func NewRegions(extra map[string]string) (*Regions, error) {
	aliases := make(map[string]string, len(DefaultAliases)+len(extra))
	for k, v := range DefaultAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		key := strings.ToLower(strings.TrimSpace(k))
		target := strings.ToLower(strings.TrimSpace(v))
		if _, ok := prefectures[target]; !ok {
			return nil, eris.Wrapf(ErrUnknownRegion, "address: alias %q targets %q", k, v)
		}
		aliases[key] = target
	}
	return &Regions{aliases: aliases}, nil
}

// Prefecture returns the canonical prefecture name for a region hint such as
// "tochigi" or "shizuoka_blue".
func (r *Regions) Prefecture(hint string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(hint))
	if target, ok := r.aliases[slug]; ok {
		slug = target
	}
	name, ok := prefectures[slug]
	if !ok {
		return "", eris.Wrapf(ErrUnknownRegion, "address: region %q", hint)
	}
	return name, nil
}

// Prefectures returns the canonical names of all 47 prefectures.
func Prefectures() []string {
	names := make([]string, 0, len(prefectures))
	for _, name := range prefectures {
		names = append(names, name)
	}
	return names
}
