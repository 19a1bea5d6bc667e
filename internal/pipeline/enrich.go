package pipeline

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	googleMapSearchURL = "https://www.google.com/maps/search/?q="
	phoneRegion        = "JP"
)

// coordinateDigits matches the precision of GSI map links.
const coordinateDigits = 6

// RoundCoordinate rounds v to six decimal places.
func RoundCoordinate(v float64) float64 {
	p := math.Pow10(coordinateDigits)
	return math.Round(v*p) / p
}

// isNullIsland reports the (0, 0) position geocoders return for garbage.
func isNullIsland(lat, lng float64) bool {
	return lat == 0 && lng == 0
}

// GoogleMapURL links a Google Maps search for the shop at address.
func GoogleMapURL(address, shopName string) string {
	q := strings.TrimSpace(address + " " + shopName)
	return googleMapSearchURL + strings.ReplaceAll(url.QueryEscape(q), "+", "%20")
}

// GSIMapURL links the GSI map at zoom 17 centered on lat/lng.
func GSIMapURL(lat, lng float64) string {
	return "https://maps.gsi.go.jp/#17/" + formatCoordinate(lat) + "/" + formatCoordinate(lng) + "/"
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// TelE164 formats a Japanese phone number as E.164, or returns "" when the
// number does not parse as a valid JP number.
func TelE164(tel string) string {
	tel = strings.TrimSpace(tel)
	if tel == "" {
		return ""
	}
	num, err := phonenumbers.Parse(tel, phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
