package raster

import (
	"fmt"
	"regexp"
	"strings"
)

// CRS identifies a coordinate reference system by authority code,
// e.g. "EPSG:4326".
type CRS string

const (
	// WGS84 is geographic longitude/latitude in degrees. Asset boxes are
	// indexed in this CRS.
	WGS84 CRS = "EPSG:4326"

	// WebMercator is the spherical mercator projection used by
	// WebMercatorQuad tiles.
	WebMercator CRS = "EPSG:3857"
)

var (
	crsURIRegexURL  = regexp.MustCompile(`^https?://.+/def/crs/(?P<authority>[^/]+)/[^/]+/(?P<code>[^/]+)$`)
	crsURIRegexURN  = regexp.MustCompile(`^urn:ogc:def:crs:(?P<authority>[^:]+):[^:]*:(?P<code>[^:]+)$`)
	crsCodeRegex    = regexp.MustCompile(`^(?P<authority>[A-Za-z]+):(?P<code>[0-9A-Za-z]+)$`)
	wktAuthorityEnd = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"?(\d+)"?\]\]\s*$`)
)

// webMercatorAliases are codes that denote the same spherical mercator.
var webMercatorAliases = map[string]bool{
	"3857":   true,
	"3785":   true,
	"900913": true,
	"102100": true,
	"102113": true,
}

// ParseCRS normalises a CRS reference. It accepts authority codes
// ("EPSG:3857", "4326"), OGC URNs and URLs, "OGC:CRS84", and WKT strings
// such as the content of a .prj sidecar.
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty crs")
	}

	if strings.ContainsAny(s, "[") {
		return parseWKT(s)
	}

	authority, code := "EPSG", s
	for _, re := range []*regexp.Regexp{crsURIRegexURL, crsURIRegexURN, crsCodeRegex} {
		if m := re.FindStringSubmatch(s); m != nil {
			authority = m[re.SubexpIndex("authority")]
			code = m[re.SubexpIndex("code")]
			break
		}
	}
	return fromAuthority(authority, code)
}

func fromAuthority(authority, code string) (CRS, error) {
	switch strings.ToUpper(authority) {
	case "EPSG":
		if webMercatorAliases[code] {
			return WebMercator, nil
		}
		if code == "4326" {
			return WGS84, nil
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				return "", fmt.Errorf("invalid EPSG code %q", code)
			}
		}
		return CRS("EPSG:" + code), nil
	case "OGC", "CRS":
		if strings.EqualFold(code, "CRS84") || code == "84" {
			return WGS84, nil
		}
	}
	return "", fmt.Errorf("unsupported crs authority %s:%s", authority, code)
}

func parseWKT(wkt string) (CRS, error) {
	upper := strings.ToUpper(wkt)
	switch {
	case strings.Contains(upper, "PSEUDO-MERCATOR"),
		strings.Contains(upper, "POPULAR VISUALISATION"),
		strings.Contains(upper, "MERCATOR_AUXILIARY_SPHERE"):
		return WebMercator, nil
	}
	if m := wktAuthorityEnd.FindStringSubmatch(wkt); m != nil {
		return fromAuthority("EPSG", m[1])
	}
	if strings.HasPrefix(upper, "GEOGCS") && strings.Contains(upper, "WGS") {
		return WGS84, nil
	}
	return "", fmt.Errorf("unrecognised wkt crs")
}
