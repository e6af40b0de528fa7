package cogtiles

import (
	"fmt"
	"strings"
)

// Kind is a collection type. Each kind has its own directory under the data
// root and its own Layout.
type Kind int

const (
	KindBathy     Kind = iota // bathymetry, colour rasters with depth companions
	KindOrtho                 // orthomosaics, ASV imagery prioritised or excluded
	KindPred                  // habitat predictions
	KindPredDrone             // drone habitat predictions with classified companions
	KindPredASV               // ASV predictions partitioned by species
)

var kindNames = [...]string{
	KindBathy:     "bathy",
	KindOrtho:     "ortho",
	KindPred:      "pred",
	KindPredDrone: "pred_drone",
	KindPredASV:   "pred_asv",
}

// Kinds lists every collection kind.
func Kinds() []Kind {
	return []Kind{KindBathy, KindOrtho, KindPred, KindPredDrone, KindPredASV}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the kind named s (case-insensitive).
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown collection kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// RasterExtensions are the file extensions catalogued by default.
var RasterExtensions = []string{".tif", ".tiff"}

// Layout describes how the files of a collection kind are organised and
// served.
type Layout struct {
	// Extensions filters catalogued files (case-insensitive). Empty accepts
	// every regular file.
	Extensions []string

	// ColorToken, when set, restricts assets to files whose name contains it.
	// The companion of each asset is the file named with ColorToken replaced
	// by CompanionToken.
	ColorToken     string
	CompanionToken string

	// CompanionExtensions are tried, in order, when the companion does not
	// exist with the colour raster's extension.
	CompanionExtensions []string

	// Order is the candidate ordering of tile requests.
	Order OrderPolicy

	// Values is how companion samples are interpreted.
	Values ValueKind

	// Labels maps classified samples to names.
	Labels LabelTable

	// BySpecies splits each year into one partition per species token.
	BySpecies bool
}

// HasCompanions reports whether the layout pairs colour and data rasters.
func (l Layout) HasCompanions() bool {
	return l.ColorToken != ""
}

// LayoutFor returns the layout of a collection kind.
func LayoutFor(k Kind) (Layout, error) {
	switch k {
	case KindBathy:
		return Layout{
			Extensions:          RasterExtensions,
			ColorToken:          "color",
			CompanionToken:      "depth",
			CompanionExtensions: []string{".asc"},
			Order:               OrderByPath,
			Values:              Continuous,
		}, nil
	case KindOrtho:
		return Layout{
			Extensions: RasterExtensions,
			Order:      OrderMarkerFirst,
		}, nil
	case KindPred:
		return Layout{
			Extensions: RasterExtensions,
			Order:      OrderByPath,
		}, nil
	case KindPredDrone:
		return Layout{
			Extensions:     RasterExtensions,
			ColorToken:     "color",
			CompanionToken: "preddata",
			Order:          OrderByPath,
			Values:         Classified,
			Labels:         CoralHabitatLabels,
		}, nil
	case KindPredASV:
		return Layout{
			Extensions: RasterExtensions,
			Order:      OrderMarkerFirst,
			BySpecies:  true,
		}, nil
	}
	return Layout{}, fmt.Errorf("no layout for %s", k)
}
