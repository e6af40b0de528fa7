package raster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCRS(t *testing.T) {
	tests := []struct {
		in   string
		want CRS
	}{
		{in: "EPSG:4326", want: WGS84},
		{in: "epsg:3857", want: WebMercator},
		{in: "4326", want: WGS84},
		{in: "EPSG:900913", want: WebMercator},
		{in: "EPSG:32755", want: CRS("EPSG:32755")},
		{in: "OGC:CRS84", want: WGS84},
		{in: "urn:ogc:def:crs:EPSG::3857", want: WebMercator},
		{in: "http://www.opengis.net/def/crs/EPSG/0/4326", want: WGS84},
		{in: "http://www.opengis.net/def/crs/OGC/1.3/CRS84", want: WGS84},
		{in: `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`, want: WGS84},
		{in: `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984"]]`, want: WebMercator},
		{in: `PROJCS["WGS 84 / UTM zone 55S",GEOGCS["WGS 84"],AUTHORITY["EPSG","32755"]]`, want: CRS("EPSG:32755")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCRS(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseCRSInvalid(t *testing.T) {
	for _, in := range []string{"", "EPSG:abc", "FOO:1234", `LOCAL_CS["arbitrary"]`} {
		_, err := ParseCRS(in)
		require.Errorf(t, err, "ParseCRS(%q) should fail", in)
	}
}
