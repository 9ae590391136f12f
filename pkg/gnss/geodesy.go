package gnss

import "math"

// WGS84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// ECEF is an earth centered, earth fixed cartesian position in meters.
type ECEF struct {
	X, Y, Z float64
}

// GeodeticToECEF transforms WGS84 latitude and longitude in degrees and the ellipsoidal height
// in meters into ECEF coordinates.
func GeodeticToECEF(lat, lon, height float64) ECEF {
	phi := lat * math.Pi / 180
	lambda := lon * math.Pi / 180
	sinPhi := math.Sin(phi)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinPhi*sinPhi)

	return ECEF{
		X: (n + height) * math.Cos(phi) * math.Cos(lambda),
		Y: (n + height) * math.Cos(phi) * math.Sin(lambda),
		Z: (n*(1-wgs84E2) + height) * sinPhi,
	}
}

// Distance returns the euclidean distance between two positions.
func (p ECEF) Distance(q ECEF) float64 {
	return math.Sqrt((p.X-q.X)*(p.X-q.X) + (p.Y-q.Y)*(p.Y-q.Y) + (p.Z-q.Z)*(p.Z-q.Z))
}

// Array returns the coordinates as array.
func (p ECEF) Array() [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}
