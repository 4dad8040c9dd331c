// Package solar computes the sun's elevation angle for a coordinate and
// instant using the NOAA low-accuracy solar position equations (fractional
// year, equation of time, declination, hour angle). Good to a small fraction
// of a degree, which is far tighter than the twilight bands consuming it.
package solar

import (
	"math"
	"time"

	"cosmicam"
)

// Elevation returns the solar elevation angle in degrees at the given
// instant. Negative values mean the sun is below the horizon. The only
// failure mode is an out-of-range coordinate.
func Elevation(coord cosmicam.GeoCoordinate, instant time.Time) (float64, error) {
	if err := coord.Validate(); err != nil {
		return 0, err
	}

	utc := instant.UTC()
	hours := float64(utc.Hour()) + float64(utc.Minute())/60 + float64(utc.Second())/3600

	g := fractionalYear(utc, hours)
	eqTimeMin := equationOfTime(g)
	decl := declination(g)

	// True solar time in minutes; longitude east-positive, 4 min per degree.
	offset := eqTimeMin + 4*coord.Longitude
	trueSolarMin := hours*60 + offset

	hourAngle := deg2rad(trueSolarMin/4 - 180)

	lat := deg2rad(coord.Latitude)
	cosZenith := math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(hourAngle)
	cosZenith = math.Max(-1, math.Min(1, cosZenith))

	return 90 - rad2deg(math.Acos(cosZenith)), nil
}

// fractionalYear returns the year angle in radians for the NOAA series
// expansions below.
func fractionalYear(utc time.Time, hours float64) float64 {
	days := 365.0
	if isLeap(utc.Year()) {
		days = 366
	}
	return 2 * math.Pi / days * (float64(utc.YearDay()) - 1 + (hours-12)/24)
}

// equationOfTime returns the apparent/mean solar time difference in minutes.
func equationOfTime(g float64) float64 {
	return 229.18 * (0.000075 +
		0.001868*math.Cos(g) - 0.032077*math.Sin(g) -
		0.014615*math.Cos(2*g) - 0.040849*math.Sin(2*g))
}

// declination returns the solar declination in radians.
func declination(g float64) float64 {
	return 0.006918 -
		0.399912*math.Cos(g) + 0.070257*math.Sin(g) -
		0.006758*math.Cos(2*g) + 0.000907*math.Sin(2*g) -
		0.002697*math.Cos(3*g) + 0.00148*math.Sin(3*g)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
