// Package astro provides the solar and coordinate calculations used to
// decide when the sky is dark and which targets are observable.
package astro

import (
	"math"
	"time"
)

type Location struct {
	Latitude  float64
	Longitude float64
}

const (
	DegToRad           = math.Pi / 180
	RadToDeg           = 180 / math.Pi
	ZenithOfficial     float64 = 90 + 50.0/60
	ZenithCivil        float64 = 96
	ZenithNautical     float64 = 102
	ZenithAstronomical float64 = 108
)

// Zenith maps a twilight name to the corresponding solar zenith angle.
// Unrecognised names fall back to astronomical.
func Zenith(twilight string) float64 {
	switch twilight {
	case "official":
		return ZenithOfficial
	case "civil":
		return ZenithCivil
	case "nautical":
		return ZenithNautical
	default:
		return ZenithAstronomical
	}
}

func (pos Location) Sunrise(day time.Time, zenith float64) time.Time {
	return pos.calculate(day, zenith, true)
}

func (pos Location) Sunset(day time.Time, zenith float64) time.Time {
	return pos.calculate(day, zenith, false)
}

func (pos Location) calculate(now time.Time, zenith float64, sunrise bool) time.Time {
	// Sunrise/Sunset Algorithm taken from:
	// http://williams.best.vwh.net/sunrise_sunset_algorithm.htm
	day := now.YearDay()

	// convert the longitude to hour value and calculate an approximate time
	var lnHour = pos.Longitude / 15
	t := 0.0
	if sunrise {
		t = float64(day) + ((6 - lnHour) / 24)
	} else {
		t = float64(day) + ((18 - lnHour) / 24)
	}

	// calculate the Sun's mean anomaly
	M := (0.9856 * t) - 3.289

	// calculate the Sun's true longitude
	L := M + (1.916 * math.Sin(M*DegToRad)) + (0.020 * math.Sin(2*M*DegToRad)) + 282.634
	if L > 360 {
		L = L - 360
	} else if L < 0 {
		L = L + 360
	}

	// calculate the Sun's right ascension
	RA := RadToDeg * math.Atan(0.91764*math.Tan(L*DegToRad))
	if RA > 360 {
		RA = RA - 360
	} else if RA < 0 {
		RA = RA + 360
	}

	// right ascension value needs to be in the same quadrant
	Lquadrant := (math.Floor(L / 90)) * 90
	RAquadrant := (math.Floor(RA / 90)) * 90
	RA = RA + (Lquadrant - RAquadrant)

	// right ascension value needs to be converted into hours
	RA /= 15

	// calculate the Sun's declination
	sinDec := 0.39782 * math.Sin(L*DegToRad)
	cosDec := math.Cos(math.Asin(sinDec))

	// calculate the Sun's local hour angle
	cosH := (math.Cos(zenith*DegToRad) - (sinDec * math.Sin(pos.Latitude*DegToRad))) / (cosDec * math.Cos(pos.Latitude*DegToRad))
	H := 0.0
	if sunrise {
		H = 360 - RadToDeg*math.Acos(cosH)
	} else {
		H = RadToDeg * math.Acos(cosH)
	}
	H /= 15

	// calculate local mean time of rising/setting
	T := H + RA - (0.06571 * t) - 6.622

	// adjust back to UTC
	UT := T - lnHour
	if UT > 24 {
		UT -= 24
	} else if UT < 0 {
		UT += 24
	}

	hour := int(UT) % 24
	minute := int(UT*60) % 60
	second := int(UT*3600) % 60
	return time.Date(now.Year(), now.Month(), now.Day(),
		hour, minute, second, 0, time.UTC)
}

// IsNight reports whether the sun is below the given zenith angle at t.
func (pos Location) IsNight(t time.Time, zenith float64) bool {
	t = t.UTC()
	sunrise := pos.Sunrise(t, zenith)
	sunset := pos.Sunset(t, zenith)
	if sunset.After(sunrise) {
		// sun up between sunrise and sunset
		return t.Before(sunrise) || t.After(sunset)
	}
	// sunset falls before sunrise in UTC, sun up outside [sunset, sunrise]
	return t.After(sunset) && t.Before(sunrise)
}

// SiderealTime returns the local apparent sidereal time at t in hours.
func (pos Location) SiderealTime(t time.Time) float64 {
	t = t.UTC()
	// days since J2000.0
	j2000 := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	d := t.Sub(j2000).Hours() / 24

	// GMST approximation, good to a few seconds
	gmst := 280.46061837 + 360.98564736629*d
	lst := math.Mod(gmst+pos.Longitude, 360)
	if lst < 0 {
		lst += 360
	}
	return lst / 15
}

// Horizontal converts equatorial coordinates (ra, dec in degrees) to
// altitude and azimuth in degrees at time t.
func (pos Location) Horizontal(ra, dec float64, t time.Time) (alt, az float64) {
	ha := pos.SiderealTime(t)*15 - ra
	if ha < 0 {
		ha += 360
	}

	haRad := ha * DegToRad
	decRad := dec * DegToRad
	latRad := pos.Latitude * DegToRad

	sinAlt := math.Sin(decRad)*math.Sin(latRad) + math.Cos(decRad)*math.Cos(latRad)*math.Cos(haRad)
	alt = math.Asin(sinAlt) * RadToDeg

	cosAz := (math.Sin(decRad) - sinAlt*math.Sin(latRad)) / (math.Cos(math.Asin(sinAlt)) * math.Cos(latRad))
	cosAz = math.Max(-1, math.Min(1, cosAz))
	az = math.Acos(cosAz) * RadToDeg
	if math.Sin(haRad) > 0 {
		az = 360 - az
	}
	return alt, az
}

// Airmass returns the relative optical path length through the
// atmosphere for a target at the given altitude in degrees. Targets at
// or below the horizon return +Inf.
func Airmass(alt float64) float64 {
	if alt <= 0 {
		return math.Inf(1)
	}
	return 1 / math.Sin(alt*DegToRad)
}
