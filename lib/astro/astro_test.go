package astro

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var stPaul = Location{Latitude: 44.9537, Longitude: -93.09}

func TestSunriseSunset(t *testing.T) {
	day := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	sunrise := stPaul.Sunrise(day, ZenithOfficial)
	sunset := stPaul.Sunset(day, ZenithOfficial)

	assert.True(t, sunrise.Before(sunset))
	// midsummer at 45N: roughly 15.5 hours of daylight
	daylight := sunset.Sub(sunrise)
	assert.True(t, daylight > 14*time.Hour, "daylight: %s", daylight)
	assert.True(t, daylight < 17*time.Hour, "daylight: %s", daylight)
}

func TestTwilightOrdering(t *testing.T) {
	day := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	official := stPaul.Sunrise(day, ZenithOfficial)
	civil := stPaul.Sunrise(day, ZenithCivil)
	nautical := stPaul.Sunrise(day, ZenithNautical)
	astronomical := stPaul.Sunrise(day, ZenithAstronomical)

	assert.True(t, astronomical.Before(nautical))
	assert.True(t, nautical.Before(civil))
	assert.True(t, civil.Before(official))
}

func TestIsNight(t *testing.T) {
	// local noon at 93W is about 18:12 UTC
	noon := time.Date(2024, 3, 20, 18, 0, 0, 0, time.UTC)
	midnight := time.Date(2024, 3, 20, 6, 0, 0, 0, time.UTC)

	assert.False(t, stPaul.IsNight(noon, ZenithOfficial))
	assert.True(t, stPaul.IsNight(midnight, ZenithAstronomical))
}

func TestZenith(t *testing.T) {
	assert.Equal(t, ZenithCivil, Zenith("civil"))
	assert.Equal(t, ZenithNautical, Zenith("nautical"))
	assert.Equal(t, ZenithAstronomical, Zenith("astronomical"))
	assert.Equal(t, ZenithAstronomical, Zenith(""))
}

func TestHorizontalPolaris(t *testing.T) {
	// the celestial pole sits at an altitude equal to the latitude
	at := time.Date(2024, 3, 20, 6, 0, 0, 0, time.UTC)
	alt, _ := stPaul.Horizontal(37.95, 89.26, at)
	assert.InDelta(t, stPaul.Latitude, alt, 1.0)
}

func TestAirmass(t *testing.T) {
	assert.InDelta(t, 1.0, Airmass(90), 0.001)
	assert.InDelta(t, 2.0, Airmass(30), 0.001)
	assert.True(t, math.IsInf(Airmass(0), 1))
	assert.True(t, math.IsInf(Airmass(-5), 1))
}
