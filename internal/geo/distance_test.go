package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKnownValues(t *testing.T) {
	oneDegree := 2 * math.Pi * EarthRadiusMeters / 360

	tests := []struct {
		name  string
		a, b  Coordinate
		want  float64
		delta float64
	}{
		{
			name:  "one degree along a meridian",
			a:     Coordinate{Latitude: 0, Longitude: 0},
			b:     Coordinate{Latitude: 1, Longitude: 0},
			want:  oneDegree,
			delta: 0.001,
		},
		{
			name:  "one degree along the equator",
			a:     Coordinate{Latitude: 0, Longitude: 10},
			b:     Coordinate{Latitude: 0, Longitude: 11},
			want:  oneDegree,
			delta: 0.001,
		},
		{
			name:  "san francisco to los angeles",
			a:     Coordinate{Latitude: 37.7749, Longitude: -122.4194},
			b:     Coordinate{Latitude: 34.0522, Longitude: -118.2437},
			want:  559_120,
			delta: 1_000,
		},
		{
			name:  "antipodes",
			a:     Coordinate{Latitude: 0, Longitude: 0},
			b:     Coordinate{Latitude: 0, Longitude: 180},
			want:  math.Pi * EarthRadiusMeters,
			delta: 0.01,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Distance(tc.a, tc.b), tc.delta)
		})
	}
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	points := []Coordinate{
		{Latitude: 37.7749, Longitude: -122.4194},
		{Latitude: 37.8067, Longitude: -122.4158},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 90, Longitude: 0},
		{Latitude: -90, Longitude: 180},
		{Latitude: 51.5074, Longitude: -0.1278},
	}

	for _, a := range points {
		assert.Equal(t, 0.0, Distance(a, a), "distance to self for %+v", a)
		for _, b := range points {
			assert.Equal(t, Distance(a, b), Distance(b, a), "symmetry for %+v / %+v", a, b)
		}
	}
}

func TestWithin(t *testing.T) {
	center := Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	northBeach := Coordinate{Latitude: 37.8067, Longitude: -122.4158}

	d := Distance(center, northBeach)
	require.Greater(t, d, 3000.0)

	assert.True(t, Within(center, northBeach, d))
	assert.True(t, Within(center, northBeach, 8047))
	assert.False(t, Within(center, northBeach, d-1))
}

func TestCoordinateValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Coordinate
		wantErr bool
	}{
		{name: "origin", c: Coordinate{}},
		{name: "corners", c: Coordinate{Latitude: -90, Longitude: 180}},
		{name: "latitude too high", c: Coordinate{Latitude: 90.01}, wantErr: true},
		{name: "longitude too low", c: Coordinate{Longitude: -180.5}, wantErr: true},
		{name: "not a number", c: Coordinate{Latitude: math.NaN()}, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
