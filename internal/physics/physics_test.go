package physics

import (
	"math"
	"testing"
	"time"
)

func TestHeadingDiff(t *testing.T) {
	cases := []struct {
		a, b, want float64
	}{
		{0, 0, 0},
		{0, 90, 90},
		{90, 0, 90},
		{350, 10, 20},
		{10, 350, 20},
		{0, 180, 180},
		{57, 237, 180},
	}
	for _, tc := range cases {
		if got := HeadingDiff(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("HeadingDiff(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNormalizeHeading(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{450, 90},
	}
	for _, tc := range cases {
		if got := NormalizeHeading(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("NormalizeHeading(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTrueToMagneticStaysNormalized(t *testing.T) {
	// Declination near Toronto is a few degrees west; whatever the model
	// returns, the corrected heading must stay in [0, 360).
	got := TrueToMagnetic(1, 43.6777, -79.6248, 0, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if got < 0 || got >= 360 {
		t.Errorf("heading %v outside [0, 360)", got)
	}
}
