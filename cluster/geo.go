// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cluster

import "math"

const (
	// KmPerDegree is the length of one degree of arc on the sphere used for
	// distances and bounding boxes
	KmPerDegree = 111.0

	earthRadiusKm = KmPerDegree * 180 / math.Pi

	// distanceTolerance absorbs rounding so points exactly one radius apart
	// stay within it
	distanceTolerance = 1e-9
)

// Distance is the great-circle distance in km between two coordinates on a
// sphere of 111 km per degree, a radius of about 6359.8 km. Geodesy libraries
// usually use the mean radius of 6371.009 km, which gives distances about
// 0.18% longer.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lng2 - lng1)
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Within reports whether two coordinates are at most radiusKm apart
func Within(lat1, lng1, lat2, lng2, radiusKm float64) bool {
	return Distance(lat1, lng1, lat2, lng2) <= radiusKm+distanceTolerance
}

// Box is a coordinate range used to prefilter cluster candidates. LngLo may
// be below -180 and LngHi above 180 when the box crosses the antimeridian.
type Box struct {
	LatLo, LatHi float64
	LngLo, LngHi float64
}

// Ranges splits the box into boxes whose longitudes lie within [-180, 180]
func (b Box) Ranges() []Box {
	switch {
	case b.LngLo < -180:
		east := b
		east.LngLo = b.LngLo + 360
		east.LngHi = 180
		west := b
		west.LngLo = -180
		return []Box{west, east}
	case b.LngHi > 180:
		west := b
		west.LngLo = -180
		west.LngHi = b.LngHi - 360
		east := b
		east.LngHi = 180
		return []Box{east, west}
	}
	return []Box{b}
}

// BoundingBox returns a box holding every point within radiusKm of (lat, lng).
// The longitude range is widened by the latitude of the box edge nearest a
// pole and covers every longitude close to the poles.
func BoundingBox(lat, lng, radiusKm float64) Box {
	dLat := radiusKm / KmPerDegree
	box := Box{
		LatLo: lat - dLat,
		LatHi: lat + dLat,
		LngLo: -180,
		LngHi: 180,
	}
	edge := math.Abs(lat) + dLat
	if edge >= 89.9 {
		return box
	}
	dLng := dLat / math.Cos(radians(edge))
	if dLng >= 180 {
		return box
	}
	box.LngLo = lng - dLng
	box.LngHi = lng + dLng
	return box
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
