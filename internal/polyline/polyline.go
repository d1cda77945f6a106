// Package polyline decodes routes encoded with Google's encoded polyline algorithm,
// as returned by the Strava API in an activity's map.summary_polyline field.
package polyline

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// Coordinates are stored as integers scaled by this factor.
const precision = 1e5

var (
	// ErrTruncated is returned when the string ends part way through a value.
	ErrTruncated = errors.New("polyline: truncated value")
	// ErrInvalidChar is returned for characters outside the encoding alphabet.
	ErrInvalidChar = errors.New("polyline: invalid character")
)

// Coordinate is a point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Path is an ordered route, in the order the activity travelled it.
type Path []Coordinate

// Decode returns the path encoded in s. An empty string gives an empty path.
// Malformed input never panics: decoding stops at the first bad value and the
// points decoded up to that position are returned.
func Decode(s string) Path {
	p, _ := DecodeStrict(s)
	return p
}

// DecodeStrict is Decode but reports why decoding stopped early. The partial
// path is returned alongside the error.
func DecodeStrict(s string) (Path, error) {
	path := Path{}
	var lat, lng, i int
	for i < len(s) {
		dlat, next, err := decodeValue(s, i)
		if err != nil {
			return path, err
		}
		dlng, next, err := decodeValue(s, next)
		if err != nil {
			return path, err
		}
		i = next
		lat += dlat
		lng += dlng
		path = append(path, Coordinate{
			Lat: float64(lat) / precision,
			Lng: float64(lng) / precision,
		})
	}
	return path, nil
}

// decodeValue reads one zig-zag encoded value starting at s[i] and returns it
// together with the index of the next unread byte.
func decodeValue(s string, i int) (int, int, error) {
	var result, shift int
	for {
		if i >= len(s) {
			return 0, i, ErrTruncated
		}
		c := s[i]
		if c < 63 || c > 126 {
			return 0, i, fmt.Errorf("%w %q at offset %d", ErrInvalidChar, c, i)
		}
		b := int(c) - 63
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}

// LineString converts the path into an orb line string. GeoJSON puts
// longitude first.
func (p Path) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(p))
	for _, c := range p {
		ls = append(ls, orb.Point{c.Lng, c.Lat})
	}
	return ls
}
