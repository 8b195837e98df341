// Package polyline implements the encoded polyline algorithm format and a
// densifier that bounds the spacing between consecutive vertices.
//
// Encoded strings carry latitude first; decoded lines are orb.LineString whose
// points are [lon, lat].
package polyline

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"livenav/internal/geo"
)

const (
	// Precision5 is the Google / OSRM "polyline" factor.
	Precision5 = 1e5
	// Precision6 is the OSRM "polyline6" factor.
	Precision6 = 1e6
)

// DecodeError reports a malformed encoded polyline.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("polyline: %s at offset %d", e.Reason, e.Offset)
}

// Decode decodes a 1e-5 precision polyline.
func Decode(encoded string) (orb.LineString, error) {
	return DecodeWithPrecision(encoded, Precision5)
}

// DecodeWithPrecision decodes a polyline whose values were multiplied by factor.
func DecodeWithPrecision(encoded string, factor float64) (orb.LineString, error) {
	var (
		line     orb.LineString
		lat, lng int64
		index    int
	)
	for index < len(encoded) {
		dLat, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, &DecodeError{Offset: next, Reason: "latitude without longitude"}
		}
		dLng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += dLat
		lng += dLng
		line = append(line, orb.Point{float64(lng) / factor, float64(lat) / factor})
	}
	return line, nil
}

// decodeValue reads one zig-zag varint starting at index and returns the delta
// and the offset just past it.
func decodeValue(encoded string, index int) (int64, int, error) {
	var (
		result int64
		shift  uint
	)
	for {
		if index >= len(encoded) {
			return 0, index, &DecodeError{Offset: index, Reason: "truncated byte group"}
		}
		b := int64(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, index, &DecodeError{Offset: index, Reason: fmt.Sprintf("invalid character %q", encoded[index])}
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
		if shift > 60 {
			return 0, index, &DecodeError{Offset: index, Reason: "value overflows 64 bits"}
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes a line with 1e-5 precision.
func Encode(line orb.LineString) string {
	return EncodeWithPrecision(line, Precision5)
}

// EncodeWithPrecision encodes a line, multiplying coordinates by factor.
func EncodeWithPrecision(line orb.LineString, factor float64) string {
	if len(line) == 0 {
		return ""
	}
	buf := make([]byte, 0, len(line)*8)
	var prevLat, prevLng int64
	for _, p := range line {
		lat := int64(math.Round(p.Lat() * factor))
		lng := int64(math.Round(p.Lon() * factor))
		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return string(buf)
}

func encodeValue(buf []byte, v int64) []byte {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		buf = append(buf, byte(0x20|(u&0x1f))+63)
		u >>= 5
	}
	return append(buf, byte(u)+63)
}

// Densify inserts interpolated points so that no two consecutive vertices are
// more than stepM metres apart. Original vertices are kept unchanged and in order.
// A non-positive step returns a copy of line.
func Densify(line orb.LineString, stepM float64) orb.LineString {
	if len(line) == 0 {
		return nil
	}
	if stepM <= 0 {
		return append(orb.LineString(nil), line...)
	}

	out := make(orb.LineString, 0, len(line))
	out = append(out, line[0])
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		n := int(math.Ceil(geo.Haversine(a, b) / stepM))
		for j := 1; j < n; j++ {
			out = append(out, geo.Interpolate(a, b, float64(j)/float64(n)))
		}
		out = append(out, b)
	}
	return out
}
