// Package decoder turns raw device frames into position facts.
//
// Decoders never fail: a frame that cannot be understood yields Facts with
// only RawText set, and callers treat the missing fields as "no data".
package decoder

import (
	"strings"
	"unicode/utf8"
)

// Facts is the sparse result of decoding one frame.
type Facts struct {
	Protocol    string
	DeviceID    string
	Latitude    float64
	Longitude   float64
	HasPosition bool
	Speed       *float64
	Course      *float64
	RawText     string
}

// Usable reports whether the facts carry an identifier and both coordinates.
func (f Facts) Usable() bool {
	return f.DeviceID != "" && f.HasPosition
}

// SpeedOrZero returns the decoded speed or 0.
func (f Facts) SpeedOrZero() float64 {
	if f.Speed == nil {
		return 0
	}
	return *f.Speed
}

// CourseOrZero returns the decoded course or 0.
func (f Facts) CourseOrZero() float64 {
	if f.Course == nil {
		return 0
	}
	return *f.Course
}

// Decoder decodes a single frame of one protocol family.
type Decoder interface {
	Decode(frame []byte) Facts
}

// Func adapts a plain function to Decoder.
type Func func(frame []byte) Facts

// Decode calls f.
func (f Func) Decode(frame []byte) Facts {
	return f(frame)
}

// frameText renders a frame as text, dropping invalid UTF-8 sequences.
func frameText(frame []byte) string {
	text := string(frame)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return strings.TrimSpace(text)
}
