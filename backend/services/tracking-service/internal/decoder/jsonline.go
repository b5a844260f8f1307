package decoder

import (
	"bytes"
	"encoding/json"
)

// ProtocolJSONLine tags devices and bridges that push one JSON object per frame.
const ProtocolJSONLine = "jsonline"

type jsonFrame struct {
	IMEI      string   `json:"imei"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Speed     *float64 `json:"speed"`
	Course    *float64 `json:"course"`
}

// JSONLine decodes {"imei":"...","latitude":..,"longitude":..,"speed":..,"course":..}.
// The short keys "lat" and "lon" are accepted as well.
type JSONLine struct{}

// NewJSONLine returns the decoder.
func NewJSONLine() *JSONLine {
	return &JSONLine{}
}

func (d *JSONLine) Decode(frame []byte) Facts {
	text := frameText(frame)
	facts := Facts{Protocol: ProtocolJSONLine, RawText: text}

	var msg jsonFrame
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return facts
	}
	if !validIMEI(msg.IMEI) {
		return facts
	}
	facts.DeviceID = msg.IMEI
	facts.Speed, facts.Course = msg.Speed, msg.Course

	lat, lon := firstNonNil(msg.Latitude, msg.Lat), firstNonNil(msg.Longitude, msg.Lon)
	if lat != nil && lon != nil {
		facts.Latitude, facts.Longitude, facts.HasPosition = *lat, *lon, true
	}
	return facts
}

// SniffJSONLine matches frames that start with a JSON object.
func SniffJSONLine(frame []byte) bool {
	trimmed := bytes.TrimSpace(frame)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func firstNonNil(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func validIMEI(imei string) bool {
	if len(imei) < 5 || len(imei) > 20 {
		return false
	}
	for _, r := range imei {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
