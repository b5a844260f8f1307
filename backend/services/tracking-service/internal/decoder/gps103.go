package decoder

import (
	"regexp"
	"strconv"
	"strings"
)

// ProtocolGPS103 tags the comma delimited ASCII family used by TK103/GPS103 trackers.
const ProtocolGPS103 = "gps103"

var (
	imeiPattern    = regexp.MustCompile(`imei[:=](\d{5,20})`)
	latLonPattern  = regexp.MustCompile(`([+-]?\d+\.\d+).*?([NS])[,; ]+([+-]?\d+\.\d+).*?([EW])`)
	decimalPattern = regexp.MustCompile(`[-+]?\d+\.\d+`)
)

// GPS103 decodes frames such as
// "imei:359710048216253,tracker,231120,120000,A,17.824858,S,31.053028,E,0.0,0.0".
type GPS103 struct{}

// NewGPS103 returns the decoder.
func NewGPS103() *GPS103 {
	return &GPS103{}
}

// Decode extracts the IMEI and the hemisphere tagged coordinates. When no
// hemisphere quadruple is present but the frame has an IMEI, the first two
// decimals are taken as latitude and longitude.
func (d *GPS103) Decode(frame []byte) Facts {
	text := frameText(frame)
	facts := Facts{Protocol: ProtocolGPS103, RawText: text}

	imei := imeiPattern.FindStringSubmatch(text)
	if imei == nil {
		return facts
	}
	facts.DeviceID = imei[1]

	if loc := latLonPattern.FindStringSubmatchIndex(text); loc != nil {
		lat, latErr := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
		lon, lonErr := strconv.ParseFloat(text[loc[6]:loc[7]], 64)
		if latErr == nil && lonErr == nil {
			if strings.EqualFold(text[loc[4]:loc[5]], "S") {
				lat = -lat
			}
			if strings.EqualFold(text[loc[8]:loc[9]], "W") {
				lon = -lon
			}
			facts.Latitude, facts.Longitude, facts.HasPosition = lat, lon, true
			facts.Speed, facts.Course = trailingMotion(text[loc[1]:])
			return facts
		}
	}

	decimals := decimalPattern.FindAllString(text, 2)
	if len(decimals) < 2 {
		return facts
	}
	lat, latErr := strconv.ParseFloat(decimals[0], 64)
	lon, lonErr := strconv.ParseFloat(decimals[1], 64)
	if latErr != nil || lonErr != nil {
		return facts
	}
	facts.Latitude, facts.Longitude, facts.HasPosition = lat, lon, true
	return facts
}

// trailingMotion reads speed and course from the two fields that follow the
// longitude hemisphere, e.g. ",0.0,0.0".
func trailingMotion(rest string) (speed, course *float64) {
	fields := strings.Split(strings.TrimLeft(rest, ",; "), ",")
	parse := func(i int) *float64 {
		if i >= len(fields) {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimRight(fields[i], ";#")), 64)
		if err != nil {
			return nil
		}
		return &v
	}
	return parse(0), parse(1)
}

// SniffGPS103 matches frames carrying an "imei" token.
func SniffGPS103(frame []byte) bool {
	return strings.Contains(strings.ToLower(string(frame)), "imei")
}
