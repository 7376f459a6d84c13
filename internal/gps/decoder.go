// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Minimum comma-delimited field counts, sentence address included.
const (
	minGGAFields = 15
	minGLLFields = 7
	gsvHeader    = 4
	gsvGroupSize = 4
)

// DiagnosticKind classifies why a line produced no (or fewer) records.
type DiagnosticKind string

const (
	DiagUnsupported         DiagnosticKind = "unsupported sentence"
	DiagMalformedFix        DiagnosticKind = "malformed fix sentence"
	DiagMalformedPosition   DiagnosticKind = "malformed position sentence"
	DiagMalformedSatellites DiagnosticKind = "malformed satellites sentence"
	DiagInvalidCoordinates  DiagnosticKind = "invalid coordinates"
	DiagInvalidSentence     DiagnosticKind = "invalid sentence"
)

// Diagnostic describes a recoverable decode failure for one line.
type Diagnostic struct {
	Kind     DiagnosticKind
	Sentence string
	Detail   string
}

func (d *Diagnostic) Error() string {
	if d.Detail == "" {
		return "gps: " + string(d.Kind)
	}
	return fmt.Sprintf("gps: %s: %s", d.Kind, d.Detail)
}

func diagnose(kind DiagnosticKind, line, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Sentence: line, Detail: fmt.Sprintf(format, args...)}
}

// Decoder turns raw NMEA lines into SatelliteFix records. It holds no
// state besides the clock that stamps observations, so one Decoder may be
// shared between goroutines.
type Decoder struct {
	clock clockwork.Clock
}

// NewDecoder returns a Decoder stamping records with clock. A nil clock
// means wall-clock time.
func NewDecoder(clock clockwork.Clock) *Decoder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Decoder{clock: clock}
}

// Decode classifies line by its address prefix and decodes it. Failures are
// reported through the returned Diagnostic, never by panicking; a GSV line
// may still return records alongside a nil diagnostic when some of its
// fields were unparsable.
func (d *Decoder) Decode(line string) ([]SatelliteFix, *Diagnostic) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, diagnose(DiagInvalidSentence, line, "empty line")
	}

	now := d.clock.Now().UTC()
	switch {
	case strings.HasPrefix(line, "$GPGGA"):
		return decodeGGA(now, line)
	case strings.HasPrefix(line, "$GPGSV"):
		return decodeGSV(now, line)
	case strings.HasPrefix(line, "$GPGLL"):
		return decodeGLL(now, line)
	}

	if kind, ok := libraryKind(line); ok {
		return decodeWithLibrary(now, kind, line)
	}
	return nil, diagnose(DiagUnsupported, line, "%q", address(line))
}

// splitFields splits on commas and drops the "*hh" checksum suffix from
// the last field.
func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	last := len(fields) - 1
	if i := strings.IndexByte(fields[last], '*'); i >= 0 {
		fields[last] = fields[last][:i]
	}
	return fields
}

func address(line string) string {
	if i := strings.IndexByte(line, ','); i >= 0 {
		line = line[:i]
	}
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}
	return line
}

// GGA: Global Positioning System Fix Data
//
//	1: time  2,3: latitude  4,5: longitude  6: fix quality (0=invalid)
//	7: satellites in use  8: HDOP  9: altitude (M)
func decodeGGA(now time.Time, line string) ([]SatelliteFix, *Diagnostic) {
	f := splitFields(line)
	if len(f) < minGGAFields {
		return nil, diagnose(DiagMalformedFix, line, "%d fields, need %d", len(f), minGGAFields)
	}

	lat, latOK := DecodeLatitude(f[2], f[3])
	lon, lonOK := DecodeLongitude(f[4], f[5])
	if !latOK || !lonOK {
		return nil, diagnose(DiagInvalidCoordinates, line, "lat=%q%s lon=%q%s", f[2], f[3], f[4], f[5])
	}

	fix := SatelliteFix{
		Timestamp:       now,
		SentenceKind:    KindGGA,
		System:          DefaultSystem,
		Latitude:        &lat,
		Longitude:       &lon,
		Altitude:        parseFloat(f[9]),
		SatellitesInUse: parseInt(f[7]),
		HDOP:            parseFloat(f[8]),
		UsedInFix:       strings.TrimSpace(f[6]) != "0",
	}
	return []SatelliteFix{fix}, nil
}

// GSV: Satellites in View
//
//	1: total messages  2: message index  3: satellites in view
//	then repeating groups of id, elevation, azimuth, SNR
func decodeGSV(now time.Time, line string) ([]SatelliteFix, *Diagnostic) {
	f := splitFields(line)
	if len(f) < gsvHeader {
		return nil, diagnose(DiagMalformedSatellites, line, "%d fields, need at least %d", len(f), gsvHeader)
	}

	groups := (len(f) - gsvHeader) / gsvGroupSize
	out := make([]SatelliteFix, 0, groups)
	for i := 0; i < groups; i++ {
		base := gsvHeader + i*gsvGroupSize
		out = append(out, SatelliteFix{
			Timestamp:          now,
			SentenceKind:       KindGSV,
			System:             DefaultSystem,
			SatelliteID:        parseInt(f[base]),
			ElevationDeg:       parseFloat(f[base+1]),
			AzimuthDeg:         parseFloat(f[base+2]),
			SignalToNoiseRatio: parseInt(f[base+3]),
		})
	}
	return out, nil
}

// GLL: Geographic Position
//
//	1,2: latitude  3,4: longitude  5: UTC time  6: status (A=valid)
func decodeGLL(now time.Time, line string) ([]SatelliteFix, *Diagnostic) {
	f := splitFields(line)
	if len(f) < minGLLFields {
		return nil, diagnose(DiagMalformedPosition, line, "%d fields, need %d", len(f), minGLLFields)
	}

	lat, latOK := DecodeLatitude(f[1], f[2])
	lon, lonOK := DecodeLongitude(f[3], f[4])
	if !latOK || !lonOK {
		return nil, diagnose(DiagInvalidCoordinates, line, "lat=%q%s lon=%q%s", f[1], f[2], f[3], f[4])
	}

	fix := SatelliteFix{
		Timestamp:    sentenceTime(now, f[5]),
		SentenceKind: KindGLL,
		System:       DefaultSystem,
		Latitude:     &lat,
		Longitude:    &lon,
		UsedInFix:    strings.TrimSpace(f[6]) == "A",
	}
	return []SatelliteFix{fix}, nil
}

// sentenceTime places an hhmmss(.sss) UTC field on now's date. A time
// more than twelve hours ahead of now belongs to the previous day.
func sentenceTime(now time.Time, hhmmss string) time.Time {
	hhmmss = strings.TrimSpace(hhmmss)
	if len(hhmmss) < 6 {
		return now
	}
	h, errH := strconv.Atoi(hhmmss[0:2])
	m, errM := strconv.Atoi(hhmmss[2:4])
	s, errS := strconv.ParseFloat(hhmmss[4:], 64)
	if errH != nil || errM != nil || errS != nil || h > 23 || m > 59 || s < 0 || s >= 61 {
		return now
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, time.UTC).
		Add(time.Duration(s * float64(time.Second)))
	if t.Sub(now) > 12*time.Hour {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
