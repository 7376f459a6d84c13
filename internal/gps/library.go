// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// Sentences outside the three core kinds go through go-nmea, which
// validates the checksum and accepts any talker id.
var libraryKinds = map[string]SentenceKind{
	nmea.TypeRMC: KindRMC,
	nmea.TypeGSA: KindGSA,
	nmea.TypeVTG: KindVTG,
}

var talkerSystems = map[string]string{
	"GP": "GPS",
	"GL": "GLONASS",
	"GA": "Galileo",
	"GB": "BeiDou",
	"BD": "BeiDou",
	"GQ": "QZSS",
	"GN": "GNSS",
}

func libraryKind(line string) (SentenceKind, bool) {
	addr := address(line)
	if !strings.HasPrefix(addr, "$") || len(addr) < 6 {
		return "", false
	}
	kind, ok := libraryKinds[addr[len(addr)-3:]]
	return kind, ok
}

func systemForTalker(talker string) string {
	if s, ok := talkerSystems[talker]; ok {
		return s
	}
	return DefaultSystem
}

func decodeWithLibrary(now time.Time, kind SentenceKind, line string) ([]SatelliteFix, *Diagnostic) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		return nil, diagnose(DiagInvalidSentence, line, "%v", err)
	}

	fix := SatelliteFix{
		Timestamp:    now,
		SentenceKind: kind,
		System:       systemForTalker(sentence.TalkerID()),
	}

	switch m := sentence.(type) {
	case nmea.RMC:
		fix.UsedInFix = m.Validity == nmea.ValidRMC
		if fix.UsedInFix {
			if math.Abs(m.Latitude) > maxLatitude || math.Abs(m.Longitude) > maxLongitude {
				return nil, diagnose(DiagInvalidCoordinates, line, "lat=%f lon=%f", m.Latitude, m.Longitude)
			}
			fix.Latitude = float64Ptr(m.Latitude)
			fix.Longitude = float64Ptr(m.Longitude)
		}
		fix.SpeedKnots = float64Ptr(m.Speed)
		fix.DirectionDeg = float64Ptr(m.Course)
		if m.Date.Valid && m.Time.Valid {
			year := 2000 + m.Date.YY
			if m.Date.YY >= 80 {
				year = 1900 + m.Date.YY
			}
			fix.Timestamp = time.Date(year, time.Month(m.Date.MM), m.Date.DD,
				m.Time.Hour, m.Time.Minute, m.Time.Second, m.Time.Millisecond*int(time.Millisecond), time.UTC)
		}

	case nmea.GSA:
		used := 0
		for _, sv := range m.SV {
			if strings.TrimSpace(sv) != "" {
				used++
			}
		}
		fix.SatellitesInUse = intPtr(used)
		fix.PDOP = float64Ptr(m.PDOP)
		fix.HDOP = float64Ptr(m.HDOP)
		fix.VDOP = float64Ptr(m.VDOP)
		fix.UsedInFix = m.FixType == nmea.Fix2D || m.FixType == nmea.Fix3D

	case nmea.VTG:
		fix.SpeedKnots = float64Ptr(m.GroundSpeedKnots)
		fix.DirectionDeg = float64Ptr(m.TrueTrack)

	default:
		return nil, diagnose(DiagUnsupported, line, "%q", sentence.DataType())
	}

	return []SatelliteFix{fix}, nil
}
