// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	maxLatitude  = 90.0
	maxLongitude = 180.0
)

// DecodeLatitude parses an NMEA latitude (ddmm.mmmm) with its N/S letter.
func DecodeLatitude(raw, hemisphere string) (float64, bool) {
	return decodeCoordinate(raw, hemisphere, "N", "S", maxLatitude)
}

// DecodeLongitude parses an NMEA longitude (dddmm.mmmm) with its E/W letter.
func DecodeLongitude(raw, hemisphere string) (float64, bool) {
	return decodeCoordinate(raw, hemisphere, "E", "W", maxLongitude)
}

// decodeCoordinate converts degrees-and-minutes to signed decimal degrees:
//
//	degrees = floor(raw / 100)
//	minutes = raw - degrees*100
//	decimal = degrees + minutes/60
//
// The value is rejected when either field is missing or the magnitude
// exceeds limit.
func decodeCoordinate(raw, hemisphere, positive, negative string, limit float64) (float64, bool) {
	raw = strings.TrimSpace(raw)
	hemisphere = strings.ToUpper(strings.TrimSpace(hemisphere))
	if raw == "" || (hemisphere != positive && hemisphere != negative) {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	degrees := math.Floor(v / 100)
	minutes := v - degrees*100
	decimal := degrees + minutes/60
	if decimal > limit {
		return 0, false
	}
	if hemisphere == negative {
		decimal = -decimal
	}
	return decimal, true
}

// EncodeLatitude formats decimal degrees as an NMEA ddmm.mmmm field plus hemisphere.
func EncodeLatitude(deg float64) (string, string) {
	hemi := "N"
	if deg < 0 {
		hemi = "S"
	}
	return encodeCoordinate(deg, 2), hemi
}

// EncodeLongitude formats decimal degrees as an NMEA dddmm.mmmm field plus hemisphere.
func EncodeLongitude(deg float64) (string, string) {
	hemi := "E"
	if deg < 0 {
		hemi = "W"
	}
	return encodeCoordinate(deg, 3), hemi
}

func encodeCoordinate(deg float64, width int) string {
	abs := math.Abs(deg)
	whole := math.Floor(abs)
	minutes := math.Round((abs-whole)*60*1e4) / 1e4
	if minutes >= 60 {
		whole++
		minutes = 0
	}
	return fmt.Sprintf("%0*d%07.4f", width, int(whole), minutes)
}
