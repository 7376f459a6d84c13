// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "time"

// SentenceKind tags the NMEA sentence a record was decoded from.
type SentenceKind string

const (
	KindGGA SentenceKind = "GGA" // fix data
	KindGSV SentenceKind = "GSV" // satellites in view
	KindGLL SentenceKind = "GLL" // geographic position
	KindRMC SentenceKind = "RMC" // recommended minimum
	KindGSA SentenceKind = "GSA" // DOP and active satellites
	KindVTG SentenceKind = "VTG" // track and ground speed
)

// DefaultSystem is used when a sentence does not identify its constellation.
const DefaultSystem = "GPS"

// SatelliteFix is one decoded record suitable for JSON, storage and MQTT.
// Which fields are meaningful depends on SentenceKind; absent values are nil.
type SatelliteFix struct {
	Timestamp    time.Time    `json:"timestamp"`
	SentenceKind SentenceKind `json:"sentenceKind"`
	System       string       `json:"system"`

	Latitude        *float64 `json:"latitude"`  // decimal degrees, south negative
	Longitude       *float64 `json:"longitude"` // decimal degrees, west negative
	Altitude        *float64 `json:"altitude"`  // meters above mean sea level
	SatellitesInUse *int     `json:"satellitesInUse,omitempty"`

	// GSV only
	SatelliteID        *int     `json:"satelliteId,omitempty"`
	ElevationDeg       *float64 `json:"elevationDeg,omitempty"`
	AzimuthDeg         *float64 `json:"azimuthDeg,omitempty"`
	SignalToNoiseRatio *int     `json:"signalToNoiseRatio,omitempty"` // dB-Hz

	UsedInFix bool `json:"usedInFix"`

	PDOP         *float64 `json:"pdop,omitempty"`
	HDOP         *float64 `json:"hdop,omitempty"`
	VDOP         *float64 `json:"vdop,omitempty"`
	SpeedKnots   *float64 `json:"speedKnots,omitempty"`
	DirectionDeg *float64 `json:"directionDeg,omitempty"`
}

// HasPosition reports whether both coordinates were decoded.
func (f SatelliteFix) HasPosition() bool {
	return f.Latitude != nil && f.Longitude != nil
}

func float64Ptr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
