// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hub keeps the set of live websocket subscribers and fans decoded
// satellite records out to them. A slow or broken subscriber never delays
// delivery to the others: every send runs on its own goroutine under a
// write deadline, and a subscriber whose send fails is dropped.
package hub
