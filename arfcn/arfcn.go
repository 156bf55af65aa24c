// Package arfcn maps carrier frequencies reported by the modem onto
// standardised channel numbers (NR-ARFCN and EARFCN).
//
// The mapping covers only the bands this deployment encounters. Bands
// outside the tables yield an unsupported Channel rather than an error.
package arfcn

import (
	"strconv"
	"strings"
)

// Channel is the result of a conversion.
type Channel struct {
	// Number is the channel number; meaningful only when Supported is set
	Number int
	// Supported is false when the band is not in the conversion table
	Supported bool
}

// Unknown is the channel reported for unsupported bands or frequencies.
var Unknown = Channel{}

func known(n int) Channel {
	return Channel{Number: n, Supported: true}
}

func (c Channel) String() string {
	if !c.Supported {
		return "unknown"
	}
	return strconv.Itoa(c.Number)
}

// Converter maps a band and a frequency onto a channel number.
type Converter func(band string, freq int) Channel

// FromText converts a frequency given as text. An empty or non-numeric
// frequency is unknown and no arithmetic is attempted.
func (c Converter) FromText(band, freq string) Channel {
	freq = strings.TrimSpace(freq)
	if freq == "" {
		return Unknown
	}
	f, err := strconv.Atoi(freq)
	if err != nil {
		return Unknown
	}
	return c(strings.TrimSpace(band), f)
}

// NR converts a frequency in kHz to an NR-ARFCN. FR1 bands below 3 GHz use
// the 5 kHz raster, bands n78 and n79 the 15 kHz raster above 3 GHz.
func NR(band string, freqKHz int) Channel {
	switch band {
	case "1", "5", "28", "41":
		return known(freqKHz / 5)
	case "78", "79":
		return known((freqKHz-3000000)/15 + 600000)
	default:
		return Unknown
	}
}

// lteOffsets holds, per band, the constants k and m of
// EARFCN = freq + k - m, freq being reported in units of 100 kHz.
var lteOffsets = map[string]struct{ k, m int }{
	"1":  {0, 21100},
	"3":  {1200, 18050},
	"5":  {2400, 8690},
	"8":  {3450, 9250},
	"34": {36200, 20100},
	"38": {37750, 25700},
	"39": {38250, 18800},
	"40": {38650, 23000},
	"41": {39650, 24960},
}

// LTE converts a downlink frequency to an EARFCN.
func LTE(band string, freq int) Channel {
	o, ok := lteOffsets[band]
	if !ok {
		return Unknown
	}
	return known(freq + o.k - o.m)
}

var (
	_ Converter = NR
	_ Converter = LTE
)
