package decode

import (
	"fmt"
	"strconv"
	"strings"

	"i4.energy/across/atbridge/at"
)

const familySignal = "signal"

// ReadingKind distinguishes measured values from the modem's sentinels.
type ReadingKind int

const (
	// Measured readings carry a converted value
	Measured ReadingKind = iota
	// Unknown readings were reported as not measurable (raw 255)
	Unknown
	// Saturated readings are at or beyond the top of the reportable range
	Saturated
)

// Reading is one signal metric in physical units.
type Reading struct {
	Kind ReadingKind
	// Value is the measured value, or the bound for Saturated readings
	Value float64
	// Unit is "dBm" or "dB"
	Unit string

	label string
}

func (r Reading) String() string {
	switch r.Kind {
	case Unknown:
		return "unknown"
	case Saturated:
		return r.label
	default:
		if r.Unit == "dBm" {
			return fmt.Sprintf("%g %s", r.Value, r.Unit)
		}
		return fmt.Sprintf("%.1f %s", r.Value, r.Unit)
	}
}

// SignalStatus is the decoded ^HCSQ report.
type SignalStatus struct {
	SystemMode string
	RSRP       Reading
	SINR       Reading
	RSRQ       Reading
}

const (
	rawUnknown       = 255
	rawRSRQSaturated = 34
	rawSINRSaturated = 251
)

// Signal decodes the response to AT^HCSQ?.
//
// The report carries sysmode, rsrp, sinr and rsrq in that order. Values are
// device encoded: rsrp = raw-140 dBm, sinr = raw*0.2-20 dB and
// rsrq = raw*0.5-19.5 dB. 255 is unknown for every metric; rsrq 34 and
// sinr 251 are saturation codes.
func Signal(raw string) (SignalStatus, error) {
	body, ok := payload(raw, at.MarkerSignal)
	if !ok {
		return SignalStatus{}, invalid(familySignal, "missing "+at.MarkerSignal, nil)
	}
	body = strings.TrimSpace(stripFinal(body, at.CRLF+at.OK))

	fields := strings.Split(strings.Trim(body, `"`), `","`)
	if len(fields) == 1 {
		fields = strings.Split(fields[0], ",")
	}
	if len(fields) < 4 {
		return SignalStatus{}, invalid(familySignal, fmt.Sprintf("expected 4 fields, got %d", len(fields)), nil)
	}

	values := make([]int, 3)
	for i, f := range fields[1:4] {
		v, err := strconv.Atoi(strings.Trim(strings.TrimSpace(f), `"`))
		if err != nil {
			return SignalStatus{}, invalid(familySignal, fmt.Sprintf("field %d", i+1), err)
		}
		values[i] = v
	}
	rsrp, sinr, rsrq := values[0], values[1], values[2]

	status := SignalStatus{
		SystemMode: strings.Trim(strings.TrimSpace(fields[0]), `"`),
	}

	switch rsrp {
	case rawUnknown:
		status.RSRP = Reading{Kind: Unknown, Unit: "dBm"}
	default:
		status.RSRP = Reading{Value: float64(-140 + rsrp), Unit: "dBm"}
	}

	switch sinr {
	case rawUnknown:
		status.SINR = Reading{Kind: Unknown, Unit: "dB"}
	case rawSINRSaturated:
		status.SINR = Reading{Kind: Saturated, Value: 30, Unit: "dB", label: "≥ 30.0 dB"}
	default:
		status.SINR = Reading{Value: -20 + float64(sinr)*0.2, Unit: "dB"}
	}

	switch rsrq {
	case rawUnknown:
		status.RSRQ = Reading{Kind: Unknown, Unit: "dB"}
	case rawRSRQSaturated:
		status.RSRQ = Reading{Kind: Saturated, Value: -3, Unit: "dB", label: "≥ -3 dB"}
	default:
		status.RSRQ = Reading{Value: -19.5 + float64(rsrq)*0.5, Unit: "dB"}
	}

	return status, nil
}
