package decode

import (
	"fmt"
	"strconv"
	"strings"

	"i4.energy/across/atbridge/at"
)

const familyCarrier = "carrier component"

// Technology is the radio access technology of a record.
type Technology string

const (
	UMTS        Technology = "UMTS (FDD)"
	LTE         Technology = "LTE"
	NR          Technology = "NR"
	UnknownTech Technology = "Unknown"
)

// System modes reported in the ^HFREQINFO header.
const (
	SysModeLTE = 6
	SysModeNR  = 7
)

// carrierGroupSize is the number of positional fields per carrier component.
const carrierGroupSize = 7

// CarrierComponent is one aggregated carrier from ^HFREQINFO.
type CarrierComponent struct {
	Technology        Technology
	ProtocolVersion   int
	BandClass         string
	DownlinkChannel   string
	DownlinkFrequency string
	DownlinkBandwidth string
	UplinkChannel     string
	UplinkFrequency   string
	UplinkBandwidth   string
}

// CarrierStatus is the decoded ^HFREQINFO report.
type CarrierStatus struct {
	ProtocolVersion int
	Mode            int
	NR              []CarrierComponent
	LTE             []CarrierComponent
}

// Count returns the number of decoded carrier components.
func (s CarrierStatus) Count() int {
	return len(s.NR) + len(s.LTE)
}

// CarrierComponents decodes the response to AT^HFREQINFO?.
//
// The first two fields are the protocol version and the system mode. The
// remaining fields form groups of seven, one per carrier component; a
// trailing incomplete group is dropped. Groups are filed under NR for
// mode 7 and LTE for mode 6; other modes produce no records.
func CarrierComponents(raw string) (CarrierStatus, error) {
	body, ok := payload(raw, at.MarkerCarrier)
	if !ok {
		return CarrierStatus{}, invalid(familyCarrier, "missing "+at.MarkerCarrier, nil)
	}
	body = strings.TrimSpace(stripFinal(body, at.CRLF+at.OK))

	fields := strings.Split(body, ",")
	if len(fields) < 2 {
		return CarrierStatus{}, invalid(familyCarrier, fmt.Sprintf("expected header of 2 fields, got %d", len(fields)), nil)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	proa, err := strconv.Atoi(fields[0])
	if err != nil {
		return CarrierStatus{}, invalid(familyCarrier, "protocol version", err)
	}
	mode, err := strconv.Atoi(fields[1])
	if err != nil {
		return CarrierStatus{}, invalid(familyCarrier, "system mode", err)
	}

	status := CarrierStatus{ProtocolVersion: proa, Mode: mode}

	var tech Technology
	switch mode {
	case SysModeNR:
		tech = NR
	case SysModeLTE:
		tech = LTE
	default:
		return status, nil
	}

	rest := fields[2:]
	for i := 0; i+carrierGroupSize <= len(rest); i += carrierGroupSize {
		g := rest[i : i+carrierGroupSize]
		cc := CarrierComponent{
			Technology:        tech,
			ProtocolVersion:   proa,
			BandClass:         g[0],
			DownlinkChannel:   g[1],
			DownlinkFrequency: g[2],
			DownlinkBandwidth: g[3],
			UplinkChannel:     g[4],
			UplinkFrequency:   g[5],
			UplinkBandwidth:   g[6],
		}
		if tech == NR {
			status.NR = append(status.NR, cc)
		} else {
			status.LTE = append(status.LTE, cc)
		}
	}

	return status, nil
}
