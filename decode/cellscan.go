package decode

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"i4.energy/across/atbridge/arfcn"
	"i4.energy/across/atbridge/at"
)

const familyCellScan = "cell scan"

// Positional fields of a ^CELLSCAN record.
const (
	scanRAT = iota
	scanPLMN
	scanFreq
	scanPCI
	scanBand
	scanLAC
	_
	_
	_
	_
	scanSCS
	scanRSRP
	scanRSRQ
	scanSINR
	scanLTESINR

	scanMinFields
)

// subcarrierSpacing maps the NR numerology code onto kHz.
var subcarrierSpacing = map[int]int{0: 15, 1: 30, 2: 60, 3: 120, 4: 240}

// CellScanRecord is one cell found by AT^CELLSCAN.
//
// Pointer fields are nil when the modem left the field empty.
type CellScanRecord struct {
	Technology           Technology
	PLMN                 string
	FrequencyKHz         int
	PCI                  *int
	Band                 int
	LAC                  int
	SubcarrierSpacingKHz *int
	RSRP                 *int
	RSRQ                 *float64
	SINR                 *float64
	LTESINR              *float64
	Channel              arfcn.Channel
}

// CellScan decodes the capture of one or more AT^CELLSCAN=3 responses.
//
// Lines that do not start with the record marker are skipped. A marker
// line with missing or unparsable required fields fails the whole decode.
func CellScan(raw string) ([]CellScanRecord, error) {
	var records []CellScanRecord
	for n, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		rest, ok := strings.CutPrefix(line, at.MarkerCellScan)
		if !ok {
			continue
		}
		rec, err := cellScanRecord(rest)
		if err != nil {
			return nil, invalid(familyCellScan, fmt.Sprintf("line %d", n+1), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func cellScanRecord(line string) (CellScanRecord, error) {
	fields := strings.Split(line, ",")
	if len(fields) < scanMinFields {
		return CellScanRecord{}, fmt.Errorf("expected %d fields, got %d", scanMinFields, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	var (
		rec CellScanRecord
		err error
	)

	rat, err := strconv.Atoi(fields[scanRAT])
	if err != nil {
		return rec, fmt.Errorf("rat: %w", err)
	}
	switch rat {
	case 1:
		rec.Technology = UMTS
	case 2:
		rec.Technology = LTE
	case 3:
		rec.Technology = NR
	default:
		rec.Technology = UnknownTech
	}

	rec.PLMN = strings.Trim(fields[scanPLMN], `"`)

	if rec.FrequencyKHz, err = strconv.Atoi(fields[scanFreq]); err != nil {
		return rec, fmt.Errorf("frequency: %w", err)
	}
	if rec.PCI, err = optionalInt(fields[scanPCI], 10); err != nil {
		return rec, fmt.Errorf("pci: %w", err)
	}
	band, err := strconv.ParseInt(fields[scanBand], 16, 64)
	if err != nil {
		return rec, fmt.Errorf("band: %w", err)
	}
	rec.Band = int(band)
	lac, err := strconv.ParseInt(fields[scanLAC], 16, 64)
	if err != nil {
		return rec, fmt.Errorf("lac: %w", err)
	}
	rec.LAC = int(lac)

	scs, err := optionalInt(fields[scanSCS], 10)
	if err != nil {
		return rec, fmt.Errorf("scs: %w", err)
	}
	if scs != nil {
		if khz, ok := subcarrierSpacing[*scs]; ok {
			rec.SubcarrierSpacingKHz = &khz
		}
	}

	if rec.RSRP, err = optionalInt(fields[scanRSRP], 10); err != nil {
		return rec, fmt.Errorf("rsrp: %w", err)
	}
	if rec.RSRQ, err = optionalScaled(fields[scanRSRQ], 10, 0.5); err != nil {
		return rec, fmt.Errorf("rsrq: %w", err)
	}
	if rec.SINR, err = optionalScaled(fields[scanSINR], 10, 0.5); err != nil {
		return rec, fmt.Errorf("sinr: %w", err)
	}
	if rec.LTESINR, err = optionalScaled(fields[scanLTESINR], 16, 0.125); err != nil {
		return rec, fmt.Errorf("lte sinr: %w", err)
	}

	bandText := strconv.Itoa(rec.Band)
	switch rec.Technology {
	case NR:
		rec.Channel = arfcn.NR(bandText, rec.FrequencyKHz)
	case LTE:
		rec.Channel = arfcn.LTE(bandText, rec.FrequencyKHz)
	default:
		rec.Channel = arfcn.Unknown
	}

	return rec, nil
}

func optionalInt(s string, base int) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return nil, err
	}
	n := int(v)
	return &n, nil
}

func optionalScaled(s string, base int, scale float64) (*float64, error) {
	v, err := optionalInt(s, base)
	if err != nil || v == nil {
		return nil, err
	}
	f := float64(*v) * scale
	return &f, nil
}

// SortCells orders records best first: by subcarrier spacing, then RSRP,
// then SINR, then RSRQ, each descending with absent values last. Records
// that compare equal keep their scan order.
func SortCells(records []CellScanRecord) {
	slices.SortStableFunc(records, func(a, b CellScanRecord) int {
		if c := descending(a.SubcarrierSpacingKHz, b.SubcarrierSpacingKHz); c != 0 {
			return c
		}
		if c := descending(a.RSRP, b.RSRP); c != 0 {
			return c
		}
		if c := descending(a.SINR, b.SINR); c != 0 {
			return c
		}
		return descending(a.RSRQ, b.RSRQ)
	})
}

func descending[T cmp.Ordered](a, b *T) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*b, *a)
	}
}
