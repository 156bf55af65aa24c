package decode

import (
	"strconv"
	"strings"

	"i4.energy/across/atbridge/at"
)

const familyChipTemp = "chip temperature"

// ChipTemperature decodes the response to AT^CHIPTEMP? into degrees
// Celsius. The first field is reported in tenths of a degree.
func ChipTemperature(raw string) (float64, error) {
	body, ok := payload(raw, at.MarkerChipTemp)
	if !ok {
		return 0, invalid(familyChipTemp, "missing "+at.MarkerChipTemp, nil)
	}

	first, _, _ := strings.Cut(stripFinal(body, at.CRLF), ",")
	tenths, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, invalid(familyChipTemp, "temperature field", err)
	}
	return float64(tenths) / 10, nil
}
