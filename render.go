package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"i4.energy/across/atbridge/decode"
	"i4.energy/across/atbridge/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func optional[T any](v *T, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}

func renderSignal(w io.Writer, s decode.SignalStatus) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("System mode:"), s.SystemMode)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("RSRP:"), s.RSRP)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("SINR:"), s.SINR)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("RSRQ:"), s.RSRQ)
}

func renderCarrier(w io.Writer, s decode.CarrierStatus) {
	if s.Count() == 0 {
		fmt.Fprintf(w, "No carrier components (system mode %d)\n", s.Mode)
		return
	}

	t := newTable("Type", "Band", "DL ARFCN", "DL Freq", "DL BW", "UL ARFCN", "UL Freq", "UL BW", "CA")
	for i, group := range [][]decode.CarrierComponent{s.NR, s.LTE} {
		for n, cc := range group {
			kind := "SCC"
			if n == 0 {
				kind = "PCC"
			}
			prefix := "n"
			if i == 1 {
				prefix = "B"
			}
			t.Row(
				fmt.Sprintf("%s %s", cc.Technology, kind),
				prefix+cc.BandClass,
				cc.DownlinkChannel,
				cc.DownlinkFrequency,
				cc.DownlinkBandwidth,
				cc.UplinkChannel,
				cc.UplinkFrequency,
				cc.UplinkBandwidth,
				strconv.Itoa(cc.ProtocolVersion),
			)
		}
	}
	fmt.Fprintln(w, t)
}

func renderCells(w io.Writer, cells []decode.CellScanRecord) {
	t := newTable("RAT", "PLMN", "Freq kHz", "PCI", "Band", "LAC", "SCS kHz",
		"RSRP dBm", "RSRQ dB", "SINR dB", "LTE SINR dB", "ARFCN")
	for _, c := range cells {
		t.Row(
			string(c.Technology),
			c.PLMN,
			strconv.Itoa(c.FrequencyKHz),
			optional(c.PCI, "%d"),
			strconv.Itoa(c.Band),
			strconv.Itoa(c.LAC),
			optional(c.SubcarrierSpacingKHz, "%d"),
			optional(c.RSRP, "%d"),
			optional(c.RSRQ, "%.1f"),
			optional(c.SINR, "%.1f"),
			optional(c.LTESINR, "%.3f"),
			c.Channel.String(),
		)
	}
	fmt.Fprintln(w, t)
}

func renderHistory(w io.Writer, scans []store.Scan) {
	if len(scans) == 0 {
		fmt.Fprintln(w, "No scans recorded")
		return
	}

	t := newTable("Taken", "Cells", "Best PCI", "Best RSRP dBm", "Best ARFCN")
	for _, s := range scans {
		row := []string{s.Taken.Local().Format("2006-01-02 15:04:05"), strconv.Itoa(len(s.Cells)), "", "", ""}
		if len(s.Cells) > 0 {
			best := s.Cells[0]
			row[2] = optional(best.PCI, "%d")
			row[3] = optional(best.RSRP, "%d")
			row[4] = best.Channel.String()
		}
		t.Row(row...)
	}
	fmt.Fprintln(w, t)
}
