package arfcn_test

import (
	"testing"

	"i4.energy/across/atbridge/arfcn"
)

func TestNR(t *testing.T) {
	tests := []struct {
		name string
		band string
		freq int
		want arfcn.Channel
	}{
		{name: "n78 scan result", band: "78", freq: 3450000, want: arfcn.Channel{Number: 630000, Supported: true}},
		{name: "n78 locked channel", band: "78", freq: 3409000, want: arfcn.Channel{Number: 627266, Supported: true}},
		{name: "n79 raster start", band: "79", freq: 3000000, want: arfcn.Channel{Number: 600000, Supported: true}},
		{name: "n41 integer division", band: "41", freq: 2524953, want: arfcn.Channel{Number: 504990, Supported: true}},
		{name: "n1", band: "1", freq: 2140000, want: arfcn.Channel{Number: 428000, Supported: true}},
		{name: "n28", band: "28", freq: 763000, want: arfcn.Channel{Number: 152600, Supported: true}},
		{name: "unsupported band", band: "77", freq: 3700000, want: arfcn.Unknown},
		{name: "empty band", band: "", freq: 3700000, want: arfcn.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := arfcn.NR(tt.band, tt.freq)
			if got != tt.want {
				t.Errorf("NR(%q, %d) = %+v, want %+v", tt.band, tt.freq, got, tt.want)
			}
			if again := arfcn.NR(tt.band, tt.freq); again != got {
				t.Errorf("NR is not deterministic: %+v then %+v", got, again)
			}
		})
	}
}

func TestLTE(t *testing.T) {
	tests := []struct {
		band string
		freq int
		want int
	}{
		{band: "1", freq: 21400, want: 300},
		{band: "3", freq: 18250, want: 1400},
		{band: "5", freq: 8740, want: 2450},
		{band: "8", freq: 9350, want: 3550},
		{band: "34", freq: 20150, want: 36250},
		{band: "38", freq: 25950, want: 38000},
		{band: "39", freq: 18900, want: 38350},
		{band: "40", freq: 23500, want: 39150},
		{band: "41", freq: 25000, want: 39690},
	}

	for _, tt := range tests {
		t.Run("band "+tt.band, func(t *testing.T) {
			got := arfcn.LTE(tt.band, tt.freq)
			if !got.Supported || got.Number != tt.want {
				t.Errorf("LTE(%q, %d) = %+v, want %d", tt.band, tt.freq, got, tt.want)
			}
		})
	}

	for _, band := range []string{"2", "7", "20", "42", "x"} {
		if got := arfcn.LTE(band, 20000); got != arfcn.Unknown {
			t.Errorf("LTE(%q) = %+v, want unknown", band, got)
		}
	}
}

func TestFromText(t *testing.T) {
	tests := []struct {
		name string
		conv arfcn.Converter
		band string
		freq string
		want string
	}{
		{name: "NR number", conv: arfcn.NR, band: "78", freq: "3450000", want: "630000"},
		{name: "NR padded", conv: arfcn.NR, band: " 78 ", freq: " 3450000\r", want: "630000"},
		{name: "NR empty frequency", conv: arfcn.NR, band: "78", freq: "", want: "unknown"},
		{name: "LTE empty frequency", conv: arfcn.LTE, band: "3", freq: "  ", want: "unknown"},
		{name: "LTE invalid frequency", conv: arfcn.LTE, band: "3", freq: "18x", want: "unknown"},
		{name: "LTE unsupported band", conv: arfcn.LTE, band: "7", freq: "28500", want: "unknown"},
		{name: "LTE number", conv: arfcn.LTE, band: "3", freq: "18250", want: "1400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conv.FromText(tt.band, tt.freq).String(); got != tt.want {
				t.Errorf("FromText(%q, %q) = %q, want %q", tt.band, tt.freq, got, tt.want)
			}
		})
	}
}
