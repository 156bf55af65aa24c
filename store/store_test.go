package store_test

import (
	"errors"
	"testing"
	"time"

	"i4.energy/across/atbridge/arfcn"
	"i4.energy/across/atbridge/decode"
	"i4.energy/across/atbridge/store"
)

func openMemory(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func cell(pci int, rsrp int) decode.CellScanRecord {
	return decode.CellScanRecord{
		Technology:   decode.NR,
		PLMN:         "46001",
		FrequencyKHz: 3450000,
		PCI:          &pci,
		Band:         78,
		RSRP:         &rsrp,
		Channel:      arfcn.NR("78", 3450000),
	}
}

func TestStoreEmpty(t *testing.T) {
	s := openMemory(t)

	if _, err := s.Latest(); !errors.Is(err, store.ErrNoScans) {
		t.Errorf("Latest() error = %v, want ErrNoScans", err)
	}
	scans, err := s.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(scans) != 0 {
		t.Errorf("List() returned %d scans, want 0", len(scans))
	}
}

func TestStoreRecordAndList(t *testing.T) {
	s := openMemory(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		cells := []decode.CellScanRecord{cell(100+i, -90+i)}
		if err := s.Record(base.Add(time.Duration(i)*time.Minute), cells); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	t.Run("Newest first", func(t *testing.T) {
		scans, err := s.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(scans) != 3 {
			t.Fatalf("List() returned %d scans, want 3", len(scans))
		}
		for i, scan := range scans {
			want := base.Add(time.Duration(2-i) * time.Minute)
			if !scan.Taken.Equal(want) {
				t.Errorf("scans[%d].Taken = %v, want %v", i, scan.Taken, want)
			}
		}
	})

	t.Run("Limit", func(t *testing.T) {
		scans, err := s.List(2)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(scans) != 2 {
			t.Errorf("List(2) returned %d scans", len(scans))
		}
	})

	t.Run("Latest round trips cells", func(t *testing.T) {
		latest, err := s.Latest()
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if len(latest.Cells) != 1 {
			t.Fatalf("len(Cells) = %d, want 1", len(latest.Cells))
		}
		c := latest.Cells[0]
		if c.PCI == nil || *c.PCI != 102 {
			t.Errorf("PCI = %v, want 102", c.PCI)
		}
		if c.RSRP == nil || *c.RSRP != -88 {
			t.Errorf("RSRP = %v, want -88", c.RSRP)
		}
		if c.SINR != nil {
			t.Errorf("SINR = %v, want nil", *c.SINR)
		}
		if c.Channel != (arfcn.Channel{Number: 630000, Supported: true}) {
			t.Errorf("Channel = %+v", c.Channel)
		}
	})
}

func TestStoreOnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := store.Open(store.Config{Dir: dir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	taken := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.Record(taken, []decode.CellScanRecord{cell(55, -95)}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = store.Open(store.Config{Dir: dir})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if !latest.Taken.Equal(taken) {
		t.Errorf("Taken = %v, want %v", latest.Taken, taken)
	}
}

func TestStoreCloseTwice(t *testing.T) {
	s, err := store.Open(store.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
