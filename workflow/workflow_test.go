package workflow_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"i4.energy/across/atbridge/at"
	"i4.energy/across/atbridge/decode"
	"i4.energy/across/atbridge/workflow"
)

const okReply = "\r\nOK\r\n"

type reply struct {
	resp string
	err  error
}

// scriptedSender answers each command from its own queue of replies and
// falls back to a bare OK once the queue is drained.
type scriptedSender struct {
	mu       sync.Mutex
	script   map[string][]reply
	fallback map[string]reply
	sent     []string
	onSend   func(cmd string)
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{
		script:   make(map[string][]reply),
		fallback: make(map[string]reply),
	}
}

func (s *scriptedSender) On(cmd string, replies ...reply) *scriptedSender {
	s.script[cmd] = append(s.script[cmd], replies...)
	return s
}

func (s *scriptedSender) Always(cmd string, r reply) *scriptedSender {
	s.fallback[cmd] = r
	return s
}

func (s *scriptedSender) Send(_ context.Context, cmd string) (string, error) {
	s.mu.Lock()
	s.sent = append(s.sent, cmd)
	hook := s.onSend
	var r reply
	if q := s.script[cmd]; len(q) > 0 {
		r, s.script[cmd] = q[0], q[1:]
	} else if fb, ok := s.fallback[cmd]; ok {
		r = fb
	} else {
		r = reply{resp: okReply}
	}
	s.mu.Unlock()

	if hook != nil {
		hook(cmd)
	}
	return r.resp, r.err
}

func (s *scriptedSender) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent)
}

func (s *scriptedSender) Count(cmd string) int {
	n := 0
	for _, c := range s.Sent() {
		if c == cmd {
			n++
		}
	}
	return n
}

type memoryRecorder struct {
	scans [][]decode.CellScanRecord
}

func (r *memoryRecorder) Record(_ time.Time, cells []decode.CellScanRecord) error {
	r.scans = append(r.scans, cells)
	return nil
}

func fastOrchestrator(s workflow.Sender, opts ...workflow.Option) *workflow.Orchestrator {
	base := []workflow.Option{
		workflow.WithRetryDelay(time.Millisecond),
		workflow.WithSettleDelay(time.Millisecond),
		workflow.WithScanPollDelay(time.Millisecond),
		workflow.WithCleanupTimeout(time.Second),
	}
	return workflow.New(s, append(base, opts...)...)
}

func TestRetryUntilOK(t *testing.T) {
	t.Run("Retries errors and rejections", func(t *testing.T) {
		s := newScriptedSender().On(at.CmdDeregister,
			reply{resp: "\r\nERROR\r\n"},
			reply{err: errors.New("broken pipe")},
			reply{resp: "\r\nOK\r\n"},
		)
		resp, err := fastOrchestrator(s).RetryUntilOK(context.Background(), at.CmdDeregister)
		if err != nil {
			t.Fatalf("RetryUntilOK() error = %v", err)
		}
		if resp != okReply {
			t.Errorf("RetryUntilOK() = %q, want %q", resp, okReply)
		}
		if n := s.Count(at.CmdDeregister); n != 3 {
			t.Errorf("sent %d times, want 3", n)
		}
	})

	t.Run("Gives up when context ends", func(t *testing.T) {
		s := newScriptedSender().Always(at.CmdRegister, reply{resp: "\r\nERROR\r\n"})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := fastOrchestrator(s).RetryUntilOK(ctx, at.CmdRegister)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("RetryUntilOK() error = %v, want DeadlineExceeded", err)
		}
		if n := s.Count(at.CmdRegister); n < 2 {
			t.Errorf("sent %d times, want retries", n)
		}
	})

	t.Run("Waits the retry delay between attempts", func(t *testing.T) {
		s := newScriptedSender().On(at.CmdRegister, reply{resp: "\r\nERROR\r\n"})
		o := workflow.New(s, workflow.WithRetryDelay(30*time.Millisecond))

		start := time.Now()
		if _, err := o.RetryUntilOK(context.Background(), at.CmdRegister); err != nil {
			t.Fatalf("RetryUntilOK() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
			t.Errorf("retried after %v, want at least 30ms", elapsed)
		}
	})
}

func TestAcknowledgementFraming(t *testing.T) {
	const resp = "\r\n+COPS: 0,0,\"BOOKED\"\r\n"

	tests := []struct {
		name    string
		framing at.Framing
		want    int
	}{
		{name: "Line framing needs an OK line", framing: at.FramingLine, want: 2},
		{name: "Substring framing accepts any OK", framing: at.FramingSubstring, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScriptedSender().On(at.CmdRegister, reply{resp: resp})
			o := fastOrchestrator(s, workflow.WithFraming(tt.framing))
			if _, err := o.RetryUntilOK(context.Background(), at.CmdRegister); err != nil {
				t.Fatalf("RetryUntilOK() error = %v", err)
			}
			if n := s.Count(at.CmdRegister); n != tt.want {
				t.Errorf("sent %d times, want %d", n, tt.want)
			}
		})
	}
}

func TestInitialConfiguration(t *testing.T) {
	s := newScriptedSender().On(at.InitCommands[1], reply{resp: "\r\nERROR\r\n"})

	if err := fastOrchestrator(s).InitialConfiguration(context.Background()); err != nil {
		t.Fatalf("InitialConfiguration() error = %v", err)
	}

	want := []string{
		at.InitCommands[0],
		at.InitCommands[1],
		at.InitCommands[1],
		at.InitCommands[2],
		at.InitCommands[3],
	}
	if got := s.Sent(); !slices.Equal(got, want) {
		t.Errorf("sent = %q, want %q", got, want)
	}
}

const (
	scanLineNR  = "^CELLSCAN: 3,\"46001\",3450000,55,4E,1A2B,,,,,1,-95,-20,10,\r\n"
	scanLineNR2 = "^CELLSCAN: 3,\"46001\",3509760,334,4E,1A2B,,,,,1,-80,-22,12,\r\n"
	scanLineLTE = "^CELLSCAN: 2,\"46001\",1815000,120,3,2C1,,,,,,,,,18\r\n"
)

func TestCellScan(t *testing.T) {
	s := newScriptedSender().
		On(at.CmdDeregister, reply{resp: "\r\nERROR\r\n"}).
		On(at.CmdCellScan,
			reply{err: errors.New("no response")},
			reply{resp: "\r\n" + scanLineNR},
			reply{resp: scanLineLTE + scanLineNR2 + "\r\nOK\r\n"},
		)
	rec := &memoryRecorder{}

	cells, err := fastOrchestrator(s, workflow.WithRecorder(rec)).CellScan(context.Background())
	if err != nil {
		t.Fatalf("CellScan() error = %v", err)
	}

	if len(cells) != 3 {
		t.Fatalf("len(cells) = %d, want 3", len(cells))
	}
	// NR cells with 30 kHz spacing first, stronger RSRP first, LTE last
	if *cells[0].PCI != 334 || *cells[1].PCI != 55 || cells[2].Technology != decode.LTE {
		t.Errorf("unexpected order: %+v", cells)
	}

	want := []string{
		at.CmdUnlock,
		at.CmdDeregister,
		at.CmdDeregister,
		at.CmdCellScan,
		at.CmdCellScan,
		at.CmdCellScan,
		at.CmdRegister,
		at.DefaultLock.Command(),
		at.CmdRestart,
	}
	if got := s.Sent(); !slices.Equal(got, want) {
		t.Errorf("sent = %q\nwant %q", got, want)
	}

	if len(rec.scans) != 1 || len(rec.scans[0]) != 3 {
		t.Errorf("recorded scans = %v, want one scan of 3 cells", rec.scans)
	}
}

func TestCellScanKeepsTextArrivingWithError(t *testing.T) {
	s := newScriptedSender().
		On(at.CmdCellScan,
			reply{resp: scanLineNR, err: errors.New("peer closed connection")},
			reply{resp: scanLineNR2 + "\r\nOK\r\n"},
		)

	cells, err := fastOrchestrator(s).CellScan(context.Background())
	if err != nil {
		t.Fatalf("CellScan() error = %v", err)
	}

	if len(cells) != 2 {
		t.Fatalf("len(cells) = %d, want 2", len(cells))
	}
	if *cells[0].PCI != 334 || *cells[1].PCI != 55 {
		t.Errorf("unexpected cells: PCI %d, %d", *cells[0].PCI, *cells[1].PCI)
	}
	if n := s.Count(at.CmdCellScan); n != 2 {
		t.Errorf("scan sent %d times, want 2", n)
	}
}

func TestCellScanCleanupAfterDecodeFailure(t *testing.T) {
	s := newScriptedSender().
		On(at.CmdCellScan, reply{resp: "^CELLSCAN: 3,\"46001\",oops\r\n\r\nOK\r\n"})
	rec := &memoryRecorder{}

	cells, err := fastOrchestrator(s, workflow.WithRecorder(rec)).CellScan(context.Background())
	if !errors.Is(err, decode.ErrInvalidFormat) {
		t.Fatalf("CellScan() error = %v, want ErrInvalidFormat", err)
	}
	if cells != nil {
		t.Errorf("cells = %v, want nil", cells)
	}

	sent := s.Sent()
	tail := []string{at.CmdRegister, at.DefaultLock.Command(), at.CmdRestart}
	if len(sent) < len(tail) || !slices.Equal(sent[len(sent)-len(tail):], tail) {
		t.Errorf("sent = %q, want it to end with %q", sent, tail)
	}
	if len(rec.scans) != 0 {
		t.Errorf("recorded %d scans, want none", len(rec.scans))
	}
}

func TestCellScanCleanupAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newScriptedSender().Always(at.CmdCellScan, reply{resp: scanLineNR})
	s.onSend = func(cmd string) {
		if cmd == at.CmdCellScan {
			cancel()
		}
	}

	_, err := fastOrchestrator(s).CellScan(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("CellScan() error = %v, want context.Canceled", err)
	}
	for _, cmd := range []string{at.CmdRegister, at.DefaultLock.Command(), at.CmdRestart} {
		if s.Count(cmd) != 1 {
			t.Errorf("%q sent %d times, want 1", cmd, s.Count(cmd))
		}
	}
}

func TestCellScanCleanupErrorJoined(t *testing.T) {
	s := newScriptedSender().
		On(at.CmdCellScan, reply{resp: scanLineNR + "\r\nOK\r\n"}).
		Always(at.CmdRegister, reply{resp: "\r\nERROR\r\n"})

	o := fastOrchestrator(s, workflow.WithCleanupTimeout(30*time.Millisecond))
	cells, err := o.CellScan(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("CellScan() error = %v, want DeadlineExceeded from cleanup", err)
	}
	if len(cells) != 1 {
		t.Errorf("len(cells) = %d, want 1", len(cells))
	}
	if n := s.Count(at.DefaultLock.Command()); n != 0 {
		t.Errorf("default lock sent %d times before re-registering", n)
	}
}

func TestCellScanDeregisterCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	s := newScriptedSender().Always(at.CmdDeregister, reply{resp: "\r\nERROR\r\n"})
	if _, err := fastOrchestrator(s).CellScan(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("CellScan() error = %v, want DeadlineExceeded", err)
	}
	if n := s.Count(at.CmdRegister); n != 0 {
		t.Errorf("cleanup ran %d times without a deregistration", n)
	}
}

func TestLockCell(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantRestart bool
	}{
		{name: "Accepted lock restarts", reply: okReply, wantRestart: true},
		{name: "Rejected lock leaves module", reply: "\r\nERROR\r\n", wantRestart: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lock := at.LockCell334At6339
			s := newScriptedSender().On(lock.Command(), reply{resp: tt.reply})

			if err := fastOrchestrator(s).LockCell(context.Background(), lock); err != nil {
				t.Fatalf("LockCell() error = %v", err)
			}
			if got := s.Count(at.CmdRestart) == 1; got != tt.wantRestart {
				t.Errorf("restarted = %v, want %v", got, tt.wantRestart)
			}
		})
	}
}

func TestQueries(t *testing.T) {
	s := newScriptedSender().
		On(at.CmdSignal, reply{resp: "\r\n^HCSQ:\"NR\",60,150,20\r\n\r\nOK\r\n"}).
		On(at.CmdCarrierStatus, reply{resp: "\r\n^HFREQINFO:1,7,78,627264,3408960,100000,627264,3408960,100000\r\n\r\nOK\r\n"}).
		On(at.CmdLockStatus, reply{resp: "\r\n^NRFREQLOCK: 0\r\n\r\nOK\r\n"}).
		On(at.CmdChipTemp, reply{resp: "\r\n^CHIPTEMP: 452,65535\r\n\r\nOK\r\n"}).
		On("ATI", reply{resp: "\r\nManufacturer: Huawei\r\n\r\nOK\r\n"})
	o := fastOrchestrator(s)
	ctx := context.Background()

	sig, err := o.Signal(ctx)
	if err != nil || sig.RSRP.String() != "-80 dBm" {
		t.Errorf("Signal() = %+v, %v", sig, err)
	}

	cc, err := o.CarrierStatus(ctx)
	if err != nil || len(cc.NR) != 1 {
		t.Errorf("CarrierStatus() = %+v, %v", cc, err)
	}

	lock, err := o.LockStatus(ctx)
	if err != nil || lock.Locked {
		t.Errorf("LockStatus() = %+v, %v", lock, err)
	}

	temp, err := o.ChipTemperature(ctx)
	if err != nil || temp != 45.2 {
		t.Errorf("ChipTemperature() = %v, %v", temp, err)
	}

	raw, err := o.Manual(ctx, "ATI")
	if err != nil || raw != "\r\nManufacturer: Huawei\r\n\r\nOK\r\n" {
		t.Errorf("Manual() = %q, %v", raw, err)
	}

	if err := o.Unlock(ctx); err != nil {
		t.Errorf("Unlock() error = %v", err)
	}
}

func TestQueryErrors(t *testing.T) {
	sendErr := errors.New("bridge down")
	s := newScriptedSender().
		Always(at.CmdSignal, reply{err: sendErr}).
		Always(at.CmdChipTemp, reply{resp: "\r\nERROR\r\n"})
	o := fastOrchestrator(s)

	if _, err := o.Signal(context.Background()); !errors.Is(err, sendErr) {
		t.Errorf("Signal() error = %v, want %v", err, sendErr)
	}
	if _, err := o.ChipTemperature(context.Background()); !errors.Is(err, decode.ErrInvalidFormat) {
		t.Errorf("ChipTemperature() error = %v, want ErrInvalidFormat", err)
	}
}
