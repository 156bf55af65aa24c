package at

import "fmt"

const (
	CmdSignal        = "AT^HCSQ?"
	CmdCarrierStatus = "AT^HFREQINFO?"
	CmdRestart       = "AT+CFUN=1,1"
	CmdLockStatus    = "AT^NRFREQLOCK?"
	CmdUnlock        = "AT^NRFREQLOCK=0"
	CmdDeregister    = "AT+COPS=2"
	CmdRegister      = "AT+COPS=0"
	CmdCellScan      = "AT^CELLSCAN=3"
	CmdChipTemp      = "AT^CHIPTEMP?"
)

// InitCommands prepares the module for cell scanning: SA/NSA enabled,
// LTE and NR locks cleared and automatic RAT selection over all bands.
var InitCommands = []string{
	"AT^C5GOPTION=1,1,1",
	"AT^LTEFREQLOCK=0",
	"AT^NRFREQLOCK=0",
	`AT^SYSCFGEX="0803",3FFFFFFF,1,2,7FFFFFFFFFFFFFFF,,`,
}

// CellLock pins the NR radio to one physical cell on one band 78 channel.
type CellLock struct {
	// Name is the short identifier used on the command line
	Name string
	// PCI is the physical cell id
	PCI string
	// ARFCN is the NR channel number
	ARFCN string
}

// Command renders the AT^NRFREQLOCK command for the lock.
func (l CellLock) Command() string {
	return fmt.Sprintf(`AT^NRFREQLOCK=2,0,1,"78","%s","1","%s"`, l.ARFCN, l.PCI)
}

func (l CellLock) String() string {
	return fmt.Sprintf("cell %s (ARFCN %s)", l.PCI, l.ARFCN)
}

var (
	LockCell16        = CellLock{Name: "16", PCI: "16", ARFCN: "627264"}
	LockCell579At6272 = CellLock{Name: "579-627264", PCI: "579", ARFCN: "627264"}
	LockCell334At6272 = CellLock{Name: "334-627264", PCI: "334", ARFCN: "627264"}
	LockCell334At6339 = CellLock{Name: "334-633984", PCI: "334", ARFCN: "633984"}
	LockCell579At6339 = CellLock{Name: "579-633984", PCI: "579", ARFCN: "633984"}

	// DefaultLock is restored after a cell scan.
	DefaultLock = LockCell579At6272
)

// CellLocks lists the selectable locks in menu order.
var CellLocks = []CellLock{
	LockCell16,
	LockCell579At6272,
	LockCell334At6272,
	LockCell334At6339,
	LockCell579At6339,
}

// LookupLock finds a lock by name.
func LookupLock(name string) (CellLock, bool) {
	for _, l := range CellLocks {
		if l.Name == name {
			return l, true
		}
	}
	return CellLock{}, false
}
