package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"i4.energy/across/atbridge/at"
	"i4.energy/across/atbridge/store"
	"i4.energy/across/atbridge/workflow"
)

// CLI is the root command structure for atbridge.
type CLI struct {
	Config string `short:"c" type:"path" env:"ATBRIDGE_CONFIG" help:"YAML configuration file"`

	Remote     string `help:"Modem AT endpoint (host:port)"`
	SerialPort string `help:"Serial port of the modem; replaces the TCP link"`
	BaudRate   int    `help:"Serial baud rate"`
	Socket     string `help:"Local bridge socket path"`
	Framing    string `help:"Response framing: line or substring"`

	ClientTimeout time.Duration `help:"Give up on a bridge reply after this long (0 waits indefinitely)"`

	LogLevel   string `help:"Log level (debug, info, warn, error)"`
	LogFile    string `type:"path" help:"Also log to this rotated file"`
	LogJSON    bool   `name:"log-json" help:"Log in JSON"`
	HistoryDir string `type:"path" help:"Cell scan history directory"`

	Serve      ServeCmd      `cmd:"" help:"Bridge the local socket to the modem"`
	Signal     SignalCmd     `cmd:"" help:"Show serving cell signal quality"`
	CC         CCCmd         `cmd:"" name:"cc" help:"Show 5G NR carrier component status"`
	LockStatus LockStatusCmd `cmd:"" name:"lock-status" help:"Show the current cell lock"`
	Lock       LockCmd       `cmd:"" help:"Lock to a known cell and restart the module"`
	Unlock     UnlockCmd     `cmd:"" help:"Clear the cell lock"`
	Restart    RestartCmd    `cmd:"" help:"Restart the cellular module"`
	Init       InitCmd       `cmd:"" help:"Prepare the module for cell scanning"`
	Scan       ScanCmd       `cmd:"" help:"Scan for cells, then restore registration and the default lock"`
	Temp       TempCmd       `cmd:"" help:"Show chip temperature"`
	Send       SendCmd       `cmd:"" help:"Send a raw AT command"`
	History    HistoryCmd    `cmd:"" help:"Show recorded cell scans"`
}

// --- Bridge ---

type ServeCmd struct {
	Status string `help:"Bind address of the status HTTP server (e.g. 127.0.0.1:8080)"`
}

func (c *ServeCmd) Run(app *App) error {
	if c.Status != "" {
		app.Config.StatusAddress = c.Status
	}
	return app.Serve()
}

// --- Queries ---

type SignalCmd struct{}

func (c *SignalCmd) Run(app *App) error {
	status, err := app.Orchestrator(nil).Signal(app.Context)
	if err != nil {
		return err
	}
	renderSignal(app.Out, status)
	return nil
}

type CCCmd struct{}

func (c *CCCmd) Run(app *App) error {
	status, err := app.Orchestrator(nil).CarrierStatus(app.Context)
	if err != nil {
		return err
	}
	renderCarrier(app.Out, status)
	return nil
}

type LockStatusCmd struct{}

func (c *LockStatusCmd) Run(app *App) error {
	status, err := app.Orchestrator(nil).LockStatus(app.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Lock: %s\n", status)
	return nil
}

type TempCmd struct{}

func (c *TempCmd) Run(app *App) error {
	temp, err := app.Orchestrator(nil).ChipTemperature(app.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Chip temperature: %.1f°C\n", temp)
	return nil
}

// --- Control ---

type LockCmd struct {
	Cell string `arg:"" help:"Cell to lock: 16, 579-627264, 334-627264, 334-633984 or 579-633984"`
}

func (c *LockCmd) Run(app *App) error {
	lock, ok := at.LookupLock(c.Cell)
	if !ok {
		names := make([]string, 0, len(at.CellLocks))
		for _, l := range at.CellLocks {
			names = append(names, l.Name)
		}
		return fmt.Errorf("unknown cell %q (known: %s)", c.Cell, strings.Join(names, ", "))
	}
	if err := app.Orchestrator(nil).LockCell(app.Context, lock); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Locked %s; the module restarts and needs 1-2 minutes\n", lock)
	return nil
}

type UnlockCmd struct{}

func (c *UnlockCmd) Run(app *App) error {
	if err := app.Orchestrator(nil).Unlock(app.Context); err != nil {
		return err
	}
	fmt.Fprintln(app.Out, "Unlocked")
	return nil
}

type RestartCmd struct{}

func (c *RestartCmd) Run(app *App) error {
	return app.Orchestrator(nil).Restart(app.Context)
}

type InitCmd struct{}

func (c *InitCmd) Run(app *App) error {
	if err := app.Orchestrator(nil).InitialConfiguration(app.Context); err != nil {
		return err
	}
	fmt.Fprintln(app.Out, "Initial configuration complete")
	return nil
}

type ScanCmd struct{}

func (c *ScanCmd) Run(app *App) error {
	var recorder workflow.Recorder
	if history := app.OpenHistory(); history != nil {
		defer history.Close()
		recorder = history
	}

	cells, err := app.Orchestrator(recorder).CellScan(app.Context)
	if len(cells) > 0 {
		renderCells(app.Out, cells)
	} else if err == nil {
		fmt.Fprintln(app.Out, "No cells found")
	}
	return err
}

type SendCmd struct {
	Command string `arg:"" help:"AT command, passed through verbatim"`
}

func (c *SendCmd) Run(app *App) error {
	resp, err := app.Orchestrator(nil).Manual(app.Context, c.Command)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, resp)
	return nil
}

// --- History ---

type HistoryCmd struct {
	Limit int  `default:"5" help:"Number of scans to list"`
	Cells bool `help:"Show the cells of the latest scan"`
}

func (c *HistoryCmd) Run(app *App) error {
	if app.Config.HistoryDir == "" {
		return errors.New("no history directory configured (history_dir)")
	}
	history, err := store.Open(store.Config{Dir: app.Config.HistoryDir, Logger: app.Logger.With("component", "store")})
	if err != nil {
		return err
	}
	defer history.Close()

	if c.Cells {
		latest, err := history.Latest()
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Scan of %s\n", latest.Taken.Local().Format("2006-01-02 15:04:05"))
		renderCells(app.Out, latest.Cells)
		return nil
	}

	scans, err := history.List(c.Limit)
	if err != nil {
		return err
	}
	renderHistory(app.Out, scans)
	return nil
}
