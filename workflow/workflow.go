// Package workflow runs the multi-step modem procedures: initial
// configuration, the full cell scan and the single query/lock operations,
// all built on a retry-until-OK primitive over a command Sender.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"i4.energy/across/atbridge/at"
	"i4.energy/across/atbridge/decode"
)

const (
	DefaultRetryDelay     = 2 * time.Second
	DefaultSettleDelay    = 1 * time.Second
	DefaultScanPollDelay  = 2 * time.Second
	DefaultCleanupTimeout = 5 * time.Minute
)

// Sender sends one AT command and returns the raw response. Both
// *modem.Modem and *bridge.Client satisfy it.
type Sender interface {
	Send(ctx context.Context, cmd string) (string, error)
}

// Recorder keeps the results of completed cell scans.
type Recorder interface {
	Record(taken time.Time, cells []decode.CellScanRecord) error
}

// Orchestrator runs procedures against a single Sender. It issues one
// command at a time and is not safe for concurrent use.
type Orchestrator struct {
	sender         Sender
	framing        at.Framing
	retryDelay     time.Duration
	settleDelay    time.Duration
	scanPollDelay  time.Duration
	cleanupTimeout time.Duration
	recorder       Recorder
	logger         *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetryDelay sets the pause between attempts of RetryUntilOK.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.retryDelay = d }
}

// WithSettleDelay sets the pause after each initial configuration command.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.settleDelay = d }
}

// WithScanPollDelay sets the pause before each cell scan poll.
func WithScanPollDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.scanPollDelay = d }
}

// WithCleanupTimeout bounds the post-scan restore sequence.
func WithCleanupTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.cleanupTimeout = d }
}

// WithFraming selects how an acknowledgement is recognised. Under
// FramingSubstring any "OK" in the response counts.
func WithFraming(f at.Framing) Option {
	return func(o *Orchestrator) { o.framing = f }
}

// WithRecorder stores every successfully decoded scan.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New returns an Orchestrator sending through sender.
func New(sender Sender, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sender:         sender,
		retryDelay:     DefaultRetryDelay,
		settleDelay:    DefaultSettleDelay,
		scanPollDelay:  DefaultScanPollDelay,
		cleanupTimeout: DefaultCleanupTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

func (o *Orchestrator) acknowledged(resp string) bool {
	if o.framing == at.FramingSubstring {
		return strings.Contains(resp, at.OK)
	}
	return at.Succeeded(resp)
}

// RetryUntilOK sends cmd until the response is acknowledged with OK,
// pausing between attempts. Send errors count as failed attempts. It only
// gives up when ctx ends.
func (o *Orchestrator) RetryUntilOK(ctx context.Context, cmd string) (string, error) {
	for attempt := 1; ; attempt++ {
		resp, err := o.sender.Send(ctx, cmd)
		if err == nil && o.acknowledged(resp) {
			o.logger.Debug("Command acknowledged", "command", cmd, "attempt", attempt)
			return resp, nil
		}

		o.logger.Warn("Command failed, retrying", "command", cmd, "attempt", attempt, "error", err)
		if err := sleep(ctx, o.retryDelay); err != nil {
			return resp, fmt.Errorf("retry %q: %w", cmd, err)
		}
	}
}

// InitialConfiguration prepares the modem for scanning by running the
// fixed configuration commands in order, each retried until acknowledged.
func (o *Orchestrator) InitialConfiguration(ctx context.Context) error {
	o.logger.Info("Performing initial configuration")
	for _, cmd := range at.InitCommands {
		if _, err := o.RetryUntilOK(ctx, cmd); err != nil {
			return fmt.Errorf("initial configuration: %w", err)
		}
		o.logger.Info("Configuration command executed", "command", cmd)
		if err := sleep(ctx, o.settleDelay); err != nil {
			return fmt.Errorf("initial configuration: %w", err)
		}
	}
	return nil
}

// CellScan unlocks the radio, deregisters from the network and collects a
// full AT^CELLSCAN=3 capture, returning the decoded cells best first.
//
// Once deregistration succeeded the modem is always restored: registration
// is re-enabled, the default cell lock applied and the module restarted if
// the lock was accepted. The restore runs even when polling or decoding
// failed or ctx was cancelled, bounded by the cleanup timeout; its error is
// joined to the returned one.
func (o *Orchestrator) CellScan(ctx context.Context) (cells []decode.CellScanRecord, err error) {
	o.logger.Info("Performing cell scan")

	if _, err := o.sender.Send(ctx, at.CmdUnlock); err != nil {
		o.logger.Warn("Unlock before scan failed", "error", err)
	}

	if _, err := o.RetryUntilOK(ctx, at.CmdDeregister); err != nil {
		return nil, fmt.Errorf("deregister: %w", err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cleanupTimeout)
		defer cancel()
		if cerr := o.restore(cleanupCtx); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	raw, err := o.pollScan(ctx)
	if err != nil {
		return nil, err
	}

	cells, err = decode.CellScan(raw)
	if err != nil {
		o.logger.Error("Failed to decode cell scan", "error", err)
		return nil, err
	}
	decode.SortCells(cells)
	o.logger.Info("Cell scan complete", "cells", len(cells))

	if o.recorder != nil {
		if err := o.recorder.Record(time.Now(), cells); err != nil {
			o.logger.Warn("Failed to record cell scan", "error", err)
		}
	}

	return cells, nil
}

// pollScan issues the scan command until one response segment is
// acknowledged, accumulating every segment received on the way.
func (o *Orchestrator) pollScan(ctx context.Context) (string, error) {
	var capture strings.Builder
	for {
		o.logger.Debug("Waiting for cell scan to complete")
		if err := sleep(ctx, o.scanPollDelay); err != nil {
			return "", fmt.Errorf("cell scan: %w", err)
		}

		resp, err := o.sender.Send(ctx, at.CmdCellScan)
		capture.WriteString(resp)
		if err != nil {
			o.logger.Warn("No scan response, retrying", "error", err, "partial_length", len(resp))
			continue
		}
		if o.acknowledged(resp) {
			return capture.String(), nil
		}
	}
}

// restore re-registers with the network and re-applies the default lock.
func (o *Orchestrator) restore(ctx context.Context) error {
	if _, err := o.RetryUntilOK(ctx, at.CmdRegister); err != nil {
		return fmt.Errorf("re-register: %w", err)
	}
	o.logger.Info("Locking default cell", "lock", at.DefaultLock)
	if err := o.LockCell(ctx, at.DefaultLock); err != nil {
		return fmt.Errorf("restore default lock: %w", err)
	}
	return nil
}

// LockCell applies lock and restarts the module when the modem accepted
// it. A rejected lock is not an error; the modem stays as it was.
func (o *Orchestrator) LockCell(ctx context.Context, lock at.CellLock) error {
	resp, err := o.sender.Send(ctx, lock.Command())
	if err != nil {
		return fmt.Errorf("lock %s: %w", lock, err)
	}
	if !o.acknowledged(resp) {
		o.logger.Warn("Cell lock rejected", "lock", lock, "response", resp)
		return nil
	}
	return o.Restart(ctx)
}

// Unlock clears the NR cell lock.
func (o *Orchestrator) Unlock(ctx context.Context) error {
	if _, err := o.sender.Send(ctx, at.CmdUnlock); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	return nil
}

// Restart power-cycles the radio module.
func (o *Orchestrator) Restart(ctx context.Context) error {
	o.logger.Info("Restarting cellular module")
	if _, err := o.sender.Send(ctx, at.CmdRestart); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return nil
}

// Signal queries and decodes the serving cell signal quality.
func (o *Orchestrator) Signal(ctx context.Context) (decode.SignalStatus, error) {
	resp, err := o.sender.Send(ctx, at.CmdSignal)
	if err != nil {
		return decode.SignalStatus{}, fmt.Errorf("signal: %w", err)
	}
	return decode.Signal(resp)
}

// CarrierStatus queries and decodes the aggregated carrier components.
func (o *Orchestrator) CarrierStatus(ctx context.Context) (decode.CarrierStatus, error) {
	resp, err := o.sender.Send(ctx, at.CmdCarrierStatus)
	if err != nil {
		return decode.CarrierStatus{}, fmt.Errorf("carrier status: %w", err)
	}
	return decode.CarrierComponents(resp)
}

// LockStatus queries and decodes the current NR cell lock.
func (o *Orchestrator) LockStatus(ctx context.Context) (decode.LockStatus, error) {
	resp, err := o.sender.Send(ctx, at.CmdLockStatus)
	if err != nil {
		return decode.LockStatus{}, fmt.Errorf("lock status: %w", err)
	}
	return decode.Lock(resp)
}

// ChipTemperature queries the module temperature in degrees Celsius.
func (o *Orchestrator) ChipTemperature(ctx context.Context) (float64, error) {
	resp, err := o.sender.Send(ctx, at.CmdChipTemp)
	if err != nil {
		return 0, fmt.Errorf("chip temperature: %w", err)
	}
	return decode.ChipTemperature(resp)
}

// Manual passes cmd through verbatim and returns the raw response.
func (o *Orchestrator) Manual(ctx context.Context, cmd string) (string, error) {
	return o.sender.Send(ctx, cmd)
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
