// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bitfsorg/libsfp-go/discovery"
	"github.com/bitfsorg/libsfp-go/sfp"
	"github.com/bitfsorg/libsfp-go/storage"
	"github.com/bitfsorg/libsfp-go/tx"
	"github.com/btcsuite/btclog"
)

const logFilePerm = 0o600

// Subsystem tags.
const (
	SubsystemBuilder    = "TXBD"
	SubsystemAuthorizer = "SFPA"
	SubsystemStore      = "STOR"
	SubsystemDiscovery  = "DISC"
)

// SetupLogging routes the package loggers to cfg.LogFile, or stdout when it
// is empty, at cfg.LogLevel. The returned function closes the log file.
func SetupLogging(cfg Config) (func(), error) {
	level, ok := btclog.LevelFromString(strings.ToLower(cfg.LogLevel))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}

	var w io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.LogFile != "" {
		// #nosec G304 -- the log path comes from the user's config.
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			return nil, fmt.Errorf("config: open log file: %w", err)
		}
		w = f
		closeFn = func() {
			_ = f.Sync()
			_ = f.Close()
		}
	}

	backend := btclog.NewBackend(w)

	txbd := backend.Logger(SubsystemBuilder)
	sfpa := backend.Logger(SubsystemAuthorizer)
	stor := backend.Logger(SubsystemStore)
	disc := backend.Logger(SubsystemDiscovery)

	txbd.SetLevel(level)
	sfpa.SetLevel(level)
	stor.SetLevel(level)
	disc.SetLevel(level)

	tx.UseLogger(txbd)
	sfp.UseLogger(sfpa)
	storage.UseLogger(stor)
	discovery.UseLogger(disc)

	return closeFn, nil
}

// DisableLogging turns off output from every package logger.
func DisableLogging() {
	tx.DisableLog()
	sfp.DisableLog()
	storage.DisableLog()
	discovery.DisableLog()
}
