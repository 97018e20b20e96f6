// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the wallet configuration file. The file is
// a list of "key = value" lines; blank lines and lines starting with '#' are
// skipped and unknown keys are ignored.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bitfsorg/libsfp-go/discovery"
	"github.com/bitfsorg/libsfp-go/tx"
	"github.com/bitfsorg/libsfp-go/wallet"
)

const (
	configFileName = "config"
	storeFileName  = "sfp.db"
	dataDirName    = ".sfpwallet"
)

// Config holds the wallet settings.
type Config struct {
	DataDir          string
	Network          string
	LogLevel         string
	LogFile          string
	Dust             uint64
	FeePerKb         uint64
	DustChangeToFees bool
	AuthorizerDomain string
	DNSUpstream      string // validating resolver for authorizer key pinning
}

// DefaultConfig returns the settings used when the file sets nothing.
func DefaultConfig() Config {
	return Config{
		DataDir:          DefaultDataDir(),
		Network:          "mainnet",
		LogLevel:         "info",
		Dust:             tx.DefaultDust,
		FeePerKb:         tx.DefaultFeePerKb,
		DustChangeToFees: true,
	}
}

// DefaultDataDir returns ~/.sfpwallet, or .sfpwallet when the home
// directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dataDirName
	}
	return filepath.Join(home, dataDirName)
}

// ConfigPath returns the path of the configuration file inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// StorePath returns the path of the token store database.
func (c Config) StorePath() string {
	return filepath.Join(c.DataDir, storeFileName)
}

// BuilderOptions returns the transaction builder options for c.
func (c Config) BuilderOptions() tx.Options {
	opts := tx.DefaultOptions()
	opts.Dust = c.Dust
	opts.FeePerKb = c.FeePerKb
	opts.DustChangeToFees = c.DustChangeToFees
	if n, err := wallet.GetNetwork(c.Network); err == nil {
		opts.Mainnet = n.Mainnet()
	}
	return opts
}

// Resolver returns the authorizer resolver for c. Authorizer keys are pinned
// through DNSSEC when DNSUpstream is set.
func (c Config) Resolver(client discovery.HTTPClient) *discovery.Resolver {
	var dnsResolver discovery.DNSResolver
	if c.DNSUpstream != "" {
		dnsResolver = discovery.NewDNSSECResolver(c.DNSUpstream)
	}
	return discovery.NewResolver(client, dnsResolver, c.BuilderOptions().Mainnet)
}

// LoadConfig reads path on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path) // #nosec G304 -- path is chosen by the caller.
	if errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits line on its first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "datadir":
		c.DataDir = value
	case "network":
		c.Network = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "authorizer":
		c.AuthorizerDomain = value
	case "dnsupstream":
		c.DNSUpstream = value
	case "dust":
		c.Dust, err = strconv.ParseUint(value, 10, 64)
	case "feeperkb":
		c.FeePerKb, err = strconv.ParseUint(value, 10, 64)
	case "dustchangetofees":
		c.DustChangeToFees, err = strconv.ParseBool(value)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# SFP Wallet Configuration\n\n")
	fmt.Fprintf(&sb, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&sb, "network = %s\n", cfg.Network)
	fmt.Fprintf(&sb, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&sb, "logfile = %s\n", cfg.LogFile)
	fmt.Fprintf(&sb, "authorizer = %s\n", cfg.AuthorizerDomain)
	fmt.Fprintf(&sb, "dnsupstream = %s\n", cfg.DNSUpstream)
	sb.WriteString("\n# Transaction building\n")
	fmt.Fprintf(&sb, "dust = %d\n", cfg.Dust)
	fmt.Fprintf(&sb, "feeperkb = %d\n", cfg.FeePerKb)
	fmt.Fprintf(&sb, "dustchangetofees = %t\n", cfg.DustChangeToFees)

	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
