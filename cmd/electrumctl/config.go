// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcelectrum/electrum"
	"github.com/btcsuite/btcelectrum/txutil"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	defaultConfigFilename = "electrumctl.conf"
	defaultLogFilename    = "electrumctl.log"
	defaultLogDirname     = "logs"
	defaultLogLevel       = "warn"
	defaultServer         = "ssl://electrum.blockstream.info:50002"
	defaultTimeout        = 2 * time.Minute
)

var (
	defaultAppDataDir = btcutil.AppDataDir("electrumctl", false)
	defaultConfigFile = filepath.Join(
		defaultAppDataDir, defaultConfigFilename,
	)
	defaultLogDir = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

// config defines the configuration options for electrumctl.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	Server        string `short:"s" long:"server" description:"Electrum server as tcp://, ssl://, ws:// or wss:// URL, or in host:port:t|s form"`
	Proxy         string `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser     string `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass     string `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	TLSSkipVerify bool   `long:"tlsskipverify" description:"Accept any server certificate, such as the self-signed ones most Electrum servers use"`

	Network string `long:"network" description:"Bitcoin network" choice:"mainnet" choice:"testnet" choice:"regtest"`
	Bip     uint32 `long:"bip" description:"Address derivation standard (44 or 84)"`

	MaxRetry          int           `long:"maxretry" description:"Connection attempts after a failed one before giving up"`
	RetryPeriod       time.Duration `long:"retryperiod" description:"Delay between two connection attempts"`
	PingPeriod        time.Duration `long:"pingperiod" description:"Keep-alive interval"`
	CallTimeout       time.Duration `long:"calltimeout" description:"Time a request waits for its response"`
	RequestsPerSecond float64       `long:"rps" description:"Maximum requests per second sent to the server; 0 means unlimited"`
	Timeout           time.Duration `long:"timeout" description:"Overall time a command may take"`
}

// defaultConfig returns the config holding the default values.
func defaultConfig() config {
	policy := electrum.DefaultPersistencePolicy()

	return config{
		ConfigFile:  defaultConfigFile,
		LogDir:      defaultLogDir,
		DebugLevel:  defaultLogLevel,
		Server:      defaultServer,
		Network:     string(txutil.DefaultNetwork),
		Bip:         uint32(txutil.DefaultStandard),
		MaxRetry:    policy.MaxRetry,
		RetryPeriod: policy.RetryPeriod,
		PingPeriod:  policy.PingPeriod,
		CallTimeout: electrum.DefaultCallTimeout,
		Timeout:     defaultTimeout,
	}
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The parser is returned so the caller can register commands on it before
// the final parse.
func loadConfig(cfg *config) (*flags.Parser, error) {
	*cfg = defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file was specified. Errors are ignored here since they will be
	// caught by the final parse, which also prints the help message.
	preCfg := *cfg
	preParser := flags.NewParser(
		&preCfg, flags.PassDoubleDash|flags.IgnoreUnknown,
	)
	_, _ = preParser.Parse()

	parser := flags.NewParser(cfg, flags.Default)

	// Load additional config from file. A missing default config file is
	// not an error.
	configFile := cleanAndExpandPath(preCfg.ConfigFile)
	if preCfg.ConfigFile != defaultConfigFile || fileExists(configFile) {
		err := flags.NewIniParser(parser).ParseFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w",
				err)
		}
	}

	return parser, nil
}

// validate checks the parsed options and sets up logging.
func (c *config) validate() error {
	c.LogDir = cleanAndExpandPath(c.LogDir)
	logFile := filepath.Join(c.LogDir, defaultLogFilename)
	if err := initLogRotator(logFile); err != nil {
		return err
	}

	if err := parseAndSetDebugLevels(c.DebugLevel); err != nil {
		return err
	}

	if _, err := c.walletConfig(); err != nil {
		return err
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	return nil
}

// walletConfig returns the normalized wallet config of the options.
func (c *config) walletConfig() (txutil.Config, error) {
	return txutil.NormalizeConfig(txutil.Config{
		Standard: txutil.Standard(c.Bip),
		Network:  txutil.Network(c.Network),
	})
}

// clientConfig builds the electrum client config of the options.
func (c *config) clientConfig() (electrum.Config, error) {
	endpoint, err := electrum.ParseEndpoint(c.Server)
	if err != nil {
		return electrum.Config{}, err
	}

	var tlsConfig *tls.Config
	if c.TLSSkipVerify {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			// #nosec G402 -- explicitly requested by the user.
			InsecureSkipVerify: true,
		}
	}

	return electrum.Config{
		Endpoint: endpoint,
		Transport: electrum.TransportConfig{
			TLSConfig: tlsConfig,
			Proxy:     c.Proxy,
			ProxyUser: c.ProxyUser,
			ProxyPass: c.ProxyPass,
		},
		Policy: electrum.PersistencePolicy{
			MaxRetry:    c.MaxRetry,
			RetryPeriod: c.RetryPeriod,
			PingPeriod:  c.PingPeriod,
			OnExhausted: fn.Some(func(err error) {
				log.Errorf("Giving up on %v: %v", endpoint, err)
			}),
		},
		CallTimeout:       c.CallTimeout,
		RequestsPerSecond: c.RequestsPerSecond,
	}, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
