// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// electrumctl is a command line client for Electrum servers. It queries
// balances, outputs and transactions of addresses, broadcasts transactions
// and derives addresses from a seed or private key.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
)

func main() {
	if err := run(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}
}

// run parses the options and runs the selected command. Errors are printed
// by the parser.
func run() error {
	a := &app{}
	parser, err := loadConfig(&a.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	if err := addCommands(parser, a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if err := a.cfg.validate(); err != nil {
			return err
		}
		defer logRotator.Close()

		ctx, stop := signal.NotifyContext(
			context.Background(), os.Interrupt,
		)
		defer stop()

		ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()

		a.ctx = ctx
		defer func() {
			if a.client != nil {
				a.client.Close()
			}
		}()

		log.Debugf("Running command with %v", a.cfg.Server)

		return cmd.Execute(args)
	}

	_, err = parser.Parse()

	return err
}
