// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcelectrum/electrum"
	"github.com/btcsuite/btcelectrum/signer"
	"github.com/btcsuite/btcelectrum/txutil"
	"github.com/jessevdk/go-flags"
)

// app holds the state shared by the commands of one invocation.
type app struct {
	cfg config

	// ctx bounds the running command.
	ctx context.Context

	client *electrum.Client
}

// electrumClient returns the client, creating it on first use. Commands that
// do not talk to a server never create one.
func (a *app) electrumClient() (*electrum.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	clientCfg, err := a.cfg.clientConfig()
	if err != nil {
		return nil, err
	}

	client, err := electrum.NewClient(clientCfg)
	if err != nil {
		return nil, err
	}

	log.Debugf("Using server %v", client.Endpoint())
	a.client = client

	return client, nil
}

// scriptHash returns the electrum script hash of an encoded address of the
// configured network.
func (a *app) scriptHash(addr string) (electrum.ScriptHash, error) {
	walletCfg, err := a.cfg.walletConfig()
	if err != nil {
		return electrum.ScriptHash{}, err
	}

	decoded, err := btcutil.DecodeAddress(addr, walletCfg.ChainParams())
	if err != nil {
		return electrum.ScriptHash{}, fmt.Errorf("invalid address "+
			"%q: %w", addr, err)
	}

	if !decoded.IsForNet(walletCfg.ChainParams()) {
		return electrum.ScriptHash{}, fmt.Errorf("address %q is not "+
			"for %v", addr, walletCfg.Network)
	}

	return electrum.ScriptHashFromAddress(decoded)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// addressArgs is the positional argument of the address based commands.
type addressArgs struct {
	Address string `positional-arg-name:"address" required:"yes"`
}

// txidArgs is the positional argument of the txid based commands.
type txidArgs struct {
	Txid string `positional-arg-name:"txid" required:"yes"`
}

// pingCmd checks that the server answers.
type pingCmd struct {
	app *app
}

func (c *pingCmd) Execute(_ []string) error {
	client, err := c.app.electrumClient()
	if err != nil {
		return err
	}

	if err := client.Ping(c.app.ctx); err != nil {
		return err
	}

	fmt.Printf("%v is reachable\n", client.Endpoint())

	return nil
}

// balanceCmd prints the balance of an address.
type balanceCmd struct {
	app  *app
	Args addressArgs `positional-args:"yes"`
}

func (c *balanceCmd) Execute(_ []string) error {
	scriptHash, err := c.app.scriptHash(c.Args.Address)
	if err != nil {
		return err
	}

	client, err := c.app.electrumClient()
	if err != nil {
		return err
	}

	balance, err := client.GetBalance(c.app.ctx, scriptHash)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"address":     c.Args.Address,
		"confirmed":   balance.Confirmed.ToBTC(),
		"unconfirmed": balance.Unconfirmed.ToBTC(),
		"total":       balance.Total().ToBTC(),
	})
}

// utxosCmd lists the unspent outputs of an address.
type utxosCmd struct {
	app  *app
	Args addressArgs `positional-args:"yes"`
}

func (c *utxosCmd) Execute(_ []string) error {
	scriptHash, err := c.app.scriptHash(c.Args.Address)
	if err != nil {
		return err
	}

	client, err := c.app.electrumClient()
	if err != nil {
		return err
	}

	utxos, err := client.ListUnspent(c.app.ctx, scriptHash)
	if err != nil {
		return err
	}

	type utxoJSON struct {
		OutPoint string  `json:"outpoint"`
		Value    float64 `json:"value"`
		Height   int32   `json:"height"`
	}

	out := make([]utxoJSON, 0, len(utxos))
	for _, u := range utxos {
		op := u.OutPoint()
		out = append(out, utxoJSON{
			OutPoint: op.String(),
			Value:    u.Value.ToBTC(),
			Height:   u.Height,
		})
	}

	return printJSON(out)
}

// historyCmd lists the transactions touching an address.
type historyCmd struct {
	app  *app
	Args addressArgs `positional-args:"yes"`
}

func (c *historyCmd) Execute(_ []string) error {
	scriptHash, err := c.app.scriptHash(c.Args.Address)
	if err != nil {
		return err
	}

	client, err := c.app.electrumClient()
	if err != nil {
		return err
	}

	history, err := client.GetHistory(c.app.ctx, scriptHash)
	if err != nil {
		return err
	}

	type historyJSON struct {
		Txid   string `json:"txid"`
		Height int32  `json:"height"`
		Fee    int64  `json:"fee,omitempty"`
	}

	out := make([]historyJSON, 0, len(history))
	for _, h := range history {
		out = append(out, historyJSON{
			Txid:   h.TxHash.String(),
			Height: h.Height,
			Fee:    int64(h.Fee),
		})
	}

	return printJSON(out)
}

// getTxCmd prints a raw transaction.
type getTxCmd struct {
	app  *app
	Args txidArgs `positional-args:"yes"`
}

func (c *getTxCmd) Execute(_ []string) error {
	txHash, err := chainhash.NewHashFromStr(c.Args.Txid)
	if err != nil {
		return fmt.Errorf("invalid txid: %w", err)
	}

	client, err := c.app.electrumClient()
	if err != nil {
		return err
	}

	rawTx, err := client.GetTransaction(c.app.ctx, *txHash)
	if err != nil {
		return err
	}

	fmt.Println(rawTx)

	return nil
}

// feeCmd prints the fee paid by a transaction.
type feeCmd struct {
	app  *app
	Args txidArgs `positional-args:"yes"`
}

func (c *feeCmd) Execute(_ []string) error {
	txHash, err := chainhash.NewHashFromStr(c.Args.Txid)
	if err != nil {
		return fmt.Errorf("invalid txid: %w", err)
	}

	client, err := c.app.electrumClient()
	if err != nil {
		return err
	}

	info, err := client.TransactionFee(c.app.ctx, *txHash)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"txid":    txHash.String(),
		"fee":     int64(info.Fee),
		"weight":  uint64(info.Weight),
		"vsize":   uint64(info.VSize),
		"feerate": info.FeeRate.String(),
	})
}

// broadcastCmd sends a raw transaction to the network.
type broadcastCmd struct {
	app  *app
	Args struct {
		RawTx string `positional-arg-name:"rawtx" required:"yes"`
	} `positional-args:"yes"`
}

func (c *broadcastCmd) Execute(_ []string) error {
	client, err := c.app.electrumClient()
	if err != nil {
		return err
	}

	txid, err := client.Broadcast(c.app.ctx, c.Args.RawTx)

	var rejected *electrum.BroadcastRejectedError
	if errors.As(err, &rejected) {
		return fmt.Errorf("transaction rejected (%v): %s",
			rejected.Kind, rejected.Reason)
	}
	if err != nil {
		return err
	}

	fmt.Println(txid)

	return nil
}

// estimateFeeCmd prints the fee rate for a confirmation target.
type estimateFeeCmd struct {
	app  *app
	Args struct {
		Blocks uint32 `positional-arg-name:"blocks" required:"yes"`
	} `positional-args:"yes"`
}

func (c *estimateFeeCmd) Execute(_ []string) error {
	client, err := c.app.electrumClient()
	if err != nil {
		return err
	}

	rate, err := client.EstimateFee(c.app.ctx, c.Args.Blocks)
	if errors.Is(err, electrum.ErrFeeEstimateUnavailable) {
		return fmt.Errorf("server has no estimate for %d blocks",
			c.Args.Blocks)
	}
	if err != nil {
		return err
	}

	fmt.Println(rate.ToSatPerVByte())

	return nil
}

// signerOptions selects the key a signing command uses. Secrets are always
// prompted for, never passed as arguments.
type signerOptions struct {
	WIF  bool   `long:"wif" description:"Prompt for a WIF private key instead of a mnemonic"`
	Path string `long:"path" description:"Absolute derivation path; defaults to the first receive address of the configured standard"`
}

// newSigner prompts for the key material and creates the signer.
func (o *signerOptions) newSigner(cfg txutil.Config) (signer.Signer, error) {
	if o.WIF {
		wif, err := promptSecret("Enter WIF private key: ")
		if err != nil {
			return nil, err
		}

		return signer.NewPrivateKeySignerFromWIF(wif, cfg)
	}

	mnemonic, err := promptSecret("Enter mnemonic: ")
	if err != nil {
		return nil, err
	}

	passphrase, err := promptSecret("Enter passphrase (empty for none): ")
	if err != nil {
		return nil, err
	}

	return signer.NewSeedSignerFromMnemonic(
		mnemonic, passphrase, cfg, o.Path,
	)
}

// addressCmd prints the address of a key.
type addressCmd struct {
	app *app
	signerOptions
}

func (c *addressCmd) Execute(_ []string) error {
	walletCfg, err := c.app.cfg.walletConfig()
	if err != nil {
		return err
	}

	s, err := c.newSigner(walletCfg)
	if err != nil {
		return err
	}
	defer s.Dispose()

	addr, err := s.Address(c.app.ctx)
	if err != nil {
		return err
	}

	out := map[string]any{
		"address": addr,
		"kind":    s.Kind().String(),
		"config":  s.Config().String(),
	}

	// Only HD signers have a path and an extended key.
	if path, err := signer.PathOf(s); err == nil {
		out["path"] = path
	}
	if xpub, err := signer.ExtendedPublicKey(c.app.ctx, s); err == nil {
		out["xpub"] = xpub
	}

	return printJSON(out)
}

// signMessageCmd signs a message with a key.
type signMessageCmd struct {
	app *app
	signerOptions
	Args struct {
		Message string `positional-arg-name:"message" required:"yes"`
	} `positional-args:"yes"`
}

func (c *signMessageCmd) Execute(_ []string) error {
	walletCfg, err := c.app.cfg.walletConfig()
	if err != nil {
		return err
	}

	s, err := c.newSigner(walletCfg)
	if err != nil {
		return err
	}
	defer s.Dispose()

	sig, err := s.SignMessage(c.app.ctx, []byte(c.Args.Message))
	if err != nil {
		return err
	}

	fmt.Println(base64.StdEncoding.EncodeToString(sig))

	return nil
}

// addCommands registers every command on the parser.
func addCommands(parser *flags.Parser, a *app) error {
	commands := []struct {
		name  string
		short string
		data  flags.Commander
	}{
		{"ping", "Check that the server answers", &pingCmd{app: a}},
		{"balance", "Show the balance of an address",
			&balanceCmd{app: a}},
		{"utxos", "List the unspent outputs of an address",
			&utxosCmd{app: a}},
		{"history", "List the transactions of an address",
			&historyCmd{app: a}},
		{"gettx", "Print a raw transaction", &getTxCmd{app: a}},
		{"fee", "Show the fee paid by a transaction", &feeCmd{app: a}},
		{"broadcast", "Broadcast a raw transaction",
			&broadcastCmd{app: a}},
		{"estimatefee", "Estimate the fee rate for a confirmation target",
			&estimateFeeCmd{app: a}},
		{"address", "Show the address of a key", &addressCmd{app: a}},
		{"signmessage", "Sign a message with a key",
			&signMessageCmd{app: a}},
	}

	for _, cmd := range commands {
		_, err := parser.AddCommand(cmd.name, cmd.short, "", cmd.data)
		if err != nil {
			return fmt.Errorf("add command %s: %w", cmd.name, err)
		}
	}

	return nil
}
