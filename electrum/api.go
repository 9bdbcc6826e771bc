// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcelectrum/pkg/btcunit"
	"github.com/btcsuite/btcelectrum/txutil"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	methodServerVersion = "server.version"
	methodServerPing    = "server.ping"
	methodGetBalance    = "blockchain.scripthash.get_balance"
	methodListUnspent   = "blockchain.scripthash.listunspent"
	methodGetHistory    = "blockchain.scripthash.get_history"
	methodGetTx         = "blockchain.transaction.get"
	methodBroadcast     = "blockchain.transaction.broadcast"
	methodEstimateFee   = "blockchain.estimatefee"

	// maxPrevTxFetches bounds the concurrent requests made to resolve
	// the inputs of a transaction.
	maxPrevTxFetches = 4
)

// ErrCoinbaseTx is returned when the fee of a coinbase transaction is
// requested.
var ErrCoinbaseTx = errors.New("coinbase transaction pays no fee")

// Balance is the balance of a script hash.
type Balance struct {
	// Confirmed is the value of the confirmed outputs.
	Confirmed btcutil.Amount

	// Unconfirmed is the net value of the mempool transactions. It is
	// negative when they spend more than they receive.
	Unconfirmed btcutil.Amount
}

// Total returns the confirmed plus unconfirmed balance.
func (b Balance) Total() btcutil.Amount {
	return b.Confirmed + b.Unconfirmed
}

// UnspentOutput is an output paying to a script hash that is not spent yet.
type UnspentOutput struct {
	TxHash      chainhash.Hash
	OutputIndex uint32
	Value       btcutil.Amount

	// Height is the confirmation height, or zero for mempool outputs.
	Height int32
}

// OutPoint returns the outpoint of the output.
func (u UnspentOutput) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: u.TxHash, Index: u.OutputIndex}
}

// HistoryEntry is a transaction touching a script hash.
type HistoryEntry struct {
	TxHash chainhash.Hash

	// Height is the confirmation height. Mempool entries have 0, or -1
	// when they spend unconfirmed outputs.
	Height int32

	// Fee is only reported for mempool entries.
	Fee btcutil.Amount
}

type balanceResult struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

type unspentResult struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Height int32  `json:"height"`
	Value  int64  `json:"value"`
}

type historyResult struct {
	TxHash string `json:"tx_hash"`
	Height int32  `json:"height"`
	Fee    int64  `json:"fee,omitempty"`
}

// decodeResult unmarshals a raw result into v.
func decodeResult(method string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, method, err)
	}

	return nil
}

// parseTxHash parses a transaction hash in display order.
func parseTxHash(method, s string) (chainhash.Hash, error) {
	hash, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %s: bad tx hash %q",
			ErrInvalidResponse, method, s)
	}

	return *hash, nil
}

// Ping sends a keep-alive ping.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, true, methodServerPing)
	return err
}

// GetBalance returns the balance of the script hash.
func (c *Client) GetBalance(ctx context.Context,
	scriptHash ScriptHash) (*Balance, error) {

	raw, err := c.call(ctx, true, methodGetBalance, scriptHash.String())
	if err != nil {
		return nil, err
	}

	var res balanceResult
	if err := decodeResult(methodGetBalance, raw, &res); err != nil {
		return nil, err
	}

	return &Balance{
		Confirmed:   btcutil.Amount(res.Confirmed),
		Unconfirmed: btcutil.Amount(res.Unconfirmed),
	}, nil
}

// ListUnspent returns the unspent outputs paying to the script hash,
// including the ones in the mempool.
func (c *Client) ListUnspent(ctx context.Context,
	scriptHash ScriptHash) ([]UnspentOutput, error) {

	raw, err := c.call(ctx, true, methodListUnspent, scriptHash.String())
	if err != nil {
		return nil, err
	}

	var res []unspentResult
	if err := decodeResult(methodListUnspent, raw, &res); err != nil {
		return nil, err
	}

	utxos := make([]UnspentOutput, 0, len(res))
	for _, r := range res {
		hash, err := parseTxHash(methodListUnspent, r.TxHash)
		if err != nil {
			return nil, err
		}

		utxos = append(utxos, UnspentOutput{
			TxHash:      hash,
			OutputIndex: r.TxPos,
			Value:       btcutil.Amount(r.Value),
			Height:      r.Height,
		})
	}

	return utxos, nil
}

// GetHistory returns the confirmed and mempool transactions touching the
// script hash.
func (c *Client) GetHistory(ctx context.Context,
	scriptHash ScriptHash) ([]HistoryEntry, error) {

	raw, err := c.call(ctx, true, methodGetHistory, scriptHash.String())
	if err != nil {
		return nil, err
	}

	var res []historyResult
	if err := decodeResult(methodGetHistory, raw, &res); err != nil {
		return nil, err
	}

	history := make([]HistoryEntry, 0, len(res))
	for _, r := range res {
		hash, err := parseTxHash(methodGetHistory, r.TxHash)
		if err != nil {
			return nil, err
		}

		history = append(history, HistoryEntry{
			TxHash: hash,
			Height: r.Height,
			Fee:    btcutil.Amount(r.Fee),
		})
	}

	return history, nil
}

// GetTransaction returns the raw transaction with the given hash, hex
// encoded.
func (c *Client) GetTransaction(ctx context.Context,
	txHash chainhash.Hash) (string, error) {

	raw, err := c.call(ctx, true, methodGetTx, txHash.String())
	if err != nil {
		return "", err
	}

	var txHex string
	if err := decodeResult(methodGetTx, raw, &txHex); err != nil {
		return "", err
	}

	return txHex, nil
}

// FetchTransaction returns the decoded transaction with the given hash. The
// hash of the returned transaction is checked against the requested one.
func (c *Client) FetchTransaction(ctx context.Context,
	txHash chainhash.Hash) (*wire.MsgTx, error) {

	txHex, err := c.GetTransaction(ctx, txHash)
	if err != nil {
		return nil, err
	}

	txBytes, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResponse,
			methodGetTx, err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResponse,
			methodGetTx, err)
	}

	if tx.TxHash() != txHash {
		return nil, fmt.Errorf("%w: %s: requested %v, got %v",
			ErrInvalidResponse, methodGetTx, txHash, tx.TxHash())
	}

	return tx, nil
}

// Broadcast relays a hex encoded transaction and returns its hash. A
// rejection by the server is returned as a *BroadcastRejectedError carrying
// the server's reason. The request is never retried, since the first attempt
// may have reached the server.
func (c *Client) Broadcast(ctx context.Context,
	rawTxHex string) (chainhash.Hash, error) {

	raw, err := c.call(ctx, false, methodBroadcast, rawTxHex)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			rejectErr := newBroadcastRejectedError(rpcErr)
			log.Warnf("Broadcast rejected by %v: %v",
				c.cfg.Endpoint, rejectErr)

			return chainhash.Hash{}, rejectErr
		}

		return chainhash.Hash{}, err
	}

	var txid string
	if err := decodeResult(methodBroadcast, raw, &txid); err != nil {
		return chainhash.Hash{}, err
	}

	// Old servers report rejections as a successful result holding the
	// reason instead of the txid.
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil || len(txid) != 2*chainhash.HashSize {
		return chainhash.Hash{}, &BroadcastRejectedError{
			Reason: txid,
			Kind:   classifyReject(txid),
		}
	}

	log.Debugf("Broadcast tx %v to %v", hash, c.cfg.Endpoint)

	return *hash, nil
}

// BroadcastTx serializes and relays the transaction.
func (c *Client) BroadcastTx(ctx context.Context,
	tx *wire.MsgTx) (chainhash.Hash, error) {

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return chainhash.Hash{}, fmt.Errorf("serialize tx: %w", err)
	}

	return c.Broadcast(ctx, hex.EncodeToString(buf.Bytes()))
}

// EstimateFee returns the fee rate the server estimates is needed for a
// transaction to confirm within the target number of blocks.
func (c *Client) EstimateFee(ctx context.Context,
	targetBlocks uint32) (btcunit.SatPerKVByte, error) {

	raw, err := c.call(ctx, true, methodEstimateFee, targetBlocks)
	if err != nil {
		return btcunit.SatPerKVByte{}, err
	}

	// The estimate is a JSON number in BTC/kvB, parsed as a decimal
	// so it is never rounded through a float.
	btcPerKVB, err := decimal.NewFromString(
		string(bytes.TrimSpace(raw)),
	)
	if err != nil {
		return btcunit.SatPerKVByte{}, fmt.Errorf("%w: %s: %v",
			ErrInvalidResponse, methodEstimateFee, err)
	}

	if btcPerKVB.IsNegative() {
		return btcunit.SatPerKVByte{}, fmt.Errorf("%w: target %d blocks",
			ErrFeeEstimateUnavailable, targetBlocks)
	}

	return btcunit.ParseBTCPerKVByte(btcPerKVB.String())
}

// TransactionFee returns the fee paid by an already broadcast transaction,
// computed from the values of the outputs it spends.
func (c *Client) TransactionFee(ctx context.Context,
	txHash chainhash.Hash) (*txutil.FeeInfo, error) {

	tx, err := c.FetchTransaction(ctx, txHash)
	if err != nil {
		return nil, err
	}

	if blockchain.IsCoinBaseTx(tx) {
		return nil, fmt.Errorf("%w: %v", ErrCoinbaseTx, txHash)
	}

	var hashes []chainhash.Hash
	seen := make(map[chainhash.Hash]struct{}, len(tx.TxIn))
	for _, txIn := range tx.TxIn {
		hash := txIn.PreviousOutPoint.Hash
		if _, ok := seen[hash]; ok {
			continue
		}

		seen[hash] = struct{}{}
		hashes = append(hashes, hash)
	}

	var (
		mtx     sync.Mutex
		prevTxs = make(map[chainhash.Hash]*wire.MsgTx, len(hashes))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPrevTxFetches)
	for _, hash := range hashes {
		g.Go(func() error {
			prevTx, err := c.FetchTransaction(gctx, hash)
			if err != nil {
				return fmt.Errorf("fetch input tx %v: %w", hash,
					err)
			}

			mtx.Lock()
			prevTxs[hash] = prevTx
			mtx.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, txIn := range tx.TxIn {
		op := txIn.PreviousOutPoint
		prevTx := prevTxs[op.Hash]
		if int(op.Index) >= len(prevTx.TxOut) {
			return nil, fmt.Errorf("%w: input %v out of range",
				ErrInvalidResponse, op)
		}

		fetcher.AddPrevOut(op, prevTx.TxOut[op.Index])
	}

	return txutil.CalcFee(tx, fetcher)
}
