// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcelectrum/txutil"
)

// compactSigLen is the length of a compact recoverable signature.
const compactSigLen = 65

// deviceSession is a device shared by a hardware signer and the signers
// derived from it.
type deviceSession struct {
	device Device

	// actionMtx serializes device actions.
	actionMtx sync.Mutex

	refMtx sync.Mutex
	refs   int
}

// acquire registers a new signer using the session.
func (d *deviceSession) acquire() {
	d.refMtx.Lock()
	d.refs++
	d.refMtx.Unlock()
}

// release unregisters a signer and closes the device once the last one is
// gone. A running action is allowed to finish first.
func (d *deviceSession) release() {
	d.refMtx.Lock()
	d.refs--
	last := d.refs == 0
	d.refMtx.Unlock()

	if !last {
		return
	}

	d.actionMtx.Lock()
	defer d.actionMtx.Unlock()

	if err := d.device.Close(); err != nil {
		log.Warnf("Unable to close device: %v", err)
	}
}

// ensureReady checks that the device accepts actions. A stale session is
// reconnected once. Locked and busy devices fail right away since only the
// user can change their state. The caller must hold actionMtx.
func (d *deviceSession) ensureReady(ctx context.Context) error {
	status, err := d.device.Status(ctx)
	if err != nil || status == DeviceDisconnected {
		log.Infof("Device session stale (status=%v, err=%v), "+
			"reconnecting", status, err)

		if err := d.device.Connect(ctx); err != nil {
			return fmt.Errorf("reconnect device: %w", err)
		}

		status, err = d.device.Status(ctx)
		if err != nil {
			return fmt.Errorf("device status: %w", err)
		}
	}

	if status != DeviceReady {
		return &DeviceNotReadyError{Status: status}
	}

	return nil
}

// HardwareSigner is a signer whose key lives on an external device. Key
// material never leaves the device.
type HardwareSigner struct {
	cfg  txutil.Config
	path DerivationPath
	sess *deviceSession

	// mtx guards the fields below.
	mtx      sync.RWMutex
	pubKey   *btcec.PublicKey
	disposed bool
}

// NewHardwareSigner creates a signer for the key at path on device. An empty
// path selects the default path of the config. The device is not contacted
// until the first action.
func NewHardwareSigner(device Device, cfg txutil.Config,
	path string) (*HardwareSigner, error) {

	cfg, err := txutil.NormalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	derivPath, err := pathOrDefault(path, cfg)
	if err != nil {
		return nil, err
	}

	sess := &deviceSession{device: device}
	sess.acquire()

	return &HardwareSigner{
		cfg:  cfg,
		path: derivPath,
		sess: sess,
	}, nil
}

// runAction runs a device action for h after checking the device is ready
// and waits for its result.
func runAction[T any](ctx context.Context, h *HardwareSigner, action string,
	start func(Device) (<-chan ActionEvent[T], error)) (T, error) {

	var zero T
	if !h.IsActive() {
		return zero, ErrDisposedSigner
	}

	h.sess.actionMtx.Lock()
	defer h.sess.actionMtx.Unlock()

	if err := h.sess.ensureReady(ctx); err != nil {
		return zero, err
	}

	log.Debugf("Starting device action %s at %v", action, h.path)

	events, err := start(h.sess.device)
	if err != nil {
		return zero, &DeviceActionError{Action: action, Err: err}
	}

	return watchAction(ctx, action, events)
}

// publicKey returns the public key at the signer's path, asking the device
// on first use.
func (h *HardwareSigner) publicKey(ctx context.Context) (*btcec.PublicKey,
	error) {

	h.mtx.RLock()
	pubKey := h.pubKey
	h.mtx.RUnlock()

	if pubKey != nil {
		return pubKey, nil
	}

	raw, err := runAction(ctx, h, "get public key",
		func(d Device) (<-chan ActionEvent[[]byte], error) {
			return d.GetPublicKey(ctx, h.path)
		},
	)
	if err != nil {
		return nil, err
	}

	pubKey, err = btcec.ParsePubKey(raw)
	if err != nil {
		return nil, &DeviceActionError{
			Action: "get public key",
			Err:    err,
		}
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.disposed {
		return nil, ErrDisposedSigner
	}
	h.pubKey = pubKey

	return pubKey, nil
}

// Kind returns KindHardware.
//
// NOTE: This is part of the Signer interface.
func (h *HardwareSigner) Kind() Kind {
	return KindHardware
}

// Config returns the wallet config of the signer.
//
// NOTE: This is part of the Signer interface.
func (h *HardwareSigner) Config() txutil.Config {
	return h.cfg
}

// IsActive returns false once the signer was disposed.
//
// NOTE: This is part of the Signer interface.
func (h *HardwareSigner) IsActive() bool {
	h.mtx.RLock()
	defer h.mtx.RUnlock()

	return !h.disposed
}

// Address returns the payment address of the device key.
//
// NOTE: This is part of the Signer interface.
func (h *HardwareSigner) Address(ctx context.Context) (string, error) {
	pubKey, err := h.publicKey(ctx)
	if err != nil {
		return "", err
	}

	addr, err := txutil.PaymentAddress(
		h.cfg.Standard, pubKey, h.cfg.ChainParams(),
	)
	if err != nil {
		return "", err
	}

	return addr.EncodeAddress(), nil
}

// SignMessage asks the device for a compact signature over msg.
//
// NOTE: This is part of the Signer interface.
func (h *HardwareSigner) SignMessage(ctx context.Context, msg []byte) ([]byte,
	error) {

	sig, err := runAction(ctx, h, "sign message",
		func(d Device) (<-chan ActionEvent[[]byte], error) {
			return d.SignMessage(ctx, h.path, msg)
		},
	)
	if err != nil {
		return nil, err
	}

	if len(sig) != compactSigLen {
		return nil, &DeviceActionError{
			Action: "sign message",
			Err: fmt.Errorf("got %d signature bytes, want %d",
				len(sig), compactSigLen),
		}
	}

	return sig, nil
}

// SignPsbt asks the device to sign the inputs of the packet that spend the
// signer's payment script. Signatures the device returns for other inputs
// or keys are ignored.
//
// NOTE: This is part of the Signer interface.
func (h *HardwareSigner) SignPsbt(ctx context.Context, packet *psbt.Packet) (
	*SignPsbtResult, error) {

	pubKey, err := h.publicKey(ctx)
	if err != nil {
		return nil, err
	}

	owned, err := findOwnedInputs(packet, h.cfg, pubKey)
	if err != nil {
		return nil, err
	}

	result := &SignPsbtResult{Packet: packet}
	if len(owned) == 0 {
		return result, nil
	}

	indices := make([]int, 0, len(owned))
	for _, own := range owned {
		indices = append(indices, own.idx)
	}

	sigs, err := runAction(ctx, h, "sign psbt",
		func(d Device) (<-chan ActionEvent[[]DeviceSignature], error) {
			return d.SignPsbt(ctx, h.path, packet, indices)
		},
	)
	if err != nil {
		return nil, err
	}

	pubBytes := pubKey.SerializeCompressed()
	bySig := make(map[int][]byte, len(sigs))
	for _, sig := range sigs {
		if !bytes.Equal(sig.PubKey, pubBytes) {
			log.Warnf("Ignoring device signature for input %d "+
				"made with a foreign key", sig.InputIndex)

			continue
		}

		bySig[sig.InputIndex] = sig.Signature
	}

	// Check every signature before the packet is touched.
	for _, idx := range indices {
		sig, ok := bySig[idx]
		if !ok {
			continue
		}

		err := checkDeviceSignature(&packet.Inputs[idx], sig)
		if err != nil {
			return nil, &DeviceActionError{
				Action: "sign psbt",
				Err:    fmt.Errorf("input %d: %w", idx, err),
			}
		}
	}

	for _, idx := range indices {
		sig, ok := bySig[idx]
		if !ok {
			log.Warnf("Device returned no signature for input %d",
				idx)

			continue
		}

		addPartialSig(&packet.Inputs[idx], pubBytes, sig)
		result.SignedInputs = append(result.SignedInputs, idx)
	}

	if len(bySig) > len(result.SignedInputs) {
		log.Warnf("Ignored %d device signatures for inputs that are "+
			"not ours", len(bySig)-len(result.SignedInputs))
	}

	return result, nil
}

// checkDeviceSignature makes sure sig is a DER signature followed by the
// sighash type of the input.
func checkDeviceSignature(in *psbt.PInput, sig []byte) error {
	if len(sig) < 2 {
		return fmt.Errorf("%w: too short", ErrInvalidDeviceSignature)
	}

	hashType := txscript.SigHashType(sig[len(sig)-1])
	if want := inputHashType(in); hashType != want {
		return fmt.Errorf("%w: sighash type %v, want %v",
			ErrInvalidDeviceSignature, hashType, want)
	}

	if _, err := ecdsa.ParseDERSignature(sig[:len(sig)-1]); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDeviceSignature, err)
	}

	return nil
}

// Derive returns a signer for relPath below this signer's path on the same
// device.
//
// NOTE: This is part of the HDSigner interface.
func (h *HardwareSigner) Derive(_ context.Context, relPath string) (HDSigner,
	error) {

	rel, err := ParseRelativePath(relPath)
	if err != nil {
		return nil, err
	}

	h.mtx.RLock()
	defer h.mtx.RUnlock()

	if h.disposed {
		return nil, ErrDisposedSigner
	}

	h.sess.acquire()

	return &HardwareSigner{
		cfg:  h.cfg,
		path: h.path.Append(rel),
		sess: h.sess,
	}, nil
}

// ExtendedPublicKey asks the device for the extended public key at the
// signer's path.
//
// NOTE: This is part of the HDSigner interface.
func (h *HardwareSigner) ExtendedPublicKey(ctx context.Context) (string,
	error) {

	return runAction(ctx, h, "get extended public key",
		func(d Device) (<-chan ActionEvent[string], error) {
			return d.GetExtendedPublicKey(ctx, h.path)
		},
	)
}

// Path returns the absolute derivation path of the signer.
//
// NOTE: This is part of the HDSigner interface.
func (h *HardwareSigner) Path() string {
	return h.path.String()
}

// Index returns the last child index of the signer's path.
//
// NOTE: This is part of the HDSigner interface.
func (h *HardwareSigner) Index() uint32 {
	return h.path.Index()
}

// Dispose forgets the cached public key and releases the device. The device
// is closed once every signer sharing it was disposed.
//
// NOTE: This is part of the Signer interface.
func (h *HardwareSigner) Dispose() {
	h.mtx.Lock()
	if h.disposed {
		h.mtx.Unlock()
		return
	}
	h.disposed = true
	h.pubKey = nil
	h.mtx.Unlock()

	h.sess.release()

	log.Debugf("Disposed hardware signer at %v", h.path)
}
