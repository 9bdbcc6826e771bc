package signer

import (
	"context"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/stretchr/testify/mock"
)

var _ Device = (*mockDevice)(nil)

// mockDevice is a mock implementation of the Device interface for use in
// tests.
type mockDevice struct {
	mock.Mock
}

func (m *mockDevice) Connect(_ context.Context) error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockDevice) Status(_ context.Context) (DeviceStatus, error) {
	args := m.Called()
	return args.Get(0).(DeviceStatus), args.Error(1)
}

func (m *mockDevice) GetPublicKey(_ context.Context,
	path DerivationPath) (<-chan ActionEvent[[]byte], error) {

	args := m.Called(path)
	ch, _ := args.Get(0).(<-chan ActionEvent[[]byte])

	return ch, args.Error(1)
}

func (m *mockDevice) GetExtendedPublicKey(_ context.Context,
	path DerivationPath) (<-chan ActionEvent[string], error) {

	args := m.Called(path)
	ch, _ := args.Get(0).(<-chan ActionEvent[string])

	return ch, args.Error(1)
}

func (m *mockDevice) SignMessage(_ context.Context, path DerivationPath,
	msg []byte) (<-chan ActionEvent[[]byte], error) {

	args := m.Called(path, msg)
	ch, _ := args.Get(0).(<-chan ActionEvent[[]byte])

	return ch, args.Error(1)
}

func (m *mockDevice) SignPsbt(_ context.Context, path DerivationPath,
	packet *psbt.Packet,
	inputs []int) (<-chan ActionEvent[[]DeviceSignature], error) {

	args := m.Called(path, packet, inputs)
	ch, _ := args.Get(0).(<-chan ActionEvent[[]DeviceSignature])

	return ch, args.Error(1)
}

func (m *mockDevice) Close() error {
	args := m.Called()
	return args.Error(0)
}

// eventStream returns a closed channel holding the given events.
func eventStream[T any](events ...ActionEvent[T]) <-chan ActionEvent[T] {
	ch := make(chan ActionEvent[T], len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)

	return ch
}
