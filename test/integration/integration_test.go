//go:build integration

// Package integration drives a reactor against a real /dev/cdc-wdm
// character device. These tests are skipped unless -device names a node
// that actually exists, since CI and most developer machines have no
// modem attached.
package integration

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-qmux/qmux"
	"github.com/behrlich/go-qmux/service/control"
	"github.com/behrlich/go-qmux/service/uim"
)

var devicePath = flag.String("device", "/dev/cdc-wdm0", "QMI character device to run integration tests against")

func requireDevice(t *testing.T) string {
	t.Helper()
	if _, err := os.Stat(*devicePath); os.IsNotExist(err) {
		t.Skipf("no QMI device at %s, skipping", *devicePath)
	}
	return *devicePath
}

func TestIntegrationControlClientIDBootstrap(t *testing.T) {
	path := requireDevice(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reactor := qmux.New("integration-control", path, &qmux.Options{Context: ctx})
	defer reactor.Shutdown()

	result, err := reactor.Call(ctx, 0, control.GetClientID(uim.ServiceID), qmux.CallOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)

	clientID, ok := result.(control.ClientIDResult)
	require.True(t, ok)
	require.Equal(t, uint8(uim.ServiceID), clientID.ServiceID)
	require.NotZero(t, clientID.ClientID)

	t.Logf("bootstrapped uim client id %d against %s", clientID.ClientID, path)
}

func TestIntegrationUIMReadICCID(t *testing.T) {
	path := requireDevice(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reactor := qmux.New("integration-uim", path, &qmux.Options{Context: ctx})
	defer reactor.Shutdown()

	clientResult, err := reactor.Call(ctx, 0, control.GetClientID(uim.ServiceID), qmux.CallOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	clientID := clientResult.(control.ClientIDResult).ClientID

	req := uim.ReadTransparentRequest(uim.SessionCardSlot1, 0x2FE2, []uint16{0x3F00, 0x7FFF})
	value, err := reactor.Call(ctx, clientID, req, qmux.CallOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)

	resp, ok := value.(uim.ReadTransparentResponse)
	require.True(t, ok)
	require.NotEmpty(t, resp.ReadResult)

	iccid := uim.ICCID(resp.ReadResult)
	t.Logf("read ICCID %s from %s", iccid, path)
}
