// Command qmuxctl is a minimal terminal driver for the qmux library: it
// opens a reactor against a cdc-wdm device, bootstraps a UIM client id
// through the Control service, reads the ICCID off the SIM, and prints it.
// It is not a configuration surface — no config file, no subcommands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/behrlich/go-qmux/internal/logging"
	"github.com/behrlich/go-qmux/qmux"
	"github.com/behrlich/go-qmux/service/control"
	"github.com/behrlich/go-qmux/service/uim"
)

func main() {
	var (
		devicePath = flag.String("device", "/dev/cdc-wdm0", "Path to the QMI character device")
		verbose    = flag.Bool("v", false, "Verbose output")
		timeout    = flag.Duration("timeout", 5*time.Second, "Per-call timeout")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reactor := qmux.New("qmuxctl", *devicePath, &qmux.Options{
		Context: ctx,
		Logger:  logger,
	})
	defer reactor.Shutdown()

	logger.Info("opened reactor", "device", *devicePath)

	clientResult, err := reactor.Call(ctx, 0, control.GetClientID(uim.ServiceID), qmux.CallOptions{Timeout: *timeout})
	if err != nil {
		logger.Error("failed to acquire uim client id", "error", err)
		os.Exit(1)
	}
	clientID := clientResult.(control.ClientIDResult).ClientID
	logger.Info("acquired uim client id", "client_id", clientID)

	req := uim.ReadTransparentRequest(uim.SessionCardSlot1, 0x2FE2, []uint16{0x3F00, 0x7FFF})
	value, err := reactor.Call(ctx, clientID, req, qmux.CallOptions{Timeout: *timeout})
	if err != nil {
		logger.Error("failed to read ICCID", "error", err)
		os.Exit(1)
	}

	resp := value.(uim.ReadTransparentResponse)
	iccid := uim.ICCID(resp.ReadResult)
	fmt.Printf("ICCID: %s\n", iccid)
}
