// Command devstack runs the stub wallet backend and the fake-bank settlement
// service locally, for manual testing of the CLI and the client.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"walletapp/internal/logger"
	"walletapp/internal/stub"

	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("devstack", flag.ContinueOnError)
	walletAddr := fs.String("wallet-addr", ":8080", "Wallet backend listen address")
	bankAddr := fs.String("bank-addr", ":3000", "Fake bank listen address")
	logLevel := fs.String("log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logger.New(*logLevel)
	defer log.Sync()

	wallet := stub.NewWalletServer(log.Named("wallet"))
	bank := stub.NewBankServer(log.Named("bank"))

	errCh := make(chan error, 2)
	go func() {
		log.Info("wallet backend listening", zap.String("addr", *walletAddr))
		errCh <- http.ListenAndServe(*walletAddr, wallet)
	}()
	go func() {
		log.Info("fake bank listening", zap.String("addr", *bankAddr))
		errCh <- http.ListenAndServe(*bankAddr, bank)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
		return nil
	}
}
