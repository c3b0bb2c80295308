package main

import (
	"fmt"
	"github.com/btccom/btcdescriptor/descriptor"
	"github.com/btccom/btcdescriptor/wallet"
	"github.com/btcsuite/btclog"
	"github.com/jessevdk/go-flags"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	log btclog.Logger

	// stdout receives command output.
	stdout io.Writer = os.Stdout
)

// setupLogging creates the stderr backend and hands subsystem loggers
// to the library packages.
func setupLogging(level btclog.Level) {
	backend := btclog.NewBackend(os.Stderr)

	log = backend.Logger("MAIN")
	descLog := backend.Logger("DESC")
	walletLog := backend.Logger("WLLT")
	for _, logger := range []btclog.Logger{log, descLog, walletLog} {
		logger.SetLevel(level)
	}

	descriptor.UseLogger(descLog)
	wallet.UseLogger(walletLog)
}

func realMain() error {
	log = btclog.Disabled

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	parser := flags.NewNamedParser(appName, flags.Options(flags.HelpFlag|flags.PassDoubleDash))
	if _, err := parser.AddGroup("Global Options", "", cfg); err != nil {
		return err
	}
	if _, err := parser.AddCommand("info",
		"Show the scripts, address and policy of a descriptor",
		"Show the scripts, address and policy of a descriptor.  "+
			"Descriptors with extended keys are shown at index 0.", &infoCfg); err != nil {
		return err
	}
	if _, err := parser.AddCommand("derive",
		"Derive addresses from a descriptor with extended keys",
		"", &deriveCfg); err != nil {
		return err
	}
	if _, err := parser.AddCommand("find",
		"Find the derivation index of an address",
		"Search the indexes of a descriptor for an address.  The "+
			"network is taken from the address.", &findCfg); err != nil {
		return err
	}

	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}

		return err
	}

	return nil
}

func main() {
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
