package main

import (
	"fmt"
	"github.com/btccom/btcdescriptor/wallet"
	"github.com/pkg/errors"
)

// findCmd defines the configuration options for the find command.
type findCmd struct {
	Gap uint32 `short:"g" long:"gap" default:"1000" description:"Number of indexes to search"`

	Args struct {
		Descriptor string `positional-arg-name:"descriptor" required:"yes"`
		Address    string `positional-arg-name:"address" required:"yes"`
	} `positional-args:"yes"`
}

var (
	// findCfg defines the configuration options for the command.
	findCfg = findCmd{Gap: 1000}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *findCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}

	// The address decides the network, signet addresses are searched
	// with testnet params which share their encoding.
	network, err := wallet.NetworkForAddress(cmd.Args.Address)
	if err != nil {
		return err
	}

	desc, err := parseDescriptor(cmd.Args.Descriptor)
	if err != nil {
		return err
	}

	gap := cmd.Gap
	if !hasWildcard(desc) {
		gap = 1
	}

	for index := uint32(0); index < gap; index++ {
		derived, err := deriveAt(desc, index)
		if err != nil {
			return err
		}
		addr, err := derived.Address(network.Params)
		if err != nil {
			return err
		}

		if addr.EncodeAddress() == cmd.Args.Address {
			log.Infof("Found %s at index %d on %s", cmd.Args.Address, index, network.Name)
			fmt.Fprintf(stdout, "%d %s\n", index, derived)
			return nil
		}
	}

	return errors.Errorf("address %s not found in the first %d indexes", cmd.Args.Address, gap)
}

// Usage overrides the usage display for the command.
func (cmd *findCmd) Usage() string {
	return "[--gap n] <descriptor> <address>"
}
