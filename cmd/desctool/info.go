package main

import (
	"encoding/hex"
	"fmt"
	"github.com/btccom/btcdescriptor/descriptor"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btcsuite/btcd/chaincfg"
	"io"
)

// infoCmd defines the configuration options for the info command.
type infoCmd struct {
	Args struct {
		Descriptor string `positional-arg-name:"descriptor" required:"yes"`
	} `positional-args:"yes"`
}

var (
	// infoCfg defines the configuration options for the command.
	infoCfg = infoCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *infoCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}

	desc, err := parseDescriptor(cmd.Args.Descriptor)
	if err != nil {
		return err
	}

	derived, err := deriveAt(desc, 0)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "descriptor:    %s\n", desc)
	if hasWildcard(desc) {
		fmt.Fprintf(stdout, "derived (0):   %s\n", derived)
	}
	fmt.Fprintf(stdout, "policy:        %s\n", desc.Lift())
	return writeInfo(stdout, derived, activeNetwork.Params)
}

// writeInfo prints the scripts, address and weight of desc.
func writeInfo(w io.Writer, desc descriptor.Descriptor[miniscript.PublicKey], params *chaincfg.Params) error {
	spk, err := desc.ScriptPubKey()
	if err != nil {
		return err
	}
	scriptCode, err := desc.ScriptCode()
	if err != nil {
		return err
	}
	addr, err := desc.Address(params)
	if err != nil {
		return err
	}
	weight, err := desc.MaxSatisfactionWeight()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "script pubkey: %s\n", hex.EncodeToString(spk))
	fmt.Fprintf(w, "address:       %s\n", addr.EncodeAddress())
	fmt.Fprintf(w, "script code:   %s\n", hex.EncodeToString(scriptCode))
	fmt.Fprintf(w, "max weight:    %d\n", weight)

	if wsh, ok := desc.(*descriptor.Wsh[miniscript.PublicKey]); ok {
		fmt.Fprintf(w, "wsh kind:      %s\n", wsh.Kind())
	}
	return nil
}

// Usage overrides the usage display for the command.
func (cmd *infoCmd) Usage() string {
	return "<descriptor>"
}
