package main

import (
	"fmt"
	"github.com/pkg/errors"
)

// deriveCmd defines the configuration options for the derive command.
type deriveCmd struct {
	Index uint32 `short:"i" long:"index" description:"First derivation index"`
	Count uint32 `short:"c" long:"count" default:"1" description:"Number of addresses to derive"`

	Args struct {
		Descriptor string `positional-arg-name:"descriptor" required:"yes"`
	} `positional-args:"yes"`
}

var (
	// deriveCfg defines the configuration options for the command.
	deriveCfg = deriveCmd{Count: 1}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *deriveCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}

	desc, err := parseDescriptor(cmd.Args.Descriptor)
	if err != nil {
		return err
	}
	if !hasWildcard(desc) && cmd.Count > 1 {
		return errors.New("descriptor has no wildcard keys, only one address can be derived")
	}

	for i := uint32(0); i < cmd.Count; i++ {
		index := cmd.Index + i
		if index < cmd.Index {
			return errors.New("derivation index overflow")
		}

		derived, err := deriveAt(desc, index)
		if err != nil {
			return err
		}
		addr, err := derived.Address(activeNetwork.Params)
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "%d %s %s\n", index, addr.EncodeAddress(), derived)
	}

	return nil
}

// Usage overrides the usage display for the command.
func (cmd *deriveCmd) Usage() string {
	return "[--index n] [--count n] <descriptor>"
}
