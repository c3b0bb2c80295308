package main

import (
	"github.com/btccom/btcdescriptor/descriptor"
	"github.com/btccom/btcdescriptor/descriptorkey"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btccom/btcdescriptor/wallet"
	"github.com/btcsuite/btclog"
	"github.com/pkg/errors"
)

var (
	activeNetwork = wallet.BtcNetwork

	// Default global config.
	cfg = &config{
		Network:    wallet.NetBtc,
		DebugLevel: "info",
	}
)

// config defines the global configuration options.
type config struct {
	Network    string `short:"n" long:"network" description:"Network addresses are encoded for (btc, tbtc, rbtc, sbtc)"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical, off}"`
}

// setupGlobalConfig validates the global options and applies them.
func setupGlobalConfig() error {
	network, err := wallet.GetNetworkParams(cfg.Network)
	if err != nil {
		return errors.Wrapf(err, "unknown network %q", cfg.Network)
	}
	activeNetwork = network

	level, ok := btclog.LevelFromString(cfg.DebugLevel)
	if !ok {
		return errors.Errorf("invalid debug level %q", cfg.DebugLevel)
	}
	setupLogging(level)

	return nil
}

// parseDescriptor parses a descriptor whose keys may be extended.
func parseDescriptor(s string) (descriptor.Descriptor[descriptorkey.Key], error) {
	desc, err := descriptor.Parse(s, descriptorkey.Parse)
	if err != nil {
		return nil, err
	}
	if err := desc.SanityCheck(); err != nil {
		log.Warnf("Descriptor %s is not sane: %v", desc, err)
	}
	return desc, nil
}

// hasWildcard reports whether any key of desc ends in a wildcard.
func hasWildcard(desc descriptor.Descriptor[descriptorkey.Key]) bool {
	return !desc.ForEachKey(func(k descriptorkey.Key) bool {
		return !k.IsWildcard()
	})
}

// deriveAt resolves every key of desc at index.
func deriveAt(desc descriptor.Descriptor[descriptorkey.Key], index uint32) (descriptor.Descriptor[miniscript.PublicKey], error) {
	derived, err := descriptor.Translate[descriptorkey.Key, miniscript.PublicKey](desc, descriptorkey.Deriver(index))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive descriptor at index %d", index)
	}
	log.Debugf("Derived %s at index %d", derived, index)
	return derived, nil
}
