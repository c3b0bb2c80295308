package wallet

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
	"sort"
	"strings"
)

// Network short codes.
const (
	NetBtc        = "btc"
	NetBtcTest    = "tbtc"
	NetBtcRegtest = "rbtc"
	NetBtcSignet  = "sbtc"
)

// Network is a segwit capable chain: the params its addresses are
// encoded with and the sighash type used when signing inputs on it.
type Network struct {
	Name            string
	Params          *chaincfg.Params
	DefaultHashType txscript.SigHashType
}

var (
	BtcNetwork        = &Network{NetBtc, &chaincfg.MainNetParams, txscript.SigHashAll}
	BtcTestNetwork    = &Network{NetBtcTest, &chaincfg.TestNet3Params, txscript.SigHashAll}
	BtcRegtestNetwork = &Network{NetBtcRegtest, &chaincfg.RegressionNetParams, txscript.SigHashAll}
	BtcSignetNetwork  = &Network{NetBtcSignet, &chaincfg.SigNetParams, txscript.SigHashAll}

	networks = map[string]*Network{
		NetBtc:        BtcNetwork,
		NetBtcTest:    BtcTestNetwork,
		NetBtcRegtest: BtcRegtestNetwork,
		NetBtcSignet:  BtcSignetNetwork,
	}
)

// NetworkNames returns the known short codes, sorted.
func NetworkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckNetwork validates a network short code.
func CheckNetwork(network string) (string, error) {
	if _, ok := networks[network]; !ok {
		return "", errors.New("Network is invalid")
	}
	return network, nil
}

// GetNetworkParams looks up a network by short code.
func GetNetworkParams(network string) (*Network, error) {
	n, ok := networks[network]
	if !ok {
		return nil, errors.Errorf("Invalid network %q, expected one of %s",
			network, strings.Join(NetworkNames(), ", "))
	}
	return n, nil
}

// NetworkForAddress finds the network whose segwit addresses use the
// human readable part of addr. Signet and testnet share "tb", testnet
// is returned for both.
func NetworkForAddress(addr string) (*Network, error) {
	sep := strings.LastIndexByte(addr, '1')
	if sep < 1 {
		return nil, errors.Errorf("Not a segwit address: %s", addr)
	}

	hrp := strings.ToLower(addr[:sep])
	for _, name := range []string{NetBtc, NetBtcTest, NetBtcRegtest} {
		if networks[name].Params.Bech32HRPSegwit == hrp {
			return networks[name], nil
		}
	}
	return nil, errors.Errorf("Unknown address prefix %q", hrp)
}
