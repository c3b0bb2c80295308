package miniscript

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
)

// Encode produces the witness script. All keys must be Definite.
func (ms *Miniscript[K]) Encode() ([]byte, error) {
	b := txscript.NewScriptBuilder()
	if err := encode(ms, b, false); err != nil {
		return nil, err
	}
	return b.Script()
}

// verify is set when the node's result is consumed by a `v` wrapper, in
// which case a trailing OP_EQUAL, OP_CHECKSIG or OP_CHECKMULTISIG is
// replaced by its VERIFY form. It is only passed on to the node
// producing the rightmost opcode.
func encode[K Key](node *Miniscript[K], b *txscript.ScriptBuilder, verify bool) error {
	collapse := verify && node.props.canCollapseVerify

	switch node.fragment {
	case f_0:
		b.AddOp(txscript.OP_FALSE)

	case f_1:
		b.AddOp(txscript.OP_TRUE)

	case f_pk_k:
		key, err := ToPublicKey(node.keys[0])
		if err != nil {
			return err
		}
		b.AddData(key.Serialize())

	case f_pk_h:
		key, err := ToPublicKey(node.keys[0])
		if err != nil {
			return err
		}
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_HASH160)
		b.AddData(key.Hash160())
		b.AddOp(txscript.OP_EQUALVERIFY)

	case f_older:
		b.AddInt64(int64(node.num))
		b.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)

	case f_after:
		b.AddInt64(int64(node.num))
		b.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)

	case f_sha256, f_hash256, f_ripemd160, f_hash160:
		hashOp := map[string]byte{
			f_sha256:    txscript.OP_SHA256,
			f_hash256:   txscript.OP_HASH256,
			f_ripemd160: txscript.OP_RIPEMD160,
			f_hash160:   txscript.OP_HASH160,
		}[node.fragment]

		b.AddOp(txscript.OP_SIZE)
		b.AddInt64(32)
		b.AddOp(txscript.OP_EQUALVERIFY)
		b.AddOp(hashOp)
		b.AddData(node.hash)
		if collapse {
			b.AddOp(txscript.OP_EQUALVERIFY)
		} else {
			b.AddOp(txscript.OP_EQUAL)
		}

	case f_andor:
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_NOTIF)
		if err := encode(node.args[2], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ELSE)
		if err := encode(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_and_v:
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		if err := encode(node.args[1], b, verify); err != nil {
			return err
		}

	case f_and_b, f_or_b:
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		if err := encode(node.args[1], b, false); err != nil {
			return err
		}
		if node.fragment == f_and_b {
			b.AddOp(txscript.OP_BOOLAND)
		} else {
			b.AddOp(txscript.OP_BOOLOR)
		}

	case f_or_c:
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_NOTIF)
		if err := encode(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_or_d:
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_IFDUP)
		b.AddOp(txscript.OP_NOTIF)
		if err := encode(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_or_i:
		b.AddOp(txscript.OP_IF)
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ELSE)
		if err := encode(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_thresh:
		for i, arg := range node.args {
			if err := encode(arg, b, false); err != nil {
				return err
			}
			if i > 0 {
				b.AddOp(txscript.OP_ADD)
			}
		}
		b.AddInt64(int64(node.num))
		if collapse {
			b.AddOp(txscript.OP_EQUALVERIFY)
		} else {
			b.AddOp(txscript.OP_EQUAL)
		}

	case f_multi:
		b.AddInt64(int64(node.num))
		for _, k := range node.keys {
			key, err := ToPublicKey(k)
			if err != nil {
				return err
			}
			b.AddData(key.Serialize())
		}
		b.AddInt64(int64(len(node.keys)))
		if collapse {
			b.AddOp(txscript.OP_CHECKMULTISIGVERIFY)
		} else {
			b.AddOp(txscript.OP_CHECKMULTISIG)
		}

	case f_wrap_a:
		b.AddOp(txscript.OP_TOALTSTACK)
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_FROMALTSTACK)

	case f_wrap_s:
		b.AddOp(txscript.OP_SWAP)
		if err := encode(node.args[0], b, verify); err != nil {
			return err
		}

	case f_wrap_c:
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		if collapse {
			b.AddOp(txscript.OP_CHECKSIGVERIFY)
		} else {
			b.AddOp(txscript.OP_CHECKSIG)
		}

	case f_wrap_d:
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_IF)
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_wrap_v:
		x := node.args[0]
		if err := encode(x, b, x.props.canCollapseVerify); err != nil {
			return err
		}
		if !x.props.canCollapseVerify {
			b.AddOp(txscript.OP_VERIFY)
		}

	case f_wrap_j:
		b.AddOp(txscript.OP_SIZE)
		b.AddOp(txscript.OP_0NOTEQUAL)
		b.AddOp(txscript.OP_IF)
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_wrap_n:
		if err := encode(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_0NOTEQUAL)

	default:
		return errors.Errorf("unknown identifier: %s", node.fragment)
	}

	return nil
}
