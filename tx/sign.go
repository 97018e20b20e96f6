package tx

import (
	"fmt"

	"github.com/bitfsorg/libsfp-go/bscript"
	"github.com/bitfsorg/libsfp-go/signer"
	"github.com/bsv-blockchain/go-sdk/script"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// KeyPair is a signing key together with the address it controls.
type KeyPair struct {
	PrivateKey *ec.PrivateKey
	PublicKey  *ec.PublicKey
	Address    string
}

// NewKeyPair derives the public key and address for priv.
func NewKeyPair(priv *ec.PrivateKey, mainnet bool) (KeyPair, error) {
	if priv == nil {
		return KeyPair{}, fmt.Errorf("%w: private key", ErrNilParam)
	}
	pub := priv.PubKey()
	addr, err := script.NewAddressFromPublicKey(pub, mainnet)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: address from pubkey: %w", ErrScriptBuild, err)
	}
	return KeyPair{PrivateKey: priv, PublicKey: pub, Address: addr.AddressString}, nil
}

// SignWithKeyPairs fills every registered slot whose address belongs to one
// of keyPairs and returns the number of slots filled. Slots with no matching
// key are skipped.
func (b *Builder) SignWithKeyPairs(keyPairs []KeyPair) int {
	byAddress := make(map[string]KeyPair, len(keyPairs))
	for _, kp := range keyPairs {
		if kp.Address == "" && kp.PublicKey != nil {
			addr, err := script.NewAddressFromPublicKey(kp.PublicKey, b.opts.Mainnet)
			if err != nil {
				log.Warnf("Cannot derive address for key pair: %v", err)
				continue
			}
			kp.Address = addr.AddressString
		}
		byAddress[kp.Address] = kp
	}

	filled := 0
	for nIn, in := range b.tx.Inputs {
		for _, slot := range b.sigOps.Get(in.SourceTXID, in.SourceTxOutIndex) {
			kp, ok := byAddress[slot.Address]
			if !ok {
				log.Debugf("No key pair for %s (input %d, chunk %d)", slot.Address, nIn, slot.Index)
				continue
			}
			var err error
			switch slot.Kind {
			case SlotSignature:
				err = b.SignInput(nIn, kp, slot.Index, slot.Sighash)
			case SlotPubKey:
				err = b.FillPubKey(nIn, slot.Index, kp.PublicKey)
			default:
				err = fmt.Errorf("%w: unsupported slot kind %v", ErrSigningFailed, slot.Kind)
			}
			if err != nil {
				log.Warnf("Input %d chunk %d: %v", nIn, slot.Index, err)
				continue
			}
			filled++
		}
	}
	return filled
}

// SignInput signs input nIn with kp against the locking script of the output
// it spends and writes the signature at chunk index.
func (b *Builder) SignInput(nIn int, kp KeyPair, index int, hashType uint32) error {
	if nIn < 0 || nIn >= len(b.tx.Inputs) {
		return fmt.Errorf("%w: %d", ErrInputIndex, nIn)
	}
	if kp.PrivateKey == nil {
		return fmt.Errorf("%w: private key", ErrNilParam)
	}
	if hashType == 0 {
		hashType = DefaultSighash
	}
	in := b.tx.Inputs[nIn]
	prev, ok := b.utxos[inputKey(in)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUTXO, inputKey(in))
	}

	digest, err := b.Sighash(hashType, nIn, lockingBytes(prev), prev.Satoshis)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	sig, err := signer.SignWithHashType(kp.PrivateKey, digest, byte(hashType))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	return b.FillSig(nIn, index, sig)
}

// FillSig writes sig into chunk index of input nIn's unlocking script.
func (b *Builder) FillSig(nIn int, index int, sig []byte) error {
	return b.fillChunk(nIn, index, sig)
}

// FillPubKey writes the compressed form of pub into chunk index of input
// nIn's unlocking script.
func (b *Builder) FillPubKey(nIn int, index int, pub *ec.PublicKey) error {
	if pub == nil {
		return fmt.Errorf("%w: public key", ErrNilParam)
	}
	return b.fillChunk(nIn, index, pub.Compressed())
}

func (b *Builder) fillChunk(nIn, index int, data []byte) error {
	if nIn < 0 || nIn >= len(b.tx.Inputs) {
		return fmt.Errorf("%w: %d", ErrInputIndex, nIn)
	}
	in := b.tx.Inputs[nIn]
	if in.UnlockingScript == nil {
		in.UnlockingScript = &script.Script{}
	}
	if err := bscript.SetChunk(in.UnlockingScript, index, data); err != nil {
		return fmt.Errorf("%w: input %d: %w", ErrSigningFailed, nIn, err)
	}
	return nil
}
