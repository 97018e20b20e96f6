package wallet

import (
	"fmt"

	"github.com/bitfsorg/libsfp-go/tx"
	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	// BIP44 path constants.
	PurposeBIP44  = 44
	CoinTypeBSV   = 0
	WalletAccount = 0

	// Chain indices.
	ExternalChain = 0 // Receive addresses
	InternalChain = 1 // Change addresses

	// MaxIndex is the largest non-hardened child index.
	MaxIndex = 1<<31 - 1

	// Hardened is the BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet derives the wallet's signing keys from a BIP39 seed.
type Wallet struct {
	account *bip32.ExtendedKey
	network *NetworkConfig
}

// KeyPair is a derived key with its address on the wallet's network.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Address    string         `json:"address"`
	Path       string         `json:"path,omitempty"`
}

// TxKeyPair returns the key in the form the transaction builder signs with.
func (k *KeyPair) TxKeyPair() tx.KeyPair {
	return tx.KeyPair{PrivateKey: k.PrivateKey, PublicKey: k.PublicKey, Address: k.Address}
}

// NewWallet derives the account key m/44'/0'/0' from seed. A nil network
// means mainnet.
func NewWallet(seed []byte, network *NetworkConfig) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if network == nil {
		network = &MainNet
	}

	params := &chaincfg.TestNet
	if network.Mainnet() {
		params = &chaincfg.MainNet
	}
	master, err := bip32.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	key := master
	for _, idx := range []uint32{PurposeBIP44 + Hardened, CoinTypeBSV + Hardened, WalletAccount + Hardened} {
		if key, err = key.Child(idx); err != nil {
			return nil, fmt.Errorf("%w: account derivation: %w", ErrDerivationFailed, err)
		}
	}
	return &Wallet{account: key, network: network}, nil
}

// Network returns the wallet's network configuration.
func (w *Wallet) Network() *NetworkConfig { return w.network }

// DeriveKey derives the receive key at m/44'/0'/0'/0/index.
func (w *Wallet) DeriveKey(index uint32) (*KeyPair, error) {
	return w.derive(ExternalChain, index)
}

// DeriveChangeKey derives the change key at m/44'/0'/0'/1/index.
func (w *Wallet) DeriveChangeKey(index uint32) (*KeyPair, error) {
	return w.derive(InternalChain, index)
}

func (w *Wallet) derive(chain, index uint32) (*KeyPair, error) {
	if index > MaxIndex {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	chainKey, err := w.account.Child(chain)
	if err != nil {
		return nil, fmt.Errorf("%w: chain derivation: %w", ErrDerivationFailed, err)
	}
	child, err := chainKey.Child(index)
	if err != nil {
		return nil, fmt.Errorf("%w: index derivation: %w", ErrDerivationFailed, err)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}
	kp, err := newKeyPair(priv, w.network)
	if err != nil {
		return nil, err
	}
	kp.Path = fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", PurposeBIP44, CoinTypeBSV, WalletAccount, chain, index)
	return kp, nil
}

func newKeyPair(priv *ec.PrivateKey, network *NetworkConfig) (*KeyPair, error) {
	pub := priv.PubKey()
	addr, err := script.NewAddressFromPublicKey(pub, network.Mainnet())
	if err != nil {
		return nil, fmt.Errorf("%w: address: %w", ErrDerivationFailed, err)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub, Address: addr.AddressString}, nil
}

// KeyFromWIF decodes a WIF private key and derives its address on network.
// A nil network means mainnet.
func KeyFromWIF(wif string, network *NetworkConfig) (*KeyPair, error) {
	if network == nil {
		network = &MainNet
	}
	priv, err := ec.PrivateKeyFromWif(wif)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWIF, err)
	}
	return newKeyPair(priv, network)
}

// ScalarFromWIF returns the raw 32-byte private scalar encoded in wif.
func ScalarFromWIF(wif string) ([]byte, error) {
	priv, err := ec.PrivateKeyFromWif(wif)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWIF, err)
	}
	return priv.Serialize(), nil
}
