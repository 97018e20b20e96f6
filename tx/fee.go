package tx

// Builder defaults.
const (
	// DefaultDust is the smallest spendable output amount in satoshis.
	DefaultDust = uint64(135)

	// DefaultFeePerKb is the default fee rate in satoshis per 1000 bytes.
	DefaultFeePerKb = uint64(600)

	// MaxInputs bounds the number of inputs a single build will consume.
	MaxInputs = 100000

	// DefaultSequence is the sequence number given to staged inputs.
	DefaultSequence = uint32(0xffffffff)
)

// Worst-case sizes used when estimating the size of an unsigned transaction.
const (
	// SigSize is a push of a maximal DER signature plus sighash byte.
	SigSize = 1 + 1 + 1 + 1 + 32 + 1 + 1 + 32 + 1 + 1

	// PubKeySize is a push of a compressed public key.
	PubKeySize = 1 + 1 + 33
)

// EstimateFee returns ceil(size * feePerKb / 1000).
func EstimateFee(size int, feePerKb uint64) uint64 {
	if size <= 0 {
		return 0
	}
	return (uint64(size)*feePerKb + 999) / 1000
}
