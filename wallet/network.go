package wallet

import "fmt"

// NetworkConfig holds the address parameters of a BSV network.
type NetworkConfig struct {
	Name           string
	AddressVersion byte
	WIFVersion     byte
}

// Mainnet reports whether addresses use the mainnet version byte.
func (n *NetworkConfig) Mainnet() bool { return n.AddressVersion == MainNet.AddressVersion }

// Predefined networks.
var (
	MainNet = NetworkConfig{Name: "mainnet", AddressVersion: 0x00, WIFVersion: 0x80}
	TestNet = NetworkConfig{Name: "testnet", AddressVersion: 0x6f, WIFVersion: 0xef}
	RegTest = NetworkConfig{Name: "regtest", AddressVersion: 0x6f, WIFVersion: 0xef}
)

var predefined = map[string]*NetworkConfig{
	"mainnet": &MainNet,
	"testnet": &TestNet,
	"regtest": &RegTest,
}

// GetNetwork returns a predefined network by name.
func GetNetwork(name string) (*NetworkConfig, error) {
	if net, ok := predefined[name]; ok {
		return net, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
}
