package entities

import "fmt"

// Network identifies which Stacks chain the gateway settles on.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Chain ids as they appear on the wire.
const (
	chainIDMainnet uint64 = 1
	chainIDTestnet uint64 = 2147483648
)

// ParseNetwork parses a network name.
func ParseNetwork(s string) (Network, error) {
	switch Network(s) {
	case NetworkMainnet:
		return NetworkMainnet, nil
	case NetworkTestnet:
		return NetworkTestnet, nil
	}
	return "", fmt.Errorf("unknown network %q", s)
}

// Valid reports whether the network is a known value.
func (n Network) Valid() bool {
	return n == NetworkMainnet || n == NetworkTestnet
}

// ChainID returns the numeric chain id.
func (n Network) ChainID() uint64 {
	if n == NetworkMainnet {
		return chainIDMainnet
	}
	return chainIDTestnet
}

// CAIP2 returns the standardized chain identifier used in payment
// requirements ("stacks:1" for mainnet, "stacks:2147483648" for testnet).
func (n Network) CAIP2() string {
	return fmt.Sprintf("stacks:%d", n.ChainID())
}

// NetworkFromCAIP2 resolves a CAIP-2 identifier back to a network.
func NetworkFromCAIP2(s string) (Network, error) {
	switch s {
	case NetworkMainnet.CAIP2():
		return NetworkMainnet, nil
	case NetworkTestnet.CAIP2():
		return NetworkTestnet, nil
	}
	return "", fmt.Errorf("unknown network identifier %q", s)
}
