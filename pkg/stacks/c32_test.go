package stacks

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The boot contract addresses are the canonical fixed points of c32check:
// version byte + twenty zero bytes.
const (
	bootMainnet = "SP000000000000000000002Q6VF78"
	bootTestnet = "ST000000000000000000002AMW42H"
)

func TestEncodeAddress_BootAddresses(t *testing.T) {
	zero := make([]byte, 20)

	mainnet, err := EncodeAddress(VersionMainnetP2PKH, zero)
	require.NoError(t, err)
	assert.Equal(t, bootMainnet, mainnet)

	testnet, err := EncodeAddress(VersionTestnetP2PKH, zero)
	require.NoError(t, err)
	assert.Equal(t, bootTestnet, testnet)
}

func TestEncodeAddress_Errors(t *testing.T) {
	_, err := EncodeAddress(VersionMainnetP2PKH, []byte{1, 2, 3})
	assert.ErrorContains(t, err, "20 bytes")

	_, err = EncodeAddress(200, make([]byte, 20))
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestDecodeAddress(t *testing.T) {
	info, err := DecodeAddress(bootMainnet)
	require.NoError(t, err)
	assert.Equal(t, bootMainnet, info.Address)
	assert.Equal(t, "mainnet", info.Network)
	assert.Equal(t, "standard", info.Type)
	assert.Equal(t, VersionMainnetP2PKH, info.Version)
	assert.Equal(t, strings.Repeat("0", 40), info.Hash160)

	info, err = DecodeAddress(bootTestnet)
	require.NoError(t, err)
	assert.Equal(t, "testnet", info.Network)
	assert.Equal(t, VersionTestnetP2PKH, info.Version)
}

func TestDecodeAddress_Normalizes(t *testing.T) {
	// lowercase plus the folded homoglyphs must decode to the same address
	info, err := DecodeAddress(strings.ToLower(bootMainnet))
	require.NoError(t, err)
	assert.Equal(t, bootMainnet, info.Address)

	folded := strings.ReplaceAll(bootMainnet, "0", "O")
	info, err = DecodeAddress(folded)
	require.NoError(t, err)
	assert.Equal(t, bootMainnet, info.Address)

	info, err = DecodeAddress("  " + bootMainnet + " ")
	require.NoError(t, err)
	assert.Equal(t, bootMainnet, info.Address)
}

func TestDecodeAddress_BadChecksum(t *testing.T) {
	tampered := bootMainnet[:len(bootMainnet)-1] + "9"
	_, err := DecodeAddress(tampered)
	assert.ErrorIs(t, err, ErrBadChecksum)
}

func TestDecodeAddress_Invalid(t *testing.T) {
	for _, addr := range []string{
		"",
		"SP",
		"XP000000000000000000002Q6VF78",
		"SP00",
		"S!000000000000000000002Q6VF78",
	} {
		_, err := DecodeAddress(addr)
		assert.Error(t, err, "address %q", addr)
	}
}

func TestValidateAddress(t *testing.T) {
	assert.True(t, ValidateAddress(bootMainnet))
	assert.True(t, ValidateAddress(bootTestnet))
	assert.False(t, ValidateAddress("SP000000000000000000002Q6VF79"))
	assert.False(t, ValidateAddress("not an address"))
}

func TestAddressRoundtrip(t *testing.T) {
	hash := make([]byte, 20)
	for i := range hash {
		hash[i] = byte(i*7 + 3)
	}

	for _, version := range []byte{
		VersionMainnetP2PKH, VersionMainnetP2SH,
		VersionTestnetP2PKH, VersionTestnetP2SH,
	} {
		addr, err := EncodeAddress(version, hash)
		require.NoError(t, err)

		info, err := DecodeAddress(addr)
		require.NoError(t, err)
		assert.Equal(t, version, info.Version)
		assert.Equal(t, hex.EncodeToString(hash), info.Hash160)
	}
}

func TestHash160(t *testing.T) {
	// ripemd160(sha256("")) is a fixed point shared with bitcoin tooling
	assert.Equal(t, "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb",
		hex.EncodeToString(Hash160(nil)))
	assert.Len(t, Hash160([]byte("hello")), 20)
	assert.NotEqual(t, Hash160([]byte("hello")), Hash160([]byte("world")))
}

func TestAddressFromPublicKey(t *testing.T) {
	compressed := make([]byte, 33)
	compressed[0] = 0x02
	compressed[32] = 0x01

	addr, err := AddressFromPublicKey(compressed, VersionMainnetP2PKH)
	require.NoError(t, err)

	want, err := EncodeAddress(VersionMainnetP2PKH, Hash160(compressed))
	require.NoError(t, err)
	assert.Equal(t, want, addr)

	_, err = AddressFromPublicKey([]byte{0x02}, VersionMainnetP2PKH)
	assert.ErrorContains(t, err, "33 or 65")
}

func TestAddressForHashMode(t *testing.T) {
	zero := make([]byte, 20)

	assert.Equal(t, bootMainnet, addressForHashMode(0x00, true, zero))
	assert.Equal(t, bootTestnet, addressForHashMode(0x02, false, zero))

	multisig := addressForHashMode(0x01, true, zero)
	assert.True(t, strings.HasPrefix(multisig, "SM"))
	info, err := DecodeAddress(multisig)
	require.NoError(t, err)
	assert.Equal(t, "multisig", info.Type)
}
