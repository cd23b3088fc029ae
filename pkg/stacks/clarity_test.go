package stacks

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeHexT(t *testing.T, s string) *ClarityValue {
	t.Helper()
	cv, err := DecodeClarityHex(s)
	require.NoError(t, err)
	return cv
}

func TestDecodeClarity_Ints(t *testing.T) {
	cv := decodeHexT(t, "010000000000000000000000000000007b")
	assert.Equal(t, "uint", cv.Type)
	assert.Equal(t, "123", cv.Value)
	assert.Equal(t, "u123", cv.Repr)

	// 2^64, forces the value past uint64 range
	cv = decodeHexT(t, "0100000000000000010000000000000000")
	assert.Equal(t, "18446744073709551616", cv.Value)

	cv = decodeHexT(t, "00ffffffffffffffffffffffffffffffff")
	assert.Equal(t, "int", cv.Type)
	assert.Equal(t, "-1", cv.Value)
	assert.Equal(t, "-1", cv.Repr)

	cv = decodeHexT(t, "000000000000000000000000000000002a")
	assert.Equal(t, "42", cv.Value)
}

func TestDecodeClarity_BoolAndBuffer(t *testing.T) {
	cv := decodeHexT(t, "03")
	assert.Equal(t, "bool", cv.Type)
	assert.Equal(t, true, cv.Value)

	cv = decodeHexT(t, "04")
	assert.Equal(t, false, cv.Value)
	assert.Equal(t, "false", cv.Repr)

	cv = decodeHexT(t, "0200000004deadbeef")
	assert.Equal(t, "buffer", cv.Type)
	assert.Equal(t, "0xdeadbeef", cv.Value)
}

func TestDecodeClarity_Principals(t *testing.T) {
	zeros := strings.Repeat("00", 20)

	cv := decodeHexT(t, "0516"+zeros)
	assert.Equal(t, "principal", cv.Type)
	assert.Equal(t, "SP000000000000000000002Q6VF78", cv.Value)
	assert.Equal(t, "'SP000000000000000000002Q6VF78", cv.Repr)

	// contract principal carries a length-prefixed name
	name := hex.EncodeToString([]byte{3}) + hex.EncodeToString([]byte("pox"))
	cv = decodeHexT(t, "0616"+zeros+name)
	assert.Equal(t, "SP000000000000000000002Q6VF78.pox", cv.Value)
}

func TestDecodeClarity_ResponsesAndOptionals(t *testing.T) {
	u1 := "01" + strings.Repeat("00", 15) + "01"
	cv := decodeHexT(t, "07"+u1)
	assert.Equal(t, "responseOk", cv.Type)
	assert.Equal(t, "(ok u1)", cv.Repr)

	cv = decodeHexT(t, "08"+u1)
	assert.Equal(t, "responseErr", cv.Type)
	assert.Equal(t, "(err u1)", cv.Repr)

	cv = decodeHexT(t, "09")
	assert.Equal(t, "none", cv.Type)
	assert.Nil(t, cv.Value)

	cv = decodeHexT(t, "0a03")
	assert.Equal(t, "some", cv.Type)
	assert.Equal(t, "(some true)", cv.Repr)
}

func TestDecodeClarity_Containers(t *testing.T) {
	u1 := "01" + strings.Repeat("00", 15) + "01"
	u2 := "01" + strings.Repeat("00", 15) + "02"

	cv := decodeHexT(t, "0b00000002"+u1+u2)
	assert.Equal(t, "list", cv.Type)
	assert.Equal(t, "(list u1 u2)", cv.Repr)
	items, ok := cv.Value.([]*ClarityValue)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "2", items[1].Value)

	// (tuple (a true))
	cv = decodeHexT(t, "0c000000010161"+"03")
	assert.Equal(t, "tuple", cv.Type)
	entries, ok := cv.Value.(map[string]*ClarityValue)
	require.True(t, ok)
	assert.Equal(t, true, entries["a"].Value)
	assert.Equal(t, "(tuple (a true))", cv.Repr)
}

func TestDecodeClarity_Strings(t *testing.T) {
	cv := decodeHexT(t, "0d0000000568656c6c6f")
	assert.Equal(t, "string-ascii", cv.Type)
	assert.Equal(t, "hello", cv.Value)
	assert.Equal(t, `"hello"`, cv.Repr)

	cv = decodeHexT(t, "0e000000026869")
	assert.Equal(t, "string-utf8", cv.Type)
	assert.Equal(t, `u"hi"`, cv.Repr)
}

func TestDecodeClarity_Errors(t *testing.T) {
	_, err := DecodeClarityHex("zz")
	assert.ErrorContains(t, err, "invalid hex")

	_, err = DecodeClarityHex("0400")
	assert.ErrorContains(t, err, "trailing")

	_, err = DecodeClarityHex("01")
	assert.ErrorContains(t, err, "unexpected end")

	_, err = DecodeClarityHex("0f")
	assert.ErrorContains(t, err, "unknown clarity type")

	// declared list length larger than the remaining input
	_, err = DecodeClarityHex("0bffffffff")
	assert.Error(t, err)
}

func TestDecodeClarityHex_AcceptsPrefix(t *testing.T) {
	cv := decodeHexT(t, " 0x03 ")
	assert.Equal(t, true, cv.Value)
}

func TestSerializeRoundtrip(t *testing.T) {
	cv, err := DecodeClarityValue(serializeUIntCV(5))
	require.NoError(t, err)
	assert.Equal(t, "u5", cv.Repr)

	cv, err = DecodeClarityValue(serializeStringASCIICV("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", cv.Value)

	raw := serializeTupleCV(map[string][]byte{
		"version": serializeStringASCIICV("1"),
		"name":    serializeStringASCIICV("app"),
	})
	cv, err = DecodeClarityValue(raw)
	require.NoError(t, err)
	entries, ok := cv.Value.(map[string]*ClarityValue)
	require.True(t, ok)
	assert.Equal(t, "app", entries["name"].Value)

	// canonical ordering: "name" must serialize before "version"
	assert.Less(t, strings.Index(string(raw), "name"), strings.Index(string(raw), "version"))
}
