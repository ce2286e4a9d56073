// Package ss58 validates, decodes and encodes Substrate SS58 account addresses.
package ss58

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidAddress = errors.New("invalid ss58 address")
	ErrInvalidPrefix  = errors.New("ss58 prefix out of range")
)

const (
	checksumLength = 2
	maxPrefix      = 16383
)

var checksumPreimage = []byte("SS58PRE")

// Address is a decoded account address.
type Address struct {
	Prefix    uint16
	PublicKey []byte
}

// Hex returns the 0x-prefixed public key.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a.PublicKey)
}

// IsAddress reports whether s is an SS58 address or a 0x-prefixed 32 byte public key.
func IsAddress(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Parse decodes s. Hex public keys are accepted and carry no prefix.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") {
		key, err := hex.DecodeString(s[2:])
		if err != nil || !validKeyLength(len(key)) {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		return Address{PublicKey: key}, nil
	}

	data, err := base58.Decode(s)
	if err != nil || len(data) < 3 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	prefix, prefixLen, err := decodePrefix(data)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	if len(data) < prefixLen+checksumLength+1 {
		return Address{}, fmt.Errorf("%w: %q: too short", ErrInvalidAddress, s)
	}
	key := data[prefixLen : len(data)-checksumLength]
	if !validKeyLength(len(key)) {
		return Address{}, fmt.Errorf("%w: %q: unexpected key length %d", ErrInvalidAddress, s, len(key))
	}

	sum := checksum(data[:len(data)-checksumLength])
	if !bytes.Equal(sum[:checksumLength], data[len(data)-checksumLength:]) {
		return Address{}, fmt.Errorf("%w: %q: checksum mismatch", ErrInvalidAddress, s)
	}

	return Address{Prefix: prefix, PublicKey: append([]byte(nil), key...)}, nil
}

// Decode returns the 0x-prefixed public key of an SS58 or hex address.
func Decode(address string) (string, error) {
	a, err := Parse(address)
	if err != nil {
		return "", err
	}
	return a.Hex(), nil
}

// Encode formats a public key as an SS58 address for the given network prefix.
func Encode(publicKey []byte, prefix uint16) (string, error) {
	if !validKeyLength(len(publicKey)) {
		return "", fmt.Errorf("%w: key length %d", ErrInvalidAddress, len(publicKey))
	}
	if prefix > maxPrefix {
		return "", fmt.Errorf("%w: %d", ErrInvalidPrefix, prefix)
	}

	var payload []byte
	if prefix < 64 {
		payload = append(payload, byte(prefix))
	} else {
		payload = append(payload,
			byte((prefix&0x00fc)>>2)|0x40,
			byte(prefix>>8)|byte((prefix&0x03)<<6),
		)
	}
	payload = append(payload, publicKey...)

	sum := checksum(payload)
	return base58.Encode(append(payload, sum[:checksumLength]...)), nil
}

// Reencode converts any accepted address form into an SS58 address for prefix.
// Inputs that fail to parse are returned unchanged.
func Reencode(address string, prefix uint16) string {
	a, err := Parse(address)
	if err != nil {
		return address
	}
	out, err := Encode(a.PublicKey, prefix)
	if err != nil {
		return address
	}
	return out
}

// Shorten abbreviates an address for table cells.
func Shorten(address string) string {
	if len(address) <= 15 {
		return address
	}
	return address[:6] + "..." + address[len(address)-6:]
}

func decodePrefix(data []byte) (uint16, int, error) {
	switch {
	case data[0] < 64:
		return uint16(data[0]), 1, nil
	case data[0] < 128:
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0x3f
		return uint16(lower) | uint16(upper)<<8, 2, nil
	default:
		return 0, 0, ErrInvalidPrefix
	}
}

func validKeyLength(n int) bool {
	return n == 32 || n == 33
}

func checksum(payload []byte) [64]byte {
	return blake2b.Sum512(append(append([]byte(nil), checksumPreimage...), payload...))
}
