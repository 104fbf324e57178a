package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// SixIDHookFunc lets tests pin the next generated SixID.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook is consulted by NewSixID when set.
var NewSixIDHook SixIDHookFunc

// SixID is the internal document key: 6 random bytes stored as BSON binary
// subtype 0x80 and rendered as 10 Crockford Base32 characters.
type SixID [6]byte

const sixIDSubtype byte = 0x80

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecode = buildCrockfordDecode()

func buildCrockfordDecode() map[byte]byte {
	m := make(map[byte]byte, 64)
	for i := 0; i < len(crockfordAlphabet); i++ {
		c := crockfordAlphabet[i]
		m[c] = byte(i)
		if c >= 'A' && c <= 'Z' {
			m[c+('a'-'A')] = byte(i)
		}
	}
	// Crockford aliases for commonly misread characters.
	m['O'], m['o'] = 0, 0
	m['I'], m['i'], m['L'], m['l'] = 1, 1, 1, 1
	return m
}

// NewSixID returns a random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("sixid: crypto/rand unavailable: %v", err))
	}
	return id
}

// IsZero reports whether the id is unset.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

func (u SixID) String() string {
	out := make([]byte, 0, 10)
	var acc uint
	var nbits uint
	for _, b := range u {
		acc |= uint(b) << nbits
		nbits += 8
		for nbits >= 5 {
			out = append(out, crockfordAlphabet[acc&0x1F])
			acc >>= 5
			nbits -= 5
		}
	}
	if nbits > 0 {
		out = append(out, crockfordAlphabet[acc&0x1F])
	}
	return string(out)
}

// ParseSixID decodes the Crockford form produced by String. Hyphens and spaces are ignored.
func ParseSixID(s string) (SixID, error) {
	var id SixID
	s = strings.NewReplacer("-", "", " ", "").Replace(s)
	if len(s) != 10 {
		return id, errors.New("invalid SixID: expected 10 Crockford Base32 characters")
	}
	var acc uint64
	var nbits uint
	n := 0
	for i := 0; i < len(s); i++ {
		v, ok := crockfordDecode[s[i]]
		if !ok {
			return SixID{}, fmt.Errorf("invalid SixID: bad character %q", s[i])
		}
		acc |= uint64(v) << nbits
		nbits += 5
		for nbits >= 8 && n < len(id) {
			id[n] = byte(acc)
			n++
			acc >>= 8
			nbits -= 8
		}
	}
	if n != len(id) {
		return SixID{}, errors.New("invalid SixID: short decode")
	}
	return id, nil
}

// MarshalBSONValue stores the id as binary subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.Binary, bsoncore.AppendBinary(nil, sixIDSubtype, u[:]), nil
}

// UnmarshalBSONValue accepts binary subtype 0x80 of length 6, or null as the zero id.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*u = SixID{}
		return nil
	case bsontype.Binary:
		subtype, bin, _, ok := bsoncore.ReadBinary(data)
		if !ok || subtype != sixIDSubtype || len(bin) != len(u) {
			return errors.New("invalid BSON binary for SixID")
		}
		copy(u[:], bin)
		return nil
	default:
		return fmt.Errorf("cannot decode BSON %s into SixID", t)
	}
}

func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*u = SixID{}
		return nil
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
