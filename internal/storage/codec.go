package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/dmap/internal/ir"
)

// KeyCodec encodes a key component into a fixed number of bytes.
type KeyCodec[K any] interface {
	Size() int
	Encode(dst []byte, k K)
	Decode(src []byte) K
}

// ValueCodec encodes a stored value.
type ValueCodec[V any] interface {
	Encode(v V) []byte
	Decode(b []byte) (V, error)
}

// Uint64Key encodes any uint64-based key as 8 big-endian bytes.
type Uint64Key[K ~uint64] struct{}

func (Uint64Key[K]) Size() int { return 8 }

func (Uint64Key[K]) Encode(dst []byte, k K) { binary.BigEndian.PutUint64(dst, uint64(k)) }

func (Uint64Key[K]) Decode(src []byte) K { return K(binary.BigEndian.Uint64(src)) }

// Uint32Key encodes any uint32-based key as 4 big-endian bytes.
type Uint32Key[K ~uint32] struct{}

func (Uint32Key[K]) Size() int { return 4 }

func (Uint32Key[K]) Encode(dst []byte, k K) { binary.BigEndian.PutUint32(dst, uint32(k)) }

func (Uint32Key[K]) Decode(src []byte) K { return K(binary.BigEndian.Uint32(src)) }

// Uint32Value stores any uint32-based value as 4 big-endian bytes.
type Uint32Value[V ~uint32] struct{}

func (Uint32Value[V]) Encode(v V) []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), uint32(v))
}

func (Uint32Value[V]) Decode(b []byte) (V, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("decode uint32 value: want 4 bytes, got %d", len(b))
	}
	return V(binary.BigEndian.Uint32(b)), nil
}

// Unit is the value of a set entry.
type Unit struct{}

// UnitValue stores Unit as an empty value.
type UnitValue struct{}

func (UnitValue) Encode(Unit) []byte { return []byte{} }

func (UnitValue) Decode(b []byte) (Unit, error) {
	if len(b) != 0 {
		return Unit{}, fmt.Errorf("decode unit value: want 0 bytes, got %d", len(b))
	}
	return Unit{}, nil
}

// Codecs for the domain identifier types.
var (
	AccountKey = Uint64Key[ir.AccountID]{}
	GroupKey   = Uint32Key[ir.GroupID]{}
	GroupValue = Uint32Value[ir.GroupID]{}
	ScoreValue = Uint32Value[ir.Score]{}
	U32Value   = Uint32Value[uint32]{}
)
