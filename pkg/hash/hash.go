package hash

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// DigestLengthBytes is the length of the output of Sum.
const DigestLengthBytes = 32

// Hash is the hash function used by the harness itself, for deriving seeded
// randomness. The signature scheme keeps its own SHAKE instances.
//
// Every value written through WriteAny is framed as (<domain><data>), so that
// different types never collide.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash whose state is initialized with the given domain.
func New(domain string) *Hash {
	hash := &Hash{h: blake3.New()}
	_ = writeWithDomain(hash.h, "Hash", []byte(domain))
	return hash
}

// Digest returns a reader for the current output of the function.
//
// This finalizes the current state of the hash, and returns what's
// essentially a stream of random bytes.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns a slice of length DigestLengthBytes resulting from the current hash state.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.Sum: internal hash failure: %v", err))
	}
	return out
}

// WriteAny writes many different data types to the hash state.
//
// Supported types: []byte, string, int, uint16, uint32, uint64.
func (hash *Hash) WriteAny(data ...interface{}) error {
	var err error
	for _, d := range data {
		var buf [8]byte
		switch t := d.(type) {
		case []byte:
			if t == nil {
				return fmt.Errorf("hash.Hash: write []byte: nil")
			}
			err = writeWithDomain(hash.h, "[]byte", t)
		case string:
			err = writeWithDomain(hash.h, "string", []byte(t))
		case int:
			binary.BigEndian.PutUint64(buf[:], uint64(t))
			err = writeWithDomain(hash.h, "int", buf[:])
		case uint16:
			binary.BigEndian.PutUint16(buf[:2], t)
			err = writeWithDomain(hash.h, "uint16", buf[:2])
		case uint32:
			binary.BigEndian.PutUint32(buf[:4], t)
			err = writeWithDomain(hash.h, "uint32", buf[:4])
		case uint64:
			binary.BigEndian.PutUint64(buf[:], t)
			err = writeWithDomain(hash.h, "uint64", buf[:])
		default:
			panic(fmt.Sprintf("hash.Hash: unsupported type %T", d))
		}
		if err != nil {
			return fmt.Errorf("hash.Hash: write %T: %w", d, err)
		}
	}
	return nil
}

// Clone returns a copy of the Hash in its current state.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}

// Stream returns an endless deterministic byte stream for one worker, derived
// from seed. Different workers get independent streams.
func Stream(seed []byte, worker int) io.Reader {
	h := New("worker stream")
	if err := h.WriteAny(seed, worker); err != nil {
		panic(err)
	}
	return h.Digest()
}

// writeWithDomain writes out (<domain><data>).
func writeWithDomain(w io.Writer, domain string, data []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	for _, chunk := range [][]byte{[]byte("("), []byte(domain), length[:], data, []byte(")")} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}
