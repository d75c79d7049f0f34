// Package fingerprint implements content-addressed fingerprinting of
// targets (§4.6): a self hash over a target's own declaration plus its
// source file contents, and a combined hash rolling up the dep closure.
// That combined hash is the cache key used throughout cache and schedule.
package fingerprint

import (
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/karrick/godirwalk"
	"github.com/zeebo/blake3"
)

// Hash is the fixed-size digest produced by H. It's a BLAKE3 digest at
// BLAKE3's default 32-byte output length, with no truncation, chosen because it's fast on large trees and the pack's examples
// (including the teacher) use either BLAKE3 or a 128-bit+ non-cryptographic
// hash for exactly this purpose.
type Hash [32]byte

// IsZero reports whether h is the zero value (never computed).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// emptyFileHash is the fixed digest for an empty file (§4.6 boundary
// behavior / §8 "Empty source file: fixed digest").
var emptyFileHash = H()

// H computes the content hash of a sequence of byte-slice parts. Each
// part is length-prefixed before being written into the hasher so that
// H([]byte("ab"), []byte("c")) can never collide with H([]byte("a"),
// []byte("bc")) — an easy and real bug class in ad-hoc concatenation
// hashing.
func H(parts ...[]byte) Hash {
	h := blake3.New()
	var lenBuf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HString is a convenience wrapper over H for string parts.
func HString(parts ...string) Hash {
	b := make([][]byte, len(parts))
	for i, p := range parts {
		b[i] = []byte(p)
	}
	return H(b...)
}

// xxh64 is used internally as a cheap pre-pass digest of individual file
// bytes while walking a directory tree; the per-file digests are then
// folded together with H (BLAKE3) so the final combined digest always
// goes through one mixing function, keeping collision resistance
// independent of how many files were hashed.
func xxh64(r io.Reader) (uint64, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// FileHash digests the bytes of a single file. Empty files get the fixed
// emptyFileHash digest rather than hashing zero bytes through a
// different path, so the "fixed digest" boundary behavior holds exactly
// regardless of which hash primitives are swapped in later.
func FileHash(path string) (Hash, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Hash{}, err
	}
	if info.Size() == 0 {
		return emptyFileHash, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Hash{}, err
	}
	defer f.Close()
	sum, err := xxh64(f)
	if err != nil {
		return Hash{}, err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], sum)
	return H(buf[:]), nil
}

// direntDigest is one (relative_path, file_digest) pair from a directory walk.
type direntDigest struct {
	path   string
	digest Hash
}

// DirHash digests a directory tree as the sorted sequence of
// (relative_path, file_digest) pairs, per §4.6: "for a directory tree,
// digest the sorted sequence of (relative_path, file_digest)" and "file
// hashing must be order-independent on directory entries".
func DirHash(root string) (Hash, error) {
	var entries []direntDigest
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := relPath(root, path)
			if err != nil {
				return err
			}
			digest, err := FileHash(path)
			if err != nil {
				return err
			}
			entries = append(entries, direntDigest{path: rel, digest: digest})
			return nil
		},
		Unsorted: true, // we sort explicitly below for determinism
	})
	if err != nil {
		return Hash{}, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	parts := make([][]byte, 0, len(entries)*2)
	for _, e := range entries {
		parts = append(parts, []byte(e.path), e.digest[:])
	}
	return H(parts...), nil
}

// SourceHash hashes a single source path, dispatching to FileHash or
// DirHash depending on whether it's a file or a directory.
func SourceHash(path string) (Hash, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Hash{}, err
	}
	if info.IsDir() {
		return DirHash(path)
	}
	return FileHash(path)
}

func relPath(root, path string) (string, error) {
	if len(path) > len(root) && path[:len(root)] == root {
		rel := path[len(root):]
		for len(rel) > 0 && rel[0] == '/' {
			rel = rel[1:]
		}
		return rel, nil
	}
	return path, nil
}
