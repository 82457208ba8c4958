// Package storage provides typed maps on top of a kv.Store.
//
// Keys are encoded with fixed-width big-endian codecs so that byte order
// equals numeric order. A DoubleMap stores prefix+enc(k1)+enc(k2), which lets
// every entry sharing k1 be found (and removed) with a single prefix scan.
//
// Absent keys read as the value type's zero value through the GetOrDefault
// helpers; Get reports presence explicitly.
package storage
