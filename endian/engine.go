// Package endian provides byte order utilities for binary frame decoding.
//
// It combines the ByteOrder and AppendByteOrder interfaces from
// encoding/binary into a single EndianEngine interface. Every wire field in
// the supported telemetry protocols is little-endian; the engine keeps byte
// order explicit in decoder code, and the append path is what synthetic
// frame builders in tests use.
package endian

import "encoding/binary"

// EndianEngine combines the ByteOrder and AppendByteOrder interfaces from
// encoding/binary into a single interface for convenient byte order
// operations.
//
// The interface is satisfied by binary.LittleEndian and binary.BigEndian
// from the standard library.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine, the wire order of
// every supported protocol family.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}
