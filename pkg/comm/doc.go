// Package comm provides the UART frame protocol shared by HLK radar modules.
package comm

// The protocol is spoken between a host and a radar module over a
// peer-to-peer byte stream (e.g. serial port at 8N1).
//
// Two frame kinds share the same layout and differ only in their markers:
//
//	command frame: FD FC FB FA | len(2, LE) | data | 04 03 02 01
//	report frame:  F4 F3 F2 F1 | len(2, LE) | data | F8 F7 F6 F5
//
// Data of a command frame starts with a 2-byte little-endian command word.
// A reply carries the request command word with ReplyFlag set, followed by
// a 2-byte ACK status (0 means success) and the reply value.
// There is no checksum: a frame is only accepted when its end marker is
// found exactly where the length field says it should be.
//
// Parameter commands are only accepted by the module in configuration mode,
// which is entered and left with dedicated commands. While in configuration
// mode the module suspends its report stream.
