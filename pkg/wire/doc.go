// Package wire encodes heartbeat frames and multipart messages.
//
// A heartbeat frame is a single tag byte, PING (0x55) or PONG (0xAA). It
// travels as the last part of a multipart Message. On the router side the
// first part is the peer identity:
//
//	server -> client   [identity][PING]   (router addresses the peer)
//	client -> server   [PONG]             (dealer, identity implicit)
//
// Messages cross a byte stream as a varint part count followed by each part
// as a varint length and its bytes.
package wire
