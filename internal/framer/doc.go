// Package framer turns an arbitrarily chunked byte stream into
// newline-delimited lines.
//
// The result does not depend on how the stream was chunked: a line split
// across reads is reassembled once its newline arrives, and no bytes are
// dropped or reordered.
package framer
