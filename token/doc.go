// Package token encodes and verifies the compact signed tokens that carry
// security state between the engine and its callers, with per-kind signing
// keys and strict structural validation.
package token
