// Package keysign implements the license key wire format and its HMAC
// signature scheme. It is pure computation with no I/O, so both the server
// and the offline key generator can share the exact same definitions.
//
// A key looks like SRM-AB12-CD34-EF56-9A8B: a fixed SRM prefix, two segments
// of random payload and two segments of signature. The signature is
// HMAC-SHA256 over payload+hwid truncated to the first 8 hex characters.
// The truncation (a 32-bit window) is a deliberate size trade-off inherited
// from the deployed key population and must not be widened, or every issued
// key stops validating.
package keysign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Prefix is the literal first segment of every license key.
const Prefix = "SRM"

// SigLen is the number of hex characters kept from the HMAC digest.
const SigLen = 8

// Segments is a parsed license key: the random payload (segments 1-2
// concatenated) and the presented signature (segments 3-4 concatenated).
type Segments struct {
	Payload   string
	Signature string
}

// Normalize canonicalizes raw client input: trimmed, uppercased, with any
// embedded spaces removed.
func Normalize(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
}

// Parse normalizes raw and splits it into payload and signature. It fails
// unless the key has exactly 5 dash-separated segments starting with the
// SRM prefix.
func Parse(raw string) (Segments, error) {
	parts := strings.Split(Normalize(raw), "-")
	if len(parts) != 5 || parts[0] != Prefix {
		return Segments{}, fmt.Errorf("malformed key: want 5 segments with %s prefix", Prefix)
	}
	return Segments{
		Payload:   parts[1] + parts[2],
		Signature: parts[3] + parts[4],
	}, nil
}

// ExpectedSignature computes the signature binding payload to hwid under
// secret: the first SigLen hex characters of HMAC-SHA256(payload+hwid),
// uppercased.
func ExpectedSignature(payload, hwid string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload + hwid))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil))[:SigLen])
}

// Verify reports whether raw is a well-formed key whose signature matches
// hwid under secret. Malformed input is expected traffic from the wild, so
// it returns false rather than an error. The signature comparison is
// constant time.
func Verify(raw, hwid string, secret []byte) bool {
	seg, err := Parse(raw)
	if err != nil {
		return false
	}
	want := ExpectedSignature(seg.Payload, hwid, secret)
	return subtle.ConstantTimeCompare([]byte(seg.Signature), []byte(want)) == 1
}

// Build assembles the canonical key string from an 8-char payload and an
// 8-char signature, splitting each across two segments.
func Build(payload, signature string) string {
	payload = strings.ToUpper(payload)
	signature = strings.ToUpper(signature)
	return fmt.Sprintf("%s-%s-%s-%s-%s", Prefix, payload[:4], payload[4:], signature[:4], signature[4:])
}
