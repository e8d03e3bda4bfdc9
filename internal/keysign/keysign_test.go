package keysign

import (
	"strings"
	"testing"
)

var secret = []byte("test-secret")

func signedKey(t *testing.T, payload, hwid string) string {
	t.Helper()
	return Build(payload, ExpectedSignature(payload, hwid, secret))
}

func TestParse(t *testing.T) {
	seg, err := Parse("srm-ab12-cd34-ef56-9a8b")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if seg.Payload != "AB12CD34" {
		t.Errorf("Unexpected payload: %s", seg.Payload)
	}
	if seg.Signature != "EF569A8B" {
		t.Errorf("Unexpected signature: %s", seg.Signature)
	}
}

func TestParse_NormalizesWhitespace(t *testing.T) {
	seg, err := Parse("  SRM-AB 12-CD34-EF56-9A8B  ")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if seg.Payload != "AB12CD34" {
		t.Errorf("Unexpected payload: %s", seg.Payload)
	}
}

func TestParse_Malformed(t *testing.T) {
	bad := []string{
		"",
		"SRM-AB12-CD34-EF56",
		"SRM-AB12-CD34-EF56-9A8B-FFFF",
		"XXX-AB12-CD34-EF56-9A8B",
		"ABCD",
	}
	for _, raw := range bad {
		if _, err := Parse(raw); err == nil {
			t.Errorf("Parse(%q) should fail", raw)
		}
	}
}

func TestExpectedSignature_Format(t *testing.T) {
	sig := ExpectedSignature("AB12CD34", "MACHINE1", secret)
	if len(sig) != SigLen {
		t.Fatalf("Expected %d chars, got %d", SigLen, len(sig))
	}
	if sig != strings.ToUpper(sig) {
		t.Errorf("Signature should be uppercase: %s", sig)
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	key := signedKey(t, "AB12CD34", "MACHINE1")
	if !Verify(key, "MACHINE1", secret) {
		t.Errorf("Signed key should verify for its hwid")
	}
}

func TestVerify_HardwareBound(t *testing.T) {
	key := signedKey(t, "AB12CD34", "MACHINE1")
	if Verify(key, "MACHINE2", secret) {
		t.Errorf("Key signed for MACHINE1 should not verify for MACHINE2")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	key := signedKey(t, "AB12CD34", "MACHINE1")
	if Verify(key, "MACHINE1", []byte("other-secret")) {
		t.Errorf("Key should not verify under a different secret")
	}
}

func TestVerify_MalformedReturnsFalse(t *testing.T) {
	if Verify("not a key", "MACHINE1", secret) {
		t.Errorf("Malformed key should return false, not panic")
	}
	if Verify("", "", secret) {
		t.Errorf("Empty input should return false")
	}
}

func TestBuild_Canonical(t *testing.T) {
	key := Build("ab12cd34", "ef569a8b")
	if key != "SRM-AB12-CD34-EF56-9A8B" {
		t.Errorf("Unexpected key: %s", key)
	}
	if _, err := Parse(key); err != nil {
		t.Errorf("Built key should parse: %v", err)
	}
}
