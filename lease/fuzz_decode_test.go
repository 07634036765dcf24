package lease

import "testing"

// FuzzLeaseDecode exercises the binary lease decoder with arbitrary inputs.
// Goal: no panics, no unexpected nil dereferences, graceful error handling.
func FuzzLeaseDecode(f *testing.F) {
	encoded, err := Encode(&Lease{
		Holder:     "vet-ana",
		AcquiredAt: 1700000000,
		ExpiresAt:  1700000900,
	})
	if err == nil {
		f.Add(encoded)
	}

	// Empty and short inputs.
	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{255, 255, 255})

	// Truncated mid-holder and mid-timestamp.
	if len(encoded) > 4 {
		f.Add(encoded[:4])
	}
	if len(encoded) > 12 {
		f.Add(encoded[:12])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic. Errors are expected for malformed input.
		l, err := Decode(data)
		if err != nil {
			return
		}

		// If decode succeeded, re-encode must not panic either.
		if _, err := Encode(l); err != nil {
			t.Fatalf("re-encode of decoded lease failed: %v", err)
		}
	})
}
