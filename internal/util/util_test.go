package util

import "testing"

func TestFnv64a(t *testing.T) {
	t.Parallel()
	// Reference values of 64-bit FNV-1a.
	if got := Fnv64a(""); got != 0xcbf29ce484222325 {
		t.Fatalf(`Fnv64a("") = %#x`, got)
	}
	if got := Fnv64a("a"); got != 0xaf63dc4c8601ec8c {
		t.Fatalf(`Fnv64a("a") = %#x`, got)
	}
	if Fnv64a([]byte("foobar")) != Fnv64a("foobar") {
		t.Fatal("[]byte and string hashes differ")
	}
	le := []byte{0x01, 0x02, 0, 0, 0, 0, 0, 0}
	if Fnv64a(uint64(0x0201)) != Fnv64a(le) {
		t.Fatal("uint64 is not hashed as little-endian bytes")
	}
}

func TestNextPow2(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want uint64 }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {64, 64}, {65, 128},
		{1 << 63, 1 << 63}, {1<<63 + 1, 1 << 63},
	}
	for _, tt := range tests {
		if got := NextPow2(tt.in); got != tt.want {
			t.Errorf("NextPow2(%d) = %d, want %d", tt.in, got, tt.want)
		}
		if !IsPowerOfTwo(NextPow2(tt.in)) {
			t.Errorf("NextPow2(%d) is not a power of two", tt.in)
		}
	}
	if IsPowerOfTwo(0) || IsPowerOfTwo(6) {
		t.Fatal("IsPowerOfTwo accepts non-powers")
	}
}
