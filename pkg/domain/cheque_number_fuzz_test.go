//go:build go1.18

package domain

import (
	"strings"
	"testing"
)

// FuzzParseChequeNumber checks that parsing never panics and that anything
// accepted is the trimmed input made only of ASCII digits.
func FuzzParseChequeNumber(f *testing.F) {
	f.Add("")
	f.Add("123456")
	f.Add("0000")
	f.Add("0001")
	f.Add("1234567890123456")
	f.Add("12345678901234567")
	f.Add("'; DROP TABLE cheques;--")
	f.Add("１２３")
	f.Add(string([]byte{0x00, 0x31, 0x32}))

	f.Fuzz(func(t *testing.T, input string) {
		n, err := ParseChequeNumber(input)
		if err != nil {
			return
		}

		trimmed := strings.TrimSpace(input)
		if n.String() != trimmed {
			t.Fatalf("accepted value %q differs from trimmed input %q", n, trimmed)
		}
		if len(trimmed) == 0 || len(trimmed) > MaxChequeNumberLength {
			t.Fatalf("accepted value with length %d", len(trimmed))
		}
		if strings.Trim(trimmed, "0") == "" {
			t.Fatal("accepted an all-zero value")
		}
		for i := 0; i < len(trimmed); i++ {
			if trimmed[i] < '0' || trimmed[i] > '9' {
				t.Fatalf("accepted non-digit byte %q", trimmed[i])
			}
		}

		again, err := ParseChequeNumber(n.String())
		if err != nil || again != n {
			t.Fatal("accepted value failed round-trip")
		}
	})
}
