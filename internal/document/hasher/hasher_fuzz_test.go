package hasher

import (
	"encoding/hex"
	"testing"
)

func FuzzNormalize(f *testing.F) {
	f.Add("")
	f.Add("E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855")
	f.Add(" e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855\t")
	f.Add("zz")
	f.Add("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85")

	f.Fuzz(func(t *testing.T, input string) {
		d, ok := Normalize(input)
		if !ok {
			if d != "" {
				t.Fatalf("rejected digest returned %q", d)
			}
			return
		}
		if len(d) != DigestLength {
			t.Fatalf("normalized digest %q has length %d", d, len(d))
		}
		if _, err := hex.DecodeString(d); err != nil {
			t.Fatalf("normalized digest %q is not hex", d)
		}
		if again, _ := Normalize(d); again != d {
			t.Fatalf("normalize is not idempotent for %q", input)
		}
	})
}
