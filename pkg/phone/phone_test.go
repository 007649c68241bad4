package phone

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_TrunkPrefix(t *testing.T) {
	for _, sub := range []string{"712345678", "110000001", "799999999", "100000000"} {
		require.Equal(t, "254"+sub, Normalize("0"+sub))
	}
}

func TestNormalize_Shapes(t *testing.T) {
	cases := map[string]string{
		"+254712345678":    "254712345678",
		"+254 712 345 678": "254712345678",
		"254-712-345-678":  "254712345678",
		"712345678":        "254712345678",
		"(0712) 345 678":   "254712345678",
		"254712345678":     "254712345678",
	}
	for in, want := range cases {
		require.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalize_IdempotentOnCanonical(t *testing.T) {
	for i := 0; i < 50; i++ {
		canonical := fmt.Sprintf("2547%08d", i*1234567%100000000)
		once := Normalize(canonical)
		require.Equal(t, canonical, once)
		require.Equal(t, once, Normalize(once))
	}
}

// The fallback prepends the country code to anything unrecognised; the result is
// not a valid number, which is why payment code goes through Canonical.
func TestNormalize_FallbackProducesInvalidNumbers(t *testing.T) {
	got := Normalize("12345")
	require.Equal(t, "25412345", got)
	require.False(t, Valid(got))

	got = Normalize("912345678")
	require.Equal(t, "254912345678", got)
	require.False(t, Valid(got))
}

func TestValid(t *testing.T) {
	require.True(t, Valid("0712345678"))
	require.True(t, Valid("+254712345678"))
	require.True(t, Valid("254712345678"))
	require.True(t, Valid("0112345678"))
	require.False(t, Valid("12345"))
	require.False(t, Valid("0812345678"))
	require.False(t, Valid("25471234567"))
	require.False(t, Valid(""))
}

func TestCanonical(t *testing.T) {
	got, err := Canonical("0712 345 678")
	require.NoError(t, err)
	require.Equal(t, "254712345678", got)

	_, err = Canonical("12345")
	require.ErrorIs(t, err, ErrInvalidPhone)
}

func TestNewPlan_CustomCountry(t *testing.T) {
	tz := NewPlan("255", "0", "67", 9)
	require.Equal(t, "255712345678", tz.Normalize("0712345678"))
	require.True(t, tz.Valid("+255612345678"))
	require.False(t, tz.Valid("254712345678"))
}
