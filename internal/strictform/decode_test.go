package strictform

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeComponent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "ursula", "ursula"},
		{"plus is space", "le+guin", "le guin"},
		{"escaped space", "le%20guin", "le guin"},
		{"lower hex", "%3c%3e", "<>"},
		{"upper hex", "%3C%3E", "<>"},
		{"encoded at", "ursula_le_guin%40gmail.com", "ursula_le_guin@gmail.com"},
		{"encoded plus stays plus", "a%2Bb", "a+b"},
		{"multibyte", "%C3%A9t%C3%A9", "été"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeComponent([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeComponent_DoesNotAliasInput(t *testing.T) {
	in := []byte("abc")
	out, err := DecodeComponent(in)
	require.NoError(t, err)

	out[0] = 'z'
	assert.Equal(t, "abc", string(in))
}

func TestValidatePercentEncoding_Rejects(t *testing.T) {
	bad := []string{
		"%",
		"%4",
		"name=%",
		"name=%zz",
		"name=%4g&email=a",
		"name=ok&email=%G1",
		"%%41",
		"name=50%",
	}
	for _, in := range bad {
		t.Run(in, func(t *testing.T) {
			err := ValidatePercentEncoding([]byte(in))
			assertKind(t, err, KindInvalidPercentEncoding)
		})
	}
}

func TestValidatePercentEncoding_Accepts(t *testing.T) {
	good := []string{"", "name=le%20guin", "%41", "a=%41%42", "%2525", "a+b=c+d"}
	for _, in := range good {
		assert.NoError(t, ValidatePercentEncoding([]byte(in)), in)
	}
}

func TestValidatePercentEncoding_AnyPosition(t *testing.T) {
	base := []byte("name=le%20guin&email=ursula_le_guin%40gmail.com")
	for pos := 0; pos <= len(base); pos++ {
		for _, bad := range []string{"%", "%x", "%4", "%g0"} {
			in := append(append(append([]byte{}, base[:pos]...), bad...), base[pos:]...)
			// "%4" directly before a hex digit forms a valid escape.
			if bad == "%4" && pos < len(base) {
				if _, ok := unhex(base[pos]); ok {
					continue
				}
			}
			_, err := Parse(in, DefaultLimits())
			assertKind(t, err, KindInvalidPercentEncoding)
		}
	}
}

func TestEncodeComponent(t *testing.T) {
	assert.Equal(t, "le+guin", EncodeComponent("le guin"))
	assert.Equal(t, "ursula_le_guin%40gmail.com", EncodeComponent("ursula_le_guin@gmail.com"))
	assert.Equal(t, "%3Cscript%3E", EncodeComponent("<script>"))
	assert.Equal(t, "a%2Bb%26c%3Dd", EncodeComponent("a+b&c=d"))
	assert.Equal(t, "%C3%A9", EncodeComponent("é"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	fixed := []string{
		"le guin",
		"Ursula K. Le Guin",
		"ursula_le_guin@gmail.com",
		"Zoë Ñúñez",
		"山田 太郎",
		"👩‍🚀 astronaut",
		"a+b&c=d%e",
	}
	for _, s := range fixed {
		got, err := DecodeComponent([]byte(EncodeComponent(s)))
		require.NoError(t, err)
		assert.Equal(t, s, string(got))
	}

	alphabet := []rune("abcXYZ019 +&=%@.-_*~/é山👩́")
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		runes := make([]rune, rng.Intn(40))
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		s := string(runes)
		got, err := DecodeComponent([]byte(EncodeComponent(s)))
		require.NoError(t, err)
		require.Equal(t, s, string(got))
	}
}

func TestEncodePairs(t *testing.T) {
	body := EncodePairs([]TextPair{{"name", "le guin"}, {"email", "ursula_le_guin@gmail.com"}})
	assert.Equal(t, "name=le+guin&email=ursula_le_guin%40gmail.com", body)

	form, err := Parse([]byte(body), DefaultLimits())
	require.NoError(t, err)
	name, _ := form.Last("name")
	assert.Equal(t, "le guin", name)
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	var rej *Rejection
	require.True(t, errors.As(err, &rej), "expected *Rejection, got %T: %v", err, err)
	assert.Equal(t, kind, rej.Kind, "unexpected rejection: %v", err)
}
