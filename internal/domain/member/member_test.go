package member

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamFromDigit(t *testing.T) {
	cases := map[string]Stream{"1": StreamMale, "2": StreamFemale, "3": StreamFuture, " 4 ": StreamSundayClassTeacher}
	for digit, want := range cases {
		got, ok := StreamFromDigit(digit)
		assert.True(t, ok, digit)
		assert.Equal(t, want, got)
	}
	for _, digit := range []string{"", "0", "5", "12", "*"} {
		_, ok := StreamFromDigit(digit)
		assert.False(t, ok, digit)
	}
}

func TestCallFlowEligible(t *testing.T) {
	assert.True(t, StreamMale.CallFlowEligible())
	assert.True(t, StreamFuture.CallFlowEligible())
	assert.False(t, StreamSundayClassTeacher.CallFlowEligible())
}

func TestParseStream(t *testing.T) {
	s, err := ParseStream("female")
	assert.NoError(t, err)
	assert.Equal(t, StreamFemale, s)

	_, err = ParseStream("ELDERS")
	assert.Error(t, err)
}

func TestCanonicalPhone(t *testing.T) {
	assert.Equal(t, "+919876543210", CanonicalPhone("9876543210", "+91"))
	assert.Equal(t, "+919876543210", CanonicalPhone(" 98765 43210 ", "+91"))
	assert.Equal(t, "+919876543210", CanonicalPhone("919876543210", "+91"))
	assert.Equal(t, "+919876543210", CanonicalPhone("09876543210", "+91"))
	assert.Equal(t, "+919876543210", CanonicalPhone("+919876543210", "+91"))
	assert.Equal(t, "", CanonicalPhone("", "+91"))
}

func TestLocalPhone(t *testing.T) {
	assert.Equal(t, "9876543210", LocalPhone("+919876543210", "+91"))
	assert.Equal(t, "9876543210", LocalPhone("9876543210", "+91"))
}
