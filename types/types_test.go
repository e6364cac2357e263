package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntEncodeDecodeRoundTrip(t *testing.T) {
	buf := make([]byte, IntType.Width())
	Int(-42).Encode(buf)
	assert.Equal(t, Int(-42), DecodeInt(buf))
}

func TestStringEncodeDecodeRoundTrip(t *testing.T) {
	ft := StringType(16)
	buf := make([]byte, ft.Width())
	String("hello").Encode(buf)
	assert.Equal(t, String("hello"), DecodeString(buf, 16))
}

func TestIntCompare(t *testing.T) {
	assert.True(t, Int(5).Compare(GreaterThan, Int(3)))
	assert.True(t, Int(5).Compare(Equals, Int(5)))
	assert.False(t, Int(5).Compare(LessThan, Int(5)))
	assert.True(t, Int(5).Compare(NotEquals, Int(4)))
}

func TestStringCompare(t *testing.T) {
	assert.True(t, String("abc").Compare(LessThan, String("abd")))
	assert.True(t, String("abc").Compare(Equals, String("abc")))
}
