package wire

import (
	"testing"

	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripPrimitives(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(7)
	w.WriteBool(true)
	w.WriteBool(false)
	w.WriteUint32(0xDEADBEEF)
	w.WriteUint64(0x0102030405060708)
	w.WriteInt64(-42)
	w.WriteFixed64(fixedpoint.FromInt(3))
	w.WriteBlob([]byte{1, 2, 3})
	w.WriteString("hello")

	r := NewReader(w.Bytes())
	assert.Equal(t, uint8(7), r.ReadUint8())
	assert.True(t, r.ReadBool())
	assert.False(t, r.ReadBool())
	assert.Equal(t, uint32(0xDEADBEEF), r.ReadUint32())
	assert.Equal(t, uint64(0x0102030405060708), r.ReadUint64())
	assert.Equal(t, int64(-42), r.ReadInt64())
	assert.Equal(t, fixedpoint.FromInt(3), r.ReadFixed64())
	assert.Equal(t, []byte{1, 2, 3}, r.ReadBlob())
	assert.Equal(t, "hello", r.ReadString())
	require.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())
}

func TestReaderTruncatedSetsErrAndStopsConsuming(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	got := r.ReadUint64()
	assert.Equal(t, uint64(0), got)
	assert.ErrorIs(t, r.Err(), ErrTruncated)

	// further reads after an error are no-ops, not panics.
	assert.Equal(t, uint32(0), r.ReadUint32())
	assert.Equal(t, "", r.ReadString())
	assert.ErrorIs(t, r.Err(), ErrTruncated)
}

func TestBlobEmpty(t *testing.T) {
	w := NewWriter()
	w.WriteBlob(nil)
	r := NewReader(w.Bytes())
	assert.Empty(t, r.ReadBlob())
	require.NoError(t, r.Err())
}
