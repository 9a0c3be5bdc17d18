package ptrace

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func infoBuf(op SyscallOp, arch uint32) []byte {
	buf := make([]byte, syscallInfoSize)
	buf[offOp] = byte(op)
	binary.NativeEndian.PutUint32(buf[offArch:], arch)
	return buf
}

func TestDecodeSyscallInfo_Entry(t *testing.T) {
	buf := infoBuf(OpEntry, 0xc000003e)
	binary.NativeEndian.PutUint64(buf[offData:], 59)
	for i := 0; i < 6; i++ {
		binary.NativeEndian.PutUint64(buf[offData+8+8*i:], uint64(100+i))
	}

	info, err := decodeSyscallInfo(buf, offData+56)
	require.NoError(t, err)
	assert.Equal(t, OpEntry, info.Op)
	assert.Equal(t, uint32(0xc000003e), info.Arch)
	assert.Equal(t, uint64(59), info.Nr)
	assert.Equal(t, [6]uint64{100, 101, 102, 103, 104, 105}, info.Args)
}

func TestDecodeSyscallInfo_Exit(t *testing.T) {
	buf := infoBuf(OpExit, 0)
	ret := int64(-2)
	binary.NativeEndian.PutUint64(buf[offData:], uint64(ret))
	buf[offData+8] = 1

	info, err := decodeSyscallInfo(buf, offData+9)
	require.NoError(t, err)
	assert.Equal(t, OpExit, info.Op)
	assert.Equal(t, int64(-2), info.Ret)
	assert.True(t, info.IsError)
}

func TestDecodeSyscallInfo_None(t *testing.T) {
	info, err := decodeSyscallInfo(infoBuf(OpNone, 0), offData)
	require.NoError(t, err)
	assert.Equal(t, OpNone, info.Op)
}

func TestDecodeSyscallInfo_Errors(t *testing.T) {
	_, err := decodeSyscallInfo(infoBuf(OpEntry, 0), 10)
	assert.Error(t, err, "header too short")

	_, err = decodeSyscallInfo(infoBuf(OpEntry, 0), offData+8)
	assert.Error(t, err, "entry too short")

	_, err = decodeSyscallInfo(infoBuf(OpExit, 0), offData+4)
	assert.Error(t, err, "exit too short")

	_, err = decodeSyscallInfo(infoBuf(SyscallOp(9), 0), syscallInfoSize)
	assert.Error(t, err, "unknown op")

	_, err = decodeSyscallInfo(make([]byte, 8), 100)
	assert.Error(t, err, "n beyond buffer")
}

func TestSyscallOpString(t *testing.T) {
	assert.Equal(t, "entry", OpEntry.String())
	assert.Equal(t, "SyscallOp(9)", SyscallOp(9).String())
}
