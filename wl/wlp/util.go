package wlp

import (
	"encoding/binary"
	"unsafe"
)

// headerSize is the size of the object id and the size/opcode word that
// start every message.
const headerSize = 8

// maxMessageSize mirrors the limit enforced by libwayland on both ends.
const maxMessageSize = 4096

var hostByteOrder binary.ByteOrder

func init() {
	var endianCheck uint32 = 0x1
	b := (*[4]byte)(unsafe.Pointer(&endianCheck))
	if b[0] == 1 {
		hostByteOrder = binary.LittleEndian
	} else {
		hostByteOrder = binary.BigEndian
	}
}

// DecodeHeader splits a message header into the target object id, the opcode
// and the total message size including the header.
func DecodeHeader(buf []byte) (id uint32, opcode uint16, size int) {
	id = hostByteOrder.Uint32(buf[:4])
	arg2 := hostByteOrder.Uint32(buf[4:8])
	opcode = uint16(arg2 & 0xFFFF)
	size = int(arg2 >> 16)
	return
}

// EncodeHeader is the inverse of DecodeHeader.
func EncodeHeader(buf []byte, id uint32, opcode uint16, size int) {
	hostByteOrder.PutUint32(buf[:4], id)
	hostByteOrder.PutUint32(buf[4:8], uint32(size)<<16|uint32(opcode))
}

func padding(n int) int {
	return (4 - n%4) % 4
}
