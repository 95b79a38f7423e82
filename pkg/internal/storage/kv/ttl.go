package kv

import (
	"bytes"
	"encoding/binary"
	"time"
)

// 不支持逐键过期的后端把过期时间写在值前面：magic + 8 字节大端 unix 毫秒.
var ttlMagic = []byte("PVTTL2")

const ttlHeaderLen = 6 + 8

// encodeWithTTL ttl>0 时加过期头，否则原样返回.
func encodeWithTTL(value []byte, ttl time.Duration, now time.Time) []byte {
	if ttl <= 0 {
		return value
	}

	out := make([]byte, ttlHeaderLen+len(value))
	copy(out, ttlMagic)
	binary.BigEndian.PutUint64(out[len(ttlMagic):], uint64(now.Add(ttl).UnixMilli()))
	copy(out[ttlHeaderLen:], value)

	return out
}

// decodeWithTTL 去掉过期头，返回原值以及是否已过期.
func decodeWithTTL(b []byte, now time.Time) ([]byte, bool) {
	if len(b) < ttlHeaderLen || !bytes.HasPrefix(b, ttlMagic) {
		return b, false
	}

	expireAt := int64(binary.BigEndian.Uint64(b[len(ttlMagic):ttlHeaderLen]))
	if now.UnixMilli() >= expireAt {
		return nil, true
	}

	return b[ttlHeaderLen:], false
}
