package value

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the loop's kinds and contents. Equal loops always
// share a fingerprint, so nodes that watch an input for changes keep the
// fingerprint instead of a copy of the loop.
func (l Loop) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(l)))
	_, _ = d.Write(buf[:])
	for _, v := range l {
		writeValue(d, v)
	}
	return d.Sum64()
}

func writeValue(d *xxhash.Digest, v PortValue) {
	if v == nil {
		_, _ = d.Write([]byte{0})
		return
	}
	_, _ = d.Write([]byte{byte(v.Kind())})
	var s string
	switch val := v.(type) {
	case Text:
		s = string(val)
	case Media:
		s = val.ID
	case Layer:
		s = string(val)
	case ScrollMode:
		_, _ = d.Write([]byte{byte(val)})
		return
	case JumpStyle:
		_, _ = d.Write([]byte{byte(val)})
		return
	case DecelerationRate:
		_, _ = d.Write([]byte{byte(val)})
		return
	default:
		var buf [8]byte
		for _, c := range components(v) {
			if c == 0 {
				c = 0 // fold -0
			}
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c))
			_, _ = d.Write(buf[:])
		}
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(s)
}
