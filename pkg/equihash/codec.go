package equihash

import (
	"encoding/binary"
)

// ExpandArray unpacks a big-endian bitstream of bitLen-bit groups into
// fixed-width big-endian groups, each left-padded with bytePad zero bytes.
// outLen must equal 8*outWidth*len(in)/bitLen where
// outWidth = (bitLen+7)/8 + bytePad.
func ExpandArray(in []byte, outLen, bitLen, bytePad int) ([]byte, error) {
	if bitLen < 1 || bitLen > 25 || bytePad < 0 {
		return nil, newError(ErrorInvalidLength, "unsupported bit length", map[string]interface{}{
			"bit_len": bitLen, "byte_pad": bytePad,
		})
	}
	outWidth := (bitLen+7)/8 + bytePad
	if outLen != 8*outWidth*len(in)/bitLen {
		return nil, newError(ErrorInvalidLength, "output length does not match input", map[string]interface{}{
			"in_len": len(in), "out_len": outLen, "bit_len": bitLen, "byte_pad": bytePad,
		})
	}

	out := make([]byte, outLen)
	mask := uint32(1)<<uint(bitLen) - 1

	// The low accBits bits of acc hold pending input, most significant first.
	var acc uint32
	accBits := 0
	j := 0
	for _, b := range in {
		acc = acc<<8 | uint32(b)
		accBits += 8
		// Groups narrower than a byte complete several per input byte.
		for accBits >= bitLen {
			accBits -= bitLen
			if j+outWidth > outLen {
				return nil, newError(ErrorInternal, "expand overran output buffer", nil)
			}
			for x := bytePad; x < outWidth; x++ {
				shift := uint(8 * (outWidth - x - 1))
				out[j+x] = byte(acc>>(uint(accBits)+shift)) & byte((mask>>shift)&0xff)
			}
			j += outWidth
		}
	}
	return out, nil
}

// CompressArray is the inverse of ExpandArray: it packs fixed-width groups
// of bitLen significant bits into a contiguous big-endian bitstream.
// outLen must equal bitLen*len(in)/(8*inWidth).
func CompressArray(in []byte, outLen, bitLen, bytePad int) ([]byte, error) {
	if bitLen < 8 || bitLen+7 > 8*IndexSize || bytePad < 0 {
		return nil, newError(ErrorInvalidLength, "unsupported bit length", map[string]interface{}{
			"bit_len": bitLen, "byte_pad": bytePad,
		})
	}
	inWidth := (bitLen+7)/8 + bytePad
	if outLen != bitLen*len(in)/(8*inWidth) {
		return nil, newError(ErrorInvalidLength, "output length does not match input", map[string]interface{}{
			"in_len": len(in), "out_len": outLen, "bit_len": bitLen, "byte_pad": bytePad,
		})
	}

	out := make([]byte, outLen)
	mask := uint32(1)<<uint(bitLen) - 1

	var acc uint32
	accBits := 0
	j := 0
	for i := range out {
		if accBits < 8 {
			if j+inWidth > len(in) {
				return nil, newError(ErrorInternal, "compress overran input buffer", nil)
			}
			acc <<= uint(bitLen)
			for x := bytePad; x < inWidth; x++ {
				shift := uint(8 * (inWidth - x - 1))
				acc |= uint32(in[j+x]&byte((mask>>shift)&0xff)) << shift
			}
			j += inWidth
			accBits += bitLen
		}
		accBits -= 8
		out[i] = byte(acc >> uint(accBits))
	}
	return out, nil
}

// IndexToBytes writes i as four big-endian bytes so that byte-wise
// comparison of index arrays matches integer comparison.
func IndexToBytes(i uint32) []byte {
	b := make([]byte, IndexSize)
	binary.BigEndian.PutUint32(b, i)
	return b
}

// BytesToIndex reads a four-byte big-endian index.
func BytesToIndex(b []byte) uint32 {
	return binary.BigEndian.Uint32(b[:IndexSize])
}

func indexBitLen(cBitLen int) (bitLen, bytePad int) {
	bitLen = cBitLen + 1
	return bitLen, IndexSize - (bitLen+7)/8
}

// IndicesFromMinimal expands a minimal solution into its index tuple.
func IndicesFromMinimal(minimal []byte, cBitLen int) ([]uint32, error) {
	bitLen, bytePad := indexBitLen(cBitLen)
	if bytePad < 0 {
		return nil, newError(ErrorInvalidLength, "index does not fit in four bytes", map[string]interface{}{
			"collision_bit_length": cBitLen,
		})
	}
	if (len(minimal)*8)%bitLen != 0 {
		return nil, newError(ErrorInvalidLength, "minimal solution is not a whole number of indices", map[string]interface{}{
			"len": len(minimal), "bit_len": bitLen,
		})
	}
	lenIndices := 8 * IndexSize * len(minimal) / bitLen
	expanded, err := ExpandArray(minimal, lenIndices, bitLen, bytePad)
	if err != nil {
		return nil, err
	}
	indices := make([]uint32, 0, lenIndices/IndexSize)
	for i := 0; i < lenIndices; i += IndexSize {
		indices = append(indices, BytesToIndex(expanded[i:]))
	}
	return indices, nil
}

// MinimalFromIndices packs an index tuple into its minimal encoding. Every
// index must be below 2^(cBitLen+1).
func MinimalFromIndices(indices []uint32, cBitLen int) ([]byte, error) {
	bitLen, bytePad := indexBitLen(cBitLen)
	if bytePad < 0 {
		return nil, newError(ErrorInvalidLength, "index does not fit in four bytes", map[string]interface{}{
			"collision_bit_length": cBitLen,
		})
	}
	limit := uint64(1) << uint(bitLen)
	array := make([]byte, len(indices)*IndexSize)
	for n, idx := range indices {
		if uint64(idx) >= limit {
			return nil, newError(ErrorInvalidInput, "index exceeds minimal encoding width", map[string]interface{}{
				"position": n, "index": idx, "bit_len": bitLen,
			})
		}
		binary.BigEndian.PutUint32(array[n*IndexSize:], idx)
	}
	if (len(indices)*bitLen)%8 != 0 {
		return nil, newError(ErrorInvalidLength, "indices do not pack into whole bytes", map[string]interface{}{
			"count": len(indices), "bit_len": bitLen,
		})
	}
	return CompressArray(array, bitLen*len(array)/(8*IndexSize), bitLen, bytePad)
}
