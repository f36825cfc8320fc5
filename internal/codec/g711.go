package codec

// G.711 companding as described in ITU-T G.711.

const (
	muBias = 0x84
	muClip = 32635
)

var alawSegEnd = [8]int{0x1F, 0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF}

// LinearToMulaw compresses a 16-bit sample to mu-law.
func LinearToMulaw(s int16) byte {
	v := int(s)
	sign := 0
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muClip {
		v = muClip
	}
	v += muBias
	exp := 7
	for mask := 0x4000; v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mantissa := (v >> (exp + 3)) & 0x0F
	return ^byte(sign | exp<<4 | mantissa)
}

// MulawToLinear expands a mu-law code to a 16-bit sample.
func MulawToLinear(u byte) int16 {
	u = ^u
	exp := int(u>>4) & 0x07
	v := ((int(u&0x0F) << 3) + muBias) << exp
	v -= muBias
	if u&0x80 != 0 {
		return int16(-v)
	}
	return int16(v)
}

// LinearToAlaw compresses a 16-bit sample to A-law.
func LinearToAlaw(s int16) byte {
	pcm := int(s) >> 3
	mask := 0xD5
	if pcm < 0 {
		mask = 0x55
		pcm = -pcm - 1
	}
	seg := len(alawSegEnd)
	for i, end := range alawSegEnd {
		if pcm <= end {
			seg = i
			break
		}
	}
	if seg >= len(alawSegEnd) {
		return byte(0x7F ^ mask)
	}
	aval := seg << 4
	if seg < 2 {
		aval |= (pcm >> 1) & 0x0F
	} else {
		aval |= (pcm >> seg) & 0x0F
	}
	return byte(aval ^ mask)
}

// AlawToLinear expands an A-law code to a 16-bit sample.
func AlawToLinear(a byte) int16 {
	a ^= 0x55
	t := int(a&0x0F) << 4
	switch seg := int(a&0x70) >> 4; seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}
