package media

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// EncodeMuLaw compresses PCM16 samples to G.711 µ-law bytes.
func EncodeMuLaw(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = linearToMuLaw(s)
	}
	return out
}

// DecodeMuLaw expands G.711 µ-law bytes to PCM16 samples.
func DecodeMuLaw(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = muLawToLinear(b)
	}
	return out
}

func linearToMuLaw(sample int16) byte {
	v := int(sample)
	sign := 0
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	exponent := 7
	for mask := 0x4000; v&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (v >> (exponent + 3)) & 0x0F
	return ^byte(sign | exponent<<4 | mantissa)
}

func muLawToLinear(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := int(b>>4) & 0x07
	mantissa := int(b & 0x0F)
	v := ((mantissa << 3) + muLawBias) << exponent
	v -= muLawBias
	if sign != 0 {
		return int16(-v)
	}
	return int16(v)
}

// Resample converts f to rate using linear interpolation.
func Resample(f Frame, rate int) Frame {
	if rate <= 0 || f.SampleRate <= 0 || f.SampleRate == rate || len(f.Samples) == 0 {
		if rate > 0 {
			f.SampleRate = rate
		}
		return f
	}

	n := int(int64(len(f.Samples)) * int64(rate) / int64(f.SampleRate))
	out := make([]int16, n)
	ratio := float64(f.SampleRate) / float64(rate)
	last := len(f.Samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = f.Samples[last]
			continue
		}
		frac := pos - float64(idx)
		s0, s1 := float64(f.Samples[idx]), float64(f.Samples[idx+1])
		out[i] = int16(s0 + frac*(s1-s0))
	}
	return Frame{Samples: out, SampleRate: rate}
}
