package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// EncodeWAV serialises a waveform as a 16-bit mono PCM WAV file. Samples
// outside [-1, 1] are clipped rather than wrapped.
func EncodeWAV(w Waveform) []byte {
	const (
		bitsPerSample = 16
		channels      = 1
	)
	dataLen := len(w.Samples) * 2
	byteRate := w.SampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(w.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range w.Samples {
		buf.Write(sampleToPCM16(s))
	}
	return buf.Bytes()
}

// sampleToPCM16 converts one normalised sample to little-endian int16 bytes.
func sampleToPCM16(s float64) []byte {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	v := int16(math.Round(s * 32767))
	return []byte{byte(uint16(v)), byte(uint16(v) >> 8)}
}

// DecodePCM16 folds interleaved little-endian int16 PCM into mono samples
// normalised to [-1, 1]. Used by device backends whose drivers deliver raw
// integer buffers. Odd trailing bytes are dropped.
func DecodePCM16(data []byte, channels int) []float64 {
	if channels <= 0 {
		channels = 1
	}
	n := len(data) / 2
	frames := n / channels
	out := make([]float64, 0, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			v := int16(uint16(data[off]) | uint16(data[off+1])<<8)
			sum += float64(v) / 32768
		}
		out = append(out, sum/float64(channels))
	}
	return out
}
