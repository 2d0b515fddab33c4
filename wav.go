package stepsynth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-audio/audio"
)

const wavHeaderSize = 44

// EncodeWAV encodes buf as 16-bit PCM WAV with the canonical 44-byte
// header. Samples are clamped to [-1, 1]; negative values scale by 0x8000
// and positive values by 0x7FFF.
func EncodeWAV(buf *audio.Float32Buffer) ([]byte, error) {
	if buf == nil || buf.Format == nil {
		return nil, errors.New("wav: missing buffer format")
	}
	channels, sampleRate := buf.Format.NumChannels, buf.Format.SampleRate
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid format %d ch @ %d Hz", channels, sampleRate)
	}
	if len(buf.Data)%channels != 0 {
		return nil, fmt.Errorf("wav: %d samples is not a whole number of %d-channel frames", len(buf.Data), channels)
	}
	blockAlign := channels * 2
	dataSize := len(buf.Data) * 2
	out := make([]byte, wavHeaderSize+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(out[wavHeaderSize+i*2:], uint16(pcm16(s)))
	}
	return out, nil
}

func pcm16(s float32) int16 {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s < -1:
		s = -1
	case s > 1:
		s = 1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}
