package stepsynth

import (
	"fmt"
	"io"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// LoadSample decodes a WAV file and resamples it to sampleRate. Every
// failure wraps ErrDecodeFailure.
func LoadSample(r io.ReadSeeker, sampleRate int) (*audio.Float32Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid target rate %d", ErrDecodeFailure, sampleRate)
	}
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a wav file", ErrDecodeFailure)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: invalid wav buffer", ErrDecodeFailure)
	}
	numCh, srcRate := buf.Format.NumChannels, buf.Format.SampleRate
	if srcRate <= 0 {
		return nil, fmt.Errorf("%w: invalid wav sample-rate %d", ErrDecodeFailure, srcRate)
	}
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, fmt.Errorf("%w: empty wav data", ErrDecodeFailure)
	}
	if srcRate == sampleRate {
		return &audio.Float32Buffer{
			Format:         &audio.Format{NumChannels: numCh, SampleRate: sampleRate},
			Data:           buf.Data[:frames*numCh],
			SourceBitDepth: buf.SourceBitDepth,
		}, nil
	}

	var out [][]float64
	for ch := 0; ch < numCh; ch++ {
		in := make([]float64, frames)
		for i := range frames {
			in[i] = float64(buf.Data[i*numCh+ch])
		}
		rs, err := dspresample.NewForRates(
			float64(srcRate),
			float64(sampleRate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
		}
		out = append(out, rs.Process(in))
	}
	n := len(out[0])
	for _, o := range out[1:] {
		n = min(n, len(o))
	}
	data := make([]float32, n*numCh)
	for i := range n {
		for ch := range numCh {
			data[i*numCh+ch] = float32(out[ch][i])
		}
	}
	return &audio.Float32Buffer{
		Format:         &audio.Format{NumChannels: numCh, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: buf.SourceBitDepth,
	}, nil
}

// LoadSampleInstrument decodes r and adds it to lib as a sample instrument
// named name. Nothing is added when decoding fails.
func LoadSampleInstrument(lib *Library, name string, r io.ReadSeeker, sampleRate int) (*Instrument, error) {
	buf, err := LoadSample(r, sampleRate)
	if err != nil {
		return nil, err
	}
	return lib.AddSampleInstrument(name, buf), nil
}
