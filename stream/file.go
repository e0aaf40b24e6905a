package stream

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/cycle/signal"
)

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")
	// ErrInvalidFile is returned when a file cannot be decoded.
	ErrInvalidFile = errors.New("invalid audio file")
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

type pcmDecoder interface {
	IsValidFile() bool
	FullPCMBuffer() (*audio.IntBuffer, error)
}

// Load reads a wav or aiff file into a new stream, picking the decoder
// by file extension.
func Load(path string) (*Stream, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return LoadWav(path)
	case ".aif", ".aiff":
		return LoadAiff(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadWav reads a wav file into a new stream.
func LoadWav(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(wav.NewDecoder(f), path)
}

// LoadAiff reads an aiff file into a new stream.
func LoadAiff(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(aiff.NewDecoder(f), path)
}

func decode(d pcmDecoder, path string) (*Stream, error) {
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, fmt.Errorf("%w: %s has no channels", ErrInvalidFile, path)
	}
	bitDepth := signal.BitDepth(buf.SourceBitDepth)
	if !supported(bitDepth) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	floats := signal.InterInt{
		Data:        buf.Data,
		NumChannels: buf.Format.NumChannels,
		BitDepth:    bitDepth,
	}.AsFloat64()
	if floats == nil {
		return New(buf.Format.NumChannels, buf.Format.SampleRate), nil
	}
	return FromFloat64(floats, buf.Format.SampleRate), nil
}

// SaveWav writes all frames of the stream into a wav file.
func (s *Stream) SaveWav(path string, bitDepth signal.BitDepth) error {
	if !supported(bitDepth) {
		return ErrUnsupportedBitDepth
	}
	floats := s.Float64()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	e := wav.NewEncoder(f, s.sampleRate, int(bitDepth), floats.NumChannels(), 1)
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: floats.NumChannels(),
			SampleRate:  s.sampleRate,
		},
		Data:           floats.AsInterInt(bitDepth),
		SourceBitDepth: int(bitDepth),
	}
	if err := e.Write(ib); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := e.Close(); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func supported(bitDepth signal.BitDepth) bool {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
		return true
	}
	return false
}
