package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatMuLaw      = 7
	wavFormatExtensible = 0xFFFE
)

// ErrUnsupportedWAV is returned for WAV encodings ReadWAV cannot decode.
var ErrUnsupportedWAV = errors.New("audio: unsupported wav format")

// WAV is a decoded mono clip.
type WAV struct {
	Samples    []float32
	SampleRate int
	// Channels is the channel count of the source before downmixing.
	Channels int
}

// DurationMs returns the clip length in milliseconds.
func (w *WAV) DurationMs() int {
	if w.SampleRate == 0 {
		return 0
	}
	return len(w.Samples) * 1000 / w.SampleRate
}

// ReadWAVFile opens path and decodes it with ReadWAV.
func ReadWAVFile(path string) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w, err := ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return w, nil
}

// ReadWAV decodes 16-bit PCM, 32-bit float or 8-bit μ-law RIFF/WAVE data.
// Multi-channel input is averaged to mono; no resampling is done.
func ReadWAV(r io.Reader) (*WAV, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("wav header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedWAV)
	}

	var (
		format, channels, bits uint16
		sampleRate             uint32
		haveFmt                bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: no data chunk", ErrUnsupportedWAV)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("wav fmt chunk: %w", err)
			}
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bits = binary.LittleEndian.Uint16(body[14:16])
			if format == wavFormatExtensible && size >= 26 {
				format = binary.LittleEndian.Uint16(body[24:26])
			}
			haveFmt = true
			if size%2 == 1 {
				io.CopyN(io.Discard, r, 1)
			}

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrUnsupportedWAV)
			}
			data := make([]byte, size)
			n, err := io.ReadFull(r, data)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("wav data chunk: %w", err)
			}
			return decodeWAVData(data[:n], format, channels, bits, sampleRate)

		default:
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("%w: truncated %q chunk", ErrUnsupportedWAV, id)
			}
		}
	}
}

func decodeWAVData(data []byte, format, channels, bits uint16, sampleRate uint32) (*WAV, error) {
	if channels == 0 || sampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWAV, channels, sampleRate)
	}

	var interleaved []float32
	switch {
	case format == wavFormatPCM && bits == 16:
		interleaved = S16LEToFloat32(data)
	case format == wavFormatFloat && bits == 32:
		interleaved = F32LEToFloat32(data)
	case format == wavFormatMuLaw && bits == 8:
		interleaved = MuLawToFloat32(data)
	default:
		return nil, fmt.Errorf("%w: format %d with %d bits", ErrUnsupportedWAV, format, bits)
	}

	return &WAV{
		Samples:    Downmix(interleaved, int(channels)),
		SampleRate: int(sampleRate),
		Channels:   int(channels),
	}, nil
}

// WriteWAV encodes mono samples as 16-bit PCM WAV.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	pcm := Float32ToS16LE(samples)

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
