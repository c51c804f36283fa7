package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/wakeword/pkg/audio"
)

func collect(t *testing.T, ch <-chan []float32) [][]float32 {
	t.Helper()
	var chunks [][]float32
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, c)
		case <-timeout:
			t.Fatal("timed out waiting for source to close")
		}
	}
}

func TestChanSource(t *testing.T) {
	src := NewChanSource(2)
	ch, err := src.Start(context.Background())
	require.NoError(t, err)

	_, err = src.Start(context.Background())
	assert.ErrorIs(t, err, ErrStarted)

	assert.True(t, src.Push([]float32{1}))
	assert.True(t, src.Push([]float32{2}))
	assert.False(t, src.Push([]float32{3}))
	assert.Equal(t, uint64(1), src.Dropped())

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.False(t, src.Push([]float32{4}))

	assert.Equal(t, [][]float32{{1}, {2}}, collect(t, ch))
}

func TestChanSourceClosesWithContext(t *testing.T) {
	src := NewChanSource(1)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Start(ctx)
	require.NoError(t, err)

	cancel()
	assert.Empty(t, collect(t, ch))
}

func TestSampleSourceChunks(t *testing.T) {
	samples := make([]float32, 5000)
	for i := range samples {
		samples[i] = float32(i)
	}
	src := NewSampleSource(samples, 2048, false)
	assert.Equal(t, 5000, src.Len())

	ch, err := src.Start(context.Background())
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2048)
	assert.Len(t, chunks[1], 2048)
	assert.Len(t, chunks[2], 904)
	assert.Equal(t, float32(4096), chunks[2][0])
	require.NoError(t, src.Close())
}

func TestSampleSourcePaced(t *testing.T) {
	// 160 samples per chunk is 10ms at 16kHz
	src := NewSampleSource(make([]float32, 800), 160, true)
	start := time.Now()
	ch, err := src.Start(context.Background())
	require.NoError(t, err)

	chunks := collect(t, ch)
	assert.Len(t, chunks, 5)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSampleSourceCloseStopsReplay(t *testing.T) {
	src := NewSampleSource(make([]float32, 16000*10), 160, true)
	ch, err := src.Start(context.Background())
	require.NoError(t, err)

	<-ch
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	collect(t, ch)
}

func TestNewWAVSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, audio.WriteWAV(f, make([]float32, 4800), 48000))
	require.NoError(t, f.Close())

	src, err := NewWAVSource(path, 400, false)
	require.NoError(t, err)
	assert.InDelta(t, 1600, src.Len(), 64)

	_, err = NewWAVSource(filepath.Join(dir, "missing.wav"), 400, false)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMicrophoneCloseBeforeStart(t *testing.T) {
	mic := NewMicrophone(MicrophoneConfig{})
	assert.NoError(t, mic.Close())
	assert.Equal(t, uint64(0), mic.Dropped())
}

func TestMicrophoneStart(t *testing.T) {
	if os.Getenv("WAKEWORD_TEST_MICROPHONE") == "" {
		t.Skip("set WAKEWORD_TEST_MICROPHONE to capture from the default device")
	}

	mic := NewMicrophone(DefaultMicrophoneConfig())
	ch, err := mic.Start(context.Background())
	if err != nil {
		require.ErrorIs(t, err, ErrUnavailable)
		t.Skipf("no capture device: %v", err)
	}
	defer mic.Close()

	select {
	case chunk := <-ch:
		assert.NotEmpty(t, chunk)
	case <-time.After(2 * time.Second):
		t.Fatal("no audio received")
	}
}
