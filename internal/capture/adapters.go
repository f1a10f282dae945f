package capture

import (
	"bufio"
	"os"
	"sync"
	"time"
)

// FileTranscriber feeds final transcript lines from a file, one line per
// interval. It lets a non-browser host exercise the full capture path
// without a recognition service.
type FileTranscriber struct {
	Path     string
	Interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

func (f *FileTranscriber) IsSupported() bool { return f.Path != "" }

func (f *FileTranscriber) Start(onUpdate func(string), onFinal func(string), onError func(error)) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return err
	}

	interval := f.Interval
	if interval <= 0 {
		interval = time.Second
	}

	stopCh := make(chan struct{})
	f.mu.Lock()
	f.stopCh = stopCh
	f.mu.Unlock()

	go func() {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				if !scanner.Scan() {
					if err := scanner.Err(); err != nil && onError != nil {
						onError(err)
					}
					return
				}
				onFinal(scanner.Text())
			}
		}
	}()
	return nil
}

func (f *FileTranscriber) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopCh != nil {
		close(f.stopCh)
		f.stopCh = nil
	}
}

// NoopRecorder satisfies the Recorder contract for hosts without a media
// sink.
type NoopRecorder struct{}

func (NoopRecorder) Start() error { return nil }
func (NoopRecorder) Stop() error  { return nil }

// PCMFrame converts 16-bit PCM samples to the normalized floats the
// detector consumes.
func PCMFrame(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}
