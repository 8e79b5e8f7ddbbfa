package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

// Chime plays the lock-on cue.
type Chime interface {
	Play()
}

// Lock-on tone.
const (
	chimeRate     = beep.SampleRate(44100)
	chimeFreq     = 880
	chimeDuration = 120 * time.Millisecond
)

// SpeakerChime plays a short decaying sine through the default audio
// device.
type SpeakerChime struct {
	mu     sync.Mutex
	closed bool
}

// NewSpeakerChime opens the speaker. Callers treat an error as "no sound".
func NewSpeakerChime() (*SpeakerChime, error) {
	if err := speaker.Init(chimeRate, chimeRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &SpeakerChime{}, nil
}

// Play queues one chime. It never blocks on the audio device.
func (c *SpeakerChime) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	s, err := chimeStreamer(chimeRate)
	if err != nil {
		return
	}
	speaker.Play(s)
}

// Close releases the speaker.
func (c *SpeakerChime) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	speaker.Close()
}

func chimeStreamer(sr beep.SampleRate) (beep.Streamer, error) {
	sine, err := generators.SineTone(sr, chimeFreq)
	if err != nil {
		return nil, err
	}
	n := sr.N(chimeDuration)
	return &decay{streamer: beep.Take(n, sine), total: n}, nil
}

// decay fades a stream linearly to silence over total samples.
type decay struct {
	streamer beep.Streamer
	pos      int
	total    int
}

func (d *decay) Stream(samples [][2]float64) (int, bool) {
	n, ok := d.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		gain := 0.3 * (1 - float64(d.pos)/float64(d.total))
		if gain < 0 {
			gain = 0
		}
		samples[i][0] *= gain
		samples[i][1] *= gain
		d.pos++
	}
	return n, ok
}

func (d *decay) Err() error { return d.streamer.Err() }

type silentChime struct{}

func (silentChime) Play() {}
