// Package bridge adapts the UI's media element to the sync core's player
// contract. Commands go out over the session connection; the UI reports
// its playback events back, and the position is extrapolated by wall
// clock between reports while playing.
package bridge

import (
	"sync"
	"time"
)

type SendFunc func(event string, payload any) error

type Player struct {
	send SendFunc

	mu         sync.Mutex
	paused     bool
	rate       float64
	position   float64
	reportedAt time.Time
}

func NewPlayer(send SendFunc) *Player {
	return &Player{
		send:       send,
		paused:     true,
		rate:       1.0,
		reportedAt: time.Now(),
	}
}

func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentTimeLocked()
}

func (p *Player) currentTimeLocked() float64 {
	if p.paused {
		return p.position
	}

	return p.position + time.Since(p.reportedAt).Seconds()*p.rate
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) PlaybackRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Play marks the adapter playing immediately; the UI's own play event
// arrives later and is a no-op by then.
func (p *Player) Play() error {
	p.mu.Lock()
	p.position = p.currentTimeLocked()
	p.reportedAt = time.Now()
	p.paused = false
	p.mu.Unlock()

	return p.send("PLAYER_PLAY", nil)
}

func (p *Player) Pause() error {
	p.mu.Lock()
	p.position = p.currentTimeLocked()
	p.reportedAt = time.Now()
	p.paused = true
	p.mu.Unlock()

	return p.send("PLAYER_PAUSE", nil)
}

func (p *Player) Seek(seconds float64) error {
	p.mu.Lock()
	p.position = seconds
	p.reportedAt = time.Now()
	p.mu.Unlock()

	return p.send("PLAYER_SEEK", map[string]float64{"time": seconds})
}

func (p *Player) SetPlaybackRate(rate float64) error {
	p.mu.Lock()
	p.position = p.currentTimeLocked()
	p.reportedAt = time.Now()
	p.rate = rate
	p.mu.Unlock()

	return p.send("PLAYER_RATE", map[string]float64{"rate": rate})
}

// ReportTime records a timeupdate from the UI's media element.
func (p *Player) ReportTime(seconds float64) {
	p.mu.Lock()
	p.position = seconds
	p.reportedAt = time.Now()
	p.mu.Unlock()
}

func (p *Player) ReportPlay(seconds float64) {
	p.mu.Lock()
	p.position = seconds
	p.reportedAt = time.Now()
	p.paused = false
	p.mu.Unlock()
}

func (p *Player) ReportPause(seconds float64) {
	p.mu.Lock()
	p.position = seconds
	p.reportedAt = time.Now()
	p.paused = true
	p.mu.Unlock()
}

func (p *Player) ReportRate(rate float64) {
	p.mu.Lock()
	p.position = p.currentTimeLocked()
	p.reportedAt = time.Now()
	p.rate = rate
	p.mu.Unlock()
}
