package queue

import (
	"sync"
	"time"
)

// Timers runs the three cooperative timers spec §4.4 describes: a fast
// tick that drains the Sender's queue, a Powerlink watchdog that fires
// a Restore when the panel goes quiet, and a download-retry backoff
// that fires once each time ArmRetry schedules it.
//
// Grounded on the teacher's stopCh/goroutine-per-concern shape
// (pkg/service/service.go); here three independent goroutines share
// one stop channel instead of one.
type Timers struct {
	tickInterval     time.Duration
	watchdogInterval time.Duration
	retryBackoff     time.Duration

	onTick     func(time.Time)
	onWatchdog func()
	onRetry    func()

	mu       sync.Mutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
	lastSeen time.Time

	retryCh chan time.Duration
}

// DefaultTickInterval is the queue-flush/keep-alive cadence (spec §4.4).
const DefaultTickInterval = 100 * time.Millisecond

// DefaultWatchdogInterval is the Powerlink keep-alive timeout (spec §4.4).
const DefaultWatchdogInterval = 60 * time.Second

// DefaultRetryBackoff is the download-retry delay used when ArmRetry is
// given a delay that is not positive (spec §4.4, §4.5).
const DefaultRetryBackoff = 5 * time.Second

// NewTimers builds a Timers with the spec's default intervals. Any of
// onTick/onWatchdog/onRetry may be nil to disable that timer.
func NewTimers(onTick func(time.Time), onWatchdog, onRetry func()) *Timers {
	return &Timers{
		tickInterval:     DefaultTickInterval,
		watchdogInterval: DefaultWatchdogInterval,
		retryBackoff:     DefaultRetryBackoff,
		onTick:           onTick,
		onWatchdog:       onWatchdog,
		onRetry:          onRetry,
		retryCh:          make(chan time.Duration, 1),
	}
}

// ArmRetry (re-)schedules the download-retry timer to fire once after
// d, the panel-supplied delay byte from a Download-Retry (0x25) frame
// (spec §4.4/§4.5); a d that is not positive uses the default
// backoff. Safe to call
// concurrently with the retry goroutine; a pending unconsumed request
// is replaced rather than queued.
func (t *Timers) ArmRetry(d time.Duration) {
	if t.onRetry == nil {
		return
	}
	select {
	case <-t.retryCh:
	default:
	}
	select {
	case t.retryCh <- d:
	default:
	}
}

// Touch resets the watchdog deadline; call it whenever a frame is
// received from the panel (spec §4.4: watchdog only fires on silence).
func (t *Timers) Touch(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen = now
}

// Start launches the timer goroutines. Stop must be called to release
// them.
func (t *Timers) Start() {
	t.stopCh = make(chan struct{})
	t.mu.Lock()
	t.lastSeen = time.Now()
	t.mu.Unlock()

	if t.onTick != nil {
		t.wg.Add(1)
		go t.runTick()
	}
	if t.onWatchdog != nil {
		t.wg.Add(1)
		go t.runWatchdog()
	}
	if t.onRetry != nil {
		t.wg.Add(1)
		go t.runRetry()
	}
}

// Stop halts all timer goroutines and waits for them to exit.
func (t *Timers) Stop() {
	if t.stopCh == nil {
		return
	}
	close(t.stopCh)
	t.wg.Wait()
}

func (t *Timers) runTick() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case now := <-ticker.C:
			t.onTick(now)
		}
	}
}

func (t *Timers) runWatchdog() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.watchdogInterval / 4)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case now := <-ticker.C:
			t.mu.Lock()
			silent := now.Sub(t.lastSeen) >= t.watchdogInterval
			if silent {
				t.lastSeen = now
			}
			t.mu.Unlock()
			if silent {
				t.onWatchdog()
			}
		}
	}
}

// runRetry waits on a single-shot timer rather than a fixed ticker: the
// timer starts stopped and fires only after ArmRetry schedules it with
// the panel's own Download-Retry value (spec §4.4/§4.5), which varies
// frame to frame; it does not re-arm itself after firing.
func (t *Timers) runRetry() {
	defer t.wg.Done()
	timer := time.NewTimer(t.retryBackoff)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case d := <-t.retryCh:
			if d <= 0 {
				d = t.retryBackoff
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d)
		case <-timer.C:
			t.onRetry()
		}
	}
}
