// Package driver wires the transport, framer, sender/timers, handshake
// state machine and Redis sink into one running session (spec §6),
// grounded on the teacher's cmd/bluetooth-service/main.go init
// sequence and pkg/service/service.go's Service struct.
package driver

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/wwolkers/pyvisonic/internal/command"
	"github.com/wwolkers/pyvisonic/internal/eprom"
	"github.com/wwolkers/pyvisonic/internal/frame"
	"github.com/wwolkers/pyvisonic/internal/handshake"
	"github.com/wwolkers/pyvisonic/internal/live"
	"github.com/wwolkers/pyvisonic/internal/panel"
	"github.com/wwolkers/pyvisonic/internal/queue"
	"github.com/wwolkers/pyvisonic/internal/sink"
	"github.com/wwolkers/pyvisonic/internal/transport"
)

// keepAliveIdle is how long the link must go without a received frame
// or a keep-alive send before the tick timer injects an "I'm Alive" keep-alive plus a status poll
// (spec §4.4).
const keepAliveIdle = 20 * time.Second

// Config is the full set of driver configuration options named in
// spec §6.
type Config struct {
	MotionOffDelay     time.Duration
	OverrideCode       [2]byte
	PluginLanguage     string
	ForceStandard      bool
	AutoSyncTime       bool
	EnableRemoteArm    bool
	EnableSensorBypass bool

	RedisAddr string
	RedisDB   int
}

// Driver is one running session against a panel.
type Driver struct {
	cfg    Config
	tr     transport.Transport
	framer *frame.Framer
	sender *queue.Sender
	timers *queue.Timers
	hs     *handshake.Machine
	sinkC  *sink.Client

	mu        sync.Mutex
	state     panel.State
	zones     []*panel.Sensor
	idleSince time.Time

	logger *log.Logger
}

// Open starts a session over tr, publishing state to redisAddr.
// Mirrors the teacher main.go's "connect transport, connect redis,
// then start handlers" sequencing.
func Open(ctx context.Context, tr transport.Transport, cfg Config, logger *log.Logger) (*Driver, error) {
	if logger == nil {
		logger = log.Default()
	}

	var sinkC *sink.Client
	if cfg.RedisAddr != "" {
		var err error
		sinkC, err = sink.New(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
	}

	d := &Driver{
		cfg:       cfg,
		tr:        tr,
		framer:    frame.NewFramer(),
		sinkC:     sinkC,
		logger:    logger,
		idleSince: time.Now(),
	}

	d.sender = queue.NewSender(func(f []byte) error {
		_, err := tr.Write(f)
		return err
	})

	d.hs = handshake.New(handshake.Config{
		DownloadCode:  cfg.OverrideCode,
		ForceStandard: cfg.ForceStandard,
		AutoSyncTime:  cfg.AutoSyncTime,
	}, func(e handshake.SendEntry) {
		d.sender.Enqueue(queue.Entry{Frame: e.Frame, Expected: e.Expected, WaitForAck: e.WaitForAck})
	}, d.sender.Flush)

	d.timers = queue.NewTimers(
		func(now time.Time) {
			d.maybeSendKeepAlive(now)
			if err := d.sender.Tick(now); err != nil {
				d.logger.Printf("visonic: send failed: %v", err)
			}
		},
		d.onWatchdog,
		d.onDownloadRetry,
	)

	d.timers.Start()
	d.hs.Start()

	go d.readLoop(ctx)
	if sinkC != nil {
		go d.commandLoop(ctx)
	}

	return d, nil
}

func (d *Driver) readLoop(ctx context.Context) {
	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()
	transport.ReadLoop(d.tr, stop, func(b byte) {
		out, ok, crcErr := d.framer.Feed(b)
		now := time.Now()
		if crcErr {
			if d.hs.HandleCRCError() {
				d.sender.Reset()
			}
			return
		}
		if !ok {
			return
		}
		d.timers.Touch(now)
		d.mu.Lock()
		d.idleSince = now
		d.mu.Unlock()
		d.handleFrame(out, now)
	})
}

// maybeSendKeepAlive implements the §4.4 tick keep-alive: once the link
// has gone quiet for keepAliveIdle and nothing else is queued or being
// downloaded, nudge the panel with an "I'm Alive" plus a status poll so
// a silent link doesn't trip the Powerlink watchdog.
func (d *Driver) maybeSendKeepAlive(now time.Time) {
	if d.hs.Mode() == panel.ModeDownload {
		return
	}
	d.mu.Lock()
	idle := now.Sub(d.idleSince)
	d.mu.Unlock()
	if idle < keepAliveIdle || d.sender.Pending() > 0 {
		return
	}

	d.sender.Enqueue(queue.Entry{Frame: command.KeepAlive(), Expected: []frame.Type{frame.TypeAck}, WaitForAck: true})
	d.sender.Enqueue(queue.Entry{Frame: command.StatusPoll(), Expected: []frame.Type{frame.TypeStatus}, WaitForAck: true})

	d.mu.Lock()
	d.idleSince = now
	d.mu.Unlock()
}

func (d *Driver) handleFrame(raw []byte, now time.Time) {
	t := frame.Type(raw[1])
	payload := raw[2 : len(raw)-2]

	d.sender.OnFrameReceived(t)
	if retryAfter := d.hs.HandleFrame(t, payload, now); retryAfter > 0 {
		d.timers.ArmRetry(retryAfter)
	}

	d.mu.Lock()
	if d.zones == nil {
		if zones := d.hs.Zones(); zones != nil {
			// The inventory holds only the zones enrolled in this decode.
			d.zones = make([]*panel.Sensor, 0, len(zones))
			for _, z := range zones {
				if z.Enrolled {
					d.zones = append(d.zones, z)
				}
			}
		}
	}
	switch t {
	case frame.TypeStatus:
		live.DecodeStatus(payload, &d.state, d.zones)
	case frame.TypeEventChange:
		bell := eprom.Comms(d.hs.EPROM()).BellTimeMinutes
		if live.DecodeEventChange(payload, &d.state, bell, now) {
			d.mu.Unlock()
			d.hs.Start()
			d.mu.Lock()
		}
	case frame.TypePowerlink:
		if live.DecodePowerlink(payload) == live.PowerlinkAutoEnroll {
			d.hs.HandlePowerlinkAutoEnroll()
		}
	case frame.TypePowerMaster:
		live.DecodePowerMaster(payload, &d.state, d.zones)
	}
	d.state.Mode = d.hs.Mode()
	stateCopy := d.state
	zonesCopy := make([]*panel.Sensor, len(d.zones))
	for i, z := range d.zones {
		zonesCopy[i] = z.Clone()
	}
	d.mu.Unlock()

	if d.sinkC != nil {
		ctx := context.Background()
		if err := d.sinkC.WriteState(ctx, &stateCopy, zonesCopy); err != nil {
			d.logger.Printf("visonic: publish state: %v", err)
		}
	}
}

func (d *Driver) onWatchdog() {
	d.logger.Print("visonic: powerlink watchdog fired, requesting restore")
	d.sender.Enqueue(queue.Entry{Frame: command.Restore(), Expected: []frame.Type{frame.TypeStatus}, WaitForAck: true})
}

func (d *Driver) onDownloadRetry() {
	if d.hs.Mode() != panel.ModeDownload {
		return
	}
	d.logger.Print("visonic: download retry backoff fired")
	d.hs.Start()
}

func (d *Driver) commandLoop(ctx context.Context) {
	err := d.sinkC.SubscribeCommands(ctx, d.handleCommand)
	if err != nil && ctx.Err() == nil {
		d.logger.Printf("visonic: command subscription ended: %v", err)
	}
}

func (d *Driver) handleCommand(cmd sink.Command) {
	switch cmd.Name {
	case "arm_away":
		if !d.cfg.EnableRemoteArm {
			return
		}
		d.sender.Enqueue(queue.Entry{Frame: command.ArmDisarm(command.ArmAway, d.cfg.OverrideCode), Expected: []frame.Type{frame.TypeAck}, WaitForAck: true})
	case "arm_home":
		if !d.cfg.EnableRemoteArm {
			return
		}
		d.sender.Enqueue(queue.Entry{Frame: command.ArmDisarm(command.ArmHome, d.cfg.OverrideCode), Expected: []frame.Type{frame.TypeAck}, WaitForAck: true})
	case "disarm":
		if !d.cfg.EnableRemoteArm {
			return
		}
		d.sender.Enqueue(queue.Entry{Frame: command.ArmDisarm(command.ArmDisarm0, d.cfg.OverrideCode), Expected: []frame.Type{frame.TypeAck}, WaitForAck: true})
	case "bypass":
		if !d.cfg.EnableSensorBypass {
			return
		}
		zone, set, ok := bypassArgs(cmd.Args)
		if !ok {
			return
		}
		d.sender.Enqueue(queue.Entry{Frame: command.Bypass(zone, set, d.cfg.OverrideCode), Expected: []frame.Type{frame.TypeAck}, WaitForAck: true})
		d.sender.Enqueue(queue.Entry{Frame: command.BypassStatusRequest(), Expected: []frame.Type{frame.TypeStatus}, WaitForAck: true})
	case "get_event_log":
		d.sender.Enqueue(queue.Entry{Frame: command.GetEventLog(d.cfg.OverrideCode), Expected: []frame.Type{frame.TypeEventLog}, WaitForAck: true})
	}
}

// bypassArgs pulls the zone index and set/clear flag out of a CBOR-
// decoded command envelope's Args map (spec §6/§4.9 Bypass operation).
func bypassArgs(args map[string]interface{}) (zone int, set bool, ok bool) {
	zf, zok := args["zone"].(float64)
	if !zok {
		return 0, false, false
	}
	s, _ := args["set"].(bool)
	return int(zf), s, true
}

// GetSensor returns a snapshot of one zone's current state (spec §4.9),
// or nil if the zone isn't enrolled.
func (d *Driver) GetSensor(zone int) *panel.Sensor {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, z := range d.zones {
		if z.Zone == zone {
			return z.Clone()
		}
	}
	return nil
}

// GetSensorChanges compares the live inventory against a prior
// snapshot and returns the sensors whose observable fields differ
// (spec §4.9 delta-snapshot operation).
func (d *Driver) GetSensorChanges(prior []*panel.Sensor) []*panel.Sensor {
	d.mu.Lock()
	defer d.mu.Unlock()

	byZone := make(map[int]*panel.Sensor, len(prior))
	for _, p := range prior {
		byZone[p.Zone] = p
	}

	var changed []*panel.Sensor
	for _, z := range d.zones {
		old, ok := byZone[z.Zone]
		if !ok || !z.Equal(old) {
			changed = append(changed, z.Clone())
		}
	}
	return changed
}

// State returns a snapshot of the current panel status.
func (d *Driver) State() panel.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close stops the driver's background goroutines and releases its
// resources.
func (d *Driver) Close() error {
	d.timers.Stop()
	if d.sinkC != nil {
		return d.sinkC.Close()
	}
	return nil
}
