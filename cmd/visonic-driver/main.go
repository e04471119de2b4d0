// Command visonic-driver connects to a Visonic PowerMax/PowerMaster
// panel and relays its live state to Redis, mirroring the teacher's
// cmd/bluetooth-service/main.go flag-driven entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/wwolkers/pyvisonic/internal/transport"
	"github.com/wwolkers/pyvisonic/pkg/driver"
)

var errInvalidCode = errors.New("override code must be 4 hex digits")

func main() {
	device := flag.String("device", "/dev/ttyUSB0", "serial device path")
	baud := flag.Int("baud", 9600, "serial baud rate")
	tcpAddr := flag.String("tcp", "", "connect over TCP instead of serial (host:port)")
	redisAddr := flag.String("redis", "localhost:6379", "redis address for the event/state sink")
	redisDB := flag.Int("redis-db", 0, "redis database index")
	overrideCode := flag.String("override-code", "5650", "4-digit installer download code")
	pluginLanguage := flag.String("language", "EN", "zone-type display language (EN, NL)")
	forceStandard := flag.Bool("force-standard", false, "skip EPROM download and run in Standard mode")
	autoSyncTime := flag.Bool("auto-sync-time", true, "sync panel clock on connect")
	enableRemoteArm := flag.Bool("enable-remote-arm", true, "allow arm/disarm commands from the sink")
	enableSensorBypass := flag.Bool("enable-sensor-bypass", false, "allow bypass commands from the sink")
	motionOffDelay := flag.Duration("motion-off-delay", 2*time.Minute, "delay before a motion sensor is reported clear")
	flag.Parse()

	logger := log.New(os.Stderr, "visonic: ", log.LstdFlags)

	code, err := parseDownloadCode(*overrideCode)
	if err != nil {
		logger.Fatalf("invalid override code: %v", err)
	}

	var tr transport.Transport
	if *tcpAddr != "" {
		tr, err = transport.OpenTCP(*tcpAddr, 10*time.Second)
	} else {
		tr, err = transport.OpenSerial(*device, *baud)
	}
	if err != nil {
		logger.Fatalf("open transport: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := driver.Open(ctx, tr, driver.Config{
		MotionOffDelay:     *motionOffDelay,
		OverrideCode:       code,
		PluginLanguage:     *pluginLanguage,
		ForceStandard:      *forceStandard,
		AutoSyncTime:       *autoSyncTime,
		EnableRemoteArm:    *enableRemoteArm,
		EnableSensorBypass: *enableSensorBypass,
		RedisAddr:          *redisAddr,
		RedisDB:            *redisDB,
	}, logger)
	if err != nil {
		logger.Fatalf("start driver: %v", err)
	}
	defer d.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Print("shutting down")
}

func parseDownloadCode(s string) ([2]byte, error) {
	var code [2]byte
	if len(s) != 4 {
		return code, errInvalidCode
	}
	hi, err := parseHexByte(s[0:2])
	if err != nil {
		return code, err
	}
	lo, err := parseHexByte(s[2:4])
	if err != nil {
		return code, err
	}
	code[0], code[1] = hi, lo
	return code, nil
}

func parseHexByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, errInvalidCode
	}
	return byte(v), nil
}
