// Package transport provides the byte-oriented full-duplex stream the
// protocol engine speaks over: a serial line or a TCP socket to the panel.
package transport

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Transport is the external collaborator the protocol engine depends on.
// It must preserve order and deliver every byte; lost bytes manifest as
// framer CRC errors and are counted, not retried at this layer.
type Transport interface {
	// Write sends bytes to the panel. Implementations must not block the
	// caller past the underlying driver's write buffering.
	Write(p []byte) (int, error)
	// Read blocks until at least one byte is available.
	Read(p []byte) (int, error)
	Close() error
}

// OpenSerial opens an 8N1 serial line to the panel at the given baud
// rate (the panel speaks 9600), mirroring the nRF52 UART setup in the
// teacher's pkg/usock.New.
func OpenSerial(device string, baud int) (Transport, error) {
	cfg := &serial.Config{
		Name:        device,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 0,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return &serialTransport{port: port}, nil
}

type serialTransport struct {
	port *serial.Port
	mu   sync.Mutex
}

func (s *serialTransport) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Write(p)
}

func (s *serialTransport) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *serialTransport) Close() error {
	return s.port.Close()
}

// OpenTCP dials a TCP connection to a serial-to-IP bridge, the alternative
// transport named in §6.
func OpenTCP(addr string, timeout time.Duration) (Transport, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &tcpTransport{conn: conn}, nil
}

type tcpTransport struct {
	conn net.Conn
	mu   sync.Mutex
}

func (t *tcpTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Write(p)
}

func (t *tcpTransport) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

// ReadLoop reads one byte at a time from t and calls onByte for each,
// until t is closed or the stop channel fires. It mirrors the teacher's
// usock.readLoop byte-at-a-time discipline, which the framer (§4.2)
// depends on for its strictly incremental per-byte state machine.
func ReadLoop(t Transport, stop <-chan struct{}, onByte func(byte)) {
	buf := make([]byte, 1)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := t.Read(buf)
		if err != nil {
			if err == io.EOF {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}
		onByte(buf[0])
	}
}
