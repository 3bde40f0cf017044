package lp2

import (
	"io"

	"github.com/tarm/serial"
)

// serialBaudRate and serialDataBits mirror the LokProgrammer's fixed link
// parameters (spec §4.4, §6): 115200 8N1, hardware flow control, DTR held
// low after open.
const (
	serialBaudRate = 115200
	serialDataBits = 8
)

// Transport is the byte-stream link the engine reads and writes frames
// over. A *serial.Port satisfies it directly; tests substitute an in-memory
// io.ReadWriteCloser.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// OpenSerial opens the LokProgrammer's serial port at the fixed LP2 link
// parameters via tarm/serial. Hardware flow control and DTR-low are properties
// of the LokProgrammer's own driver handshake and are not configurable
// through tarm/serial's Config; this call sets the parameters the library
// does expose (baud, data bits, parity, stop bits).
func OpenSerial(portName string) (Transport, error) {
	cfg := &serial.Config{
		Name:     portName,
		Baud:     serialBaudRate,
		Size:     serialDataBits,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	}
	return serial.OpenPort(cfg)
}
