package main

import (
	"flag"
	"time"

	"github.com/go-dcc/dccstack"
	"github.com/go-dcc/dccstack/pkg/lp2"
	log "github.com/sirupsen/logrus"
)

var defaultPort = "/dev/ttyUSB0"

func main() {
	log.SetLevel(log.DebugLevel)

	port := flag.String("p", defaultPort, "LokProgrammer serial port")
	cv := flag.Uint("cv", 29, "CV number to read")
	write := flag.Int("write", -1, "value to write to the CV instead of reading it")
	flag.Parse()

	e := lp2.NewEngine(nil)
	if err := e.Connect(*port); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer e.Disconnect()

	done := make(chan struct{})

	if *write >= 0 {
		e.WriteVariable(uint16(*cv), byte(*write), func(code dccstack.ErrorCode) {
			log.Infof("write cv=%d value=%d: %s", *cv, *write, code)
			close(done)
		})
	} else {
		e.ReadVariable(uint16(*cv), func(code dccstack.ErrorCode, value byte) {
			log.Infof("read cv=%d: value=%d status=%s", *cv, value, code)
			close(done)
		})
	}

	for {
		select {
		case <-done:
			return
		default:
			e.Poll()
			time.Sleep(2 * time.Millisecond)
		}
	}
}
