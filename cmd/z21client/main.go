package main

import (
	"flag"
	"time"

	"github.com/go-dcc/dccstack/pkg/detector"
	"github.com/go-dcc/dccstack/pkg/z21"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetLevel(log.DebugLevel)

	host := flag.String("host", "192.168.0.111", "Z21 command station IP")
	cv := flag.Uint("cv", 1, "CV number to read")
	write := flag.Int("write", -1, "value to write to the CV instead of reading it")
	flag.Parse()

	sink := z21.EventSink{
		OnVehicleInfo: func(v z21.VehicleInfo) {
			log.Infof("vehicle %d: speed=%d dir=%d", v.Address, v.Speed, v.Direction)
		},
		OnDetectorInfo: func(d detector.DetectorInfo) {
			log.Infof("detector update: %+v", d)
		},
	}

	c := z21.NewClient(z21.DefaultConfig(*host), sink, nil)
	if err := c.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()

	if *write >= 0 {
		if err := c.WriteVariableDirect(uint16(*cv), byte(*write)); err != nil {
			log.Fatalf("write cv=%d: %v", *cv, err)
		}
		log.Infof("write cv=%d value=%d: ok", *cv, *write)
		return
	}

	value, err := c.ReadVariableDirect(uint16(*cv))
	if err != nil {
		log.Fatalf("read cv=%d: %v", *cv, err)
	}
	log.Infof("read cv=%d: value=%d", *cv, value)

	for i := 0; i < 50; i++ {
		c.Tick(time.Now())
		time.Sleep(20 * time.Millisecond)
	}
}
