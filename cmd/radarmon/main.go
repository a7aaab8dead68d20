package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/radar.go/pkg/hass"
	"github.com/robotalks/radar.go/pkg/mqtt"
	"github.com/robotalks/radar.go/pkg/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/radar/"
)

func init() {
	if val := os.Getenv("RADAR_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if !strings.HasSuffix(topic, "/report") {
			if topic != hass.StatusTopic && !strings.HasSuffix(topic, "/availability") {
				return
			}
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		m, err := msgs.Decode(payload)
		if err != nil {
			log.Printf("%s: bad report: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, m.String())
	}))
	if err := mqtt.Wait(context.Background(), q.Connect()); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
