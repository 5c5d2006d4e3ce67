package alert

import (
	"strings"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the Publisher based on flags. Without brokers events
// are only logged.
func Configured() Publisher {
	brokers := lflag.String("alert-kafka-brokers", "", "Comma separated Kafka brokers for anomaly alerts (empty logs alerts instead)")
	topic := lflag.String("alert-kafka-topic", "solarwatch.anomalies", "Kafka topic for anomaly alerts")

	var p struct{ Publisher }

	lflag.Do(func() {
		var addrs []string
		for _, b := range strings.Split(*brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				addrs = append(addrs, b)
			}
		}
		if len(addrs) == 0 {
			p.Publisher = LogPublisher{}
			return
		}
		p.Publisher = NewKafkaPublisher(addrs, *topic)
	})

	return &p
}
