package mqtt

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/infra/logger"
)

// PahoResourceDiscovery implements directory.Source over MQTT broadcast.
// It publishes a magic word on a broadcast topic and collects resource
// announcements from a response topic for a short window.
type PahoResourceDiscovery struct {
	cli            pahoClient
	broadcastTopic string
	responseTopic  string
	magicWord      string
	window         time.Duration
	log            logger.Logger
}

// NewPahoResourceDiscovery connects to the broker and returns a
// discovery instance.
func NewPahoResourceDiscovery(cfg Config) (*PahoResourceDiscovery, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	d := &PahoResourceDiscovery{
		broadcastTopic: cfg.BroadcastTopic,
		responseTopic:  cfg.ResponseTopic,
		magicWord:      cfg.MagicWord,
		window:         time.Duration(cfg.DiscoveryWindowS) * time.Second,
		log:            logger.New("resource_discovery"),
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		d.log.Errorf("connection lost: %v", err)
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	d.cli = cli
	return d, nil
}

// Discover broadcasts the magic word and collects announcements until
// the window closes.
func (d *PahoResourceDiscovery) Discover(ctx context.Context) ([]model.ResourceCandidate, error) {
	var (
		resources []model.ResourceCandidate
		found     = make(chan model.ResourceCandidate, 32)
	)
	if token := d.cli.Subscribe(d.responseTopic, 0, func(_ paho.Client, m paho.Message) {
		var r model.ResourceCandidate
		if err := json.Unmarshal(m.Payload(), &r); err != nil {
			d.log.Errorf("invalid announcement payload: %v", err)
			return
		}
		select {
		case found <- r:
		default:
		}
	}); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	if token := d.cli.Publish(d.broadcastTopic, 0, false, []byte(d.magicWord)); token.Wait() && token.Error() != nil {
		d.unsubscribe()
		return nil, token.Error()
	}

	timer := time.NewTimer(d.window)
	defer timer.Stop()
loop:
	for {
		select {
		case r := <-found:
			resources = append(resources, r)
		case <-ctx.Done():
			break loop
		case <-timer.C:
			break loop
		}
	}

	d.unsubscribe()
	d.log.Debugf("discovery round collected %d resources", len(resources))
	return resources, nil
}

func (d *PahoResourceDiscovery) unsubscribe() {
	if token := d.cli.Unsubscribe(d.responseTopic); token.Wait() && token.Error() != nil {
		d.log.Errorf("unsubscribe error: %v", token.Error())
	}
}

// Disconnect closes the broker connection.
func (d *PahoResourceDiscovery) Disconnect() {
	if d.cli != nil && d.cli.IsConnected() {
		d.cli.Disconnect(250)
	}
}

// StaticDiscovery serves a fixed fleet, used in tests and dry runs.
type StaticDiscovery struct {
	Resources []model.ResourceCandidate
}

func (s StaticDiscovery) Discover(_ context.Context) ([]model.ResourceCandidate, error) {
	return s.Resources, nil
}
