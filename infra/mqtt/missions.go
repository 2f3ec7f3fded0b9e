package mqtt

import (
	"context"
	"encoding/json"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/lcabon/resq/core/mission"
	"github.com/lcabon/resq/infra/logger"
)

// MissionHandler processes one decoded mission request.
type MissionHandler func(ctx context.Context, req mission.Request)

// MissionListener subscribes to the mission request topic and hands each
// decoded request to the handler. Malformed payloads are logged and
// dropped; the feed must survive a bad publisher.
type MissionListener struct {
	cli     pahoClient
	topic   string
	handler MissionHandler
	log     logger.Logger
}

// NewMissionListener connects to the broker and starts consuming
// mission requests.
func NewMissionListener(cfg Config, handler MissionHandler) (*MissionListener, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	l := &MissionListener{
		topic:   cfg.MissionTopic,
		handler: handler,
		log:     logger.New("mission_listener"),
	}
	opts.OnConnect = func(c paho.Client) {
		if token := c.Subscribe(l.topic, 1, l.onMessage); token.Wait() && token.Error() != nil {
			l.log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		l.log.Errorf("connection lost: %v", err)
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	l.cli = cli
	return l, nil
}

func (l *MissionListener) onMessage(_ paho.Client, msg paho.Message) {
	var req mission.Request
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		l.log.Errorf("invalid mission request payload: %v", err)
		return
	}
	l.log.Infof("mission request received: %s from %s", req.Mission, req.UserID)
	go l.handler(context.Background(), req)
}

// Disconnect closes the broker connection.
func (l *MissionListener) Disconnect() {
	if l.cli != nil && l.cli.IsConnected() {
		l.cli.Disconnect(250)
	}
}
