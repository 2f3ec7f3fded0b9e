package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/lcabon/resq/core/command"
	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoClient implements command.Commander over Eclipse Paho. Acks are
// correlated to commands through the command id carried in the payload.
type PahoClient struct {
	cli      pahoClient
	ackTopic string
	qos      map[string]byte

	ackWaiters *ackTable
	log        logger.Logger
	maxRetries int
	backoff    time.Duration
}

// NewPahoClient connects to the broker and subscribes to the ack topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		ackTopic:   cfg.AckTopic,
		qos:        cfg.QoS,
		ackWaiters: newAckTable(),
		log:        log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(pc.ackTopic, pc.qosFor("ack"), pc.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds paho client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		CommandID string `json:"command_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.log.Errorf("failed to decode ack: %v", err)
		return
	}
	if p.ackWaiters.signal(m.CommandID) {
		p.log.Infof("received ack %s", m.CommandID)
	}
}

// SendCommand publishes the command on the resource specific topic and
// returns the command id used for acknowledgment tracking.
func (p *PahoClient) SendCommand(_ context.Context, resourceID, action string, task *model.Task) (string, error) {
	cmd := command.Command{
		CommandID:  uuid.NewString(),
		ResourceID: resourceID,
		Action:     action,
		Task:       task,
		Timestamp:  time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}

	// Register before publishing so an ack racing the publish is not lost.
	p.ackWaiters.register(cmd.CommandID)

	topic := fmt.Sprintf("resq/resource/%s/command", resourceID)
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qosFor("command"), false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Infof("sent command %s to %s", cmd.CommandID, topic)
			break
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	if publishErr != nil {
		p.ackWaiters.drop(cmd.CommandID)
		return "", publishErr
	}
	return cmd.CommandID, nil
}

// WaitForAck blocks until the command is acknowledged, the timeout
// elapses or the context is canceled.
func (p *PahoClient) WaitForAck(ctx context.Context, commandID string, timeout time.Duration) error {
	ch, ok := p.ackWaiters.channel(commandID)
	if !ok {
		return fmt.Errorf("unknown command %s", commandID)
	}
	defer p.ackWaiters.drop(commandID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("command %s: %w", commandID, command.ErrAckTimeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
