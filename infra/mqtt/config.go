package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	AckTopic   string          `json:"ack_topic"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	QoS        map[string]byte `json:"qos"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`

	// Discovery round tuning.
	BroadcastTopic   string `json:"broadcast_topic"`
	ResponseTopic    string `json:"response_topic"`
	MagicWord        string `json:"magic_word"`
	DiscoveryWindowS int    `json:"discovery_window_s"`

	// MissionTopic carries inbound mission requests.
	MissionTopic string `json:"mission_topic"`

	TLSConfig *tls.Config `json:"-"`
}

// SetDefaults fills the topics and timings left empty.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "resq"
	}
	if c.AckTopic == "" {
		c.AckTopic = "resq/resource/ack"
	}
	if c.BroadcastTopic == "" {
		c.BroadcastTopic = "resq/resource/discover"
	}
	if c.ResponseTopic == "" {
		c.ResponseTopic = "resq/resource/announce"
	}
	if c.MagicWord == "" {
		c.MagicWord = "report-in"
	}
	if c.DiscoveryWindowS <= 0 {
		c.DiscoveryWindowS = 2
	}
	if c.MissionTopic == "" {
		c.MissionTopic = "resq/mission/request"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the broker address is set.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	return nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
