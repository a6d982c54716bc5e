package mqtt_client

import (
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

var (
	mu     sync.RWMutex
	client mqtt.Client
)

// NewMQTTClient connects to endpoint and installs the client as the shared one.
func NewMQTTClient(endpoint, clientID string, optFns ...Option) (mqtt.Client, error) {
	if endpoint == "" {
		return nil, errors.New("mqtt endpoint is required")
	}
	conf := defaultOptionsFromViper()
	for _, fn := range optFns {
		if fn != nil {
			fn(&conf)
		}
	}

	c := mqtt.NewClient(clientOptions(endpoint, clientID, conf))
	tok := c.Connect()
	if !tok.WaitTimeout(conf.ConnectTimeout) {
		return nil, errors.Errorf("mqtt connect timeout after %s", conf.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, errors.Wrap(err, "mqtt connect")
	}

	mu.Lock()
	client = c
	mu.Unlock()
	return c, nil
}

// Client returns the shared client, or nil before NewMQTTClient succeeded.
func Client() mqtt.Client {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

// Disconnect waits up to quiesceMs for in-flight work and drops the client.
func Disconnect(quiesceMs uint) {
	mu.Lock()
	c := client
	client = nil
	mu.Unlock()
	if c != nil && c.IsConnected() {
		c.Disconnect(quiesceMs)
	}
}
