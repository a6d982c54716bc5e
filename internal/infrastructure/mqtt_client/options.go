package mqtt_client

import (
	"crypto/tls"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okieraised/ahu-fdd/internal/config"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/okieraised/ahu-fdd/internal/utilities"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Options struct {
	Logger                *log.Logger
	ConnectionLostHandler mqtt.ConnectionLostHandler
	ReconnectHandler      mqtt.ReconnectHandler
	CleanSession          bool
	AutoReconnect         bool
	ConnectRetry          bool
	ResumeSubs            bool
	TLSInsecureSkip       bool
	WriteTimeout          time.Duration
	KeepAlive             time.Duration
	PingTimeout           time.Duration
	MaxReconnectInterval  time.Duration
	ConnectTimeout        time.Duration
	ConnectRetryInterval  time.Duration

	TLSConfig *tls.Config
}

type Option func(*Options)

func WithLogger(l *log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
func WithConnectionLostHandler(h mqtt.ConnectionLostHandler) Option {
	return func(o *Options) { o.ConnectionLostHandler = h }
}
func WithReconnectHandler(h mqtt.ReconnectHandler) Option {
	return func(o *Options) { o.ReconnectHandler = h }
}
func WithCleanSession(v bool) Option {
	return func(o *Options) { o.CleanSession = v }
}
func WithAutoReconnect(v bool) Option {
	return func(o *Options) { o.AutoReconnect = v }
}
func WithConnectRetry(v bool) Option {
	return func(o *Options) { o.ConnectRetry = v }
}
func WithTLSInsecureSkipVerify(v bool) Option {
	return func(o *Options) { o.TLSInsecureSkip = v }
}
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.WriteTimeout = d }
}
func WithKeepAlive(d time.Duration) Option {
	return func(o *Options) { o.KeepAlive = d }
}
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *Options) { o.TLSConfig = cfg }
}

func getBool(key string, def bool) bool {
	if !viper.IsSet(key) {
		return def
	}
	return viper.GetBool(key)
}

// readDuration accepts "10s"/"500ms", a bare number of seconds, or a native
// duration.
func readDuration(key string, def time.Duration) time.Duration {
	if !viper.IsSet(key) {
		return def
	}
	d, err := utilities.PositiveDuration(viper.Get(key))
	if err != nil {
		return def
	}
	return d
}

func isSecureScheme(u string) bool {
	s := strings.ToLower(u)
	return strings.HasPrefix(s, "mqtts://") || strings.HasPrefix(s, "ssl://") ||
		strings.HasPrefix(s, "tls://") || strings.HasPrefix(s, "wss://")
}

func defaultOptionsFromViper() Options {
	return Options{
		CleanSession:         getBool(config.MqttCleanSession, true),
		AutoReconnect:        getBool(config.MqttAutoReconnect, true),
		ConnectRetry:         getBool(config.MqttConnectRetry, true),
		ResumeSubs:           getBool(config.MqttResumeSubs, true),
		TLSInsecureSkip:      getBool(config.MqttTLSInsecureSkipVerify, false),
		WriteTimeout:         readDuration(config.MqttWriteTimeout, constants.MqttDefaultWriteTimeout),
		KeepAlive:            readDuration(config.MqttKeepAliveDuration, constants.MqttDefaultKeepAlive),
		PingTimeout:          readDuration(config.MqttPingTimeout, constants.MqttDefaultPingTimeout),
		MaxReconnectInterval: readDuration(config.MqttMaxConnectInterval, constants.MqttDefaultMaxReconnectInterval),
		ConnectTimeout:       readDuration(config.MqttConnectTimeout, constants.MqttDefaultConnectTimeout),
		ConnectRetryInterval: readDuration(config.MqttConnectRetryInterval, constants.MqttDefaultConnectRetryInterval),
	}
}

// clientOptions turns Options into paho options. Report publishing never
// subscribes, so inbound messages are only logged.
func clientOptions(endpoint, clientID string, conf Options) *mqtt.ClientOptions {
	lg := conf.Logger
	if lg == nil {
		lg = log.Default().Named("mqtt")
	}
	lost := conf.ConnectionLostHandler
	if lost == nil {
		lost = func(_ mqtt.Client, err error) {
			lg.Warn("mqtt connection lost", zap.String("broker", endpoint), zap.Error(err))
		}
	}
	reconnect := conf.ReconnectHandler
	if reconnect == nil {
		reconnect = func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			lg.Info("mqtt reconnecting", zap.String("broker", endpoint))
		}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(endpoint).
		SetClientID(clientID).
		SetDefaultPublishHandler(func(_ mqtt.Client, m mqtt.Message) {
			lg.Debug("unexpected mqtt message", zap.String("topic", m.Topic()))
		}).
		SetConnectionLostHandler(lost).
		SetReconnectingHandler(reconnect).
		SetCleanSession(conf.CleanSession).
		SetAutoReconnect(conf.AutoReconnect).
		SetConnectRetry(conf.ConnectRetry).
		SetConnectRetryInterval(conf.ConnectRetryInterval).
		SetMaxReconnectInterval(conf.MaxReconnectInterval).
		SetWriteTimeout(conf.WriteTimeout).
		SetKeepAlive(conf.KeepAlive).
		SetPingTimeout(conf.PingTimeout).
		SetResumeSubs(conf.ResumeSubs).
		SetConnectTimeout(conf.ConnectTimeout)

	switch {
	case conf.TLSConfig != nil:
		opts.SetTLSConfig(conf.TLSConfig)
	case isSecureScheme(endpoint):
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: conf.TLSInsecureSkip}) // #nosec G402
	}
	return opts
}
