package constants

import "time"

const (
	AgentDefaultHTTPPort       = 8080
	AgentDefaultMonitoringPort = 6060
	AgentDefaultGRPCPort       = 9090
	AgentDefaultMaxUploadMB    = 64
)

const (
	DefaultHTTPRequestTimeout = 60
	GraceWaitPeriod           = 10 * time.Second
)

const (
	MqttDefaultWriteTimeout         = 10 * time.Second
	MqttDefaultKeepAlive            = 30 * time.Second
	MqttDefaultPingTimeout          = 5 * time.Second
	MqttDefaultMaxReconnectInterval = 30 * time.Second
	MqttDefaultConnectTimeout       = 10 * time.Second
	MqttDefaultConnectRetryInterval = 10 * time.Second
)

const (
	FDDDefaultOntologyCacheTTL = time.Hour
	FDDDefaultKafkaReportTopic = "fdd.reports"
	FDDDefaultMQTTTopicPrefix  = "fdd/ahu"
)
