package config

const (
	AgentID                 = "agent.id"
	AgentEnableMonitoring   = "agent.enable_monitoring"
	AgentMonitoringPort     = "agent.monitoring_port"
	AgentLogLevel           = "agent.log_level"
	AgentHTTPPort           = "agent.http_port"
	AgentHTTPMode           = "agent.http_mode"
	AgentHTTPRequestTimeout = "agent.http_request_timeout"
	AgentHTTPMaxUploadMB    = "agent.http_max_upload_mb"
	AgentTLSCertFile        = "agent.tls_cert_file"
	AgentTLSKeyFile         = "agent.tls_key_file"
	AgentTLSClientCAFile    = "agent.tls_client_ca_file"
	AgentEnableGRPC         = "agent.enable_grpc"
	AgentGRPCPort           = "agent.grpc_port"
	AgentEnableMQTT         = "agent.enable_mqtt"
	AgentEnableKafka        = "agent.enable_kafka"
	AgentEnableTracing      = "agent.enable_tracing"
	AgentEnableS3           = "agent.enable_s3"
)

const (
	MqttEndpoint              = "mqtt.endpoint"
	MqttCleanSession          = "mqtt.clean_session"
	MqttClientId              = "mqtt.client_id"
	MqttAutoReconnect         = "mqtt.auto_reconnect"
	MqttConnectRetry          = "mqtt.connect_retry"
	MqttMaxConnectInterval    = "mqtt.max_connect_interval"
	MqttWriteTimeout          = "mqtt.write_timeout"
	MqttPingTimeout           = "mqtt.ping_timeout"
	MqttKeepAliveDuration     = "mqtt.keep_alive_duration"
	MqttResumeSubs            = "mqtt.resume_subs"
	MqttConnectTimeout        = "mqtt.connect_timeout"
	MqttConnectRetryInterval  = "mqtt.connect_retry_interval"
	MqttTLSInsecureSkipVerify = "mqtt.tls_insecure_skip_verify"
	MqttReportTopicPrefix     = "mqtt.report_topic_prefix"
	MqttReportQoS             = "mqtt.report_qos"
	MqttReportRetained        = "mqtt.report_retained"
)

const (
	KafkaBrokers     = "kafka.brokers"
	KafkaReportTopic = "kafka.report_topic"
)

const (
	S3Region                = "s3.region"
	S3Endpoint              = "s3.endpoint"
	S3AccessKey             = "s3.access_key"
	S3SecretKey             = "s3.secret_key"
	S3UsePathStyle          = "s3.use_path_style"
	S3TLSInsecureSkipVerify = "s3.tls_insecure_skip_verify"
)

const (
	TracingEndpoint    = "tracing.endpoint"
	TracingInsecure    = "tracing.insecure"
	TracingServiceName = "tracing.service_name"
	TracingNamespace   = "tracing.namespace"
	TracingSampleRatio = "tracing.sample_ratio"
)

const (
	FDDSiteID              = "fdd.site_id"
	FDDColumns             = "fdd.columns"
	FDDThresholds          = "fdd.thresholds"
	FDDExcluded            = "fdd.excluded"
	FDDWorkers             = "fdd.workers"
	FDDTroubleshoot        = "fdd.troubleshoot"
	FDDDropNaN             = "fdd.drop_nan"
	FDDResampleEnabled     = "fdd.resample_enabled"
	FDDResampleWindow      = "fdd.resample_window"
	FDDResampleThreshold   = "fdd.resample_threshold"
	FDDConstantSATSetpoint = "fdd.constant_sat_setpoint"
	FDDOntologyLabels      = "fdd.ontology.labels"
	FDDOntologyCacheTTL    = "fdd.ontology.cache_ttl"

	FDDOntologyCacheNumCounters = "fdd.ontology.cache.num_counters"
	FDDOntologyCacheMaxCost     = "fdd.ontology.cache.max_cost"
	FDDOntologyCacheBufferItems = "fdd.ontology.cache.buffer_items"
	FDDOntologyCacheTTLTick     = "fdd.ontology.cache.ttl_tick"
	FDDOntologyCacheMetrics     = "fdd.ontology.cache.metrics"

	FDDRunOnStart          = "fdd.run_on_start"
	FDDInputPath           = "fdd.input_path"
	FDDInputS3Bucket       = "fdd.input_s3_bucket"
	FDDInputS3Key          = "fdd.input_s3_key"
	FDDIndexColumn         = "fdd.index_column"
)
