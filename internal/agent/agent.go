// Package agent turns configuration into the engine pieces main wires
// together: thresholds, column bindings, run defaults and sinks.
package agent

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/okieraised/ahu-fdd/internal/config"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/okieraised/ahu-fdd/internal/fdd/rules"
	"github.com/okieraised/ahu-fdd/internal/fdd/runner"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/okieraised/ahu-fdd/internal/ingest"
	"github.com/okieraised/ahu-fdd/internal/sink"
	"github.com/okieraised/ahu-fdd/internal/utilities"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Registry builds the rule registry from fdd.thresholds.
func Registry() (*rules.Registry, error) {
	reg, err := rules.NewRegistry(thresholds())
	if err != nil {
		return nil, errors.Wrap(err, "build rule registry")
	}
	return reg, nil
}

func thresholds() rules.Thresholds {
	return rules.ThresholdsFromMap(viper.GetStringMap(config.FDDThresholds))
}

// Columns builds the column map. Labels from fdd.ontology.labels are resolved
// through the cache first; explicit fdd.columns bindings win over them.
func Columns(ctx context.Context, cache *ristretto.Cache, logger *log.Logger) (columns.ColumnMap, error) {
	explicit, ignored := columns.FromConfig(viper.GetStringMap(config.FDDColumns))
	if len(ignored) > 0 {
		logger.Warn("ignoring unknown column bindings", zap.Strings("keys", ignored))
	}

	labels, ignored := columns.FromConfig(viper.GetStringMap(config.FDDOntologyLabels))
	if len(ignored) > 0 {
		logger.Warn("ignoring unknown ontology labels", zap.Strings("keys", ignored))
	}
	if len(labels) == 0 {
		return explicit, nil
	}

	var resolver columns.Resolver = columns.StaticResolver(labels)
	if cache != nil {
		ttl := constants.FDDDefaultOntologyCacheTTL
		if viper.IsSet(config.FDDOntologyCacheTTL) {
			d, err := utilities.PositiveDuration(viper.Get(config.FDDOntologyCacheTTL))
			if err != nil {
				return nil, errors.Wrapf(err, "read %s", config.FDDOntologyCacheTTL)
			}
			ttl = d
		}
		resolver = columns.NewCachedResolver(siteID(), resolver, cache, ttl)
	}
	resolved, err := columns.FromResolver(ctx, resolver, columns.Roles)
	if err != nil {
		return nil, err
	}
	return resolved.Merge(explicit), nil
}

// RunDefaults reads the fdd.* run settings over runner.DefaultOptions.
func RunDefaults() (runner.Options, error) {
	opts := runner.DefaultOptions()
	opts.SiteID = siteID()
	opts.Excluded = viper.GetStringSlice(config.FDDExcluded)
	// either fdd.troubleshoot or TROUBLESHOOT_MODE under fdd.thresholds turns it on
	opts.Troubleshoot = viper.GetBool(config.FDDTroubleshoot) || thresholds().Troubleshoot()
	opts.DropNaN = viper.GetBool(config.FDDDropNaN)

	if viper.IsSet(config.FDDWorkers) {
		n, err := cast.ToIntE(viper.Get(config.FDDWorkers))
		if err != nil || n <= 0 {
			return opts, errors.Errorf("%s must be a positive integer, got %v", config.FDDWorkers, viper.Get(config.FDDWorkers))
		}
		opts.Workers = n
	}
	if viper.IsSet(config.FDDResampleEnabled) {
		opts.Resample.Enabled = viper.GetBool(config.FDDResampleEnabled)
	}
	for key, dst := range map[string]*time.Duration{
		config.FDDResampleWindow:    &opts.Resample.Window,
		config.FDDResampleThreshold: &opts.Resample.Threshold,
	} {
		if !viper.IsSet(key) {
			continue
		}
		d, err := utilities.PositiveDuration(viper.Get(key))
		if err != nil {
			return opts, errors.Wrapf(err, "read %s", key)
		}
		*dst = d
	}
	if viper.IsSet(config.FDDConstantSATSetpoint) {
		sp, err := cast.ToFloat64E(viper.Get(config.FDDConstantSATSetpoint))
		if err != nil {
			return opts, errors.Wrapf(err, "parse %s", config.FDDConstantSATSetpoint)
		}
		opts.ConstantSATSetpoint = &sp
	}
	return opts, nil
}

// IngestOptions reads fdd.index_column.
func IngestOptions() []ingest.Option {
	if col := viper.GetString(config.FDDIndexColumn); col != "" {
		return []ingest.Option{ingest.WithIndexColumn(col)}
	}
	return nil
}

// Sinks pairs each enabled publisher with the name reported by the healthcheck.
type Sinks struct {
	Names     []string
	Publisher sink.Multi
}

// NewSinks builds MQTT and Kafka publishers for whichever clients are non-nil.
func NewSinks(mqttClient sink.MQTTClient, kafkaWriter sink.KafkaWriter) Sinks {
	var s Sinks
	if mqttClient != nil {
		prefix := viper.GetString(config.MqttReportTopicPrefix)
		if prefix == "" {
			prefix = constants.FDDDefaultMQTTTopicPrefix
		}
		opts := []sink.MQTTOption{
			sink.WithTopicPrefix(prefix),
			sink.WithRetained(viper.GetBool(config.MqttReportRetained)),
		}
		if viper.IsSet(config.MqttReportQoS) {
			opts = append(opts, sink.WithQoS(byte(viper.GetUint(config.MqttReportQoS))))
		}
		s.Names = append(s.Names, "mqtt")
		s.Publisher = append(s.Publisher, sink.NewMQTTSink(mqttClient, opts...))
	}
	if kafkaWriter != nil {
		s.Names = append(s.Names, "kafka")
		s.Publisher = append(s.Publisher, sink.NewKafkaSink(kafkaWriter))
	}
	return s
}

// NewKafkaWriter returns nil when no brokers are configured.
func NewKafkaWriter() sink.KafkaWriter {
	brokers := viper.GetStringSlice(config.KafkaBrokers)
	if len(brokers) == 0 {
		return nil
	}
	topic := viper.GetString(config.KafkaReportTopic)
	if topic == "" {
		topic = constants.FDDDefaultKafkaReportTopic
	}
	return sink.NewKafkaWriter(brokers, topic)
}

// LoadInput reads the one-shot dataset from fdd.input_path, or from the
// configured S3 object when no path is set.
func LoadInput(ctx context.Context, objects ingest.ObjectGetter) (*frame.Frame, ingest.Stats, error) {
	opts := IngestOptions()
	if path := viper.GetString(config.FDDInputPath); path != "" {
		return ingest.ReadFile(path, opts...)
	}
	bucket, key := viper.GetString(config.FDDInputS3Bucket), viper.GetString(config.FDDInputS3Key)
	if bucket == "" || key == "" {
		return nil, ingest.Stats{}, errors.Errorf("%s or %s/%s must be set", config.FDDInputPath, config.FDDInputS3Bucket, config.FDDInputS3Key)
	}
	if objects == nil {
		return nil, ingest.Stats{}, errors.New("s3 input configured but s3 client is disabled")
	}
	return ingest.FromS3(ctx, objects, bucket, key, opts...)
}

// Executor runs a prepared dataset; the FDD service satisfies it.
type Executor interface {
	Execute(ctx context.Context, f *frame.Frame, cm columns.ColumnMap, opts runner.Options) (*runner.Report, error)
}

// RunOnce loads the configured input, runs it and logs the outcome.
func RunOnce(ctx context.Context, exec Executor, objects ingest.ObjectGetter, cm columns.ColumnMap, opts runner.Options, logger *log.Logger) (*runner.Report, error) {
	f, stats, err := LoadInput(ctx, objects)
	if err != nil {
		return nil, errors.Wrap(err, "load batch input")
	}
	report, err := exec.Execute(ctx, f, cm, opts)
	if err != nil {
		return nil, err
	}
	logger.ForRun(report.RunID, report.SiteID).Info("batch run finished",
		zap.Int("rows", report.Rows),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("evaluated", len(report.Evaluated())),
		zap.Int("skipped", len(report.Skipped())),
	)
	return report, nil
}

func siteID() string {
	if id := viper.GetString(config.FDDSiteID); id != "" {
		return id
	}
	return viper.GetString(config.AgentID)
}
