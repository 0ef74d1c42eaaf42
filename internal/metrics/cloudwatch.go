package metrics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	namespace                = "MAGDA/Composer"
	httpStatusServerError    = 500
	cloudwatchTimeoutSeconds = 5
)

// metricPutter is the subset of the CloudWatch client we use
type metricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Client wraps CloudWatch client for custom metrics
type Client struct {
	client      metricPutter
	enabled     bool
	environment string
}

// NewClient creates a new CloudWatch metrics client
func NewClient(ctx context.Context, environment string) (*Client, error) {
	// Only enable in production
	if environment != "production" {
		log.Printf("📊 CloudWatch Metrics: DISABLED (environment: %s)", environment)
		return &Client{
			enabled:     false,
			environment: environment,
		}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load AWS config for CloudWatch: %v", err)
		return &Client{enabled: false}, nil
	}

	client := cloudwatch.NewFromConfig(cfg)
	log.Printf("📊 CloudWatch Metrics: ✅ ENABLED (namespace: %s)", namespace)

	return &Client{
		client:      client,
		enabled:     true,
		environment: environment,
	}, nil
}

// RecordAPIRequest records an API request metric
func (m *Client) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	metricName := "APIRequests"
	if statusCode >= httpStatusServerError {
		metricName = "APIErrors"
	}
	dims := m.dimensions("Endpoint", endpoint)
	m.emit(
		datum(metricName, 1, types.StandardUnitCount, dims),
		datum("APILatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dims),
	)
}

// RecordComposition records a finished pipeline run
func (m *Client) RecordComposition(duration time.Duration, success, vocals bool) {
	dims := m.dimensions("Success", boolToString(success), "Vocals", boolToString(vocals))
	m.emit(
		datum("Compositions", 1, types.StandardUnitCount, dims),
		datum("CompositionDuration", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dims),
	)
}

// RecordRetrievalTier counts which fallback tier served retrieval
func (m *Client) RecordRetrievalTier(tier int) {
	m.emit(datum("RetrievalTier", 1, types.StandardUnitCount, m.dimensions("Tier", fmt.Sprintf("%d", tier))))
}

// RecordStageFailure counts failures per pipeline state
func (m *Client) RecordStageFailure(state string) {
	m.emit(datum("StageFailures", 1, types.StandardUnitCount, m.dimensions("State", state)))
}

// emit sends data asynchronously so request handling is never blocked
func (m *Client) emit(data ...types.MetricDatum) {
	if m == nil || !m.enabled {
		return
	}

	go func() {
		if err := m.putMetrics(data); err != nil {
			log.Printf("Failed to record CloudWatch metrics: %v", err)
		}
	}()
}

// putMetrics sends metrics to CloudWatch
func (m *Client) putMetrics(data []types.MetricDatum) error {
	if !m.enabled || m.client == nil {
		return nil
	}

	timeout := time.Duration(cloudwatchTimeoutSeconds) * time.Second
	cwCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := m.client.PutMetricData(cwCtx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(namespace),
		MetricData: data,
	})
	return err
}

// dimensions builds name/value pairs plus the Environment dimension
func (m *Client) dimensions(pairs ...string) []types.Dimension {
	dims := make([]types.Dimension, 0, len(pairs)/2+1)
	for i := 0; i+1 < len(pairs); i += 2 {
		dims = append(dims, types.Dimension{
			Name:  aws.String(pairs[i]),
			Value: aws.String(pairs[i+1]),
		})
	}
	return append(dims, types.Dimension{
		Name:  aws.String("Environment"),
		Value: aws.String(m.environment),
	})
}

func datum(name string, value float64, unit types.StandardUnit, dims []types.Dimension) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dims,
	}
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
