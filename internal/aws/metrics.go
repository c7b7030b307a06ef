package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-product-importflow/internal/lifecycle"
)

// DefaultNamespace is the CloudWatch namespace for tracker gauges.
const DefaultNamespace = "ProductImportFlow"

// MetricsReporter publishes lifecycle store sizes to CloudWatch.
type MetricsReporter struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetricsReporter returns a reporter writing to namespace.
func NewMetricsReporter(client CloudWatchAPI, namespace string) *MetricsReporter {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &MetricsReporter{client: client, namespace: namespace, nowFunc: time.Now}
}

// ReportCounts sends one gauge per store partition.
func (m *MetricsReporter) ReportCounts(ctx context.Context, c lifecycle.Counts) error {
	now := m.nowFunc().UTC()
	gauge := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: awsString(name),
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitCount,
			Value:      float64Ptr(float64(v)),
		}
	}
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.namespace,
		MetricData: []cwtypes.MetricDatum{
			gauge("TrackedProducts", c.Products),
			gauge("UploadedImports", c.Uploaded),
			gauge("FinishedImports", c.Finished),
			gauge("AbortedImports", c.Aborted),
			gauge("StoredResults", c.Results),
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func float64Ptr(v float64) *float64 { return &v }
