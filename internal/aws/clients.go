package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients bundles the service clients used by the import flow.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

// NewAWSClients loads AWS config once and builds every client from it.
func NewAWSClients(ctx context.Context, s Settings) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx, s)
	if err != nil {
		return nil, err
	}

	return &AWSClients{
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		SQS:        sqs.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}, nil
}

// TransitionPublisher returns a Publisher for queueURL, or nil when no queue is configured.
func (c *AWSClients) TransitionPublisher(queueURL string) *Publisher {
	if c == nil || queueURL == "" {
		return nil
	}
	return NewPublisher(c.SQS, queueURL)
}

// CountsReporter returns a MetricsReporter for namespace, or nil when metrics are off.
func (c *AWSClients) CountsReporter(namespace string) *MetricsReporter {
	if c == nil || namespace == "" {
		return nil
	}
	return NewMetricsReporter(c.CloudWatch, namespace)
}
