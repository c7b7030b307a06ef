package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/imrishuroy/go-product-importflow/internal/lifecycle"
)

// Publisher sends messages to one SQS queue. FIFO queues (URL ending in
// ".fifo") get a message group and deduplication id on every send.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
	fifo     bool
}

// Message is one outgoing queue message.
type Message struct {
	Body       string
	Attributes map[string]string
	GroupID    string
	DedupID    string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// NotifyTransition publishes t as a JSON message so downstream consumers
// learn when an import finished or was aborted. An identity settles once,
// so id and status form a stable deduplication id.
func (p *Publisher) NotifyTransition(ctx context.Context, t lifecycle.Transition) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}
	return p.Send(ctx, Message{
		Body: string(body),
		Attributes: map[string]string{
			"event":  "import.settled",
			"id":     t.ID.String(),
			"status": t.Status.String(),
		},
		GroupID: t.ID.String(),
		DedupID: t.ID.String() + ":" + t.Status.String(),
	})
}

func (p *Publisher) Send(ctx context.Context, m Message) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    awsString(p.QueueURL),
		MessageBody: awsString(m.Body),
	}
	if p.fifo {
		group := m.GroupID
		if group == "" {
			group = "default"
		}
		input.MessageGroupId = awsString(group)
		if m.DedupID != "" {
			input.MessageDeduplicationId = awsString(m.DedupID)
		}
	}
	for k, v := range m.Attributes {
		if v == "" {
			continue
		}
		if input.MessageAttributes == nil {
			input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{}
		}
		input.MessageAttributes[k] = sqstypes.MessageAttributeValue{
			DataType:    awsString("String"),
			StringValue: awsString(v),
		}
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send to %s: %w", p.QueueURL, err)
	}
	return nil
}

func awsString(s string) *string { return &s }
