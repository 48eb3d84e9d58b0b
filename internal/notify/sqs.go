package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
	"github.com/ignite/email-tracker/internal/pkg/metrics"
)

const sqsSendTimeout = 5 * time.Second

// SQSAPI is the part of *sqs.Client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends every notification to a queue as JSON. Sends happen in
// the background so a slow queue never delays a webhook response.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
}

// NewSQSPublisher creates a publisher for queueURL. m may be nil.
func NewSQSPublisher(client SQSAPI, queueURL string, m *metrics.Metrics) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL, metrics: m}
}

// Publish implements Subscriber.
func (p *SQSPublisher) Publish(_ context.Context, n domain.Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		logger.Error("marshal notification", "type", n.Type, "error", err)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sqsSendTimeout)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
			MessageAttributes: map[string]types.MessageAttributeValue{
				"type": {DataType: aws.String("String"), StringValue: aws.String(string(n.Type))},
			},
		})
		if err != nil {
			logger.Error("publishing notification to SQS", "type", n.Type, "message_id", n.MessageID, "error", err)
			return
		}
		p.metrics.Notification("sqs", string(n.Type))
	}()
}

// Close waits for in-flight sends.
func (p *SQSPublisher) Close() { p.wg.Wait() }
