package transport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/email-tracker/internal/config"
	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

// SESAPI is the part of *sesv2.Client the transport uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends raw MIME through SES v2 so every custom header survives.
type SES struct {
	client SESAPI
}

// NewSES creates an SES transport around an existing client.
func NewSES(client SESAPI) *SES {
	return &SES{client: client}
}

// LoadAWSConfig loads AWS configuration, preferring static keys when both are
// set and the default credential chain otherwise.
func LoadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if c.AccessKey != "" && c.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// NewSESFromConfig creates an SES transport from AWS configuration.
func NewSESFromConfig(cfg aws.Config) *SES {
	return NewSES(sesv2.NewFromConfig(cfg))
}

// Name implements sending.Transport.
func (s *SES) Name() domain.Provider { return domain.ProviderSES }

// Send implements sending.Transport and returns the SES message id.
func (s *SES) Send(ctx context.Context, msg *domain.Message) (string, error) {
	raw, err := rawMIME(msg)
	if err != nil {
		return "", err
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From.String()),
		Destination: &types.Destination{
			ToAddresses:  emails(msg.To),
			CcAddresses:  emails(msg.Cc),
			BccAddresses: emails(msg.Bcc),
		},
		Content: &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	}
	if set := msg.Header(domain.HeaderSESConfigurationSet); set != "" {
		input.ConfigurationSetName = aws.String(set)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	id := aws.ToString(out.MessageId)
	logger.Debug("ses message accepted", "email", firstRecipient(msg), "ses_id", id)
	return id, nil
}

func firstRecipient(msg *domain.Message) string {
	if len(msg.To) == 0 {
		return ""
	}
	return msg.To[0].Email
}
