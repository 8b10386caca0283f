// Package mailer owns the outbound send path: validation, suppression and
// rate-limit gates, tracking instrumentation, and the SES v2 send call.
package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/ignite/ses-gateway/internal/config"
)

// SendAPI is the slice of the SES v2 client the mailer uses.
type SendAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// NewSESClient builds an SES v2 client from gateway configuration. Static
// credentials take precedence; with none configured the default AWS
// credential chain applies.
func NewSESClient(ctx context.Context, cfg appconfig.SESConfig) (*sesv2.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return sesv2.NewFromConfig(awsCfg), nil
}

// buildSendInput assembles the SES v2 request for one message.
func buildSendInput(source, to, subject, htmlBody, textBody, configurationSet string) *sesv2.SendEmailInput {
	content := &types.Message{
		Subject: &types.Content{Data: aws.String(subject)},
		Body:    &types.Body{},
	}
	if htmlBody != "" {
		content.Body.Html = &types.Content{Data: aws.String(htmlBody)}
	}
	if textBody != "" {
		content.Body.Text = &types.Content{Data: aws.String(textBody)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(source),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content:          &types.EmailContent{Simple: content},
	}
	if configurationSet != "" {
		input.ConfigurationSetName = aws.String(configurationSet)
	}
	return input
}
