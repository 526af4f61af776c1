package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/dentacare/clinic-portal/internal/config"
	"github.com/dentacare/clinic-portal/internal/notify"
	"github.com/dentacare/clinic-portal/internal/storage"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// BuildMailer picks the provider named by EMAIL_PROVIDER. A provider that
// is missing its credentials falls back to logging only.
func BuildMailer(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.Mailer {
	if logger == nil {
		logger = logging.Default()
	}
	from := notify.ClinicSender{Name: cfg.EmailFromName, Address: cfg.EmailFrom, ReplyTo: cfg.EmailReplyTo}
	switch cfg.EmailProvider {
	case "sendgrid":
		if m := notify.NewSendGridMailer(cfg.SendGridAPIKey, from, logger); m != nil {
			return m
		}
		logger.Warn("sendgrid selected without an api key; patient emails will only be logged")
	case "ses":
		if awsCfg != nil {
			if m := notify.NewSESMailer(sesv2.NewFromConfig(*awsCfg), from, logger); m != nil {
				return m
			}
		}
		logger.Warn("ses selected without aws config; patient emails will only be logged")
	}
	return notify.NewLogMailer(logger)
}

// BuildNotifyQueue returns the SQS queue when a URL is configured, otherwise
// an in-memory queue that only an in-process worker can drain.
func BuildNotifyQueue(cfg *appconfig.Config, awsCfg *aws.Config) (notify.Queue, error) {
	if cfg.UseMemoryQueue || cfg.NotifyQueueURL == "" {
		return notify.NewMemoryQueue(256), nil
	}
	if awsCfg == nil {
		return nil, fmt.Errorf("bootstrap: NOTIFY_QUEUE_URL set but aws config unavailable")
	}
	return notify.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.NotifyQueueURL), nil
}

// BuildObjectStore returns the S3 media store, or an in-memory one when no
// bucket is configured.
func BuildObjectStore(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) storage.ObjectStore {
	if cfg.MediaBucket == "" || awsCfg == nil {
		return storage.NewMemoryStore(cfg.MediaPublicBaseURL)
	}
	client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	return storage.NewS3Store(client, cfg.MediaBucket, cfg.AWSRegion, cfg.MediaPublicBaseURL, logger)
}
