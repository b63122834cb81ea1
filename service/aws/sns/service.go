// Package awssns deletes notification topics.
package awssns

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "sns"

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) SNSAPI { return sns.NewFromConfig(cfg) },
		retry:     retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return false }

// topicName is the last segment of a topic ARN.
func topicName(arn string) string {
	return arn[strings.LastIndex(arn, ":")+1:]
}

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))

	var (
		descriptors []model.ResourceDescriptor
		token       *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*sns.ListTopicsOutput, error) {
			return cli.ListTopics(ctx, &sns.ListTopicsInput{NextToken: token})
		})
		if err != nil {
			return nil, fmt.Errorf("listing topics: %w", err)
		}

		for _, topic := range out.Topics {
			arn := aws.ToString(topic.TopicArn)
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "topic",
				Identifier:  arn,
				Name:        topicName(arn),
				ARN:         arn,
				Region:      target.Region,
				AccountID:   client.AccountID(),
				Tags:        s.tags(ctx, cli, arn),
			})
		}

		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	return descriptors, nil
}

func (s *service) tags(ctx context.Context, cli SNSAPI, arn string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*sns.ListTagsForResourceOutput, error) {
		return cli.ListTagsForResource(ctx, &sns.ListTagsForResourceInput{ResourceArn: aws.String(arn)})
	})
	if err != nil || len(out.Tags) == 0 {
		return nil
	}
	tags := make(map[string]string, len(out.Tags))
	for _, t := range out.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

// Destroy checks the topic first because DeleteTopic reports success for
// topics that no longer exist.
func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))
	arn := aws.String(r.Identifier)

	_, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*sns.GetTopicAttributesOutput, error) {
		return cli.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: arn})
	})
	if err != nil {
		return awserr.Outcome(r, err)
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteTopic(ctx, &sns.DeleteTopicInput{TopicArn: arn})
		return err
	})
	return awserr.Outcome(r, err)
}
