// Package awslambda deletes functions.
package awslambda

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "lambda"

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) LambdaAPI { return lambda.NewFromConfig(cfg) },
		retry:     retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return false }

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))

	var (
		descriptors []model.ResourceDescriptor
		marker      *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*lambda.ListFunctionsOutput, error) {
			return cli.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: marker})
		})
		if err != nil {
			return nil, fmt.Errorf("listing functions: %w", err)
		}

		for _, fn := range out.Functions {
			arn := aws.ToString(fn.FunctionArn)
			var tags map[string]string
			if t, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*lambda.ListTagsOutput, error) {
				return cli.ListTags(ctx, &lambda.ListTagsInput{Resource: aws.String(arn)})
			}); err == nil {
				tags = t.Tags
			}

			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "function",
				Identifier:  aws.ToString(fn.FunctionName),
				Name:        aws.ToString(fn.FunctionName),
				ARN:         arn,
				Region:      target.Region,
				AccountID:   client.AccountID(),
				Tags:        tags,
			})
		}

		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}

	return descriptors, nil
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteFunction(ctx, &lambda.DeleteFunctionInput{FunctionName: aws.String(r.Identifier)})
		return err
	})
	return awserr.Outcome(r, err)
}
