// Package awsdynamodb deletes tables, including the Terraform state lock
// table when state cleanup is enabled.
package awsdynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "dynamodb-state-lock"

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) DynamoDBAPI { return dynamodb.NewFromConfig(cfg) },
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
		start       *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*dynamodb.ListTablesOutput, error) {
			return cli.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: start})
		})
		if err != nil {
			return nil, fmt.Errorf("listing tables: %w", err)
		}

		for _, name := range out.TableNames {
			table, err := s.describe(ctx, cli, name)
			if err != nil {
				if awserr.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("describing table %s: %w", name, err)
			}
			arn := aws.ToString(table.TableArn)
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "table",
				Identifier:  name,
				Name:        name,
				ARN:         arn,
				Region:      target.Region,
				AccountID:   client.AccountID(),
				Tags:        s.tags(ctx, cli, arn),
			})
		}

		if out.LastEvaluatedTableName == nil {
			break
		}
		start = out.LastEvaluatedTableName
	}

	return descriptors, nil
}

func (s *service) describe(ctx context.Context, cli DynamoDBAPI, name string) (*types.TableDescription, error) {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*dynamodb.DescribeTableOutput, error) {
		return cli.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	})
	if err != nil {
		return nil, err
	}
	return out.Table, nil
}

func (s *service) tags(ctx context.Context, cli DynamoDBAPI, arn string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*dynamodb.ListTagsOfResourceOutput, error) {
		return cli.ListTagsOfResource(ctx, &dynamodb.ListTagsOfResourceInput{ResourceArn: aws.String(arn)})
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

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))
	name := aws.String(r.Identifier)

	table, err := s.describe(ctx, cli, r.Identifier)
	if err != nil {
		return awserr.Outcome(r, err)
	}
	if table.TableStatus == types.TableStatusDeleting {
		o := awserr.Outcome(r, nil)
		o.Detail = "deletion already in progress"
		return o
	}

	if aws.ToBool(table.DeletionProtectionEnabled) {
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.UpdateTable(ctx, &dynamodb.UpdateTableInput{TableName: name, DeletionProtectionEnabled: aws.Bool(false)})
			return err
		})
		if err != nil {
			return awserr.Outcome(r, fmt.Errorf("disabling deletion protection: %w", err))
		}
		clog.InfoContext(ctx, "deletion protection disabled", "table", r.Identifier)
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: name})
		return err
	})
	return awserr.Outcome(r, err)
}
