// Package awskms schedules customer managed keys for deletion. KMS never
// deletes a key immediately, so a scheduled key counts as destroyed.
package awskms

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "kms"

// PendingWindowDays is the shortest waiting period KMS accepts.
const PendingWindowDays = 7

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) KMSAPI { return kms.NewFromConfig(cfg) },
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

	aliases, err := s.aliases(ctx, cli, nil)
	if err != nil {
		return nil, fmt.Errorf("listing aliases: %w", err)
	}
	byKey := map[string][]string{}
	for _, a := range aliases {
		id := aws.ToString(a.TargetKeyId)
		byKey[id] = append(byKey[id], strings.TrimPrefix(aws.ToString(a.AliasName), "alias/"))
	}

	var (
		descriptors []model.ResourceDescriptor
		marker      *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*kms.ListKeysOutput, error) {
			return cli.ListKeys(ctx, &kms.ListKeysInput{Marker: marker})
		})
		if err != nil {
			return nil, fmt.Errorf("listing keys: %w", err)
		}

		for _, k := range out.Keys {
			meta, err := s.describe(ctx, cli, aws.ToString(k.KeyId))
			if err != nil {
				if awserr.IsNotFound(err) || awserr.IsAuthorization(err) {
					continue
				}
				return nil, fmt.Errorf("describing key %s: %w", aws.ToString(k.KeyId), err)
			}
			if meta.KeyManager != types.KeyManagerTypeCustomer || meta.KeyState == types.KeyStatePendingDeletion {
				continue
			}

			id := aws.ToString(meta.KeyId)
			name := id
			if names := byKey[id]; len(names) > 0 {
				name = names[0]
			}
			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "key",
				Identifier:  id,
				Name:        name,
				ARN:         aws.ToString(meta.Arn),
				Region:      target.Region,
				AccountID:   client.AccountID(),
				Tags:        s.tags(ctx, cli, id),
			})
		}

		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}

	return descriptors, nil
}

func (s *service) describe(ctx context.Context, cli KMSAPI, id string) (*types.KeyMetadata, error) {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*kms.DescribeKeyOutput, error) {
		return cli.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(id)})
	})
	if err != nil {
		return nil, err
	}
	return out.KeyMetadata, nil
}

func (s *service) aliases(ctx context.Context, cli KMSAPI, keyID *string) ([]types.AliasListEntry, error) {
	var (
		all    []types.AliasListEntry
		marker *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*kms.ListAliasesOutput, error) {
			return cli.ListAliases(ctx, &kms.ListAliasesInput{KeyId: keyID, Marker: marker})
		})
		if err != nil {
			return nil, err
		}
		all = append(all, out.Aliases...)
		if out.NextMarker == nil {
			return all, nil
		}
		marker = out.NextMarker
	}
}

func (s *service) tags(ctx context.Context, cli KMSAPI, id string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*kms.ListResourceTagsOutput, error) {
		return cli.ListResourceTags(ctx, &kms.ListResourceTagsInput{KeyId: aws.String(id)})
	})
	if err != nil || len(out.Tags) == 0 {
		return nil
	}
	tags := make(map[string]string, len(out.Tags))
	for _, t := range out.Tags {
		tags[aws.ToString(t.TagKey)] = aws.ToString(t.TagValue)
	}
	return tags
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	meta, err := s.describe(ctx, cli, r.Identifier)
	if err != nil {
		return awserr.Outcome(r, err)
	}
	if meta.KeyState == types.KeyStatePendingDeletion {
		return awserr.Skipped(r, "deletion already scheduled")
	}

	aliases, err := s.aliases(ctx, cli, aws.String(r.Identifier))
	if err != nil {
		return awserr.Outcome(r, fmt.Errorf("listing aliases: %w", err))
	}
	for _, a := range aliases {
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.DeleteAlias(ctx, &kms.DeleteAliasInput{AliasName: a.AliasName})
			return err
		})
		if err != nil && !awserr.IsNotFound(err) {
			return awserr.Outcome(r, fmt.Errorf("deleting alias %s: %w", aws.ToString(a.AliasName), err))
		}
	}

	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*kms.ScheduleKeyDeletionOutput, error) {
		return cli.ScheduleKeyDeletion(ctx, &kms.ScheduleKeyDeletionInput{KeyId: aws.String(r.Identifier), PendingWindowInDays: aws.Int32(PendingWindowDays)})
	})
	o := awserr.Outcome(r, err)
	if err == nil {
		o.Detail = fmt.Sprintf("deletion scheduled in %d days", PendingWindowDays)
		if out.DeletionDate != nil {
			o.Detail += " (" + out.DeletionDate.UTC().Format("2006-01-02") + ")"
		}
	}
	return o
}
