// Package awsrds deletes database instances and clusters without final
// snapshots. Instances are enumerated before clusters because a cluster
// cannot go while it still has members.
package awsrds

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "rds"

const (
	kindInstance = "instance"
	kindCluster  = "cluster"

	statusDeleting = "deleting"
)

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) RDSAPI { return rds.NewFromConfig(cfg) },
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

	instances, err := s.instances(ctx, cli, nil)
	if err != nil {
		return nil, fmt.Errorf("describing db instances: %w", err)
	}
	clusters, err := s.clusters(ctx, cli, nil)
	if err != nil {
		return nil, fmt.Errorf("describing db clusters: %w", err)
	}

	descriptors := make([]model.ResourceDescriptor, 0, len(instances)+len(clusters))
	for _, db := range instances {
		descriptors = append(descriptors, model.ResourceDescriptor{
			ServiceType: Name,
			Kind:        kindInstance,
			Identifier:  aws.ToString(db.DBInstanceIdentifier),
			Name:        aws.ToString(db.DBInstanceIdentifier),
			ARN:         aws.ToString(db.DBInstanceArn),
			Region:      target.Region,
			AccountID:   client.AccountID(),
			Tags:        tagMap(db.TagList),
		})
	}
	for _, c := range clusters {
		descriptors = append(descriptors, model.ResourceDescriptor{
			ServiceType: Name,
			Kind:        kindCluster,
			Identifier:  aws.ToString(c.DBClusterIdentifier),
			Name:        aws.ToString(c.DBClusterIdentifier),
			ARN:         aws.ToString(c.DBClusterArn),
			Region:      target.Region,
			AccountID:   client.AccountID(),
			Tags:        tagMap(c.TagList),
		})
	}

	return descriptors, nil
}

func tagMap(list []types.Tag) map[string]string {
	if len(list) == 0 {
		return nil
	}
	tags := make(map[string]string, len(list))
	for _, t := range list {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

func (s *service) instances(ctx context.Context, cli RDSAPI, id *string) ([]types.DBInstance, error) {
	var (
		all    []types.DBInstance
		marker *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*rds.DescribeDBInstancesOutput, error) {
			return cli.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{DBInstanceIdentifier: id, Marker: marker})
		})
		if err != nil {
			return nil, err
		}
		all = append(all, out.DBInstances...)
		if out.Marker == nil {
			return all, nil
		}
		marker = out.Marker
	}
}

func (s *service) clusters(ctx context.Context, cli RDSAPI, id *string) ([]types.DBCluster, error) {
	var (
		all    []types.DBCluster
		marker *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*rds.DescribeDBClustersOutput, error) {
			return cli.DescribeDBClusters(ctx, &rds.DescribeDBClustersInput{DBClusterIdentifier: id, Marker: marker})
		})
		if err != nil {
			return nil, err
		}
		all = append(all, out.DBClusters...)
		if out.Marker == nil {
			return all, nil
		}
		marker = out.Marker
	}
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))
	if r.Kind == kindCluster {
		return s.destroyCluster(ctx, cli, r)
	}
	return s.destroyInstance(ctx, cli, r)
}

func (s *service) destroyInstance(ctx context.Context, cli RDSAPI, r model.ResourceDescriptor) model.DestructionOutcome {
	id := aws.String(r.Identifier)

	found, err := s.instances(ctx, cli, id)
	if err != nil {
		return awserr.Outcome(r, err)
	}
	if len(found) == 0 {
		return awserr.Skipped(r, "already deleted")
	}
	db := found[0]
	if aws.ToString(db.DBInstanceStatus) == statusDeleting {
		o := awserr.Outcome(r, nil)
		o.Detail = "deletion already in progress"
		return o
	}

	if aws.ToBool(db.DeletionProtection) {
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.ModifyDBInstance(ctx, &rds.ModifyDBInstanceInput{
				DBInstanceIdentifier: id,
				DeletionProtection:   aws.Bool(false),
				ApplyImmediately:     aws.Bool(true),
			})
			return err
		})
		if err != nil {
			return awserr.Outcome(r, fmt.Errorf("disabling deletion protection: %w", err))
		}
		clog.InfoContext(ctx, "deletion protection disabled", "db_instance", r.Identifier)
	}

	in := &rds.DeleteDBInstanceInput{DBInstanceIdentifier: id, DeleteAutomatedBackups: aws.Bool(true)}
	// Cluster members take their snapshot policy from the cluster.
	if db.DBClusterIdentifier == nil {
		in.SkipFinalSnapshot = aws.Bool(true)
	}
	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteDBInstance(ctx, in)
		return err
	})
	return awserr.Outcome(r, err)
}

func (s *service) destroyCluster(ctx context.Context, cli RDSAPI, r model.ResourceDescriptor) model.DestructionOutcome {
	id := aws.String(r.Identifier)

	found, err := s.clusters(ctx, cli, id)
	if err != nil {
		return awserr.Outcome(r, err)
	}
	if len(found) == 0 {
		return awserr.Skipped(r, "already deleted")
	}
	c := found[0]
	if aws.ToString(c.Status) == statusDeleting {
		o := awserr.Outcome(r, nil)
		o.Detail = "deletion already in progress"
		return o
	}

	if aws.ToBool(c.DeletionProtection) {
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.ModifyDBCluster(ctx, &rds.ModifyDBClusterInput{
				DBClusterIdentifier: id,
				DeletionProtection:  aws.Bool(false),
				ApplyImmediately:    aws.Bool(true),
			})
			return err
		})
		if err != nil {
			return awserr.Outcome(r, fmt.Errorf("disabling deletion protection: %w", err))
		}
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteDBCluster(ctx, &rds.DeleteDBClusterInput{DBClusterIdentifier: id, SkipFinalSnapshot: aws.Bool(true)})
		return err
	})
	return awserr.Outcome(r, err)
}
