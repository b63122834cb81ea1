// Package awss3 empties and deletes project buckets.
package awss3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
	"golang.org/x/sync/errgroup"
)

const Name = "s3"

const (
	maxBatchSize     = 1000
	defaultWorkers   = 4
	lifecycleRuleID  = "teardown-expire-all"
	lazyDeleteWindow = 48 * time.Hour
)

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) S3API { return s3.NewFromConfig(cfg) },
		retry:     retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return true }

// Enumerate lists every bucket owned by the account, resolving each bucket's
// region and tags.
func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))

	var (
		descriptors []model.ResourceDescriptor
		token       *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*s3.ListBucketsOutput, error) {
			return cli.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: token})
		})
		if err != nil {
			return nil, fmt.Errorf("listing buckets: %w", err)
		}

		for _, b := range out.Buckets {
			name := aws.ToString(b.Name)
			region, err := s.bucketRegion(ctx, cli, name)
			if err != nil {
				if awserr.IsNotFound(err) {
					continue
				}
				clog.WarnContext(ctx, "could not resolve bucket region", "bucket", name, "error", err.Error())
				region = target.Region
			}

			descriptors = append(descriptors, model.ResourceDescriptor{
				ServiceType: Name,
				Kind:        "bucket",
				Identifier:  name,
				Name:        name,
				ARN:         "arn:aws:s3:::" + name,
				Region:      region,
				AccountID:   client.AccountID(),
				Tags:        s.bucketTags(ctx, s.newClient(client.Config(region)), name),
			})
		}

		if out.ContinuationToken == nil || aws.ToString(out.ContinuationToken) == "" {
			break
		}
		token = out.ContinuationToken
	}

	return descriptors, nil
}

func (s *service) bucketRegion(ctx context.Context, cli S3API, bucket string) (string, error) {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*s3.GetBucketLocationOutput, error) {
		return cli.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(bucket)})
	})
	if err != nil {
		return "", err
	}

	switch region := string(out.LocationConstraint); region {
	case "":
		return "us-east-1", nil
	case "EU":
		return "eu-west-1", nil
	default:
		return region, nil
	}
}

func (s *service) bucketTags(ctx context.Context, cli S3API, bucket string) map[string]string {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*s3.GetBucketTaggingOutput, error) {
		return cli.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(bucket)})
	})
	if err != nil {
		if !awserr.IsNotFound(err) {
			clog.DebugContext(ctx, "bucket tags unavailable", "bucket", bucket, "error", err.Error())
		}
		return nil
	}

	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

// Destroy runs the bucket protocol: suspend versioning, stop access logging,
// drop lifecycle rules, delete every version and delete marker, abort
// multipart uploads, delete the bucket. When emptying runs out of time the
// bucket is handed to an expiration lifecycle rule and deferred.
func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))
	bucket := aws.String(r.Identifier)
	log := clog.FromContext(ctx).With("bucket", r.Identifier, "region", r.Region)

	err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: bucket})
		return err
	})
	if err != nil {
		return awserr.Outcome(r, err)
	}

	if err := s.prepare(ctx, cli, bucket); err != nil {
		return awserr.Outcome(r, err)
	}

	timeout := exec.S3EmptyTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	emptyCtx, cancel := context.WithTimeout(ctx, timeout)
	err = s.empty(emptyCtx, cli, r.Identifier, exec)
	expired := emptyCtx.Err() != nil
	cancel()

	if err != nil {
		if expired || awserr.IsTimeout(err) {
			log.Warn("bucket emptying timed out, handing over to lifecycle expiration", "timeout", timeout)
			return s.deferBucket(ctx, cli, r, exec, timeout)
		}
		return awserr.Outcome(r, err)
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: bucket})
		return err
	})
	if err == nil {
		log.Info("bucket deleted")
	}
	return awserr.Outcome(r, err)
}

func (s *service) prepare(ctx context.Context, cli S3API, bucket *string) error {
	versioning, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*s3.GetBucketVersioningOutput, error) {
		return cli.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: bucket})
	})
	if err != nil {
		return err
	}
	if versioning.Status == types.BucketVersioningStatusEnabled {
		err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
			_, err := cli.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
				Bucket:                  bucket,
				VersioningConfiguration: &types.VersioningConfiguration{Status: types.BucketVersioningStatusSuspended},
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("suspending versioning: %w", err)
		}
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.PutBucketLogging(ctx, &s3.PutBucketLoggingInput{
			Bucket:              bucket,
			BucketLoggingStatus: &types.BucketLoggingStatus{},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("disabling access logging: %w", err)
	}

	err = retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.DeleteBucketLifecycle(ctx, &s3.DeleteBucketLifecycleInput{Bucket: bucket})
		return err
	})
	if err != nil && !awserr.IsNotFound(err) {
		return fmt.Errorf("removing lifecycle rules: %w", err)
	}
	return nil
}

// empty deletes every object version and delete marker in batches, with at
// most exec.MaxWorkers batches in flight.
func (s *service) empty(ctx context.Context, cli S3API, bucket string, exec model.ExecutionContext) error {
	batchSize := exec.BatchSize
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}
	workers := exec.MaxWorkers
	if workers <= 0 {
		workers = defaultWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var keyMarker, versionMarker *string
	pending := make([]types.ObjectIdentifier, 0, batchSize)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = make([]types.ObjectIdentifier, 0, batchSize)
		g.Go(func() error { return s.deleteBatch(gctx, cli, bucket, batch) })
	}

listing:
	for {
		page, err := retry.Do(gctx, s.retry, func(ctx context.Context) (*s3.ListObjectVersionsOutput, error) {
			return cli.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
				Bucket:          aws.String(bucket),
				KeyMarker:       keyMarker,
				VersionIdMarker: versionMarker,
			})
		})
		if err != nil {
			_ = g.Wait()
			return fmt.Errorf("listing object versions: %w", err)
		}

		for _, v := range page.Versions {
			pending = append(pending, types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
			if len(pending) == batchSize {
				flush()
			}
		}
		for _, m := range page.DeleteMarkers {
			pending = append(pending, types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
			if len(pending) == batchSize {
				flush()
			}
		}

		if !aws.ToBool(page.IsTruncated) {
			break listing
		}
		keyMarker, versionMarker = page.NextKeyMarker, page.NextVersionIdMarker
		if gctx.Err() != nil {
			break listing
		}
	}
	flush()

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &awserr.TimeoutError{Resource: bucket, Err: err}
	}

	return s.abortUploads(ctx, cli, bucket)
}

func (s *service) deleteBatch(ctx context.Context, cli S3API, bucket string, batch []types.ObjectIdentifier) error {
	return retry.Run(ctx, s.retry, func(ctx context.Context) error {
		out, err := cli.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return err
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return &smithy.GenericAPIError{
				Code:    aws.ToString(first.Code),
				Message: fmt.Sprintf("%d of %d objects not deleted, first %s: %s", len(out.Errors), len(batch), aws.ToString(first.Key), aws.ToString(first.Message)),
			}
		}
		return nil
	})
}

func (s *service) abortUploads(ctx context.Context, cli S3API, bucket string) error {
	var keyMarker, uploadMarker *string
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*s3.ListMultipartUploadsOutput, error) {
			return cli.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
				Bucket:         aws.String(bucket),
				KeyMarker:      keyMarker,
				UploadIdMarker: uploadMarker,
			})
		})
		if err != nil {
			return fmt.Errorf("listing multipart uploads: %w", err)
		}

		for _, u := range out.Uploads {
			err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
				_, err := cli.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
					Bucket:   aws.String(bucket),
					Key:      u.Key,
					UploadId: u.UploadId,
				})
				return err
			})
			if err != nil && !awserr.IsNotFound(err) {
				return fmt.Errorf("aborting upload %s: %w", aws.ToString(u.UploadId), err)
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			return nil
		}
		keyMarker, uploadMarker = out.NextKeyMarker, out.NextUploadIdMarker
	}
}

// deferBucket installs an expire-everything lifecycle rule so the provider
// finishes emptying, and records the bucket for a later run.
func (s *service) deferBucket(ctx context.Context, cli S3API, r model.ResourceDescriptor, exec model.ExecutionContext, timeout time.Duration) model.DestructionOutcome {
	reason := fmt.Sprintf("emptying did not finish within %s; lifecycle expiration installed", timeout)

	err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
			Bucket: aws.String(r.Identifier),
			LifecycleConfiguration: &types.BucketLifecycleConfiguration{
				Rules: []types.LifecycleRule{
					{
						ID:                             aws.String(lifecycleRuleID),
						Status:                         types.ExpirationStatusEnabled,
						Filter:                         &types.LifecycleRuleFilter{Prefix: aws.String("")},
						Expiration:                     &types.LifecycleExpiration{Days: aws.Int32(1)},
						NoncurrentVersionExpiration:    &types.NoncurrentVersionExpiration{NoncurrentDays: aws.Int32(1)},
						AbortIncompleteMultipartUpload: &types.AbortIncompleteMultipartUpload{DaysAfterInitiation: aws.Int32(1)},
					},
					{
						ID:         aws.String(lifecycleRuleID + "-markers"),
						Status:     types.ExpirationStatusEnabled,
						Filter:     &types.LifecycleRuleFilter{Prefix: aws.String("")},
						Expiration: &types.LifecycleExpiration{ExpiredObjectDeleteMarker: aws.Bool(true)},
					},
				},
			},
		})
		return err
	})
	if err != nil {
		clog.WarnContext(ctx, "could not install expiration lifecycle", "bucket", r.Identifier, "error", err.Error())
		reason = fmt.Sprintf("emptying did not finish within %s; lifecycle expiration could not be installed: %v", timeout, err)
	}

	now := time.Now().UTC()
	entry := &model.LazyDeleteEntry{
		ID:                        LazyDeleteID(r.AccountID, r.Identifier),
		ServiceType:               Name,
		ResourceID:                r.Identifier,
		AccountID:                 r.AccountID,
		Region:                    r.Region,
		Reason:                    reason,
		ExpectedConvergenceWindow: model.Duration(lazyDeleteWindow),
		Status:                    model.LazyDeletePending,
		RunID:                     exec.RunID,
		Attempts:                  1,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	timeoutErr := &awserr.TimeoutError{Resource: "bucket " + r.Identifier, After: timeout, Err: context.DeadlineExceeded}
	return model.DestructionOutcome{
		Resource:   r,
		Status:     model.StatusDeferred,
		Detail:     reason,
		ErrorKind:  awserr.Kind(timeoutErr),
		Error:      timeoutErr.Error(),
		LazyDelete: entry,
		At:         now,
	}
}

// LazyDeleteID is the stable tracking id of a deferred bucket.
func LazyDeleteID(accountID, bucket string) string {
	return Name + ":" + accountID + ":" + bucket
}

// Exists reports whether a deferred bucket is still present.
func (s *service) Exists(ctx context.Context, client core.ClientHandle, entry model.LazyDeleteEntry) (bool, error) {
	cli := s.newClient(client.Config(entry.Region))
	err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
		_, err := cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(entry.ResourceID)})
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case awserr.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// Sweep retries the full protocol for a bucket deferred by an earlier run.
func (s *service) Sweep(ctx context.Context, client core.ClientHandle, entry model.LazyDeleteEntry, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	r := model.ResourceDescriptor{
		ServiceType: Name,
		Kind:        "bucket",
		Identifier:  entry.ResourceID,
		Name:        entry.ResourceID,
		ARN:         "arn:aws:s3:::" + entry.ResourceID,
		Region:      entry.Region,
		AccountID:   entry.AccountID,
	}
	o := s.Destroy(ctx, client, r, exec)
	if o.LazyDelete != nil {
		o.LazyDelete.CreatedAt = entry.CreatedAt
		o.LazyDelete.Attempts = entry.Attempts + 1
	}
	return o
}
