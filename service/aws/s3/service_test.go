package awss3

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/elC0mpa/aws-teardown/service/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bucket struct {
	region     string
	versioning types.BucketVersioningStatus
	keys       []string
	tags       map[string]string
	block      bool
	uploads    int
}

type mockS3 struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	ops        []string
	batchSizes []int
	inFlight   int
	maxFlight  int
}

func newMockS3() *mockS3 { return &mockS3{buckets: map[string]*bucket{}} }

func (m *mockS3) record(op, bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op+":"+bucket)
}

func (m *mockS3) get(name *string) (*bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[aws.ToString(name)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "bucket does not exist"}
	}
	return b, nil
}

func (m *mockS3) ListBuckets(context.Context, *s3.ListBucketsInput, ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	m.record("ListBuckets", "")
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	out := &s3.ListBucketsOutput{}
	for _, name := range names {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func (m *mockS3) GetBucketLocation(_ context.Context, in *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	m.record("GetBucketLocation", aws.ToString(in.Bucket))
	b, err := m.get(in.Bucket)
	if err != nil {
		return nil, err
	}
	region := b.region
	if region == "us-east-1" {
		region = ""
	}
	return &s3.GetBucketLocationOutput{LocationConstraint: types.BucketLocationConstraint(region)}, nil
}

func (m *mockS3) GetBucketTagging(_ context.Context, in *s3.GetBucketTaggingInput, _ ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	m.record("GetBucketTagging", aws.ToString(in.Bucket))
	b, err := m.get(in.Bucket)
	if err != nil {
		return nil, err
	}
	if len(b.tags) == 0 {
		return nil, &smithy.GenericAPIError{Code: "NoSuchTagSet", Message: "no tags"}
	}
	out := &s3.GetBucketTaggingOutput{}
	for k, v := range b.tags {
		out.TagSet = append(out.TagSet, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out, nil
}

func (m *mockS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	m.record("HeadBucket", aws.ToString(in.Bucket))
	if _, err := m.get(in.Bucket); err != nil {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3) GetBucketVersioning(_ context.Context, in *s3.GetBucketVersioningInput, _ ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	m.record("GetBucketVersioning", aws.ToString(in.Bucket))
	b, err := m.get(in.Bucket)
	if err != nil {
		return nil, err
	}
	return &s3.GetBucketVersioningOutput{Status: b.versioning}, nil
}

func (m *mockS3) PutBucketVersioning(_ context.Context, in *s3.PutBucketVersioningInput, _ ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error) {
	m.record("PutBucketVersioning", aws.ToString(in.Bucket))
	b, err := m.get(in.Bucket)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	b.versioning = in.VersioningConfiguration.Status
	m.mu.Unlock()
	return &s3.PutBucketVersioningOutput{}, nil
}

func (m *mockS3) PutBucketLogging(_ context.Context, in *s3.PutBucketLoggingInput, _ ...func(*s3.Options)) (*s3.PutBucketLoggingOutput, error) {
	m.record("PutBucketLogging", aws.ToString(in.Bucket))
	return &s3.PutBucketLoggingOutput{}, nil
}

func (m *mockS3) DeleteBucketLifecycle(_ context.Context, in *s3.DeleteBucketLifecycleInput, _ ...func(*s3.Options)) (*s3.DeleteBucketLifecycleOutput, error) {
	m.record("DeleteBucketLifecycle", aws.ToString(in.Bucket))
	return nil, &smithy.GenericAPIError{Code: "NoSuchLifecycleConfiguration", Message: "none"}
}

func (m *mockS3) PutBucketLifecycleConfiguration(_ context.Context, in *s3.PutBucketLifecycleConfigurationInput, _ ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error) {
	m.record("PutBucketLifecycleConfiguration", aws.ToString(in.Bucket))
	return &s3.PutBucketLifecycleConfigurationOutput{}, nil
}

// ListObjectVersions pages 1000 versions at a time. Keys are sorted, so the
// key marker is the last key of the previous page.
func (m *mockS3) ListObjectVersions(_ context.Context, in *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	m.record("ListObjectVersions", aws.ToString(in.Bucket))
	b, err := m.get(in.Bucket)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if in.KeyMarker != nil {
		start = sort.SearchStrings(b.keys, aws.ToString(in.KeyMarker))
		if start < len(b.keys) && b.keys[start] == aws.ToString(in.KeyMarker) {
			start++
		}
	}
	end := min(start+1000, len(b.keys))
	out := &s3.ListObjectVersionsOutput{IsTruncated: aws.Bool(end < len(b.keys))}
	for _, k := range b.keys[start:end] {
		out.Versions = append(out.Versions, types.ObjectVersion{Key: aws.String(k), VersionId: aws.String("v1")})
	}
	if end < len(b.keys) {
		out.NextKeyMarker = aws.String(b.keys[end-1])
		out.NextVersionIdMarker = aws.String("v1")
	}
	return out, nil
}

func (m *mockS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.record("DeleteObjects", aws.ToString(in.Bucket))
	b, err := m.get(in.Bucket)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.batchSizes = append(m.batchSizes, len(in.Delete.Objects))
	m.inFlight++
	m.maxFlight = max(m.maxFlight, m.inFlight)
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	gone := map[string]bool{}
	for _, o := range in.Delete.Objects {
		gone[aws.ToString(o.Key)] = true
	}
	kept := b.keys[:0]
	for _, k := range b.keys {
		if !gone[k] {
			kept = append(kept, k)
		}
	}
	b.keys = kept
	return &s3.DeleteObjectsOutput{}, nil
}

func (m *mockS3) ListMultipartUploads(_ context.Context, in *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
	m.record("ListMultipartUploads", aws.ToString(in.Bucket))
	b, err := m.get(in.Bucket)
	if err != nil {
		return nil, err
	}
	out := &s3.ListMultipartUploadsOutput{IsTruncated: aws.Bool(false)}
	for i := range b.uploads {
		out.Uploads = append(out.Uploads, types.MultipartUpload{Key: aws.String(fmt.Sprintf("part-%d", i)), UploadId: aws.String(strconv.Itoa(i))})
	}
	return out, nil
}

func (m *mockS3) AbortMultipartUpload(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	m.record("AbortMultipartUpload", aws.ToString(in.Bucket))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (m *mockS3) DeleteBucket(_ context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	m.record("DeleteBucket", aws.ToString(in.Bucket))
	b, err := m.get(in.Bucket)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(b.keys) > 0 {
		return nil, &smithy.GenericAPIError{Code: "BucketNotEmpty", Message: "not empty"}
	}
	delete(m.buckets, aws.ToString(in.Bucket))
	return &s3.DeleteBucketOutput{}, nil
}

func (m *mockS3) opsFor(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, op := range m.ops {
		if len(op) > len(bucket) && op[len(op)-len(bucket)-1:] == ":"+bucket {
			out = append(out, op[:len(op)-len(bucket)-1])
		}
	}
	return out
}

type fakeHandle struct{ account string }

func (h fakeHandle) AccountID() string               { return h.account }
func (h fakeHandle) Config(region string) aws.Config { return aws.Config{Region: region} }

func keys(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s/%05d", prefix, i)
	}
	return out
}

var testRetry = retry.Policy{MaxTries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func newTestService(m *mockS3) *service {
	return NewService(
		WithClientFactory(func(aws.Config) S3API { return m }),
		WithRetryPolicy(testRetry),
	)
}

func TestEnumerate(t *testing.T) {
	m := newMockS3()
	m.buckets["acme-logs"] = &bucket{region: "us-east-1", tags: map[string]string{"Project": "acme"}}
	m.buckets["acme-assets"] = &bucket{region: "eu-west-1"}

	got, err := newTestService(m).Enumerate(context.Background(), fakeHandle{"222222222222"}, model.Target{AccountID: "222222222222", Region: "us-east-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "acme-assets", got[0].Identifier)
	assert.Equal(t, "eu-west-1", got[0].Region)
	assert.Nil(t, got[0].Tags)
	assert.Equal(t, "acme-logs", got[1].Identifier)
	assert.Equal(t, "us-east-1", got[1].Region)
	assert.Equal(t, "acme", got[1].Tags["Project"])
	assert.Equal(t, "222222222222", got[1].AccountID)
}

func TestDestroyProtocolOrder(t *testing.T) {
	m := newMockS3()
	m.buckets["acme-logs"] = &bucket{region: "us-east-1", versioning: types.BucketVersioningStatusEnabled, keys: keys("log", 2500), uploads: 2}
	r := model.ResourceDescriptor{ServiceType: Name, Identifier: "acme-logs", Region: "us-east-1", AccountID: "222222222222"}

	o := newTestService(m).Destroy(context.Background(), fakeHandle{"222222222222"}, r, model.ExecutionContext{S3EmptyTimeout: time.Minute, MaxWorkers: 2})

	assert.Equal(t, model.StatusDestroyed, o.Status, o.Error)
	ops := m.opsFor("acme-logs")
	require.NotEmpty(t, ops)
	assert.Equal(t, []string{"HeadBucket", "GetBucketVersioning", "PutBucketVersioning", "PutBucketLogging", "DeleteBucketLifecycle"}, ops[:5])
	assert.Equal(t, "DeleteBucket", ops[len(ops)-1])
	assert.Contains(t, ops, "AbortMultipartUpload")

	for _, size := range m.batchSizes {
		assert.LessOrEqual(t, size, 1000)
	}
	assert.LessOrEqual(t, m.maxFlight, 2)
	assert.NotContains(t, m.buckets, "acme-logs")
}

func TestDestroyIsIdempotent(t *testing.T) {
	m := newMockS3()
	m.buckets["acme-logs"] = &bucket{region: "us-east-1", keys: keys("a", 10)}
	r := model.ResourceDescriptor{ServiceType: Name, Identifier: "acme-logs", Region: "us-east-1"}
	s := newTestService(m)
	exec := model.ExecutionContext{S3EmptyTimeout: time.Minute}

	first := s.Destroy(context.Background(), fakeHandle{}, r, exec)
	second := s.Destroy(context.Background(), fakeHandle{}, r, exec)

	assert.Equal(t, model.StatusDestroyed, first.Status)
	assert.Equal(t, model.StatusSkipped, second.Status)
	assert.Empty(t, second.Error)
}

// Three buckets, the large one cannot be emptied in time.
func TestThreeBucketTimeoutScenario(t *testing.T) {
	m := newMockS3()
	m.buckets["acme-small-a"] = &bucket{region: "us-east-1", keys: keys("a", 10)}
	m.buckets["acme-small-b"] = &bucket{region: "us-east-1", keys: keys("b", 20)}
	m.buckets["acme-big"] = &bucket{region: "us-east-1", keys: keys("big", 1500), block: true}

	s := newTestService(m)
	exec := model.ExecutionContext{RunID: "run-1", S3EmptyTimeout: 50 * time.Millisecond, MaxWorkers: 4}

	counts := map[model.Status]int{}
	var lazy []*model.LazyDeleteEntry
	for _, name := range []string{"acme-small-a", "acme-big", "acme-small-b"} {
		r := model.ResourceDescriptor{ServiceType: Name, Identifier: name, Region: "us-east-1", AccountID: "222222222222"}
		o := s.Destroy(context.Background(), fakeHandle{"222222222222"}, r, exec)
		counts[o.Status]++
		if o.LazyDelete != nil {
			lazy = append(lazy, o.LazyDelete)
		}
	}

	assert.Equal(t, 2, counts[model.StatusDestroyed])
	assert.Equal(t, 1, counts[model.StatusDeferred])
	require.Len(t, lazy, 1)
	assert.Equal(t, "acme-big", lazy[0].ResourceID)
	assert.Equal(t, model.LazyDeletePending, lazy[0].Status)
	assert.Equal(t, model.Duration(48*time.Hour), lazy[0].ExpectedConvergenceWindow)
	assert.Equal(t, "run-1", lazy[0].RunID)
	assert.Contains(t, m.opsFor("acme-big"), "PutBucketLifecycleConfiguration")
	assert.NotContains(t, m.opsFor("acme-big"), "DeleteBucket")
}

func TestExistsAndSweep(t *testing.T) {
	m := newMockS3()
	m.buckets["acme-big"] = &bucket{region: "us-east-1", keys: keys("big", 5)}
	s := newTestService(m)
	entry := model.LazyDeleteEntry{ID: LazyDeleteID("222222222222", "acme-big"), ServiceType: Name, ResourceID: "acme-big", AccountID: "222222222222", Region: "us-east-1", Attempts: 1}

	exists, err := s.Exists(context.Background(), fakeHandle{"222222222222"}, entry)
	require.NoError(t, err)
	assert.True(t, exists)

	o := s.Sweep(context.Background(), fakeHandle{"222222222222"}, entry, model.ExecutionContext{S3EmptyTimeout: time.Minute})
	assert.Equal(t, model.StatusDestroyed, o.Status)

	exists, err = s.Exists(context.Background(), fakeHandle{"222222222222"}, entry)
	require.NoError(t, err)
	assert.False(t, exists)
}
