package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	sc "github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu sync.Mutex

	headErr   error
	createErr error
	policyErr error
	putErr    error

	heads, creates int
	policy         string
	puts           []*s3.PutObjectInput
	bodies         []string
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads++
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return &s3.CreateBucketOutput{}, f.createErr
}

func (f *fakeS3) PutBucketPolicy(ctx context.Context, in *s3.PutBucketPolicyInput, _ ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policy = aws.ToString(in.Policy)
	return &s3.PutBucketPolicyOutput{}, f.policyErr
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func newTestStore(fake *fakeS3) *S3Store {
	return &S3Store{
		client:     fake,
		bucket:     "blog-images",
		region:     "us-east-1",
		publicBase: "http://localhost:9000",
		log:        logging.Nop{},
	}
}

func TestStoreImage_ExistingBucket(t *testing.T) {
	fake := &fakeS3{}
	s := newTestStore(fake)

	url, err := s.StoreImage(context.Background(), []byte("png-bytes"), "my cat.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/blog-images/my_cat.png", url)

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "blog-images", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, "my_cat.png", aws.ToString(fake.puts[0].Key))
	assert.Equal(t, "image/png", aws.ToString(fake.puts[0].ContentType))
	assert.Equal(t, "png-bytes", fake.bodies[0])
	assert.Equal(t, 0, fake.creates)

	_, err = s.StoreImage(context.Background(), []byte("x"), "b.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.heads, "bucket is checked once")
}

func TestStoreImage_CreatesMissingBucketWithPolicy(t *testing.T) {
	fake := &fakeS3{headErr: &types.NotFound{}}
	s := newTestStore(fake)

	_, err := s.StoreImage(context.Background(), []byte("x"), "a.jpg", "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, 1, fake.creates)
	assert.Contains(t, fake.policy, `"s3:GetObject"`)
	assert.Contains(t, fake.policy, `arn:aws:s3:::blog-images/*`)
}

func TestStoreImage_PolicyFailureIsNotFatal(t *testing.T) {
	fake := &fakeS3{headErr: &types.NotFound{}, policyErr: errors.New("denied")}
	s := newTestStore(fake)

	_, err := s.StoreImage(context.Background(), []byte("x"), "a.jpg", "image/jpeg")
	require.NoError(t, err)
}

func TestStoreImage_Errors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeS3
		want string
	}{
		{"head fails", &fakeS3{headErr: errors.New("conn refused")}, "head bucket"},
		{"create fails", &fakeS3{headErr: &types.NotFound{}, createErr: errors.New("nope")}, "create bucket"},
		{"put fails", &fakeS3{putErr: errors.New("disk full")}, "put object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(tt.fake)
			_, err := s.StoreImage(context.Background(), []byte("x"), "a.png", "image/png")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStoreImage_HeadRetriedAfterFailure(t *testing.T) {
	fake := &fakeS3{headErr: errors.New("timeout")}
	s := newTestStore(fake)

	_, err := s.StoreImage(context.Background(), []byte("x"), "a.png", "")
	require.Error(t, err)

	fake.headErr = nil
	_, err = s.StoreImage(context.Background(), []byte("x"), "a.png", "")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.heads)
}

func TestStoreImage_SniffsContentType(t *testing.T) {
	fake := &fakeS3{}
	s := newTestStore(fake)

	png := []byte("\x89PNG\r\n\x1a\n0000")
	_, err := s.StoreImage(context.Background(), png, "a.png", "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", aws.ToString(fake.puts[0].ContentType))
}

func TestNewS3Store_ConfiguresClient(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &fakeS3{}
	}

	cfg := &sc.Config{
		S3BaseEndpoint: "http://minio:9000",
		S3Bucket:       "pics",
		S3Region:       "eu-west-1",
		S3RootUser:     "u",
		S3RootPassword: "p",
	}
	s, err := NewS3Store(context.Background(), cfg, logging.Nop{})
	require.NoError(t, err)

	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://minio:9000", s.publicBase)

	cfg.S3PublicURL = "https://cdn.example.com/"
	s, err = NewS3Store(context.Background(), cfg, logging.Nop{})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/pics/x.png", PublicURL(s.publicBase, s.bucket, "x.png"))

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err = NewS3Store(context.Background(), cfg, logging.Nop{})
	assert.EqualError(t, err, "load-fail")
}

func TestPublicURL_EscapesKey(t *testing.T) {
	got := PublicURL("http://h:9000/", "b", "a b.png")
	assert.Equal(t, "http://h:9000/b/a%20b.png", got)
	assert.False(t, strings.Contains(got, "//b"))
}
