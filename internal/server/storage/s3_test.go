package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSeams(t *testing.T) {
	t.Helper()
	origLoad, origNew, origPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origGet, origPresign := putObject, getObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient = origLoad, origNew, origPre
		putObject, getObject, presignGetObject = origPut, origGet, origPresign
	})
}

func newTestStore(t *testing.T) *S3Store {
	t.Helper()
	stubSeams(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }

	st, err := NewS3Store(context.Background(), S3Config{
		Region: "us-east-1", AccessKey: "admin", SecretKey: "secret",
		BaseEndpoint: "http://127.0.0.1:9000", Bucket: "bizdesk",
	})
	require.NoError(t, err)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
	return st
}

func TestNewS3Store_ConfigError(t *testing.T) {
	stubSeams(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	assert.ErrorContains(t, err, "no creds")
}

func TestPutGet(t *testing.T) {
	st := newTestStore(t)

	var stored []byte
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		assert.Equal(t, "bizdesk", *in.Bucket)
		assert.Equal(t, "files/2024/5/1/x", *in.Key)
		assert.Equal(t, "image/png", *in.ContentType)
		b, err := io.ReadAll(in.Body)
		require.NoError(t, err)
		stored = b
		return &s3.PutObjectOutput{}, nil
	}
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(stored))}, nil
	}

	require.NoError(t, st.Put(context.Background(), "files/2024/5/1/x", []byte("png!"), "image/png"))

	got, err := st.Get(context.Background(), "files/2024/5/1/x")
	require.NoError(t, err)
	assert.Equal(t, []byte("png!"), got)
}

func TestPut_Error(t *testing.T) {
	st := newTestStore(t)
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return nil, errors.New("bucket missing")
	}

	err := st.Put(context.Background(), "k", []byte("x"), "text/plain")
	assert.ErrorContains(t, err, "s3 put k: bucket missing")
}

func TestPresignGet(t *testing.T) {
	st := newTestStore(t)

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		assert.Equal(t, PresignExpiry, po.Expires)
		return &v4.PresignedHTTPRequest{URL: "http://minio/" + *in.Key}, nil
	}

	url, err := st.PresignGet(context.Background(), "files/k")
	require.NoError(t, err)
	assert.Equal(t, "http://minio/files/k", url)
}

func TestNewObjectKey(t *testing.T) {
	k := NewObjectKey(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^files/2024/5/1/[0-9a-f-]{36}$`), k)
	assert.NotEqual(t, k, NewObjectKey(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
}
