package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(aws.ToString(in.Prefix), aws.ToString(in.ContinuationToken))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.ListObjectsV2Output), args.Error(1)
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	args := m.Called(aws.ToString(in.Bucket), aws.ToString(in.Key), string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(aws.ToString(in.Bucket), aws.ToString(in.Key))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

func objects(keys ...string) []types.Object {
	out := make([]types.Object, len(keys))
	for i, k := range keys {
		out[i] = types.Object{Key: aws.String(k)}
	}
	return out
}

func TestS3Store_ListFollowsPagination(t *testing.T) {
	client := new(mockS3)
	client.On("ListObjectsV2", "prod/day/", "").Return(&s3.ListObjectsV2Output{
		Contents:              objects("prod/day/2023:01:01:00:00:00.psql"),
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("page-2"),
	}, nil).Once()
	client.On("ListObjectsV2", "prod/day/", "page-2").Return(&s3.ListObjectsV2Output{
		Contents:    objects("prod/day/2023:01:02:00:00:00.psql"),
		IsTruncated: aws.Bool(false),
	}, nil).Once()

	store := newS3Store(client, "backups")
	keys, err := store.List(context.Background(), "prod/day/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"prod/day/2023:01:01:00:00:00.psql",
		"prod/day/2023:01:02:00:00:00.psql",
	}, keys)
	client.AssertExpectations(t)
}

func TestS3Store_ListEmpty(t *testing.T) {
	client := new(mockS3)
	client.On("ListObjectsV2", "prod/year/", "").Return(&s3.ListObjectsV2Output{}, nil)

	keys, err := newS3Store(client, "backups").List(context.Background(), "prod/year/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestS3Store_ListErrorIsUnavailable(t *testing.T) {
	client := new(mockS3)
	client.On("ListObjectsV2", "prod/day/", "").Return(nil, errors.New("dial tcp: connection refused"))

	_, err := newS3Store(client, "backups").List(context.Background(), "prod/day/")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "List", se.Op)
}

func TestS3Store_Upload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.psql")
	require.NoError(t, os.WriteFile(path, []byte("fake-db-content"), 0o644))

	client := new(mockS3)
	client.On("PutObject", "backups", "prod/day/2023:01:01:00:00:00.psql", "fake-db-content").
		Return(&s3.PutObjectOutput{}, nil)

	err := newS3Store(client, "backups").Upload(context.Background(), "prod/day/2023:01:01:00:00:00.psql", path)
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestS3Store_UploadMissingFile(t *testing.T) {
	client := new(mockS3)
	err := newS3Store(client, "backups").Upload(context.Background(), "k", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything)
}

func TestS3Store_Delete(t *testing.T) {
	client := new(mockS3)
	client.On("DeleteObject", "backups", "prod/day/old.psql").Return(&s3.DeleteObjectOutput{}, nil)

	require.NoError(t, newS3Store(client, "backups").Delete(context.Background(), "prod/day/old.psql"))
	client.AssertExpectations(t)
}

func TestS3Store_DeleteErrorMapping(t *testing.T) {
	client := new(mockS3)
	client.On("DeleteObject", "backups", "missing").Return(nil, &types.NoSuchKey{})
	client.On("DeleteObject", "backups", "flaky").Return(nil, errors.New("i/o timeout"))

	store := newS3Store(client, "backups")

	err := store.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Delete(context.Background(), "flaky")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestNewS3Store_StaticCredentials(t *testing.T) {
	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:          "backups",
		Endpoint:        "https://nyc3.digitaloceanspaces.com",
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		ForcePathStyle:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "backups", store.bucket)
}
