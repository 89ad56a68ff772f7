package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// s3API is the subset of the S3 client RemoteStore depends on, so tests
// can supply an in-memory fake instead of talking to a real bucket.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// RemoteStore is an S3-compatible object-store Store. Writes buffer into a
// local scratch file and perform a single Put on commit; reads stream, and
// ranged reads use the HTTP Range header so a large segment is never
// pulled in full just to read its footer.
type RemoteStore struct {
	client    s3API
	bucket    string
	prefix    string
	scratchDir string
}

// NewRemoteStore builds a RemoteStore against bucket, using the default AWS
// credential chain (environment, shared config, IMDS). endpoint overrides
// the default S3 endpoint (for S3-compatible stores); pass "" for AWS S3.
func NewRemoteStore(ctx context.Context, bucket, prefix, region, endpoint string) (*RemoteStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, ioError("connect", bucket, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	scratch, err := os.MkdirTemp("", "prism-remote-scratch-*")
	if err != nil {
		return nil, ioError("connect", bucket, err)
	}

	return &RemoteStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), scratchDir: scratch}, nil
}

func (s *RemoteStore) key(path string) string {
	p := strings.TrimPrefix(path, "/")
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

func (s *RemoteStore) Write(ctx context.Context, path string, data []byte) error {
	scratchPath := fmt.Sprintf("%s/%s", s.scratchDir, uuid.NewString())
	if err := os.WriteFile(scratchPath, data, 0o600); err != nil {
		return ioError("write", path, err)
	}
	defer os.Remove(scratchPath)

	f, err := os.Open(scratchPath)
	if err != nil {
		return ioError("write", path, err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
		Body:   f,
	})
	if err != nil {
		return ioError("write", path, err)
	}
	return nil
}

func (s *RemoteStore) Read(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, notFound(path)
		}
		return nil, ioError("read", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, ioError("read", path, err)
	}
	return data, nil
}

func (s *RemoteStore) ReadRange(ctx context.Context, path string, r ByteRange) ([]byte, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+r.Length-1)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, notFound(path)
		}
		return nil, ioError("read_range", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, ioError("read_range", path, err)
	}
	return data, nil
}

func (s *RemoteStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) || isNotFoundStatus(err) {
		return false, nil
	}
	return false, ioError("exists", path, err)
}

func (s *RemoteStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var results []ObjectInfo
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.key(prefix)),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, ioError("list", prefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			results = append(results, ObjectInfo{Path: key, Size: aws.ToInt64(obj.Size)})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return results, nil
}

func (s *RemoteStore) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil && !isNoSuchKey(err) {
		return ioError("delete", path, err)
	}
	return nil
}

func (s *RemoteStore) Rename(ctx context.Context, from, to string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.key(to)),
		CopySource: aws.String(s.bucket + "/" + s.key(from)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return notFound(from)
		}
		return ioError("rename", from, err)
	}
	return s.Delete(ctx, from)
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

func isNotFoundStatus(err error) bool {
	var nf *types.NotFound
	return errors.As(err, &nf)
}
