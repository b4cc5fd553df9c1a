package checkpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
)

// ObjectAPI is the subset of *s3.Client the repository uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) ObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Config addresses the bucket holding checkpoint objects. Any S3-compatible
// store works (AWS, MinIO).
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// S3Repository keeps one small JSON object per checkpoint. CompareAndSet relies
// on conditional writes (If-Match / If-None-Match) so concurrent writers on
// different hosts cannot overwrite each other.
type S3Repository struct {
	api    ObjectAPI
	bucket string
	prefix string
}

func NewS3Repository(api ObjectAPI, bucket, prefix string) *S3Repository {
	return &S3Repository{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// OpenS3 builds an S3 client from cfg.
func OpenS3(ctx context.Context, cfg S3Config) (*S3Repository, error) {
	if cfg.Bucket == "" {
		return nil, &common.ValidationError{Field: "s3 bucket", Reason: "required"}
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	api := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Repository(api, cfg.Bucket, cfg.Prefix), nil
}

type s3Checkpoint struct {
	Cursor    int64     `json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *S3Repository) accountPrefix(account string) string {
	p := url.PathEscape(account) + "/"
	if r.prefix != "" {
		p = r.prefix + "/" + p
	}
	return p
}

func (r *S3Repository) objectKey(key models.CheckpointKey) string {
	return r.accountPrefix(key.Account) + url.PathEscape(key.Device) + "/" + string(key.Resource) + ".json"
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && (ae.ErrorCode() == "NotFound" || ae.ErrorCode() == "NoSuchKey")
}

func isPreconditionFailed(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

// read returns the checkpoint and its ETag, or (nil, "", nil) when absent.
func (r *S3Repository) read(ctx context.Context, key models.CheckpointKey) (*models.Checkpoint, string, error) {
	out, err := r.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to get checkpoint[%s]: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read checkpoint[%s]: %w", key, err)
	}
	var obj s3Checkpoint
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, "", fmt.Errorf("checkpoint[%s]: %w", key, common.NewDecodeError(err.Error()))
	}
	return &models.Checkpoint{Cursor: obj.Cursor, UpdatedAt: obj.UpdatedAt.UTC()}, aws.ToString(out.ETag), nil
}

func (r *S3Repository) write(ctx context.Context, key models.CheckpointKey, cp models.Checkpoint, ifMatch, ifNoneMatch *string) error {
	body, err := json.Marshal(s3Checkpoint{Cursor: cp.Cursor, UpdatedAt: cp.UpdatedAt.UTC()})
	if err != nil {
		return err
	}
	_, err = r.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.objectKey(key)),
		Body:        strings.NewReader(string(body)),
		ContentType: aws.String("application/json"),
		IfMatch:     ifMatch,
		IfNoneMatch: ifNoneMatch,
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("checkpoint[%s]: %w", key, common.ErrCheckpointConflict)
		}
		return fmt.Errorf("failed to put checkpoint[%s]: %w", key, err)
	}
	return nil
}

func (r *S3Repository) Get(ctx context.Context, key models.CheckpointKey) (*models.Checkpoint, error) {
	cp, _, err := r.read(ctx, key)
	return cp, err
}

func (r *S3Repository) Set(ctx context.Context, key models.CheckpointKey, cp models.Checkpoint) error {
	return r.write(ctx, key, cp, nil, nil)
}

func (r *S3Repository) CompareAndSet(ctx context.Context, key models.CheckpointKey, expected *models.Checkpoint, next models.Checkpoint) error {
	if err := checkForward(expected, next); err != nil {
		return err
	}
	cur, etag, err := r.read(ctx, key)
	if err != nil {
		return err
	}
	if expected == nil {
		if cur != nil {
			return fmt.Errorf("checkpoint[%s]: %w", key, common.ErrCheckpointConflict)
		}
		return r.write(ctx, key, next, nil, aws.String("*"))
	}
	if cur == nil || cur.Cursor != expected.Cursor {
		return fmt.Errorf("checkpoint[%s]: %w", key, common.ErrCheckpointConflict)
	}
	return r.write(ctx, key, next, aws.String(etag), nil)
}

func (r *S3Repository) Delete(ctx context.Context, key models.CheckpointKey) error {
	_, err := r.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete checkpoint[%s]: %w", key, err)
	}
	return nil
}

func (r *S3Repository) List(ctx context.Context, account string) (map[models.CheckpointKey]models.Checkpoint, error) {
	prefix := r.accountPrefix(account)
	result := make(map[models.CheckpointKey]models.Checkpoint)

	var token *string
	for {
		out, err := r.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(r.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list checkpoints: %w", err)
		}
		for _, obj := range out.Contents {
			rest := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			device, file, ok := strings.Cut(rest, "/")
			if !ok || !strings.HasSuffix(file, ".json") {
				continue
			}
			device, err := url.PathUnescape(device)
			if err != nil {
				continue
			}
			key := models.CheckpointKey{Account: account, Device: device, Resource: models.ResourceClass(strings.TrimSuffix(file, ".json"))}
			cp, _, err := r.read(ctx, key)
			if err != nil {
				return nil, err
			}
			if cp != nil {
				result[key] = *cp
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return result, nil
}
