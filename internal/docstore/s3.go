package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"didstore/internal/access"
)

// S3Store is a DocumentStore backed by an S3 bucket, for DSNs of the form
//
//	s3://[access:secret@]bucket[/prefix]?region=us-east-1[&endpoint=https://...]
//
// Each record is one JSON object under <prefix>/<database identity>/<id>.json.
// Credentials fall back to the ambient AWS configuration when the DSN does
// not embed them.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	name     string
}

var _ access.DocumentStore = (*S3Store)(nil)

// NewS3Store connects a store scoped to the given physical database name
// using a parsed s3:// DSN.
func NewS3Store(ctx context.Context, dsn *url.URL, name string) (*S3Store, error) {
	bucket := dsn.Host
	if bucket == "" {
		return nil, fmt.Errorf("s3 DSN missing bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := dsn.Query().Get("region"); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if user := dsn.User; user != nil {
		secret, _ := user.Password()
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(user.Username(), secret, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := dsn.Query().Get("endpoint"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(dsn.Path, "/"),
		name:     name,
	}, nil
}

func (s *S3Store) key(id string) string {
	return path.Join(s.prefix, s.name, id+".json")
}

// Put creates or replaces the record under its _id.
func (s *S3Store) Put(ctx context.Context, doc access.Record) (access.Record, error) {
	id := doc.ID()
	if id == "" {
		return nil, fmt.Errorf("putting document in %q: missing _id", s.name)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document %q: %w", id, err)
	}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading document %q to %q: %w", id, s.name, err)
	}
	return doc, nil
}

// Get returns the record with the given identifier, soft-deleted or not.
func (s *S3Store) Get(ctx context.Context, id string) (access.Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("document %q in %q: %w", id, s.name, access.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching document %q from %q: %w", id, s.name, err)
	}
	defer out.Body.Close()

	return decodeDocument(out.Body, id)
}

// Find lists the database's objects and evaluates the query locally. S3 has
// no server-side query surface, so this is a full scan of the database
// prefix.
func (s *S3Store) Find(ctx context.Context, query access.FindQuery) (*access.FindResult, error) {
	listPrefix := path.Join(s.prefix, s.name) + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})

	var docs []access.Record
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %q: %w", s.name, err)
		}
		for _, obj := range page.Contents {
			out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return nil, fmt.Errorf("fetching %q from %q: %w", aws.ToString(obj.Key), s.name, err)
			}
			doc, err := decodeDocument(out.Body, aws.ToString(obj.Key))
			out.Body.Close()
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}

	matched, err := Apply(docs, query)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", s.name, err)
	}
	return &access.FindResult{Docs: matched}, nil
}

func decodeDocument(r io.Reader, ref string) (access.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document %q: %w", ref, err)
	}
	var doc access.Record
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document %q: %w", ref, err)
	}
	return doc, nil
}
