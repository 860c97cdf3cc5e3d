package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"mealrecal/plan"
	"mealrecal/sanitize"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source loads a versioned configuration artifact.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

type FileSource struct {
	FilePath string
}

func NewFileSource(filePath string) *FileSource {
	return &FileSource{FilePath: filePath}
}

func (f *FileSource) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.FilePath)
}

type s3GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads one object from a bucket.
type S3Source struct {
	bucket string
	key    string
	s3     s3GetObjectAPI
}

func NewS3Source(client s3GetObjectAPI, bucket, key string) *S3Source {
	return &S3Source{
		bucket: bucket,
		key:    key,
		s3:     client,
	}
}

func (s *S3Source) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// StaticSource is an in-memory source for tests and embedded defaults.
type StaticSource struct {
	data []byte
	err  error
}

func NewStaticSource(data []byte) *StaticSource {
	return &StaticSource{data: data}
}

func NewStaticSourceWithError(err error) *StaticSource {
	if err == nil {
		err = errors.New("not found")
	}
	return &StaticSource{err: err}
}

func (s *StaticSource) Load(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

// LoadLexicon reads and validates a sanitizer lexicon. A nil source yields the embedded default.
func LoadLexicon(ctx context.Context, src Source) (sanitize.Lexicon, error) {
	if src == nil {
		return sanitize.DefaultLexicon()
	}
	data, err := src.Load(ctx)
	if err != nil {
		return sanitize.Lexicon{}, fmt.Errorf("load lexicon: %w", err)
	}
	return sanitize.ParseLexicon(data)
}

// LoadProfile reads a JSON dietary profile.
func LoadProfile(ctx context.Context, src Source) (plan.DietaryProfile, error) {
	data, err := src.Load(ctx)
	if err != nil {
		return plan.DietaryProfile{}, fmt.Errorf("load profile: %w", err)
	}
	var p plan.DietaryProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return plan.DietaryProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}
