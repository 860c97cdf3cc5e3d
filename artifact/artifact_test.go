package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	body []byte
	err  error
	in   *s3.GetObjectInput
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.in = in
	if m.err != nil {
		return nil, m.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(m.body))}, nil
}

const lexiconYAML = `
version: "test-1"
generic_safe: Healthy balanced meal option
non_vegetarian: [chicken]
egg: [egg, omelette]
substitutes:
  breakfast: [Vegetable poha]
  lunch: [Dal with brown rice]
  dinner: [Paneer tikka with roti]
  other: [Fresh fruit bowl]
`

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{name: "lexicon", filename: "lexicon.yaml", data: []byte(lexiconYAML)},
		{name: "empty file", filename: "empty.json", data: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.filename)
			require.NoError(t, os.WriteFile(path, tt.data, 0o644))

			got, err := NewFileSource(path).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(dir, "nope.yaml")).Load(context.Background())
		assert.True(t, os.IsNotExist(err))
	})
}

func TestS3Source(t *testing.T) {
	m := &mockS3{body: []byte(lexiconYAML)}
	got, err := NewS3Source(m, "artifacts", "lexicon.yaml").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte(lexiconYAML), got)
	assert.Equal(t, "artifacts", aws.ToString(m.in.Bucket))
	assert.Equal(t, "lexicon.yaml", aws.ToString(m.in.Key))

	_, err = NewS3Source(&mockS3{err: errors.New("access denied")}, "artifacts", "lexicon.yaml").Load(context.Background())
	assert.ErrorContains(t, err, "s3://artifacts/lexicon.yaml")
}

func TestLoadLexicon(t *testing.T) {
	ctx := context.Background()

	lex, err := LoadLexicon(ctx, NewStaticSource([]byte(lexiconYAML)))
	require.NoError(t, err)
	assert.Equal(t, "test-1", lex.Version)

	lex, err = LoadLexicon(ctx, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, lex.Version)

	_, err = LoadLexicon(ctx, NewStaticSourceWithError(nil))
	assert.ErrorContains(t, err, "load lexicon")

	_, err = LoadLexicon(ctx, NewStaticSource([]byte("version: \"\"\n")))
	assert.Error(t, err)
}

func TestLoadProfile(t *testing.T) {
	ctx := context.Background()

	p, err := LoadProfile(ctx, NewStaticSource([]byte(`{
		"dietary_features": ["vegetarian (no eggs)"],
		"allergies": ["peanuts"],
		"target_calories": 1800,
		"timezone": "Asia/Kolkata"
	}`)))
	require.NoError(t, err)
	assert.Equal(t, 1800.0, p.Target())
	c := p.Constraints()
	assert.True(t, c.Vegetarian)
	assert.True(t, c.NoEggs)

	_, err = LoadProfile(ctx, NewStaticSource([]byte(`[]`)))
	assert.ErrorContains(t, err, "decode profile")
}
