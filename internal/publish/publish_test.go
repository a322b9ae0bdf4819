package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	bucket, key, contentType string
	body                     string
}

type fakePutter struct {
	calls  []putCall
	failAt int
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key, contentType string, body []byte) error {
	f.calls = append(f.calls, putCall{bucket, key, contentType, string(body)})
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return errors.New("access denied")
	}
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	fake := &fakePutter{}
	p := &Publisher{Client: fake, Bucket: "artifacts", KeyPrefix: "/stacks/MyFn/"}

	uris, err := p.Publish(context.Background(),
		Artifact{Name: "template.json", Body: []byte("{}")},
		Artifact{Name: "buildspec.yml", Body: []byte("version: 0.2")},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"s3://artifacts/stacks/MyFn/template.json",
		"s3://artifacts/stacks/MyFn/buildspec.yml",
	}, uris)
	assert.Equal(t, []putCall{
		{"artifacts", "stacks/MyFn/template.json", "application/json", "{}"},
		{"artifacts", "stacks/MyFn/buildspec.yml", "application/yaml", "version: 0.2"},
	}, fake.calls)
}

func TestPublisher_StopsOnError(t *testing.T) {
	fake := &fakePutter{failAt: 1}
	p := &Publisher{Client: fake, Bucket: "artifacts"}

	uris, err := p.Publish(context.Background(),
		Artifact{Name: "a.json"},
		Artifact{Name: "b.json"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://artifacts/a.json")
	assert.Empty(t, uris)
	assert.Len(t, fake.calls, 1)
}

func TestPublisher_CanceledContext(t *testing.T) {
	fake := &fakePutter{}
	p := &Publisher{Client: fake, Bucket: "artifacts"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Publish(ctx, Artifact{Name: "a.json"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.calls)
}

func TestPublisher_MissingBucket(t *testing.T) {
	p := &Publisher{Client: &fakePutter{}}
	_, err := p.Publish(context.Background())
	assert.ErrorIs(t, err, ErrMissingBucket)
}

func TestPublisher_ExplicitContentType(t *testing.T) {
	fake := &fakePutter{}
	p := &Publisher{Client: fake, Bucket: "artifacts"}

	_, err := p.Publish(context.Background(), Artifact{Name: "graph", ContentType: "text/vnd.graphviz"})
	require.NoError(t, err)
	assert.Equal(t, "text/vnd.graphviz", fake.calls[0].contentType)
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"template.json", "application/json"},
		{"template.YAML", "application/yaml"},
		{"buildspec.yml", "application/yaml"},
		{"graph.dot", "text/plain"},
		{"MyFn.zip", "application/zip"},
		{"blob", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentType(tt.name))
		})
	}
}

func TestNewS3Client(t *testing.T) {
	client, err := NewS3Client(context.Background(), ClientOptions{
		Region:    "eu-west-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}
