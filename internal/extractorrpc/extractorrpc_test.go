package extractorrpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifshteksex/roombot/internal/model"
)

func TestRequestResponseFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = WriteRequest(client, Request{Verb: VerbExtract, Text: "https://youtu.be/dQw4w9WgXcQ"})
	}()
	req, err := ReadRequest(server)
	require.NoError(t, err)
	assert.Equal(t, VerbExtract, req.Verb)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", req.Text)

	go func() {
		_ = WriteResponse(server, Response{Track: &model.Track{Title: "Never Gonna Give You Up"}})
	}()
	resp, err := ReadResponse(client)
	require.NoError(t, err)
	require.NotNil(t, resp.Track)
	assert.Equal(t, "Never Gonna Give You Up", resp.Track.Title)
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, url string) (model.Track, error) {
	if url == "bad" {
		return model.Track{}, errors.New("not found")
	}
	return model.Track{Title: "track for " + url, OriginURL: url}, nil
}

func (fakeExtractor) Search(ctx context.Context, text string) ([]model.Track, error) {
	return []model.Track{{Title: "result for " + text}}, nil
}

func TestServerClientExtractRoundTrip(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewServer(listener, []Extractor{fakeExtractor{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	client, err := Dial(listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	track, err := client.Extract("https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, "track for https://youtu.be/abc", track.Title)
}

func TestServerClientExtractErrorPropagates(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewServer(listener, []Extractor{fakeExtractor{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	client, err := Dial(listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Extract("bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestServerClientSearch(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewServer(listener, []Extractor{fakeExtractor{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	client, err := Dial(listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	tracks, err := client.Search("some song")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "result for some song", tracks[0].Title)
}

func TestShutdownClosesServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewServer(listener, []Extractor{fakeExtractor{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = server.Serve(ctx)
		close(done)
	}()

	client, err := Dial(listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Shutdown())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestYoutubeVideoIDMatchesExactly11Chars(t *testing.T) {
	assert.True(t, YoutubeVideoID.MatchString("dQw4w9WgXcQ"))
	assert.False(t, YoutubeVideoID.MatchString("tooshort"))
}

func TestExtractYoutubeVideoIDFromVariousURLShapes(t *testing.T) {
	cases := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/embed/dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://music.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"youtu.be/dQw4w9WgXcQ",
	}
	for _, url := range cases {
		assert.Equal(t, "dQw4w9WgXcQ", ExtractYoutubeVideoID(url), url)
	}
}

func TestExtractYoutubeVideoIDRejectsNonYoutubeURL(t *testing.T) {
	assert.Equal(t, "", ExtractYoutubeVideoID("https://example.com/watch?v=dQw4w9WgXcQ"))
}
