package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/objectstore"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJetStream(t *testing.T) nats.JetStreamContext {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)
	t.Cleanup(natsServer.Shutdown)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	return jetstreamContext
}

func TestStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store, err := objectstore.New(newJetStream(t), "PODCAST_AUDIO")
	require.NoError(t, err)
	assert.Equal(t, "PODCAST_AUDIO", store.Bucket())

	ctx := context.Background()
	audioData := []byte("RIFF....WAVEfmt fake podcast")

	require.NoError(t, store.Upload(ctx, "lecture_podcast.wav", audioData))

	downloaded, err := store.Download(ctx, "lecture_podcast.wav")
	require.NoError(t, err)
	assert.Equal(t, audioData, downloaded)

	require.NoError(t, store.Upload(ctx, "lecture_podcast.wav", []byte("replaced")))

	downloaded, err = store.Download(ctx, "lecture_podcast.wav")
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(downloaded))
}

func TestStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	jetstreamContext := newJetStream(t)

	first, err := objectstore.New(jetstreamContext, "PODCAST_DOCUMENTS")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "doc.pdf", []byte("%PDF")))

	second, err := objectstore.New(jetstreamContext, "PODCAST_DOCUMENTS")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

func TestStore_DownloadMissing(t *testing.T) {
	t.Parallel()

	store, err := objectstore.New(newJetStream(t), "PODCAST_DOCUMENTS")
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "absent.pdf")
	require.ErrorIs(t, err, core.ErrNotFound)
}
