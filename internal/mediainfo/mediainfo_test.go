package mediainfo_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediascribe/internal/mediainfo"
)

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binary uses a shell script")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestSearch(t *testing.T) {
	script := `
case "$@" in
*"ytsearch3:go concurrency"*) ;;
*) echo "unexpected args: $@" >&2; exit 1 ;;
esac
echo '{"id":"v1","title":"Go Concurrency Patterns","channel":"GoogleDevs","duration":1830.0,"view_count":900000}'
echo '{"id":"v2","title":"Concurrency Is Not Parallelism","uploader":"gophercon","url":"https://youtu.be/v2"}'
`
	c := &mediainfo.Client{Binary: fakeBinary(t, script)}
	results, err := c.Search(context.Background(), "go concurrency", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "v1", results[0].VideoID)
	assert.Equal(t, "GoogleDevs", results[0].Channel)
	assert.Equal(t, "https://www.youtube.com/watch?v=v1", results[0].URL)
	require.NotNil(t, results[0].Duration)
	assert.EqualValues(t, 1830, *results[0].Duration)

	assert.Equal(t, "gophercon", results[1].Channel)
	assert.Equal(t, "https://youtu.be/v2", results[1].URL)
	assert.Nil(t, results[1].Duration)
}

func TestSearch_ClampsLimit(t *testing.T) {
	script := `
case "$@" in
*"ytsearch1:"*) echo '{"id":"a","title":"t"}' ;;
*"ytsearch25:"*) echo '{"id":"b","title":"t"}' ;;
*) echo "unexpected args: $@" >&2; exit 1 ;;
esac
`
	c := &mediainfo.Client{Binary: fakeBinary(t, script)}

	results, err := c.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, "a", results[0].VideoID)

	results, err = c.Search(context.Background(), "q", 9000)
	require.NoError(t, err)
	assert.Equal(t, "b", results[0].VideoID)
}

func TestMetadata(t *testing.T) {
	script := `echo '{"id":"abc","title":"Talk","channel":"Conf","extractor_key":"Youtube","webpage_url":"https://youtube.com/watch?v=abc","duration":95.5,"like_count":10}'`
	c := &mediainfo.Client{Binary: fakeBinary(t, script)}

	meta, err := c.Metadata(context.Background(), "https://youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", meta.VideoID)
	assert.Equal(t, "youtube", meta.Platform)
	require.NotNil(t, meta.LikeCount)
	assert.EqualValues(t, 10, *meta.LikeCount)
}

func TestComments(t *testing.T) {
	script := `
case "$@" in
*"comment_sort=top"*) ;;
*) echo "unexpected args: $@" >&2; exit 1 ;;
esac
echo '{"id":"abc","comments":[{"id":"c1","text":"great","author":"ann","like_count":5,"is_pinned":true,"parent":"root"},{"id":"c2","text":"thanks","author":"bob","parent":"c1"}]}'
`
	c := &mediainfo.Client{Binary: fakeBinary(t, script)}

	comments, err := c.Comments(context.Background(), "https://youtube.com/watch?v=abc", 10, "")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "great", comments[0].Text)
	assert.True(t, comments[0].IsPinned)
	assert.Equal(t, "c1", comments[1].Parent)
}

func TestComments_SortNewest(t *testing.T) {
	script := `
case "$@" in
*"comment_sort=new"*) echo '{"id":"abc","comments":[]}' ;;
*) echo "unexpected args: $@" >&2; exit 1 ;;
esac
`
	c := &mediainfo.Client{Binary: fakeBinary(t, script)}

	_, err := c.Comments(context.Background(), "https://youtube.com/watch?v=abc", 10, "new")
	require.NoError(t, err)
}

func TestComments_TruncatesToLimit(t *testing.T) {
	script := `echo '{"id":"abc","comments":[{"id":"c1","text":"a","author":"x"},{"id":"c2","text":"b","author":"y"},{"id":"c3","text":"c","author":"z"}]}'`
	c := &mediainfo.Client{Binary: fakeBinary(t, script)}

	comments, err := c.Comments(context.Background(), "https://youtube.com/watch?v=abc", 2, "top")
	require.NoError(t, err)
	assert.Len(t, comments, 2)
}

func TestLookupFailure(t *testing.T) {
	script := `
echo 'ERROR: [youtube] bad: Private video' >&2
exit 1
`
	c := &mediainfo.Client{Binary: fakeBinary(t, script)}
	_, err := c.Metadata(context.Background(), "https://youtube.com/watch?v=bad")
	require.ErrorIs(t, err, mediainfo.ErrLookupFailed)
	assert.Contains(t, err.Error(), "Private video")
}
