package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/persistence"
	"github.com/airenas/supaquery/internal/pkg/retry"
	"github.com/airenas/supaquery/internal/pkg/status"
	"github.com/airenas/supaquery/internal/pkg/test"
	"github.com/airenas/supaquery/internal/pkg/test/mocks"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeAudioDB struct {
	lock   sync.Mutex
	recs   []*persistence.RefundRequest
	stages map[int64][]string
	failed map[int64]string
}

func newFakeAudioDB(recs ...*persistence.RefundRequest) *fakeAudioDB {
	return &fakeAudioDB{recs: recs, stages: map[int64][]string{}, failed: map[int64]string{}}
}

func (db *fakeAudioDB) PendingAudio(ctx context.Context) ([]*persistence.RefundRequest, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	res := []*persistence.RefundRequest{}
	for _, r := range db.recs {
		if r.AudioURL.String != "" && !r.Summary.Valid {
			c := *r
			res = append(res, &c)
		}
	}
	return res, nil
}

func (db *fakeAudioDB) Summarized(ctx context.Context) ([]*persistence.RefundRequest, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	res := []*persistence.RefundRequest{}
	for _, r := range db.recs {
		if r.Summary.Valid {
			res = append(res, r)
		}
	}
	return res, nil
}

func (db *fakeAudioDB) MarkStage(ctx context.Context, id int64, stage status.Stage) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.stages[id] = append(db.stages[id], stage.String())
	return nil
}

func (db *fakeAudioDB) SaveSummary(ctx context.Context, id int64, summary string, started time.Time) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	for _, r := range db.recs {
		if r.ID == id && !r.Summary.Valid {
			r.Summary = utils.ToSQLStr(summary)
			r.Status = utils.ToSQLStr(status.Complete.String())
			return nil
		}
	}
	return fmt.Errorf("no pending record %d", id)
}

func (db *fakeAudioDB) MarkFailed(ctx context.Context, id int64, msg string) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.failed[id] = msg
	return nil
}

var (
	downloaderMock  *mocks.Downloader
	transcriberMock *mocks.Transcriber
	summarizerMock  *mocks.Summarizer
)

func initAudioTest(t *testing.T, db *fakeAudioDB) *Audio {
	t.Helper()
	downloaderMock = &mocks.Downloader{}
	transcriberMock = &mocks.Transcriber{}
	summarizerMock = &mocks.Summarizer{}
	a, err := NewAudio(db, downloaderMock, transcriberMock, summarizerMock, testConfig(&sleepRecorder{}))
	require.Nil(t, err)
	a.retry = retry.DefaultOpts().WithSleep(func(context.Context, time.Duration) error { return nil })
	downloaderMock.On("Download", mock.Anything, mock.Anything, mock.Anything).Return("/tmp/audio.mp3", nil)
	downloaderMock.On("Remove", mock.Anything).Return(nil)
	transcriberMock.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("text", false)
	summarizerMock.On("Summarize", mock.Anything, mock.Anything).Return("summary", false)
	return a
}

func rec(id int64, audio, summary string) *persistence.RefundRequest {
	return &persistence.RefundRequest{ID: id, Name: utils.ToSQLStr(fmt.Sprintf("n%d", id)),
		AudioURL: utils.ToSQLStr(audio), Summary: utils.ToSQLStr(summary)}
}

func TestAudio_ProcessPending(t *testing.T) {
	db := newFakeAudioDB(rec(1, "http://a/1.mp3", ""), rec(2, "", ""), rec(3, "http://a/3.mp3", "old"))
	a := initAudioTest(t, db)

	res, err := a.ProcessPending(test.Ctx(t), nil)

	require.Nil(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, []api.AudioResult{{ID: 1, Name: "n1", Success: true, TranscriptionLength: 4,
		SummaryLength: 7}}, res.Results)
	assert.Equal(t, "TRANSCRIPTION:\ntext\n\nSUMMARY:\nsummary", db.recs[0].Summary.String)
	assert.Equal(t, "old", db.recs[2].Summary.String)
	assert.Equal(t, []string{"downloading", "transcribing", "summarizing"}, db.stages[1])
	downloaderMock.AssertCalled(t, "Download", mock.Anything, "http://a/1.mp3", "audio_1.mp3")
	downloaderMock.AssertCalled(t, "Remove", "/tmp/audio.mp3")
}

func TestAudio_ProcessPending_Idempotent(t *testing.T) {
	db := newFakeAudioDB(rec(1, "http://a/1.mp3", ""), rec(2, "http://a/2.mp3", ""))
	a := initAudioTest(t, db)

	res, err := a.ProcessPending(test.Ctx(t), nil)
	require.Nil(t, err)
	assert.Equal(t, 2, res.Success)
	saved := db.recs[0].Summary.String

	res, err = a.ProcessPending(test.Ctx(t), nil)
	require.Nil(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, saved, db.recs[0].Summary.String)
	downloaderMock.AssertNumberOfCalls(t, "Download", 2)
}

func TestAudio_ProcessPending_Isolation(t *testing.T) {
	db := newFakeAudioDB(rec(1, "http://a/1.mp3", ""), rec(2, "http://a/2.mp3", ""), rec(3, "http://a/3.mp3", ""))
	a := initAudioTest(t, db)
	downloaderMock.ExpectedCalls = nil
	downloaderMock.On("Download", mock.Anything, "http://a/2.mp3", mock.Anything).Return("", utils.ErrEmptyResponse)
	downloaderMock.On("Download", mock.Anything, mock.Anything, mock.Anything).Return("/tmp/audio.mp3", nil)
	downloaderMock.On("Remove", mock.Anything).Return(nil)

	res, err := a.ProcessPending(test.Ctx(t), nil)

	require.Nil(t, err)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 1, res.Failed)
	assert.True(t, db.recs[0].Summary.Valid)
	assert.False(t, db.recs[1].Summary.Valid)
	assert.True(t, db.recs[2].Summary.Valid)
	assert.Contains(t, db.failed[2], "empty")
	assert.Equal(t, int64(2), res.Results[1].ID)
	assert.NotEmpty(t, res.Results[1].Error)
	downloaderMock.AssertNumberOfCalls(t, "Download", 5)
}

func TestAudio_ProcessPending_Fallback(t *testing.T) {
	db := newFakeAudioDB(rec(1, "http://a/1.mp3", ""))
	a := initAudioTest(t, db)
	transcriberMock.ExpectedCalls = nil
	transcriberMock.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("fallback", true)

	res, err := a.ProcessPending(test.Ctx(t), nil)

	require.Nil(t, err)
	assert.Equal(t, 1, res.Success)
	assert.True(t, res.Results[0].Fallback)
	summarizerMock.AssertCalled(t, "Summarize", mock.Anything, "fallback")
}

func TestAudio_Summaries(t *testing.T) {
	db := newFakeAudioDB(rec(1, "http://a/1.mp3", "TRANSCRIPTION:\nt\n\nSUMMARY:\ns1"), rec(2, "http://a/2.mp3", ""))
	a := initAudioTest(t, db)

	res, err := a.Summaries(test.Ctx(t), nil)

	require.Nil(t, err)
	assert.Equal(t, []api.Summary{{ID: 1, Name: "n1", Summary: "s1"}}, res)
	downloaderMock.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything)
}

func TestAudio_Summaries_ProcessesFirst(t *testing.T) {
	db := newFakeAudioDB(rec(1, "http://a/1.mp3", ""))
	a := initAudioTest(t, db)

	res, err := a.Summaries(test.Ctx(t), nil)

	require.Nil(t, err)
	assert.Equal(t, []api.Summary{{ID: 1, Name: "n1", Summary: "summary"}}, res)
}

func TestNewAudio_Fail(t *testing.T) {
	db := newFakeAudioDB()
	_, err := NewAudio(nil, &mocks.Downloader{}, &mocks.Transcriber{}, &mocks.Summarizer{}, nil)
	assert.NotNil(t, err)
	_, err = NewAudio(db, nil, &mocks.Transcriber{}, &mocks.Summarizer{}, nil)
	assert.NotNil(t, err)
	_, err = NewAudio(db, &mocks.Downloader{}, nil, &mocks.Summarizer{}, nil)
	assert.NotNil(t, err)
	_, err = NewAudio(db, &mocks.Downloader{}, &mocks.Transcriber{}, nil, nil)
	assert.NotNil(t, err)
}
