package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lwalthert/intuneapp/internal/blob"
	"github.com/lwalthert/intuneapp/internal/clock"
	"github.com/lwalthert/intuneapp/internal/data"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeFiles serves scripted upload states. Each renewal issues a new URI.
type fakeFiles struct {
	mu       sync.Mutex
	states   []data.UploadState // returned in order, the last one repeats
	polls    int
	renewals int
	uri      string
	getErr   error
}

func newFakeFiles(states ...data.UploadState) *fakeFiles {
	return &fakeFiles{states: states, uri: "https://store.test/blob?sig=0"}
}

func (f *fakeFiles) GetContentFile(_ context.Context, ref data.ContentFileRef) (*data.ContentFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	state := f.states[min(f.polls, len(f.states)-1)]
	f.polls++

	return &data.ContentFile{ID: ref.FileID, UploadState: state, AzureStorageURI: f.uri}, nil
}

func (f *fakeFiles) RenewUpload(context.Context, data.ContentFileRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.renewals++
	f.uri = fmt.Sprintf("https://store.test/blob?sig=%d", f.renewals)
	// Renewal completes on the next poll.
	f.states = []data.UploadState{data.AzureStorageURIRenewalSuccess}
	f.polls = 0

	return nil
}

type stageCall struct {
	uri     string
	blockID string
	size    int64
	body    []byte
}

// fakeStore records staged blocks. failures lists per-call statuses (0 = success)
// consumed in order; once exhausted every call succeeds.
type fakeStore struct {
	mu        sync.Mutex
	failures  []int
	calls     []stageCall
	staged    map[string][]byte
	committed []string
	commitURI string
	duplicate []string
	onStage   func(call int)
}

func newFakeStore(failures ...int) *fakeStore {
	return &fakeStore{failures: failures, staged: map[string][]byte{}}
}

func (s *fakeStore) StageBlock(_ context.Context, uri, blockID string, body io.Reader, size int64) error {
	payload, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, stageCall{uri: uri, blockID: blockID, size: size, body: payload})
	if s.onStage != nil {
		s.onStage(len(s.calls))
	}

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		if status != 0 {
			return &blob.StatusError{Op: "stage block " + blockID, StatusCode: status}
		}
	}

	if _, ok := s.staged[blockID]; ok {
		s.duplicate = append(s.duplicate, blockID)
	}
	s.staged[blockID] = payload

	return nil
}

func (s *fakeStore) CommitBlockList(_ context.Context, uri string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.committed = make([]string, len(ids))
	copy(s.committed, ids)
	s.commitURI = uri

	return nil
}

// assembled concatenates the committed blocks.
func (s *fakeStore) assembled() []byte {
	var out bytes.Buffer
	for _, id := range s.committed {
		out.Write(s.staged[id])
	}

	return out.Bytes()
}

func newTestUploader(files *fakeFiles, store *fakeStore, c clock.Clock, opts ...Option) *Uploader {
	waiter := NewWaiter(files, WithWaiterClock(c))
	opts = append([]Option{WithClock(c)}, opts...)

	return NewUploader(files, store, waiter, opts...)
}

func testRef() data.ContentFileRef {
	return data.ContentFileRef{AppID: "app", AppType: "microsoft.graph.win32LobApp", ContentVersionID: "1", FileID: "f"}
}
