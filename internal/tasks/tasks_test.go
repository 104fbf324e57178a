package tasks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tvicl/server/internal/config"
	"tvicl/server/internal/email"
	"tvicl/server/internal/storage"
	"tvicl/server/internal/tasks"
	"tvicl/server/internal/utils"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type fakeObject struct {
	data        []byte
	contentType string
}

// fakeStorage keeps objects in memory.
type fakeStorage struct {
	objects map[string]fakeObject
	puts    int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]fakeObject{}}
}

func (f *fakeStorage) GeneratePresignedPutURL(ctx context.Context, userID utils.SixID, filename, contentType string) (*storage.PresignedUpload, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStorage) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	obj, ok := f.objects[key]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return obj.data, obj.contentType, nil
}

func (f *fakeStorage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	f.puts++
	f.objects[key] = fakeObject{data: data, contentType: contentType}
	return nil
}

func (f *fakeStorage) PublicURL(key string) string { return "https://cdn.example.com/" + key }

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		SmtpFromAddress:   "noreply@tvicl.example.com",
		ImageMaxDimension: 64,
		ImageMaxSizeMB:    1,
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// --- Email delivery ---

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	sender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(testConfig(), sender, nil)

	msg := email.Message{
		To:      "buyer@example.com",
		Kind:    email.KindVerifyEmail,
		Subject: "Verify your email",
		Body:    "Open http://localhost:5173/verify-email/abc",
	}
	payload, _ := json.Marshal(msg)
	task := asynq.NewTask(tasks.TypeEmailDelivery, payload)

	sender.On("Send", mock.Anything, []string{"buyer@example.com"}, "Verify your email",
		mock.MatchedBy(func(raw []byte) bool {
			return email.KindOf(raw) == email.KindVerifyEmail &&
				bytes.Contains(raw, []byte("From: noreply@tvicl.example.com")) &&
				bytes.Contains(raw, []byte("verify-email/abc"))
		})).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_SenderFailureRetries(t *testing.T) {
	sender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(testConfig(), sender, nil)
	payload, _ := json.Marshal(email.Message{To: "a@example.com", Kind: email.KindPasswordReset, Subject: "Reset"})

	sender.On("Send", mock.Anything, []string{"a@example.com"}, "Reset", mock.Anything).Return(errors.New("smtp down"))

	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, payload))
	assert.EqualError(t, err, "smtp down")
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleEmailDeliveryTask_BadPayload(t *testing.T) {
	sender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(testConfig(), sender, nil)

	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(email.Message{Subject: "nobody"})
	err = p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- Dispatcher ---

func TestDispatcher_Enqueue(t *testing.T) {
	q := &fakeEnqueuer{}
	d := tasks.NewDispatcher(q)
	msg := email.Message{To: "x@example.com", Kind: email.KindPasswordChanged, Subject: "Changed", Body: "b"}

	require.NoError(t, d.Enqueue(context.Background(), msg))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, tasks.TypeEmailDelivery, q.tasks[0].Type())

	var got email.Message
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &got))
	assert.Equal(t, msg, got)

	assert.Error(t, d.Enqueue(context.Background(), email.Message{Subject: "no recipient"}))
	assert.Len(t, q.tasks, 1)

	q.err = errors.New("redis gone")
	assert.ErrorContains(t, d.Enqueue(context.Background(), msg), "redis gone")
}

func TestDispatcher_EnqueueMediaProcess(t *testing.T) {
	q := &fakeEnqueuer{}
	d := tasks.NewDispatcher(q)

	require.NoError(t, d.EnqueueMediaProcess(context.Background(), "uploads/abc/photo.png"))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, tasks.TypeMediaProcess, q.tasks[0].Type())
	assert.JSONEq(t, `{"s3_key":"uploads/abc/photo.png"}`, string(q.tasks[0].Payload()))
}

// --- Media processing ---

func mediaTask(key string) *asynq.Task {
	payload, _ := json.Marshal(tasks.MediaTaskPayload{S3Key: key})
	return asynq.NewTask(tasks.TypeMediaProcess, payload)
}

func TestHandleMediaProcessTask_ResizesLargeImage(t *testing.T) {
	store := newFakeStorage()
	key := "uploads/user/big.png"
	store.objects[key] = fakeObject{data: encodePNG(t, 200, 100), contentType: "image/png"}
	p := tasks.NewTaskProcessor(testConfig(), nil, store)

	require.NoError(t, p.HandleMediaProcessTask(context.Background(), mediaTask(key)))
	assert.Equal(t, 1, store.puts)

	obj := store.objects[key]
	assert.Equal(t, "image/png", obj.contentType)
	img, err := png.Decode(bytes.NewReader(obj.data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestHandleMediaProcessTask_ResizesJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 300))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	store := newFakeStorage()
	key := "uploads/user/tall.jpg"
	store.objects[key] = fakeObject{data: buf.Bytes(), contentType: "image/jpeg"}
	p := tasks.NewTaskProcessor(testConfig(), nil, store)

	require.NoError(t, p.HandleMediaProcessTask(context.Background(), mediaTask(key)))
	img, err := jpeg.Decode(bytes.NewReader(store.objects[key].data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dy())
	assert.LessOrEqual(t, img.Bounds().Dx(), 22)
}

func TestHandleMediaProcessTask_LeavesSmallImage(t *testing.T) {
	store := newFakeStorage()
	key := "uploads/user/small.png"
	store.objects[key] = fakeObject{data: encodePNG(t, 32, 32), contentType: "image/png"}
	p := tasks.NewTaskProcessor(testConfig(), nil, store)

	require.NoError(t, p.HandleMediaProcessTask(context.Background(), mediaTask(key)))
	assert.Zero(t, store.puts)
	assert.Equal(t, "image/png", store.objects[key].contentType)
}

func TestHandleMediaProcessTask_NonImageSkipped(t *testing.T) {
	store := newFakeStorage()
	key := "uploads/user/brochure.pdf"
	store.objects[key] = fakeObject{data: []byte("%PDF-1.4"), contentType: "application/pdf"}
	p := tasks.NewTaskProcessor(testConfig(), nil, store)

	require.NoError(t, p.HandleMediaProcessTask(context.Background(), mediaTask(key)))
	assert.Zero(t, store.puts)
}

func TestHandleMediaProcessTask_Failures(t *testing.T) {
	store := newFakeStorage()
	store.objects["uploads/user/corrupt.png"] = fakeObject{data: []byte("not a png"), contentType: "image/png"}
	store.objects["uploads/user/huge.png"] = fakeObject{data: make([]byte, 2*1024*1024), contentType: "image/png"}
	p := tasks.NewTaskProcessor(testConfig(), nil, store)
	ctx := context.Background()

	tests := []struct {
		name string
		task *asynq.Task
	}{
		{"bad payload", asynq.NewTask(tasks.TypeMediaProcess, []byte("nope"))},
		{"outside uploads", mediaTask("private/secrets.png")},
		{"missing object", mediaTask("uploads/user/missing.png")},
		{"corrupt image", mediaTask("uploads/user/corrupt.png")},
		{"too large", mediaTask("uploads/user/huge.png")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.HandleMediaProcessTask(ctx, tt.task)
			assert.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
	assert.Zero(t, store.puts)
}

func TestSetupServer_NoWorkers(t *testing.T) {
	srv, mux := tasks.SetupServer(nil, nil, false, false)
	assert.Nil(t, srv)
	assert.Nil(t, mux)
}
