package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"tvicl/server/internal/config"
	"tvicl/server/internal/email"
	"tvicl/server/internal/storage"
)

// Task types.
const (
	TypeEmailDelivery = "email:deliver"
	TypeMediaProcess  = "media:process"
)

// Queue names.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueMedia    = "media"
)

// --- Task Client (Enqueuing tasks) ---

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher turns application requests into queued tasks.
type Dispatcher struct {
	client Enqueuer
}

func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client}
}

// Enqueue queues msg for delivery on the critical queue.
func (d *Dispatcher) Enqueue(ctx context.Context, msg email.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("email has no recipient")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}
	info, err := d.client.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, payload),
		asynq.Queue(QueueCritical), asynq.MaxRetry(5), asynq.Timeout(time.Minute))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s email: %w", msg.Kind, err)
	}
	log.Printf("Enqueued %s email task %s", msg.Kind, info.ID)
	return nil
}

// MediaTaskPayload names the uploaded object to normalise.
type MediaTaskPayload struct {
	S3Key string `json:"s3_key"`
}

// EnqueueMediaProcess queues normalisation of an uploaded image.
func (d *Dispatcher) EnqueueMediaProcess(ctx context.Context, key string) error {
	payload, err := json.Marshal(MediaTaskPayload{S3Key: key})
	if err != nil {
		return fmt.Errorf("failed to marshal media payload: %w", err)
	}
	info, err := d.client.EnqueueContext(ctx, asynq.NewTask(TypeMediaProcess, payload),
		asynq.Queue(QueueMedia), asynq.MaxRetry(3))
	if err != nil {
		return fmt.Errorf("failed to enqueue media task for %s: %w", key, err)
	}
	log.Printf("Enqueued media task %s for %s", info.ID, key)
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies of the task handlers.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	storage     storage.IS3Storage
	now         func() time.Time
}

func NewTaskProcessor(cfg *config.Config, emailSender email.Sender, storage storage.IS3Storage) *TaskProcessor {
	return &TaskProcessor{cfg: cfg, emailSender: emailSender, storage: storage, now: time.Now}
}

// SetupServer builds an Asynq server and the mux for the requested workers. It
// returns nil when neither worker is wanted. The caller runs and shuts down the server.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isMediaWorker, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isMediaWorker {
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()
	if isBgWorker {
		queues[QueueCritical] = 6
		queues[QueueDefault] = 3
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		log.Println("Registered background task handlers.")
	}
	if isMediaWorker {
		queues[QueueMedia] = 5
		mux.HandleFunc(TypeMediaProcess, processor.HandleMediaProcessTask)
		log.Println("Registered media processing task handlers.")
	}

	srv := asynq.NewServer(redisOpt(rdb), asynq.Config{
		Queues: queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Printf("[Asynq Error] Task Type: %s, Error: %v", task.Type(), err)
		}),
	})
	return srv, mux
}

// --- Task Handlers ---

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var msg email.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("email task has no recipient: %w", asynq.SkipRetry)
	}

	from := p.cfg.SmtpFromAddress
	if from == "" {
		from = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s", from)
	}

	raw := email.Compose(from, msg, p.now())
	if err := p.emailSender.Send(ctx, []string{msg.To}, msg.Subject, raw); err != nil {
		log.Printf("Email delivery failed for %s email: %v", msg.Kind, err)
		return err
	}
	log.Printf("Email task processed: kind=%s", msg.Kind)
	return nil
}

// HandleMediaProcessTask shrinks an uploaded image in place so neither side exceeds
// ImageMaxDimension, keeping PNGs as PNG and writing everything else as JPEG.
// Images already small enough are left untouched.
func (p *TaskProcessor) HandleMediaProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload MediaTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal media task payload: %v: %w", err, asynq.SkipRetry)
	}
	if !strings.HasPrefix(payload.S3Key, "uploads/") {
		return fmt.Errorf("refusing to process key %q: %w", payload.S3Key, asynq.SkipRetry)
	}

	data, contentType, err := p.storage.GetObject(ctx, payload.S3Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("Media object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("media object not found: %w", asynq.SkipRetry)
		}
		return err
	}
	if !strings.HasPrefix(contentType, "image/") {
		log.Printf("Media object %s is %s, nothing to normalise.", payload.S3Key, contentType)
		return nil
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(data)) > maxSizeBytes {
		return fmt.Errorf("image exceeds max size (%d > %d bytes): %w", len(data), maxSizeBytes, asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	width, height := uint(img.Bounds().Dx()), uint(img.Bounds().Dy())
	if width <= maxDim && height <= maxDim {
		log.Printf("Media %s (%s %dx%d) within limits", payload.S3Key, format, width, height)
		return nil
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	outType := "image/jpeg"
	if format == "png" {
		outType = "image/png"
		err = png.Encode(&buf, resized)
	} else {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return fmt.Errorf("failed to re-encode resized image: %w", err)
	}

	if err := p.storage.PutObject(ctx, payload.S3Key, buf.Bytes(), outType); err != nil {
		return err
	}
	log.Printf("Resized media %s from %dx%d to %dx%d", payload.S3Key, width, height, resized.Bounds().Dx(), resized.Bounds().Dy())
	return nil
}
