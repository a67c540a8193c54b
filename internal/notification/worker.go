package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"consult-queue-backend/internal/model"
	"consult-queue-backend/internal/queue"
)

// Sender is the seam for dispatching one web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends through the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// StatusJob asks the pool to notify the subscribers of one queue number.
type StatusJob struct {
	Number   int    `json:"number"`
	Status   string `json:"status"`
	Position int    `json:"position"`
}

// WorkerPool pushes entry-status changes to the browsers subscribed to the
// affected queue number.
type WorkerPool struct {
	size    int
	jobs    chan StatusJob
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a worker pool of the given size.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan StatusJob, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// SetSender swaps the push transport, used by tests.
func (wp *WorkerPool) SetSender(s Sender) {
	wp.sender = s
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case job := <-wp.jobs:
			wp.notifySubscribers(ctx, job)
		case <-ctx.Done():
			log.Printf("notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job without blocking the mutation path.
func (wp *WorkerPool) Dispatch(job StatusJob) {
	select {
	case wp.jobs <- job:
	default:
		log.Printf("notification queue full, dropping push for number %d", job.Number)
	}
}

// QueueUpdated satisfies the engine's notifier contract; list refreshes
// are carried by the websocket channel only.
func (wp *WorkerPool) QueueUpdated([]queue.EntryView) {}

// EntryStatusChanged dispatches a push job for the changed entry.
func (wp *WorkerPool) EntryStatusChanged(entry queue.EntryView) {
	wp.Dispatch(StatusJob{Number: entry.Number, Status: entry.Status, Position: entry.Position})
}

// notifySubscribers fetches the subscriptions bound to the job's number
// and pushes the status change to each.
func (wp *WorkerPool) notifySubscribers(ctx context.Context, job StatusJob) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("number = ?", job.Number).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("error fetching subscriptions for number %d: %v", job.Number, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		log.Printf("error encoding push payload for number %d: %v", job.Number, err)
		return
	}

	log.Printf("sending %d push notifications for number %d", len(subscriptions), job.Number)
	for _, sub := range subscriptions {
		wp.push(ctx, sub, payload)
	}
}

func (wp *WorkerPool) push(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("error sending push to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("subscription %s expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
