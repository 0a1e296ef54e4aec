package queue

import (
	"context"

	"retreat-booking-backend/internal/model"
)

type Delivery struct {
	Data *model.MailJob
	Ack  func()
	Nack func(requeue bool)
}

type MailQueue interface {
	PublishMail(ctx context.Context, job *model.MailJob) error
	SubscribeMail(ctx context.Context) (<-chan Delivery, error)
}

// MailQueueImpl is the in-process channel implementation, used in tests and
// single-instance deployments.
type MailQueueImpl struct {
	ch chan *model.MailJob
}

func NewMailQueue(bufferSize int) MailQueue {
	return &MailQueueImpl{
		ch: make(chan *model.MailJob, bufferSize),
	}
}

func (q *MailQueueImpl) PublishMail(ctx context.Context, job *model.MailJob) error {
	q.ch <- job
	return nil
}

func (q *MailQueueImpl) SubscribeMail(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.ch:
				if !ok {
					return
				}

				out <- Delivery{
					Data: job,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if requeue {
							q.ch <- job
						}
					},
				}
			}
		}
	}()

	return out, nil
}
