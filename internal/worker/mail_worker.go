package worker

import (
	"context"

	"retreat-booking-backend/internal/mailer"
	"retreat-booking-backend/internal/queue"
	"retreat-booking-backend/pkg/logger"

	"go.uber.org/zap"
)

type MailWorker interface {
	Start(ctx context.Context) error
}

type MailWorkerImpl struct {
	notifier mailer.Notifier
	queue    queue.MailQueue
	logger   *zap.Logger
}

func NewMailWorker(notifier mailer.Notifier, queue queue.MailQueue) MailWorker {
	return &MailWorkerImpl{
		notifier: notifier,
		queue:    queue,
		logger:   logger.WithComponent("mail_worker"),
	}
}

func (w *MailWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.SubscribeMail(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			if err := w.notifier.Send(ctx, msg.Data); err != nil {
				w.logger.Warn("mail delivery failed, requeueing",
					zap.String("template", msg.Data.Template),
					zap.String("recipient", msg.Data.Recipient),
					zap.Error(err))
				msg.Nack(true)
			} else {
				msg.Ack()
			}
		}
	}()
	return nil
}
