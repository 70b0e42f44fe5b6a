package subscriber

import (
	"context"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/logger"
	"GoldPulse/pkg/queue"
)

const (
	signalNotifyMessage = "signal.notify"
	closeNotifyMessage  = "close.notify"
)

// Notification hands published and closed signals to the notification queue
// so a slow messenger API never stalls the bus. Enqueue failures are logged
// only; a missed alert is not worth aborting a publish over.
type Notification struct {
	queue queue.QueueService
	log   *logger.Logger
}

func NewNotification(q queue.QueueService, log *logger.Logger) *Notification {
	return &Notification{queue: q, log: log}
}

func (n *Notification) Name() string { return "notification" }

func (n *Notification) OnSignalPublished(ctx context.Context, s *models.Signal) error {
	if err := n.queue.PublishMessage(ctx, signalNotifyMessage, s); err != nil {
		n.log.Warn("enqueue signal notification failed",
			logger.String("signal_id", s.ID), logger.Error(err))
	}
	return nil
}

func (n *Notification) OnSignalClosed(ctx context.Context, s *models.Signal) error {
	if err := n.queue.PublishMessage(ctx, closeNotifyMessage, s); err != nil {
		n.log.Warn("enqueue close notification failed",
			logger.String("signal_id", s.ID), logger.Error(err))
	}
	return nil
}

// SignalNotifyJob delivers new-signal alerts through the notifier.
type SignalNotifyJob struct {
	notifier repository.Notifier
}

func NewSignalNotifyJob(notifier repository.Notifier) *SignalNotifyJob {
	return &SignalNotifyJob{notifier: notifier}
}

func (j *SignalNotifyJob) Name() string { return "signal_notify" }
func (j *SignalNotifyJob) Type() string { return signalNotifyMessage }

func (j *SignalNotifyJob) Handle(ctx context.Context, payload interface{}) error {
	s, err := queue.ParsePayload[models.Signal](payload)
	if err != nil {
		return err
	}
	return j.notifier.NotifySignal(ctx, s)
}

// CloseNotifyJob delivers position-closure alerts through the notifier.
type CloseNotifyJob struct {
	notifier repository.Notifier
}

func NewCloseNotifyJob(notifier repository.Notifier) *CloseNotifyJob {
	return &CloseNotifyJob{notifier: notifier}
}

func (j *CloseNotifyJob) Name() string { return "close_notify" }
func (j *CloseNotifyJob) Type() string { return closeNotifyMessage }

func (j *CloseNotifyJob) Handle(ctx context.Context, payload interface{}) error {
	s, err := queue.ParsePayload[models.Signal](payload)
	if err != nil {
		return err
	}
	return j.notifier.NotifyClose(ctx, s)
}
