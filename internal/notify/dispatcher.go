package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrSendTimeout   = errors.New("notification send timed out")
	ErrNoFullChannel = errors.New("no medical channel configured")
)

// Channel - независимый адресат оповещений со своим профилем
type Channel struct {
	Name      models.Channel
	Title     string
	Profile   Profile
	Recipient string
	Sender    Sender
}

// DefaultChannels returns the police (redacted) and hospital (full) channels.
func DefaultChannels(sender Sender, policeRecipient, hospitalRecipient string) []Channel {
	return []Channel{
		{
			Name:      models.ChannelPolice,
			Title:     "POLICE ALERT",
			Profile:   ProfileRedacted,
			Recipient: policeRecipient,
			Sender:    sender,
		},
		{
			Name:      models.ChannelHospital,
			Title:     "HOSPITAL ALERT",
			Profile:   ProfileFull,
			Recipient: hospitalRecipient,
			Sender:    sender,
		},
	}
}

// AttemptRecorder сохраняет результат каждой попытки
type AttemptRecorder interface {
	SaveAttempt(ctx context.Context, attempt *models.NotificationAttempt) error
}

// Dispatcher рассылает оповещения по серьезным инцидентам во все каналы параллельно.
// Each channel runs in its own goroutine with its own timeout; nothing it does
// reaches the caller or the other channels.
type Dispatcher struct {
	channels []Channel
	recorder AttemptRecorder
	timeout  time.Duration
	logger   *logrus.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewDispatcher(channels []Channel, recorder AttemptRecorder, timeout time.Duration, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// MaybeDispatch starts delivery for MAJOR and CRITICAL incidents and returns
// immediately. It reports whether the threshold was crossed.
func (d *Dispatcher) MaybeDispatch(incident *models.Incident) bool {
	if incident == nil || !incident.Severity.RequiresAlert() {
		return false
	}

	snapshot := *incident
	d.wg.Add(len(d.channels))
	for _, ch := range d.channels {
		go d.deliver(ch, &snapshot)
	}
	return true
}

// Wait blocks until every started delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown waits for in-flight deliveries or until ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ch Channel, incident *models.Incident) {
	defer d.wg.Done()

	log := d.logger.WithFields(logrus.Fields{
		"component":   "dispatcher",
		"channel":     ch.Name,
		"incident_id": incident.ID,
		"recipient":   ch.Recipient,
		"profile":     ch.Profile.String(),
	})
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Notification task panicked")
		}
	}()

	attempt := &models.NotificationAttempt{
		ID:         uuid.New(),
		IncidentID: incident.ID,
		Channel:    ch.Name,
		Recipient:  ch.Recipient,
		StartedAt:  d.now().UTC(),
	}
	attempt.Body = Compose(ch.Title, ch.Profile, incident)

	err := d.send(ch, Message{
		Channel:    ch.Name,
		Recipient:  ch.Recipient,
		IncidentID: incident.ID,
		Body:       attempt.Body,
	})
	finish(attempt, err, d.now())

	if err != nil {
		log.WithError(err).Error("Notification failed")
	} else {
		log.Info("Notification delivered")
	}
	d.record(log, attempt)
}

// send runs one channel send bounded by the timeout. A sender that ignores
// cancellation is abandoned once the timeout fires.
func (d *Dispatcher) send(ch Channel, msg Message) error {
	if ch.Sender == nil {
		return fmt.Errorf("channel %s has no sender", ch.Name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("sender panicked: %v", r)
			}
		}()
		errCh <- ch.Sender.Send(ctx, msg)
	}()

	select {
	case err := <-errCh:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %v", ErrSendTimeout, d.timeout, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s", ErrSendTimeout, d.timeout)
	}
}

func (d *Dispatcher) record(log *logrus.Entry, attempt *models.NotificationAttempt) {
	if d.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.recorder.SaveAttempt(ctx, attempt); err != nil {
		log.WithError(err).Warn("Failed to record notification attempt")
	}
}

// SendTestAlert синхронно отправляет тестовое сообщение в медицинский канал.
// The attempt is returned but not recorded.
func (d *Dispatcher) SendTestAlert(ctx context.Context) (*models.NotificationAttempt, error) {
	var target *Channel
	for i := range d.channels {
		if d.channels[i].Profile == ProfileFull {
			target = &d.channels[i]
			break
		}
	}
	if target == nil {
		return nil, ErrNoFullChannel
	}

	attempt := &models.NotificationAttempt{
		ID:        uuid.New(),
		Channel:   target.Name,
		Recipient: target.Recipient,
		Body:      testAlertBody,
		StartedAt: d.now().UTC(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.send(*target, Message{Channel: target.Name, Recipient: target.Recipient, Body: testAlertBody})
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}
	finish(attempt, err, d.now())
	return attempt, err
}

func finish(attempt *models.NotificationAttempt, err error, now time.Time) {
	attempt.FinishedAt = now.UTC()
	if err != nil {
		attempt.Outcome = models.OutcomeFailed
		attempt.Error = err.Error()
		return
	}
	attempt.Outcome = models.OutcomeDelivered
}
