package notify

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Dispatcher delivers emails in the background. Sends are queued and
// retried with exponential backoff; a delivery that keeps failing is
// logged and dropped. Nothing here ever propagates an error back to the
// operation that produced the notification.
type Dispatcher struct {
	mailer Mailer
	log    zerolog.Logger
	wg     sync.WaitGroup

	mu     sync.Mutex
	queue  chan Email
	closed bool

	// newBackOff builds the retry policy for one delivery.
	newBackOff func() backoff.BackOff
}

// NewDispatcher creates a dispatcher with a buffered queue and starts
// its worker goroutine.
func NewDispatcher(m Mailer, log zerolog.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{
		mailer: m,
		queue:  make(chan Email, queueSize),
		log:    log,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 2 * time.Second
			bo.MaxElapsedTime = 2 * time.Minute
			return bo
		},
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Enqueue queues an email for delivery. When the queue is full, or the
// dispatcher is already closed, the email is dropped and logged rather
// than blocking or panicking.
func (d *Dispatcher) Enqueue(e Email) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Warn().Str("to", e.To).Str("subject", e.Subject).
			Msg("dispatcher closed, dropping email")
		return
	}
	select {
	case d.queue <- e:
	default:
		d.log.Warn().Str("to", e.To).Str("subject", e.Subject).
			Msg("notification queue full, dropping email")
	}
}

// EnqueueAll queues a batch of emails.
func (d *Dispatcher) EnqueueAll(emails []Email) {
	for _, e := range emails {
		d.Enqueue(e)
	}
}

// Close stops accepting new emails, drains the queue and waits for the
// worker to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e Email) {
	op := func() error {
		return d.mailer.Send(e)
	}
	if err := backoff.Retry(op, d.newBackOff()); err != nil {
		d.log.Error().Err(err).Str("to", e.To).Str("subject", e.Subject).
			Msg("email delivery failed, giving up")
		return
	}
	d.log.Debug().Str("to", e.To).Str("subject", e.Subject).Msg("email delivered")
}
