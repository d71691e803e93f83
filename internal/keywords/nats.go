package keywords

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	defaultQueueGroup     = "keyword-extractors"
	defaultRequestTimeout = 30 * time.Second
	defaultDrainTimeout   = 30 * time.Second
	drainPollInterval     = 10 * time.Millisecond
)

// ResponderOptions configures the NATS request responder.
type ResponderOptions struct {
	Conn           *nats.Conn
	Extractor      *Extractor
	Subject        string
	QueueGroup     string
	RequestTimeout time.Duration
	DrainTimeout   time.Duration
	Logger         *logrus.Logger
}

// Responder answers keyword extraction requests published on a NATS subject.
// Requests and replies use the same JSON documents as the command line tool.
type Responder struct {
	conn           *nats.Conn
	extractor      *Extractor
	subject        string
	queueGroup     string
	requestTimeout time.Duration
	drainTimeout   time.Duration
	logger         *logrus.Logger
}

// NewResponder validates the options and builds a Responder.
func NewResponder(opts ResponderOptions) (*Responder, error) {
	if opts.Conn == nil {
		return nil, eris.New("nats connection is required")
	}
	if opts.Extractor == nil {
		return nil, eris.New("keyword extractor is required")
	}

	subject := strings.TrimSpace(opts.Subject)
	if subject == "" {
		return nil, eris.New("nats subject is required")
	}

	queueGroup := strings.TrimSpace(opts.QueueGroup)
	if queueGroup == "" {
		queueGroup = defaultQueueGroup
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	drainTimeout := opts.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}

	return &Responder{
		conn:           opts.Conn,
		extractor:      opts.Extractor,
		subject:        subject,
		queueGroup:     queueGroup,
		requestTimeout: timeout,
		drainTimeout:   drainTimeout,
		logger:         opts.Logger,
	}, nil
}

// Serve subscribes to the subject and blocks until ctx is cancelled. It then
// drains the subscription, answering every request already delivered, and
// returns once the drain has finished and the replies are flushed.
func (r *Responder) Serve(ctx context.Context) error {
	// Requests picked up during the drain still need a live context.
	handlerCtx := context.WithoutCancel(ctx)

	sub, err := r.conn.QueueSubscribe(r.subject, r.queueGroup, func(msg *nats.Msg) {
		r.handle(handlerCtx, msg)
	})
	if err != nil {
		return eris.Wrapf(err, "subscribing to %s", r.subject)
	}

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"subject":     r.subject,
			"queue_group": r.queueGroup,
		}).Info("keyword responder listening")
	}

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return eris.Wrap(err, "draining keyword subscription")
	}

	if err := r.waitDrained(sub); err != nil {
		return err
	}

	if err := r.conn.FlushTimeout(r.drainTimeout); err != nil {
		return eris.Wrap(err, "flushing keyword replies")
	}
	return nil
}

// waitDrained blocks until the drained subscription has handled its pending messages.
func (r *Responder) waitDrained(sub *nats.Subscription) error {
	deadline := time.NewTimer(r.drainTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for sub.IsValid() {
		select {
		case <-deadline.C:
			return eris.Errorf("keyword subscription still draining after %s", r.drainTimeout)
		case <-ticker.C:
		}
	}
	return nil
}

func (r *Responder) handle(ctx context.Context, msg *nats.Msg) {
	reqCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	reply := r.process(reqCtx, msg.Data)

	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil && r.logger != nil {
		r.logger.WithField("error", err.Error()).WithField("subject", msg.Subject).Error("replying to keyword request")
	}
}

// process turns a request payload into a reply payload; failures become {"error": ...}.
func (r *Responder) process(ctx context.Context, data []byte) []byte {
	items, err := DecodeItems(data)
	if err != nil {
		r.logWarn(err, "rejecting keyword request")
		return encodeError(err)
	}

	keywords, err := r.extractor.ExtractAll(ctx, items)
	if err != nil {
		if r.logger != nil {
			r.logger.WithField("error", err.Error()).WithField("items", len(items)).Error("extracting keywords for request")
		}
		return encodeError(err)
	}

	encoded, err := EncodeKeywords(keywords)
	if err != nil {
		return encodeError(err)
	}

	if r.logger != nil {
		r.logger.WithField("items", len(items)).Debug("keyword request answered")
	}

	return encoded
}

func (r *Responder) logWarn(err error, message string) {
	if r.logger == nil {
		return
	}
	r.logger.WithField("error", err.Error()).Warn(message)
}
