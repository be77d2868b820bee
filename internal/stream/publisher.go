package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MsgPublisher is the part of *nats.Conn the Publisher needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher fans job events out over NATS on <prefix>.<job>.<event>.
type Publisher struct {
	conn   MsgPublisher
	prefix string
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn MsgPublisher, prefix string) *Publisher {
	if prefix == "" {
		prefix = "leadgen.jobs"
	}
	return &Publisher{conn: conn, prefix: prefix}
}

// Connect dials url and returns a Publisher plus a function that drains
// the connection.
func Connect(url, prefix string) (*Publisher, func(), error) {
	nc, err := nats.Connect(url, nats.Name("leadgen"), nats.MaxReconnects(5))
	if err != nil {
		return nil, nil, eris.Wrap(err, "stream: nats connect")
	}
	closeFn := func() {
		if err := nc.Drain(); err != nil {
			zap.L().Warn("stream: nats drain", zap.Error(err))
		}
	}
	return NewPublisher(nc, prefix), closeFn, nil
}

// Subject returns the subject for an event of a job.
func (p *Publisher) Subject(jobID, event string) string {
	return p.prefix + "." + jobID + "." + event
}

// Publish sends one JSON event.
func (p *Publisher) Publish(jobID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "stream: marshal event")
	}
	msg := &nats.Msg{Subject: p.Subject(jobID, event), Data: data}
	if err := p.conn.PublishMsg(msg); err != nil {
		return eris.Wrapf(err, "stream: publish %s", msg.Subject)
	}
	return nil
}

// Watch publishes the job's events until it completes or ctx ends.
func (p *Publisher) Watch(ctx context.Context, job *JobState, tick time.Duration) error {
	return relay(ctx, job, tick, func(event string, payload any) error {
		return p.Publish(job.ID(), event, payload)
	})
}
