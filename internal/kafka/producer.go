package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer buffers messages through an inbox channel and writes them
// from a single goroutine, so handlers never block on the broker.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				// flush what is already queued, then exit; the inbox is
				// closed only by Close so this cannot double-close
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							p.finish()
							return
						}
						_ = p.w.WriteMessages(context.Background(), m)
					default:
						p.finish()
						return
					}
				}
			case m, ok := <-p.inbox:
				if !ok {
					p.finish()
					return
				}
				_ = p.w.WriteMessages(context.Background(), m)
			}
		}
	}()
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

func (p *Producer) finish() {
	_ = p.w.Close()
	close(p.closeCh)
}

// Close stops accepting messages; the loop flushes what is queued and
// exits. WaitClosed blocks until that happens.
func (p *Producer) Close()      { close(p.inbox) }
func (p *Producer) WaitClosed() { <-p.closeCh }
