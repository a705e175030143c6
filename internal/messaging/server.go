package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// RandomPort asks the server to listen on any free port.
const RandomPort = server.RANDOM_PORT

const (
	DefaultServerName = "starlane"
	DefaultClientName = "starlane-engine"
)

// NatsServer is an embedded NATS server plus the in-process client used to
// publish on it.
type NatsServer struct {
	ns    *server.Server
	conn  atomic.Pointer[nats.Conn]
	ready chan struct{}

	readyTimeout time.Duration
	host         string
	port         int
	serverName   string
	clientName   string
	maxPayload   int32
}

// NewNatsServer configures the server. Nothing listens until Start.
func NewNatsServer(opts ...NatsServerOpt) (*NatsServer, error) {
	s := &NatsServer{
		readyTimeout: 10 * time.Second,
		host:         "127.0.0.1",
		serverName:   DefaultServerName,
		clientName:   DefaultClientName,
		ready:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: s.serverName,
		Host:       s.host,
		Port:       s.port,
		MaxPayload: s.maxPayload,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	s.ns = ns

	return s, nil
}

// Start runs the server and the engine's connection until ctx is done.
func (n *NatsServer) Start(ctx context.Context) error {
	n.ns.Start()

	if !n.ns.ReadyForConnections(n.readyTimeout) {
		n.ns.Shutdown()
		return fmt.Errorf("nats server %s not ready after %s", n.serverName, n.readyTimeout)
	}

	conn, err := nats.Connect(n.ns.ClientURL(), nats.Name(n.clientName))
	if err != nil {
		n.ns.Shutdown()
		return fmt.Errorf("creating nats client connection: %w", err)
	}
	n.conn.Store(conn)
	close(n.ready)

	slog.InfoContext(ctx, "nats server listening", "server", n.ns.Name(), "addr", n.ns.Addr(), "max_payload", conn.MaxPayload())

	<-ctx.Done()
	n.conn.Store(nil)
	conn.Close()
	n.ns.Shutdown()
	n.ns.WaitForShutdown()

	return nil
}

// Ready is closed once the server accepts publishes.
func (n *NatsServer) Ready() <-chan struct{} {
	return n.ready
}

// ClientURL is the address clients connect to.
func (n *NatsServer) ClientURL() string {
	return n.ns.ClientURL()
}

// Subscribe creates a subscription on the given subject.
// The handler is called for each message received.
// Returns an unsubscribe function to remove the subscription.
func (n *NatsServer) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	conn := n.conn.Load()
	if conn == nil {
		return nil, fmt.Errorf("nats server not started")
	}
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Handle answers requests on subject with the handler's reply.
func (n *NatsServer) Handle(subject string, handler func(data []byte) []byte) (func(), error) {
	conn := n.conn.Load()
	if conn == nil {
		return nil, fmt.Errorf("nats server not started")
	}
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		if err := msg.Respond(handler(msg.Data)); err != nil {
			slog.Warn("responding to request", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Request sends data on subject and waits for one reply.
func (n *NatsServer) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	conn := n.conn.Load()
	if conn == nil {
		return nil, fmt.Errorf("nats server not started")
	}
	msg, err := conn.Request(subject, data, timeout)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

// Publish sends a message to the given subject
func (n *NatsServer) Publish(subject string, data []byte) error {
	conn := n.conn.Load()
	if conn == nil {
		return fmt.Errorf("nats server not started")
	}
	return conn.Publish(subject, data)
}

// Flush waits until every published message has reached the server.
func (n *NatsServer) Flush() error {
	conn := n.conn.Load()
	if conn == nil {
		return fmt.Errorf("nats server not started")
	}
	return conn.Flush()
}
