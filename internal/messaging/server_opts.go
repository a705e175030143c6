package messaging

import "time"

// NatsServerOpt configures the embedded server and the engine's connection
// to it.
type NatsServerOpt func(*NatsServer)

// WithReadyTimeout bounds how long Start waits for the server to accept
// connections.
func WithReadyTimeout(d time.Duration) NatsServerOpt {
	return func(n *NatsServer) {
		n.readyTimeout = d
	}
}

// WithListenAddr sets where clients connect. Port 0 keeps the NATS default
// port and RandomPort picks a free one.
func WithListenAddr(host string, port int) NatsServerOpt {
	return func(n *NatsServer) {
		if host != "" {
			n.host = host
		}
		n.port = port
	}
}

// WithServerName is the name the server reports to connecting clients.
func WithServerName(name string) NatsServerOpt {
	return func(n *NatsServer) {
		n.serverName = name
	}
}

// WithClientName names the connection the engine publishes on.
func WithClientName(name string) NatsServerOpt {
	return func(n *NatsServer) {
		n.clientName = name
	}
}

// WithMaxPayload caps the size of a single message in bytes. Zero keeps the
// NATS default.
func WithMaxPayload(size int32) NatsServerOpt {
	return func(n *NatsServer) {
		n.maxPayload = size
	}
}
