package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/snaprealm/client/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// SnapHandler processes one decoded (well, still-encoded — decoding is
// snapwire's job) snap message payload delivered by the MDS.
type SnapHandler func(payload []byte) error

// Messenger is the grpc-backed wire messenger: it receives inbound snap
// messages from an MDS and sends outbound flush envelopes to MDS sessions.
type Messenger struct {
	listenAddr string
	log        logging.Logger

	grpcServer *grpc.Server
	handler    SnapHandler

	clientMu sync.RWMutex
	clients  map[string]MessengerClient
	conns    map[string]*grpc.ClientConn
}

// NewMessenger returns a Messenger that will listen on listenAddr once
// Start is called.
func NewMessenger(listenAddr string, log logging.Logger) *Messenger {
	if log == nil {
		log = logging.Nop{}
	}
	return &Messenger{
		listenAddr: listenAddr,
		log:        log,
		clients:    make(map[string]MessengerClient),
		conns:      make(map[string]*grpc.ClientConn),
	}
}

// Start begins listening and registers handler as the recipient of every
// inbound snap message envelope.
func (m *Messenger) Start(handler SnapHandler) error {
	m.handler = handler

	lis, err := net.Listen("tcp", m.listenAddr)
	if err != nil {
		m.log.Error(logging.Event{Message: "messenger listen failed", Metadata: map[string]any{"addr": m.listenAddr, "error": err.Error()}})
		return fmt.Errorf("transport: listen on %s: %w", m.listenAddr, err)
	}

	m.grpcServer = grpc.NewServer(grpc.ForceServerCodec(Codec()))
	RegisterMessengerServer(m.grpcServer, &messengerServer{m: m})

	go func() {
		if err := m.grpcServer.Serve(lis); err != nil {
			m.log.Warn(logging.Event{Message: "messenger server stopped", Metadata: map[string]any{"addr": m.listenAddr, "error": err.Error()}})
		}
	}()

	m.log.Info(logging.Event{Message: "messenger started", Metadata: map[string]any{"addr": m.listenAddr}})
	return nil
}

// Stop shuts down the listener and closes every outbound connection.
func (m *Messenger) Stop() {
	if m.grpcServer != nil {
		m.grpcServer.GracefulStop()
	}
	m.clientMu.Lock()
	defer m.clientMu.Unlock()
	for addr, conn := range m.conns {
		conn.Close()
		delete(m.conns, addr)
		delete(m.clients, addr)
	}
}

// Send delivers payload to the MDS session at addr, tagged with msgType
// (e.g. "flush_cap_snaps"). It returns an error if the remote rejected the
// envelope or the dial failed.
func (m *Messenger) Send(ctx context.Context, addr, msgType string, payload []byte) error {
	client, err := m.clientFor(addr)
	if err != nil {
		return err
	}

	ack, err := client.Deliver(ctx, &Envelope{
		From:    m.listenAddr,
		Type:    msgType,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("transport: deliver to %s: %w", addr, err)
	}
	if !ack.Ok {
		return fmt.Errorf("transport: %s rejected envelope: %s", addr, ack.Error)
	}
	return nil
}

func (m *Messenger) clientFor(addr string) (MessengerClient, error) {
	m.clientMu.RLock()
	c, ok := m.clients[addr]
	m.clientMu.RUnlock()
	if ok {
		return c, nil
	}

	m.clientMu.Lock()
	defer m.clientMu.Unlock()
	if c, ok := m.clients[addr]; ok {
		return c, nil
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec())),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	c = NewMessengerClient(conn)
	m.conns[addr] = conn
	m.clients[addr] = c
	return c, nil
}

type messengerServer struct {
	m *Messenger
}

func (s *messengerServer) Deliver(ctx context.Context, in *Envelope) (*Ack, error) {
	if s.m.handler == nil {
		return &Ack{Ok: false, Error: "no handler registered"}, nil
	}
	if err := s.m.handler(in.Payload); err != nil {
		s.m.log.Warn(logging.Event{Message: "snap handler failed", Metadata: map[string]any{"from": in.From, "error": err.Error(), "correlation": uuid.New().String()}})
		return &Ack{Ok: false, Error: err.Error()}, nil
	}
	return &Ack{Ok: true}, nil
}
