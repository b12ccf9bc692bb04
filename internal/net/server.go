// Package net is the binary TCP order-entry gateway. Traders submit orders
// over a long-lived connection and receive acknowledgements and execution
// reports on it.
package net

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"bourse/internal/common"
	"bourse/internal/engine"
	"bourse/internal/events"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	DefaultWorkers     = 64
	defaultIdleTimeout = time.Minute
	defaultWriteTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
)

// OrderPlacer is the part of the market the gateway submits orders to.
type OrderPlacer interface {
	PlaceOrder(req engine.OrderRequest) (common.Order, error)
}

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn    net.Conn
	writeMu sync.Mutex
	traders map[string]struct{} // traders that placed orders on this session
}

func (c *ClientSession) send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return err
	}
	return WriteFrame(c.conn, payload)
}

// Server accepts connections and hands each to a pool worker, which serves
// it until it closes. At most DefaultWorkers connections are served at once;
// further connections wait in the pool queue.
type Server struct {
	market      OrderPlacer
	pool        *WorkerPool
	idleTimeout time.Duration
	now         func() time.Time

	clientSessionsLock sync.Mutex
	clientSessions     map[*ClientSession]struct{}
	traderSessions     map[string]map[*ClientSession]struct{}
}

var _ events.Sink = (*Server)(nil)

func New(market OrderPlacer, workers uint) *Server {
	return &Server{
		market:         market,
		pool:           NewWorkerPool(workers),
		idleTimeout:    defaultIdleTimeout,
		now:            time.Now,
		clientSessions: make(map[*ClientSession]struct{}),
		traderSessions: make(map[string]map[*ClientSession]struct{}),
	}
}

// Run listens on address and serves until the tomb starts dying.
func (s *Server) Run(t *tomb.Tomb, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}
	return s.Serve(t, listener)
}

func (s *Server) Serve(t *tomb.Tomb, listener net.Listener) error {
	s.pool.Start(t, s.handleConnection)

	// Unblock Accept and every worker blocked on a read once we are told to
	// stop.
	t.Go(func() error {
		<-t.Dying()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
		s.closeAll()
		return nil
	})

	log.Info().Str("address", listener.Addr().String()).Msg("tcp gateway listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
			}
			log.Error().Err(err).Msg("error accepting client")
			continue
		}

		log.Info().
			Str("address", conn.RemoteAddr().String()).
			Msg("new client added")
		session := s.addClientSession(conn)
		if !s.pool.AddTask(t, session) {
			s.deleteClientSession(session)
			return nil
		}
	}
}

// Publish forwards execution reports to every session on which the buyer or
// the seller has placed an order. Other events are ignored.
func (s *Server) Publish(ev events.Event) {
	executed, ok := ev.(events.TradeExecuted)
	if !ok {
		return
	}
	trade := executed.Trade

	buyerReport, sellerReport, err := generateWireTradeReports(trade)
	if err != nil {
		log.Error().Err(err).Str("trade", trade.ID).Msg("unable to encode execution report")
		return
	}
	s.sendTo(trade.BuyerID, buyerReport)
	s.sendTo(trade.SellerID, sellerReport)
}

func (s *Server) sendTo(traderID string, payload []byte) {
	s.clientSessionsLock.Lock()
	sessions := make([]*ClientSession, 0, len(s.traderSessions[traderID]))
	for session := range s.traderSessions[traderID] {
		sessions = append(sessions, session)
	}
	s.clientSessionsLock.Unlock()

	for _, session := range sessions {
		if err := session.send(payload); err != nil {
			log.Warn().
				Err(err).
				Str("trader", traderID).
				Str("address", session.conn.RemoteAddr().String()).
				Msg("unable to send report, dropping client")
			// The owning worker notices the closed connection and cleans up.
			_ = session.conn.Close()
		}
	}
}

// handleConnection is a long-lived worker method which reads messages off the
// connection until it is closed, answering each one. Any error returned from
// here is fatal to the pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	session, ok := task.(*ClientSession)
	if !ok {
		return ErrImproperConversion
	}
	defer s.deleteClientSession(session)

	conn := session.conn
	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			log.Error().Err(err).Msg("failed setting deadline for connection")
			return nil
		}
		frame, err := ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn().
					Err(err).
					Str("address", conn.RemoteAddr().String()).
					Msg("error reading from connection")
			}
			return nil
		}

		if err := s.handleMessage(session, frame); err != nil {
			log.Warn().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("unable to reply to client")
			return nil
		}
	}
}

func (s *Server) handleMessage(session *ClientSession, frame []byte) error {
	message, err := ParseMessage(frame)
	if err != nil {
		return s.replyError(session, err)
	}

	switch m := message.(type) {
	case NewOrderMessage:
		order, err := s.market.PlaceOrder(engine.OrderRequest{
			TraderID: m.TraderID,
			Symbol:   m.Ticker,
			Side:     m.Side.String(),
			Price:    m.Price,
			Quantity: m.Quantity,
		})
		if err != nil {
			return s.replyError(session, err)
		}
		s.bindTrader(session, order.TraderID)

		ack, err := generateWireAckReport(order)
		if err != nil {
			return err
		}
		return session.send(ack)
	default:
		// Heartbeats only keep the read deadline moving.
		return nil
	}
}

func (s *Server) replyError(session *ClientSession, cause error) error {
	report, err := generateWireErrorReport(cause, uint64(s.now().UnixNano()))
	if err != nil {
		return err
	}
	return session.send(report)
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) *ClientSession {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	session := &ClientSession{conn: conn, traders: make(map[string]struct{})}
	s.clientSessions[session] = struct{}{}
	return session
}

func (s *Server) bindTrader(session *ClientSession, traderID string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if _, ok := s.clientSessions[session]; !ok {
		return
	}
	session.traders[traderID] = struct{}{}
	if s.traderSessions[traderID] == nil {
		s.traderSessions[traderID] = make(map[*ClientSession]struct{})
	}
	s.traderSessions[traderID][session] = struct{}{}
}

// deleteClientSession is an atomic map remove that also closes the
// connection.
func (s *Server) deleteClientSession(session *ClientSession) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, session)
	for traderID := range session.traders {
		delete(s.traderSessions[traderID], session)
		if len(s.traderSessions[traderID]) == 0 {
			delete(s.traderSessions, traderID)
		}
	}
	if err := session.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error().Err(err).Str("address", session.conn.RemoteAddr().String()).Msg("unable to close connection")
	}
}

func (s *Server) closeAll() {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	for session := range s.clientSessions {
		_ = session.conn.Close()
	}
}

// Sessions is the number of connected clients.
func (s *Server) Sessions() int {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	return len(s.clientSessions)
}
