package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"bourse/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrFrameTooLarge      = errors.New("frame too large")
	ErrTickerTooLong      = errors.New("ticker too long")
	ErrTraderTooLong      = errors.New("trader id too long")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
)

type ReportType uint8

const (
	AckReport ReportType = iota
	ExecutionReport
	ErrorReport
)

func (r ReportType) String() string {
	switch r {
	case AckReport:
		return "ack"
	case ExecutionReport:
		return "execution"
	case ErrorReport:
		return "error"
	}
	return fmt.Sprintf("report(%d)", uint8(r))
}

type Message interface {
	GetType() MessageType
}

// Message format constants
const (
	FrameHeaderLen           = 2
	BaseMessageHeaderLen     = 2
	TickerLen                = 8
	OrderIDLen               = 36
	NewOrderMessageHeaderLen = TickerLen + 8 + 8 + 1 + 1
	MaxFrameSize             = math.MaxUint16
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	frame := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes payload behind its uint16 length.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%d bytes: %w", len(payload), ErrFrameTooLarge)
	}
	buf := make([]byte, FrameHeaderLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(payload)))
	copy(buf[FrameHeaderLen:], payload)
	_, err := w.Write(buf)
	return err
}

func ParseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, fmt.Errorf("header: %w", ErrMessageTooShort)
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(msg)
	default:
		return BaseMessage{}, fmt.Errorf("%d: %w", typeOf, ErrInvalidMessageType)
	}
}

type NewOrderMessage struct {
	BaseMessage
	Ticker    string      // 8 bytes, NUL padded
	Price     float64     // 8 bytes
	Quantity  uint64      // 8 bytes
	Side      common.Side // 1 byte
	TraderLen uint8       // 1 byte
	TraderID  string      // n bytes
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, fmt.Errorf("new order: %w", ErrMessageTooShort)
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	m.Ticker = unpad(msg[0:8])
	m.Price = math.Float64frombits(binary.BigEndian.Uint64(msg[8:16]))
	m.Quantity = binary.BigEndian.Uint64(msg[16:24])
	m.Side = common.Side(msg[24])
	m.TraderLen = msg[25]

	if len(msg) < NewOrderMessageHeaderLen+int(m.TraderLen) {
		return NewOrderMessage{}, fmt.Errorf("trader id: %w", ErrMessageTooShort)
	}
	m.TraderID = string(msg[26 : 26+int(m.TraderLen)])
	return m, nil
}

// Serialize encodes the message including its type header, ready to be
// framed.
func (m NewOrderMessage) Serialize() ([]byte, error) {
	if len(m.Ticker) > TickerLen {
		return nil, fmt.Errorf("%q: %w", m.Ticker, ErrTickerTooLong)
	}
	if len(m.TraderID) > math.MaxUint8 {
		return nil, fmt.Errorf("%d bytes: %w", len(m.TraderID), ErrTraderTooLong)
	}

	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageHeaderLen+len(m.TraderID))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	body := buf[BaseMessageHeaderLen:]
	copy(body[0:8], m.Ticker)
	binary.BigEndian.PutUint64(body[8:16], math.Float64bits(m.Price))
	binary.BigEndian.PutUint64(body[16:24], m.Quantity)
	body[24] = byte(m.Side)
	body[25] = uint8(len(m.TraderID))
	copy(body[26:], m.TraderID)
	return buf, nil
}

// SerializeHeartbeat encodes a heartbeat message.
func SerializeHeartbeat() []byte {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf, uint16(Heartbeat))
	return buf
}

type Report struct {
	Type            ReportType  // 1 byte
	Side            common.Side // 1 byte
	Timestamp       uint64      // 8 bytes, unix nanos
	Quantity        uint64      // 8 bytes
	Price           float64     // 8 bytes
	Fee             float64     // 8 bytes
	CounterpartyLen uint16      // 2 bytes
	ErrStrLen       uint32      // 4 bytes
	Ticker          string      // 8 bytes
	OrderID         string      // 36 bytes
	Err             string      // n bytes
	Counterparty    string      // n bytes (in this case we show who)
}

const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 8 + 2 + 4 + TickerLen + OrderIDLen

// Serialize converts the report to be sent on the wire. The length fields
// are taken from the strings themselves.
func (r *Report) Serialize() ([]byte, error) {
	if len(r.Counterparty) > math.MaxUint16 {
		return nil, fmt.Errorf("counterparty: %w", ErrFrameTooLarge)
	}
	r.CounterpartyLen = uint16(len(r.Counterparty))
	r.ErrStrLen = uint32(len(r.Err))

	buf := make([]byte, reportFixedHeaderLen+len(r.Err)+len(r.Counterparty))
	buf[0] = byte(r.Type)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.Timestamp)
	binary.BigEndian.PutUint64(buf[10:18], r.Quantity)
	binary.BigEndian.PutUint64(buf[18:26], math.Float64bits(r.Price))
	binary.BigEndian.PutUint64(buf[26:34], math.Float64bits(r.Fee))
	binary.BigEndian.PutUint16(buf[34:36], r.CounterpartyLen)
	binary.BigEndian.PutUint32(buf[36:40], r.ErrStrLen)

	// copy() pads short strings with zeroes and truncates long ones.
	copy(buf[40:48], r.Ticker)
	copy(buf[48:84], r.OrderID)

	offset := reportFixedHeaderLen
	offset += copy(buf[offset:], r.Err)
	copy(buf[offset:], r.Counterparty)
	return buf, nil
}

// ParseReport decodes a report produced by Serialize.
func ParseReport(msg []byte) (Report, error) {
	if len(msg) < reportFixedHeaderLen {
		return Report{}, fmt.Errorf("report: %w", ErrMessageTooShort)
	}
	r := Report{
		Type:            ReportType(msg[0]),
		Side:            common.Side(msg[1]),
		Timestamp:       binary.BigEndian.Uint64(msg[2:10]),
		Quantity:        binary.BigEndian.Uint64(msg[10:18]),
		Price:           math.Float64frombits(binary.BigEndian.Uint64(msg[18:26])),
		Fee:             math.Float64frombits(binary.BigEndian.Uint64(msg[26:34])),
		CounterpartyLen: binary.BigEndian.Uint16(msg[34:36]),
		ErrStrLen:       binary.BigEndian.Uint32(msg[36:40]),
		Ticker:          unpad(msg[40:48]),
		OrderID:         unpad(msg[48:84]),
	}

	rest := msg[reportFixedHeaderLen:]
	if uint64(len(rest)) < uint64(r.ErrStrLen)+uint64(r.CounterpartyLen) {
		return Report{}, fmt.Errorf("report body: %w", ErrMessageTooShort)
	}
	r.Err = string(rest[:r.ErrStrLen])
	r.Counterparty = string(rest[r.ErrStrLen : r.ErrStrLen+uint32(r.CounterpartyLen)])
	return r, nil
}

// generateWireTradeReports builds the execution report for each side of a
// trade, addressed to the buyer and the seller respectively.
func generateWireTradeReports(trade common.Trade) (buyer, seller []byte, err error) {
	createReport := func(side common.Side, orderID, counterparty string, fee float64) Report {
		return Report{
			Type:         ExecutionReport,
			Side:         side,
			Timestamp:    uint64(trade.Timestamp.UnixNano()),
			Quantity:     trade.Quantity,
			Price:        trade.Price,
			Fee:          fee,
			Ticker:       trade.Symbol,
			OrderID:      orderID,
			Counterparty: counterparty,
		}
	}

	r1 := createReport(common.Buy, trade.BuyOrderID, trade.SellerID, trade.Fees.BuyerFee)
	r2 := createReport(common.Sell, trade.SellOrderID, trade.BuyerID, trade.Fees.SellerFee)

	if buyer, err = r1.Serialize(); err != nil {
		return nil, nil, err
	}
	if seller, err = r2.Serialize(); err != nil {
		return nil, nil, err
	}
	return buyer, seller, nil
}

func generateWireAckReport(order common.Order) ([]byte, error) {
	report := Report{
		Type:      AckReport,
		Side:      order.Side,
		Timestamp: uint64(order.Timestamp.UnixNano()),
		Quantity:  order.Quantity,
		Price:     order.Price,
		Ticker:    order.Symbol,
		OrderID:   order.ID,
	}
	return report.Serialize()
}

func generateWireErrorReport(err error, timestamp uint64) ([]byte, error) {
	report := Report{
		Type:      ErrorReport,
		Timestamp: timestamp,
		Err:       err.Error(),
	}
	return report.Serialize()
}

func unpad(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
