package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/healthvault"
)

// Event is one entry of the registry transaction log.
type Event struct {
	TxID      string
	Kind      EventKind
	Patient   common.Address
	Provider  common.Address
	Pointer   string
	Requester common.Address
	Timestamp time.Time
}

func (e Event) Message() healthvault.EventMessage {
	msg := healthvault.EventMessage{
		TxID:      e.TxID,
		Kind:      string(e.Kind),
		Patient:   e.Patient.Hex(),
		Pointer:   e.Pointer,
		Timestamp: e.Timestamp,
	}
	if e.Provider != (common.Address{}) {
		msg.Provider = e.Provider.Hex()
	}
	if e.Requester != (common.Address{}) {
		msg.Requester = e.Requester.Hex()
	}
	return msg
}

func EventFromMessage(msg healthvault.EventMessage) Event {
	e := Event{
		TxID:      msg.TxID,
		Kind:      EventKind(msg.Kind),
		Patient:   common.HexToAddress(msg.Patient),
		Pointer:   msg.Pointer,
		Timestamp: msg.Timestamp,
	}
	if msg.Provider != "" {
		e.Provider = common.HexToAddress(msg.Provider)
	}
	if msg.Requester != "" {
		e.Requester = common.HexToAddress(msg.Requester)
	}
	return e
}
