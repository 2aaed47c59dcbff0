// Package wire defines the on-the-wire types shared by the switchboard
// protocol and the in-band gossip channel.
package wire

import "encoding/json"

// NegotiationType distinguishes an offer from an answer.
type NegotiationType string

const (
	NegotiationOffer  NegotiationType = "offer"
	NegotiationAnswer NegotiationType = "answer"
)

// Negotiation carries a session-description payload between two nodes,
// either directly through the switchboard or gossiped in-band once the
// mesh is otherwise connected.
type Negotiation struct {
	Type         NegotiationType `json:"type"`
	Address      string          `json:"address"`       // originator
	SDP          *string         `json:"sdp"`            // nil while pending; may be ciphertext
	ConnectionID string          `json:"connectionId"`   // the initiator's connection id
	NetworkID    string          `json:"networkId"`
	Timestamp    int64           `json:"timestamp"` // ms epoch
}

// Pending reports whether this negotiation has not yet carried SDP bytes.
func (n Negotiation) Pending() bool { return n.SDP == nil }

// Signature is one hop's signature over the message as it stood when that
// hop signed it. The hop count is the length of this slice, not a mutable
// ttl field, so that an earlier hop's signature is never invalidated.
type Signature struct {
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

// ControlType enumerates message types reserved under the "network" app id.
type ControlType string

const (
	ControlPresence ControlType = "presence"
	ControlOffer    ControlType = "offer"
	ControlAnswer   ControlType = "answer"
	ControlLog      ControlType = "log"
)

// NetworkAppID is the reserved app_id namespace for control messages.
const NetworkAppID = "network"

// Wildcard addresses every node.
const Wildcard = "*"

// MaxTTL is the maximum hop count a message may carry (message_ttl_max).
const MaxTTL = 6

// Message is the application and control envelope gossiped across the mesh.
type Message struct {
	ID          string          `json:"id"`
	Address     string          `json:"address"`
	AppID       string          `json:"app_id"`
	TTL         int             `json:"ttl"`
	Type        string          `json:"type"`
	Destination string          `json:"destination"`
	Data        json.RawMessage `json:"data"`
	Signatures  []Signature     `json:"signatures"`
}

// HopCount is the number of hops this message has recorded, including the
// originator's own signature (or placeholder, when unsigned).
func (m Message) HopCount() int { return len(m.Signatures) }

// AddressedTo reports whether self should treat this message as addressed
// to it (direct address match or the wildcard destination).
func (m Message) AddressedTo(self string) bool {
	return m.Destination == Wildcard || m.Destination == self
}

// PresenceData is the payload of a "presence" control message.
type PresenceData struct {
	Address string `json:"address"`
}

// OfferData and AnswerData wrap a Negotiation inside a control message's
// Data field.
type OfferData struct {
	Negotiation Negotiation `json:"negotiation"`
}

type AnswerData struct {
	Negotiation Negotiation `json:"negotiation"`
}

// LogData is the payload of a "log" control message (used, among other
// things, to tell a peer why it is about to be disconnected).
type LogData struct {
	Text string `json:"text"`
}

// NegotiationItem is one entry of a switchboard request or response's
// negotiationItems list.
type NegotiationItem struct {
	For         string      `json:"for"`
	From        string      `json:"from"`
	Negotiation Negotiation `json:"negotiation"`
}

// SwitchboardRequest is the body POSTed to the switchboard on every tick.
type SwitchboardRequest struct {
	NetworkID        string            `json:"networkId"`
	Address          string            `json:"address"`
	NegotiationItems []NegotiationItem `json:"negotiationItems"`
}

// SwitchboardResponse is the switchboard's reply to a request.
type SwitchboardResponse struct {
	Addresses        []string          `json:"addresses"`
	NegotiationItems []NegotiationItem `json:"negotiationItems"`
}

// MustMarshal marshals v, panicking on error. Used only for values whose
// marshaling cannot fail (fixed, already-validated structs), matching the
// teacher's proto.MustMarshal.
func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
