// Package protocol defines the JSON frames exchanged with the dialogue engine.
//
// Every frame is an envelope {"event": kind, "data": payload}; data is omitted
// for kinds without a payload.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	apperrors "gyani-interview/client/pkg/errors"
)

// Kind names a frame type
type Kind string

// Outbound kinds
const (
	KindClientReady  Kind = "client_ready"
	KindUserMessage  Kind = "user_message"
	KindEndInterview Kind = "end_interview"
	KindPing         Kind = "ping"
)

// Inbound kinds
const (
	KindAIResponse         Kind = "ai_response"
	KindConnectionResponse Kind = "connection_response"
	KindInterviewEnded     Kind = "interview_ended"
	KindError              Kind = "error"
	KindInterviewPhase     Kind = "interview_phase"
	KindWaitingForResponse Kind = "waiting_for_response"
	KindMessageReceived    Kind = "message_received"
	KindInterviewComplete  Kind = "interview_complete"
	KindMonitoringAlert    Kind = "monitoring_alert"
	KindConnectionStatus   Kind = "connection_status"
)

// Phase is the interview stage
type Phase string

const (
	PhaseIntroduction   Phase = "introduction"
	PhaseSalesQuestions Phase = "sales_questions"
	PhaseConclusion     Phase = "conclusion"
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhaseIntroduction, PhaseSalesQuestions, PhaseConclusion:
		return true
	}
	return false
}

// Display returns the label shown in the session header
func (p Phase) Display() string {
	switch p {
	case PhaseIntroduction:
		return "Introduction Phase"
	case PhaseSalesQuestions:
		return "Sales Questions Phase"
	case PhaseConclusion:
		return "Conclusion Phase"
	default:
		return "Interview in Progress"
	}
}

// Envelope is the on-the-wire frame
type Envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserMessage is the payload of user_message and end_interview
type UserMessage struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
	Phase     Phase  `json:"phase"`
}

// NewUserMessage builds a user_message/end_interview payload
func NewUserMessage(text string, at time.Time, phase Phase) UserMessage {
	return UserMessage{Message: text, Timestamp: at.UnixMilli(), Phase: phase}
}

// AIResponse is an AI turn. Audio holds the decoded clip, nil when the
// engine sent text only.
type AIResponse struct {
	Message       string
	Audio         []byte
	Phase         Phase
	Interruptible bool
}

// Notice carries a plain message: connection_response, interview_ended,
// message_received, interview_complete, error
type Notice struct {
	Kind    Kind
	Message string
}

// PhaseUpdate announces a new interview phase
type PhaseUpdate struct {
	Phase Phase
}

// WaitingForResponse mirrors the engine's view of whose turn it is
type WaitingForResponse struct {
	Waiting bool
	Timeout time.Duration
}

// MonitoringAlert is a proctoring notice from the engine
type MonitoringAlert struct {
	Type     string
	Message  string
	Severity string
}

// ConnectionStatus is the engine's connect acknowledgement
type ConnectionStatus struct {
	Status string
}

// Inbound is one decoded inbound frame: *AIResponse, *Notice, *PhaseUpdate,
// *WaitingForResponse, *MonitoringAlert or *ConnectionStatus
type Inbound interface {
	inbound()
}

func (*AIResponse) inbound()         {}
func (*Notice) inbound()             {}
func (*PhaseUpdate) inbound()        {}
func (*WaitingForResponse) inbound() {}
func (*MonitoringAlert) inbound()    {}
func (*ConnectionStatus) inbound()   {}

// Encode builds a frame. A nil payload produces a frame without data.
func Encode(kind Kind, payload any) ([]byte, error) {
	env := Envelope{Event: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.NewProtocolError(string(kind), "encode payload", err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

type aiResponseWire struct {
	Message       *string `json:"message"`
	Audio         *string `json:"audio"`
	Phase         Phase   `json:"phase"`
	Interruptible *bool   `json:"interruptible"`
}

type noticeWire struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

type phaseWire struct {
	Phase Phase `json:"phase"`
}

type waitingWire struct {
	Waiting bool    `json:"waiting"`
	Timeout float64 `json:"timeout"` // seconds
}

type monitoringWire struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type statusWire struct {
	Status string `json:"status"`
}

// Decode parses an inbound frame. Frames that cannot be parsed, carry an
// unknown kind, or miss required fields return an *errors.ErrProtocol.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, apperrors.NewProtocolError("", "invalid envelope", err)
	}
	if env.Event == "" {
		return nil, apperrors.NewProtocolError("", "missing event name", nil)
	}

	kind := string(env.Event)
	switch env.Event {
	case KindAIResponse:
		var w aiResponseWire
		if err := unmarshalData(env.Data, &w); err != nil {
			return nil, apperrors.NewProtocolError(kind, "invalid payload", err)
		}
		if w.Message == nil {
			return nil, apperrors.NewProtocolError(kind, "missing message", nil)
		}
		resp := &AIResponse{Message: *w.Message, Interruptible: true}
		if w.Interruptible != nil {
			resp.Interruptible = *w.Interruptible
		}
		if w.Phase.Valid() {
			resp.Phase = w.Phase
		}
		if w.Audio != nil && strings.TrimSpace(*w.Audio) != "" {
			audio, err := base64.StdEncoding.DecodeString(*w.Audio)
			if err != nil {
				return nil, apperrors.NewProtocolError(kind, "audio is not base64", err)
			}
			resp.Audio = audio
		}
		return resp, nil

	case KindConnectionResponse, KindInterviewEnded, KindMessageReceived, KindInterviewComplete, KindError:
		var w noticeWire
		if err := unmarshalData(env.Data, &w); err != nil {
			return nil, apperrors.NewProtocolError(kind, "invalid payload", err)
		}
		msg := w.Message
		if msg == "" {
			msg = w.Description
		}
		return &Notice{Kind: env.Event, Message: msg}, nil

	case KindInterviewPhase:
		var w phaseWire
		if err := unmarshalData(env.Data, &w); err != nil {
			return nil, apperrors.NewProtocolError(kind, "invalid payload", err)
		}
		if !w.Phase.Valid() {
			return nil, apperrors.NewProtocolError(kind, "unknown phase "+string(w.Phase), nil)
		}
		return &PhaseUpdate{Phase: w.Phase}, nil

	case KindWaitingForResponse:
		var w waitingWire
		if err := unmarshalData(env.Data, &w); err != nil {
			return nil, apperrors.NewProtocolError(kind, "invalid payload", err)
		}
		return &WaitingForResponse{
			Waiting: w.Waiting,
			Timeout: time.Duration(w.Timeout * float64(time.Second)),
		}, nil

	case KindMonitoringAlert:
		var w monitoringWire
		if err := unmarshalData(env.Data, &w); err != nil {
			return nil, apperrors.NewProtocolError(kind, "invalid payload", err)
		}
		return &MonitoringAlert{Type: w.Type, Message: w.Message, Severity: w.Severity}, nil

	case KindConnectionStatus:
		var w statusWire
		if err := unmarshalData(env.Data, &w); err != nil {
			return nil, apperrors.NewProtocolError(kind, "invalid payload", err)
		}
		return &ConnectionStatus{Status: w.Status}, nil
	}

	return nil, apperrors.NewProtocolError(kind, "unknown event", nil)
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
