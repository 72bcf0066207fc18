package cdp

import (
	"encoding/json"
	"fmt"
)

// MaxChannelCount reserves the low bits of a BiDi command id for channel
// routing. Channel 0 is reserved; channel 1 is the sole user channel.
const MaxChannelCount = 2

// reservedChannel is the channel used by PostBidiCommand.
const reservedChannel = 1

// InspectorEvent is a transport-agnostic event value produced by the parser.
type InspectorEvent struct {
	Method    string
	Params    json.RawMessage
	SessionID string
}

// InspectorResponse is a transport-agnostic command response value produced
// by the parser.
type InspectorResponse struct {
	ID        int64
	SessionID string
	Result    json.RawMessage // present (possibly "{}") when there was no error
	Error     json.RawMessage
}

// wireMessage is the union of everything that can arrive on the socket.
type wireMessage struct {
	ID        *int64          `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// requestFrame is the outgoing command envelope.
type requestFrame struct {
	ID        int64  `json:"id"`
	Method    string `json:"method"`
	Params    any    `json:"params,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ParseInspectorMessage parses one raw text frame into either an event or a
// response. Exactly one of the two return values is non-nil on success.
func ParseInspectorMessage(text string) (*InspectorEvent, *InspectorResponse, error) {
	var msg wireMessage
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return nil, nil, fmt.Errorf("bad inspector message: %w", err)
	}

	if msg.ID != nil {
		resp := &InspectorResponse{ID: *msg.ID, SessionID: msg.SessionID}
		switch {
		case len(msg.Error) > 0:
			resp.Error = msg.Error
		case len(msg.Result) > 0:
			resp.Result = msg.Result
		default:
			// Some responses (Tracing.start/Tracing.end) carry neither key.
			resp.Result = json.RawMessage(`{}`)
		}
		return nil, resp, nil
	}

	if msg.Method == "" {
		return nil, nil, fmt.Errorf("bad inspector message: no id or method: %s", text)
	}

	params := msg.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	if isBidiResponse(msg.Method, params) {
		decoded, err := decodeBidiPayload(params)
		if err != nil {
			return nil, nil, err
		}
		params = decoded
	}

	return &InspectorEvent{Method: msg.Method, Params: params, SessionID: msg.SessionID}, nil, nil
}

// isBidiResponse reports whether an event is the CDP tunnel for a BiDi
// response: Runtime.bindingCalled with params.name == "sendBidiResponse".
func isBidiResponse(method string, params json.RawMessage) bool {
	if method != "Runtime.bindingCalled" {
		return false
	}
	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(params, &named); err != nil {
		return false
	}
	return named.Name == "sendBidiResponse"
}

// decodeBidiPayload replaces params.payload (a JSON-encoded string) with its
// decoded object, dividing any "id" field by MaxChannelCount to recover the
// caller's original BiDi command id. The channel low bits are discarded.
func decodeBidiPayload(params json.RawMessage) (json.RawMessage, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(params, &generic); err != nil {
		return nil, fmt.Errorf("bad Runtime.bindingCalled params: %w", err)
	}
	rawPayload, ok := generic["payload"]
	if !ok {
		return nil, fmt.Errorf("payload is missing in Runtime.bindingCalled params")
	}
	var payloadStr string
	if err := json.Unmarshal(rawPayload, &payloadStr); err != nil {
		return nil, fmt.Errorf("payload is not a string: %w", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(payloadStr), &decoded); err != nil {
		return nil, fmt.Errorf("unable to deserialize BiDi payload: %w", err)
	}
	if rawID, ok := decoded["id"]; ok {
		if idFloat, ok := rawID.(float64); ok {
			decoded["id"] = int64(idFloat) / MaxChannelCount
		}
	}

	decodedJSON, err := json.Marshal(decoded)
	if err != nil {
		return nil, err
	}
	generic["payload"] = decodedJSON

	return json.Marshal(generic)
}

// encodeBidiCommand builds the "onBidiMessage(<json>)" expression CDP wraps
// a BiDi command in, multiplying the caller's command id by MaxChannelCount
// and adding the reserved user channel so the id spaces don't alias.
func encodeBidiCommand(command map[string]any) (string, error) {
	rawID, ok := command["id"]
	if !ok {
		return "", fmt.Errorf("BiDi command id not found")
	}
	var idFloat float64
	switch v := rawID.(type) {
	case float64:
		idFloat = v
	case int:
		idFloat = float64(v)
	case int64:
		idFloat = float64(v)
	default:
		return "", fmt.Errorf("BiDi command id has unexpected type %T", rawID)
	}
	command["id"] = int64(idFloat)*MaxChannelCount + reservedChannel

	encoded, err := json.Marshal(command)
	if err != nil {
		return "", err
	}
	arg, err := json.Marshal(string(encoded))
	if err != nil {
		return "", err
	}
	return "onBidiMessage(" + string(arg) + ")", nil
}
