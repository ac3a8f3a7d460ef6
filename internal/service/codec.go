package service

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// Codec carries plain Go structs as JSON. It registers under the name
// "json", so both the Connect and the gRPC-Web JSON content types use it.
type Codec struct{}

var _ connect.Codec = Codec{}

// Name implements connect.Codec.
func (Codec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// Unmarshal implements connect.Codec.
func (Codec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}
