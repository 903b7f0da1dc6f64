package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/rtapi"
)

// Encode serializes env as one JSON text frame. Unset payload variants are
// omitted.
func Encode(env *rtapi.Envelope) ([]byte, error) {
	if env == nil {
		return nil, errors.New("encode: nil envelope")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "encode envelope")
	}
	if len(data) > rtsock.MaxFrameSize {
		return nil, errors.Wrapf(rtsock.ErrFrameTooLarge, "size %d exceeds maximum %d bytes", len(data), rtsock.MaxFrameSize)
	}
	return data, nil
}

// Decode parses a text frame into an envelope. Unknown fields are ignored.
// Every failure wraps rtsock.ErrMalformed.
func Decode(data []byte) (*rtapi.Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.Wrap(rtsock.ErrMalformed, "empty frame")
	}
	if len(trimmed) > rtsock.MaxFrameSize {
		return nil, errors.Wrapf(rtsock.ErrMalformed, "size %d exceeds maximum %d bytes", len(trimmed), rtsock.MaxFrameSize)
	}
	if trimmed[0] != '{' {
		return nil, errors.Wrap(rtsock.ErrMalformed, "frame is not a JSON object")
	}

	var env rtapi.Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, errors.Wrapf(rtsock.ErrMalformed, "decode envelope: %v", err)
	}
	return &env, nil
}
