package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrMalformedSnapshot is returned by Load when stored progress cannot be decoded.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

func encodeSnapshot(s *model.SessionSnapshot) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil snapshot")
	}
	return json.Marshal(s)
}

func decodeSnapshot(raw []byte) (*model.SessionSnapshot, error) {
	var s model.SessionSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if s.Answers == nil {
		return nil, fmt.Errorf("%w: missing answers", ErrMalformedSnapshot)
	}
	return &s, nil
}
