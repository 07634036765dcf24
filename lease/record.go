package lease

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordFormatVersion = 1

// Lease defines a public type used by secstate APIs.
//
// Lease instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Lease struct {
	RecordID   string
	Holder     string
	AcquiredAt int64
	ExpiresAt  int64
}

// Encode renders a lease into its compact stored form. The record id is the
// storage key, so only the holder and timing ride in the value.
func Encode(l *Lease) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersion)

	if len(l.Holder) > 255 {
		return nil, errors.New("holder too long")
	}
	buf.WriteByte(byte(len(l.Holder)))
	buf.WriteString(l.Holder)

	if err := binary.Write(&buf, binary.BigEndian, l.AcquiredAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, l.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a stored value back into a lease. The caller fills RecordID
// from the key it read.
func Decode(data []byte) (*Lease, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersion {
		return nil, errors.New("unsupported lease record version")
	}

	l := &Lease{}

	holderLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	holder := make([]byte, holderLen)
	if _, err := io.ReadFull(reader, holder); err != nil {
		return nil, err
	}
	l.Holder = string(holder)

	if err := binary.Read(reader, binary.BigEndian, &l.AcquiredAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &l.ExpiresAt); err != nil {
		return nil, err
	}

	return l, nil
}
