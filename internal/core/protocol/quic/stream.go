package quic

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/zeusync/noodles/internal/core/protocol"
)

// frameHeaderSize is the big-endian uint32 length in front of every frame.
const frameHeaderSize = 4

// WriteFrame writes data with its length prefix.
func WriteFrame(w io.Writer, data []byte, maxSize int64) error {
	if int64(len(data)) > maxSize || uint64(len(data)) > uint64(^uint32(0)) {
		return protocol.ErrFrameTooLarge
	}
	frame := make([]byte, frameHeaderSize+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[frameHeaderSize:], data)

	if _, err := w.Write(frame); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. A clean end of stream before a
// header returns io.EOF unwrapped.
func ReadFrame(r io.Reader, maxSize int64) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "failed to read frame header")
	}

	size := binary.BigEndian.Uint32(header[:])
	if int64(size) > maxSize {
		return nil, errors.Wrapf(protocol.ErrFrameTooLarge, "frame of %d bytes", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrap(err, "failed to read frame body")
	}
	return data, nil
}
