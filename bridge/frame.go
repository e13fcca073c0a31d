package bridge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// DefaultMaxFrameSize bounds a single subprocess frame.
const DefaultMaxFrameSize = 4 * 1024 * 1024

var errFrameTooLarge = errors.New("frame exceeds size limit")

// readFrame returns the next newline-delimited frame without its line
// terminator. An oversized frame is discarded up to its newline and reported
// as errFrameTooLarge; the reader stays usable.
func readFrame(reader *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(line)+len(chunk) > limit+2 {
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = reader.ReadSlice('\n')
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			return nil, errFrameTooLarge
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		line = bytes.TrimRight(line, "\r\n")
		if err != nil && len(line) > 0 && errors.Is(err, io.EOF) {
			return line, nil
		}
		return line, err
	}
}

// normalize checks data holds exactly one JSON object and compacts it to a
// single line.
func normalize(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, &MalformedMessageError{Err: errors.New("empty message")}
	}
	if data[0] != '{' {
		return nil, &MalformedMessageError{Err: errors.New("message is not a JSON object")}
	}
	if !json.Valid(data) {
		return nil, &MalformedMessageError{Err: errors.New("invalid JSON")}
	}
	compact := bytes.NewBuffer(make([]byte, 0, len(data)))
	if err := json.Compact(compact, data); err != nil {
		return nil, &MalformedMessageError{Err: err}
	}
	return compact.Bytes(), nil
}

// isFrame reports whether a subprocess line is a JSON object.
func isFrame(line []byte) bool {
	line = bytes.TrimSpace(line)
	return len(line) > 0 && line[0] == '{' && json.Valid(line)
}
