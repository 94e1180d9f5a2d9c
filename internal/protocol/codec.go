package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Encoder writes one JSON document per line and flushes after each.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes v followed by a newline and flushes.
func (e *Encoder) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if _, err := e.w.Write(data); err != nil {
		return err
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return err
	}
	return e.w.Flush()
}

// EncodeRequest writes a request line.
func (e *Encoder) EncodeRequest(req Request) error {
	return e.Encode(req)
}

// EncodeResponse writes a response line.
func (e *Encoder) EncodeResponse(resp Response) error {
	return e.Encode(resp)
}

// Decoder reads JSON documents from a stream. A document may span several reads;
// Decoder blocks until one is complete.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Next returns the raw bytes of the next document. A stream that ends cleanly between
// documents yields io.EOF; one that ends inside a document yields io.ErrUnexpectedEOF.
// After a syntax error the stream cannot be resynchronized.
func (d *Decoder) Next() (json.RawMessage, error) {
	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DecodeResponse reads the next response.
func (d *Decoder) DecodeResponse() (Response, error) {
	raw, err := d.Next()
	if err != nil {
		return nil, err
	}
	return UnmarshalResponse(raw)
}

// DecodeRequest reads the next request.
func (d *Decoder) DecodeRequest() (Request, error) {
	raw, err := d.Next()
	if err != nil {
		return nil, err
	}
	return UnmarshalRequest(raw)
}
