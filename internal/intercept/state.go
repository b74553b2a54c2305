package intercept

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/vyrodovalexey/signgw/internal/observability"
)

// maxCarry is the longest incomplete UTF-8 sequence held between chunks.
const maxCarry = 3

// streamState tracks one response stream.
type streamState struct {
	logger  observability.Logger
	metrics *Metrics
	status  int

	chunks int64
	bytes  int64

	maxLog         int
	text           strings.Builder
	carry          []byte
	validator      transform.Transformer
	decodeDisabled bool
	full           bool

	done bool
}

func newStreamState(ctx context.Context, i *Interceptor, status int) *streamState {
	return &streamState{
		logger:    i.logger.WithContext(ctx),
		metrics:   i.metrics,
		status:    status,
		maxLog:    i.maxLogBytes,
		validator: encoding.UTF8Validator,
	}
}

// observe records a chunk. It never modifies chunk.
func (s *streamState) observe(chunk []byte) {
	s.chunks++
	s.bytes += int64(len(chunk))
	if s.metrics != nil {
		s.metrics.chunks.Inc()
		s.metrics.bytes.Add(float64(len(chunk)))
	}

	s.logger.Debug("response chunk",
		observability.Int64("chunk", s.chunks),
		observability.Int("length", len(chunk)),
		observability.Int("status", s.status),
	)

	s.decode(chunk)
}

// decode appends the valid UTF-8 text of chunk to the log prefix, carrying
// an incomplete trailing rune over to the next chunk. Invalid input stops
// decoding for the rest of the stream.
func (s *streamState) decode(chunk []byte) {
	if s.decodeDisabled {
		return
	}
	if s.prefixFull() {
		s.carry = s.carry[:0]
		return
	}

	src := make([]byte, 0, len(s.carry)+len(chunk))
	src = append(src, s.carry...)
	src = append(src, chunk...)
	s.carry = s.carry[:0]

	dst := make([]byte, len(src))
	nDst, nSrc, err := s.validator.Transform(dst, src, false)
	switch {
	case err == nil:
	case errors.Is(err, transform.ErrShortSrc) && len(src)-nSrc <= maxCarry:
		s.carry = append(s.carry, src[nSrc:]...)
	default:
		s.decodeDisabled = true
		s.logger.Debug("response is not valid UTF-8, text logging disabled",
			observability.Int64("chunk", s.chunks),
		)
	}

	s.appendText(dst[:nDst])
}

// appendText adds validated text to the log prefix, cutting on a rune
// boundary. A cut marks the prefix full.
func (s *streamState) appendText(b []byte) {
	room := s.maxLog - s.text.Len()
	if room <= 0 {
		return
	}
	if len(b) > room {
		cut := room
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}
		b = b[:cut]
		s.full = true
	}
	s.text.Write(b)
}

func (s *streamState) prefixFull() bool {
	return s.full || s.text.Len() >= s.maxLog
}

// complete marks the stream delivered and logs its summary once.
func (s *streamState) complete() bool {
	if s.done {
		return false
	}
	s.done = true

	if len(s.carry) > 0 && !s.prefixFull() {
		s.decodeDisabled = true
	}

	fields := []observability.Field{
		observability.Int("status", s.status),
		observability.Int64("chunks", s.chunks),
		observability.Int64("bytes", s.bytes),
	}
	if s.maxLog > 0 {
		fields = append(fields,
			observability.String("body", s.text.String()),
			observability.Bool("body_truncated", s.bytes > int64(s.text.Len())),
			observability.Bool("body_decoded", !s.decodeDisabled),
		)
	}
	s.logger.Info("response completed", fields...)
	return true
}

// abort marks the stream undelivered.
func (s *streamState) abort(reason error) {
	if s.done {
		return
	}
	s.done = true

	fields := []observability.Field{
		observability.Int("status", s.status),
		observability.Int64("chunks", s.chunks),
		observability.Int64("bytes", s.bytes),
	}
	if reason != nil {
		fields = append(fields, observability.Error(reason))
	}
	s.logger.Debug("response stream aborted", fields...)
}
