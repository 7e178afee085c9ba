// Package captcha issues arithmetic SVG challenges for the guest flow.
// The server only generates the challenge; rendering is the browser's job.
package captcha

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/openmunicipal/civicportal/internal/errs"
)

// Challenge is what the generate endpoint returns to the client.
type Challenge struct {
	ID  string
	SVG string
}

// AnswerStore holds pending challenge answers. Answers are one-shot:
// Consume removes the entry whether or not the comparison succeeds.
type AnswerStore interface {
	Save(ctx context.Context, id, answer string, ttl time.Duration) error
	Consume(ctx context.Context, id string) (string, error)
}

// Service generates challenges and verifies answers.
type Service struct {
	store AnswerStore
	ttl   time.Duration
}

// New constructs a captcha service.
func New(store AnswerStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{store: store, ttl: ttl}
}

// Generate creates an addition challenge and stores its answer.
func (s *Service) Generate(ctx context.Context) (*Challenge, error) {
	a, err := randInt(10, 40)
	if err != nil {
		return nil, err
	}
	b, err := randInt(1, 9)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	answer := strconv.Itoa(a + b)
	if err := s.store.Save(ctx, id.String(), answer, s.ttl); err != nil {
		return nil, err
	}
	return &Challenge{ID: id.String(), SVG: renderSVG(fmt.Sprintf("%d + %d = ?", a, b))}, nil
}

// Verify consumes the challenge and compares the answer.
// A wrong, reused, or expired challenge returns errs.ErrCaptchaMismatch.
func (s *Service) Verify(ctx context.Context, id, answer string) error {
	want, err := s.store.Consume(ctx, id)
	if err != nil {
		return errs.ErrCaptchaMismatch
	}
	if strings.TrimSpace(answer) != want {
		return errs.ErrCaptchaMismatch
	}
	return nil
}

func randInt(min, max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, err
	}
	return min + int(n.Int64()), nil
}

// renderSVG draws the challenge text with per-glyph jitter and two noise
// strokes. Deliberately simple; the answer never appears in the markup.
func renderSVG(text string) string {
	var sb strings.Builder
	sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="180" height="56" viewBox="0 0 180 56">`)
	sb.WriteString(`<rect width="180" height="56" fill="#f4f4f4"/>`)
	x := 14
	for _, r := range text {
		rot, _ := randInt(-14, 14)
		dy, _ := randInt(-4, 4)
		fmt.Fprintf(&sb,
			`<text x="%d" y="%d" font-family="monospace" font-size="24" fill="#333" transform="rotate(%d %d %d)">%s</text>`,
			x, 36+dy, rot, x, 36, escape(r))
		x += 13
	}
	for i := 0; i < 2; i++ {
		x1, _ := randInt(0, 60)
		y1, _ := randInt(0, 56)
		x2, _ := randInt(120, 180)
		y2, _ := randInt(0, 56)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#999" stroke-width="1"/>`, x1, y1, x2, y2)
	}
	sb.WriteString(`</svg>`)
	return sb.String()
}

func escape(r rune) string {
	switch r {
	case '<':
		return "&lt;"
	case '>':
		return "&gt;"
	case '&':
		return "&amp;"
	default:
		return string(r)
	}
}
