package webhooks

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// DefaultTolerance bounds the age and skew of svix-timestamp. It matches the
// tolerance enforced by the svix library.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingHeaders   = errors.New("missing svix headers")
	ErrInvalidTimestamp = errors.New("invalid svix-timestamp")
	ErrTimestampSkew    = errors.New("svix-timestamp outside tolerance")
	ErrNoMatch          = errors.New("no matching signature")
)

// Verifier checks Svix webhook signatures as sent by Clerk.
type Verifier struct {
	wh  *svix.Webhook
	now func() time.Time
}

// NewVerifier takes a "whsec_<base64>" signing secret.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if strings.TrimPrefix(secret, "whsec_") == "" {
		return nil, errors.New("webhook secret is empty")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	return &Verifier{wh: wh, now: time.Now}, nil
}

// Verify authenticates body against the svix-id, svix-timestamp and
// svix-signature headers. The signature header may list several
// space-separated "v1,<base64>" entries; any one matching is enough.
func (v *Verifier) Verify(id, timestamp, signatures string, body []byte) error {
	if id == "" || timestamp == "" || signatures == "" {
		return ErrMissingHeaders
	}
	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}

	headers := http.Header{}
	headers.Set("svix-id", id)
	headers.Set("svix-timestamp", timestamp)
	headers.Set("svix-signature", signatures)
	if err := v.wh.Verify(body, headers); err != nil {
		// The library's errors are unexported; tell skew apart for the logs.
		skew := v.now().Sub(time.Unix(secs, 0))
		if skew > DefaultTolerance || skew < -DefaultTolerance {
			return fmt.Errorf("%w: %v", ErrTimestampSkew, err)
		}
		return fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	return nil
}
