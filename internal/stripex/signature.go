package stripex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerificationMode is fixed once at startup: Enforced when a webhook secret
// is configured, Disabled otherwise. Disabled mode trusts any payload and is
// only meant for local development.
type VerificationMode int

const (
	VerificationDisabled VerificationMode = iota
	VerificationEnforced
)

const DefaultTolerance = 5 * time.Minute

// Verifier checks the provider's signature header: a comma-separated list of
// "t=<unix>" and "v1=<hex hmac-sha256>" pairs, where the MAC is computed
// over "<t>.<payload>" with the shared secret.
type Verifier struct {
	Mode      VerificationMode
	Secret    string
	Tolerance time.Duration

	now func() time.Time
}

func NewVerifier(secret string) *Verifier {
	mode := VerificationEnforced
	if secret == "" {
		mode = VerificationDisabled
	}
	return &Verifier{
		Mode:      mode,
		Secret:    secret,
		Tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

func (v *Verifier) Verify(payload []byte, header string) error {
	if v.Mode == VerificationDisabled {
		return nil
	}
	if header == "" {
		return fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	var ts int64
	var sigs [][]byte
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts = n
		case "v1":
			sig, err := hex.DecodeString(val)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return fmt.Errorf("%w: malformed signature header", ErrInvalidSignature)
	}

	if v.Tolerance > 0 {
		age := v.now().Sub(time.Unix(ts, 0))
		if age > v.Tolerance || age < -v.Tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range sigs {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}
