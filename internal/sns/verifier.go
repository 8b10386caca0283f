package sns

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"fmt"

	"github.com/ignite/ses-gateway/internal/pkg/logger"
)

// Verifier checks SNS envelope signatures against Amazon's signing
// certificates.
type Verifier struct {
	cache *CertCache
}

// NewVerifier creates a Verifier backed by the given certificate cache.
func NewVerifier(cache *CertCache) *Verifier {
	return &Verifier{cache: cache}
}

// Verify reports whether the envelope's signature is authentic.
//
// It returns an error wrapping ErrValidation only for structural problems:
// missing required fields, an untrusted or unfetchable certificate, or a
// signature that is not valid base64. A well-formed envelope whose signature
// simply does not match returns (false, nil).
//
// SNS signs with SHA1 and PKCS#1 v1.5 padding. That is the provider's
// documented scheme; changing the digest breaks interop.
func (v *Verifier) Verify(ctx context.Context, env *Envelope) (bool, error) {
	if err := checkRequired(env); err != nil {
		return false, err
	}

	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return false, fmt.Errorf("%w: signature is not valid base64: %v", ErrValidation, err)
	}

	cert, err := v.cache.Get(ctx, env.SigningCertURL)
	if err != nil {
		return false, err
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false, fmt.Errorf("%w: certificate does not carry an RSA key", ErrValidation)
	}

	signed, err := buildSignatureString(env)
	if err != nil {
		return false, err
	}

	digest := sha1.Sum(signed)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], sig); err != nil {
		logger.Warn("sns signature mismatch", "sns_message_id", env.MessageID)
		return false, nil
	}
	return true, nil
}

func checkRequired(env *Envelope) error {
	switch {
	case env.Signature == "":
		return fmt.Errorf("%w: missing Signature", ErrValidation)
	case env.SigningCertURL == "":
		return fmt.Errorf("%w: missing SigningCertURL", ErrValidation)
	case env.Type == "":
		return fmt.Errorf("%w: missing Type", ErrValidation)
	case env.MessageID == "":
		return fmt.Errorf("%w: missing MessageId", ErrValidation)
	}
	return nil
}

// buildSignatureString assembles the canonical byte string SNS signed. Field
// order is fixed per message type, each present field rendered as
// "{name}\n{value}\n". Absent optional fields (Subject on notifications) are
// omitted entirely, not rendered empty.
func buildSignatureString(env *Envelope) ([]byte, error) {
	type field struct {
		name  string
		value string
		skip  bool
	}

	var fields []field
	switch env.Type {
	case TypeNotification:
		fields = []field{
			{name: "Message", value: env.Message},
			{name: "MessageId", value: env.MessageID},
			{name: "Subject", value: deref(env.Subject), skip: env.Subject == nil},
			{name: "Timestamp", value: env.Timestamp},
			{name: "TopicArn", value: env.TopicArn},
			{name: "Type", value: env.Type},
		}
	case TypeSubscriptionConfirmation, TypeUnsubscribeConfirmation:
		fields = []field{
			{name: "Message", value: env.Message},
			{name: "MessageId", value: env.MessageID},
			{name: "SubscribeURL", value: env.SubscribeURL},
			{name: "Timestamp", value: env.Timestamp},
			{name: "Token", value: env.Token},
			{name: "TopicArn", value: env.TopicArn},
			{name: "Type", value: env.Type},
		}
	default:
		return nil, fmt.Errorf("%w: unsignable message type %q", ErrValidation, env.Type)
	}

	var buf []byte
	for _, f := range fields {
		if f.skip {
			continue
		}
		buf = append(buf, f.name...)
		buf = append(buf, '\n')
		buf = append(buf, f.value...)
		buf = append(buf, '\n')
	}
	return buf, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
