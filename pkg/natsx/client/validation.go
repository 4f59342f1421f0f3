package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// MaxHostnameLength is the maximum allowed hostname length in characters.
	MaxHostnameLength = 253
	// MaxKeyLength is the maximum allowed key length for KV operations.
	MaxKeyLength = 256
	// MaxSubjectLength is the maximum allowed NATS subject length.
	MaxSubjectLength = 255
	// MaxBucketNameLength is the maximum allowed KV bucket name length.
	MaxBucketNameLength = 63
	// MaxValueSize is the maximum allowed value size for KV storage (1MB).
	MaxValueSize = 1024 * 1024
	// DefaultConnectivityCheckTimeout is the default timeout for connectivity checks.
	DefaultConnectivityCheckTimeout = 5 * time.Second
)

var (
	validTokenPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	validKeyPattern     = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	validSubjectPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)*$`)
)

// ValidateNATSURL validates a NATS URL.
func ValidateNATSURL(natsURL string) error {
	if natsURL == "" {
		return errors.New("URL cannot be empty")
	}
	parsed, err := url.Parse(natsURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	switch parsed.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q, only nats, tls, ws and wss are supported", parsed.Scheme)
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return errors.New("hostname is required")
	}
	if len(hostname) > MaxHostnameLength {
		return fmt.Errorf("hostname too long (max %d characters)", MaxHostnameLength)
	}
	return nil
}

// ValidateToken validates a single subject token, such as a device id
// embedded in a subject.
func ValidateToken(token string) error {
	if !validTokenPattern.MatchString(token) {
		return fmt.Errorf("%w: token %q must be alphanumeric, '-' or '_'", ErrInvalidSubject, token)
	}
	return nil
}

// ValidateKey validates a key name for KV operations.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	case len(key) > MaxKeyLength:
		return fmt.Errorf("%w: key too long (max %d characters)", ErrInvalidKey, MaxKeyLength)
	case !validKeyPattern.MatchString(key):
		return fmt.Errorf("%w: only alphanumeric, dots, hyphens and underscores are allowed", ErrInvalidKey)
	case strings.HasPrefix(key, ".") || strings.HasSuffix(key, "."):
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	case strings.Contains(key, ".."):
		return fmt.Errorf("%w: key cannot contain consecutive dots", ErrInvalidKey)
	}
	return nil
}

// ValidateSubject validates a NATS subject. Wildcards are allowed.
func ValidateSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("%w: subject cannot be empty", ErrInvalidSubject)
	}
	if len(subject) > MaxSubjectLength {
		return fmt.Errorf("%w: subject too long (max %d characters)", ErrInvalidSubject, MaxSubjectLength)
	}
	if strings.ContainsAny(subject, "*>") {
		return validateWildcardSubject(subject)
	}
	if !validSubjectPattern.MatchString(subject) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidSubject, subject)
	}
	return nil
}

func validateWildcardSubject(subject string) error {
	parts := strings.Split(subject, ".")
	for i, part := range parts {
		switch part {
		case "":
			return fmt.Errorf("%w: subject contains empty token", ErrInvalidSubject)
		case ">":
			if i != len(parts)-1 {
				return fmt.Errorf("%w: > wildcard must be the last token", ErrInvalidSubject)
			}
		case "*":
		default:
			if !validTokenPattern.MatchString(part) {
				return fmt.Errorf("%w: invalid token %q", ErrInvalidSubject, part)
			}
		}
	}
	return nil
}

// ValidateBucketName validates a KV bucket name.
func ValidateBucketName(name string) error {
	switch {
	case name == "":
		return errors.New("bucket name cannot be empty")
	case len(name) > MaxBucketNameLength:
		return fmt.Errorf("bucket name too long (max %d characters)", MaxBucketNameLength)
	case !validTokenPattern.MatchString(name):
		return errors.New("bucket name may only contain alphanumeric characters, hyphens and underscores")
	case strings.HasPrefix(name, "-"):
		return errors.New("bucket name cannot start with a hyphen")
	}
	return nil
}

// ValidateValue validates a value for KV storage.
func ValidateValue(value []byte) error {
	if value == nil {
		return fmt.Errorf("%w: value cannot be nil", ErrInvalidValue)
	}
	if len(value) > MaxValueSize {
		return fmt.Errorf("%w: value too large (max %d bytes)", ErrInvalidValue, MaxValueSize)
	}
	return nil
}

// CheckConnectivity tests connectivity to a NATS server.
func CheckConnectivity(ctx context.Context, natsURL string) error {
	if err := ValidateNATSURL(natsURL); err != nil {
		return fmt.Errorf("invalid NATS URL: %w", err)
	}

	timeout := DefaultConnectivityCheckTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	nc, err := nats.Connect(natsURL,
		nats.Timeout(timeout),
		nats.MaxReconnects(0),
		nats.Name(DefaultName+".connectivity-check"),
		nats.NoCallbacksAfterClientClose(),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS server: %w", err)
	}
	defer nc.Close()

	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("connection flush failed: %w", err)
	}
	return nil
}
