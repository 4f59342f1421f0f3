// Package device resolves the identity of the local wearable.
package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/telepair/pulsewatch/internal/observer"
)

const maxIDLength = 64

// hostInfo is swapped in tests.
var hostInfo = host.InfoWithContext

// Local returns the local device. A non-empty override is used as the id;
// otherwise the id is derived from the host name, with the host id as a
// fallback.
func Local(ctx context.Context, override string) (observer.Device, error) {
	if id := Sanitize(override); id != "" {
		return observer.Device{ID: id, Name: override}, nil
	}

	info, err := hostInfo(ctx)
	if err != nil {
		return observer.Device{}, fmt.Errorf("failed to get host info: %w", err)
	}

	id := Sanitize(info.Hostname)
	if id == "" {
		id = Sanitize(info.HostID)
	}
	if id == "" {
		return observer.Device{}, fmt.Errorf("cannot derive device id from host %q", info.Hostname)
	}

	name := info.Hostname
	if info.Platform != "" {
		name = fmt.Sprintf("%s (%s %s)", info.Hostname, info.Platform, info.PlatformVersion)
	}
	return observer.Device{ID: id, Name: strings.TrimSpace(name)}, nil
}

// Sanitize turns s into a lowercase subject token: letters, digits, '-' and
// '_' are kept, runs of anything else become a single '-'.
func Sanitize(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	id := strings.Trim(b.String(), "-")
	if len(id) > maxIDLength {
		id = strings.TrimRight(id[:maxIDLength], "-")
	}
	return id
}
