package utils

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidateAddr checks a listen address of the form [host]:port. The host is
// not resolved, so configs can be validated offline. Port 0 is allowed.
func ValidateAddr(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return errors.New("addr is required")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid addr %q: %w", addr, err)
	}
	if strings.ContainsAny(host, " /") {
		return fmt.Errorf("invalid host in addr %q", addr)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port in addr %q", addr)
	}
	return nil
}
