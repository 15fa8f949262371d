package cmd

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// resolveAddr picks the listen address from the serve command's inputs.
// Precedence: positional argument, then --addr flag, then the
// server_addr config key. The winner is validated before use.
func resolveAddr(positional, flagAddr, cfgAddr string) (string, error) {
	addr := cfgAddr
	if flagAddr != "" {
		addr = flagAddr
	}
	if positional != "" {
		addr = positional
	}

	if err := validateAddr(addr); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return addr, nil
}

// validateAddr validates the server address format.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in host:port format: %w", err)
	}

	if host != "" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.ContainsAny(host, " \t\n") {
				return fmt.Errorf("invalid host: %s", host)
			}
		}
	}

	if port == "" {
		return fmt.Errorf("port is required")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if portNum < 0 || portNum > 65535 {
		return fmt.Errorf("port must be 0-65535 (0 = auto-assign), got %d", portNum)
	}

	return nil
}
