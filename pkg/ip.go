package pkg

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ReadUserIP returns the client IP. X-Real-Ip and X-Forwarded-For are only
// read when trustProxyHeaders is set, i.e. behind a reverse proxy that
// overwrites them.
func ReadUserIP(r *http.Request, trustProxyHeaders bool) (string, error) {
	var ipAddr string
	if trustProxyHeaders {
		ipAddr = r.Header.Get("X-Real-Ip")
		if ipAddr == "" {
			// X-Forwarded-For: client, proxy1, proxy2
			if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
				ipAddr = strings.TrimSpace(strings.Split(fwd, ",")[0])
			}
		}
	}
	if ipAddr == "" {
		ipAddr = r.RemoteAddr
	}

	if host, _, err := net.SplitHostPort(ipAddr); err == nil {
		ipAddr = host
	}

	if net.ParseIP(ipAddr) == nil {
		return "", fmt.Errorf("ip addr %s is invalid", ipAddr)
	}

	return ipAddr, nil
}
