// Package quic implements protocol.Transport over a single bidirectional QUIC
// stream carrying length-prefixed frames.
package quic

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/noodles/internal/core/protocol"
)

const (
	// ALPN is the application protocol negotiated during the TLS handshake.
	ALPN = "noodles"

	DefaultPort        = "50000"
	DefaultIdleTimeout = 30 * time.Second
	DefaultKeepAlive   = 15 * time.Second

	// closeGoingAway reports a peer that ended the stream without an
	// application error.
	closeGoingAway = 1001
)

// dialTarget turns quic://host[:port] into a dial address and TLS server name.
func dialTarget(raw string) (addr, host string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", errors.Wrap(protocol.ErrInvalidLocation, err.Error())
	}
	if u.Scheme != "quic" {
		return "", "", errors.Wrapf(protocol.ErrUnsupportedScheme, "%q", u.Scheme)
	}
	host = u.Hostname()
	if host == "" {
		return "", "", errors.Wrapf(protocol.ErrInvalidLocation, "no host in %q", raw)
	}
	port := u.Port()
	if port == "" {
		port = DefaultPort
	}
	return net.JoinHostPort(host, port), host, nil
}

func clientTLS(serverName string, insecure bool) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		NextProtos:         []string{ALPN},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: insecure,
	}
}

// GenerateSelfSignedTLS builds a server config for local development servers
// and tests.
func GenerateSelfSignedTLS() (*tls.Config, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"noodles"}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{certDER}, PrivateKey: privateKey}},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
