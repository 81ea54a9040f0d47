package smtp

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"io"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testServer is a minimal in-process SMTP relay.
type testServer struct {
	listener net.Listener

	startTLS      *tls.Config // advertise STARTTLS when set
	advertiseAuth bool
	acceptAuth    bool
	authMechs     []string // PLAIN and LOGIN when empty
	rejectRcpt    bool
	silent        bool // accept connections but never greet

	mx       sync.Mutex
	conns    int
	commands []string
	messages []string
	authUser string
}

type serverOption func(*testServer)

func withAuth(accept bool) serverOption {
	return func(s *testServer) {
		s.advertiseAuth = true
		s.acceptAuth = accept
	}
}

func withAuthMechanisms(mechs ...string) serverOption {
	return func(s *testServer) {
		s.advertiseAuth = true
		s.acceptAuth = true
		s.authMechs = mechs
	}
}

func withStartTLS(t *testing.T) serverOption {
	return func(s *testServer) { s.startTLS = selfSignedTLS(t) }
}

func withRejectedRecipients() serverOption {
	return func(s *testServer) { s.rejectRcpt = true }
}

func withSilence() serverOption {
	return func(s *testServer) { s.silent = true }
}

func startTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to start SMTP server")

	return serveOn(t, listener, opts...)
}

// startImplicitTLSServer speaks SMTP inside TLS from the first byte.
func startImplicitTLSServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	listener, err := tls.Listen("tcp", "127.0.0.1:0", selfSignedTLS(t))
	require.NoError(t, err, "failed to start SMTPS server")

	return serveOn(t, listener, opts...)
}

func serveOn(t *testing.T, listener net.Listener, opts ...serverOption) *testServer {
	s := &testServer{listener: listener}
	for _, opt := range opts {
		opt(s)
	}

	go s.accept()
	t.Cleanup(func() { _ = listener.Close() })

	return s
}

func (s *testServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *testServer) config() Config {
	return Config{Host: "127.0.0.1", Port: s.port(), From: "jobs@velocity.dev"}
}

func (s *testServer) transportConfig() TransportConfig {
	tc := Build(s.config())
	tc.ConnectTimeout = 2 * time.Second
	tc.GreetingTimeout = 2 * time.Second
	tc.SocketTimeout = 2 * time.Second
	return tc
}

func (s *testServer) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed
		}

		s.mx.Lock()
		s.conns++
		s.mx.Unlock()

		go func() {
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *testServer) handle(conn net.Conn) {
	if s.silent {
		_, _ = io.Copy(io.Discard, conn)
		return
	}

	_, secure := conn.(*tls.Conn)
	reader := bufio.NewReader(conn)
	reply := func(lines ...string) {
		_, _ = io.WriteString(conn, strings.Join(lines, "\r\n")+"\r\n")
	}

	reply("220 localhost ESMTP test relay")

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.record(line)
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			ext := []string{"250-localhost greets you"}
			if s.startTLS != nil && !secure {
				ext = append(ext, "250-STARTTLS")
			}
			if s.advertiseAuth {
				ext = append(ext, "250-AUTH "+strings.Join(s.mechanisms(), " "))
			}
			ext = append(ext, "250 SIZE 10240000")
			reply(ext...)
		case upper == "STARTTLS":
			reply("220 2.0.0 Ready to start TLS")
			tlsConn := tls.Server(conn, s.startTLS)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			reader = bufio.NewReader(conn)
			secure = true
		case strings.HasPrefix(upper, "AUTH"):
			fields := strings.Fields(line)
			if len(fields) < 2 || !s.offers(fields[1]) {
				reply("504 5.7.4 Unrecognized authentication type")
				continue
			}

			var user string
			switch strings.ToUpper(fields[1]) {
			case "PLAIN":
				if len(fields) > 2 {
					raw, _ := base64.StdEncoding.DecodeString(fields[2])
					if parts := strings.Split(string(raw), "\x00"); len(parts) == 3 {
						user = parts[1]
					}
				}
			case "LOGIN":
				reply("334 " + base64.StdEncoding.EncodeToString([]byte("Username:")))
				answer, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				raw, _ := base64.StdEncoding.DecodeString(strings.TrimSpace(answer))
				user = string(raw)

				reply("334 " + base64.StdEncoding.EncodeToString([]byte("Password:")))
				if _, err := reader.ReadString('\n'); err != nil {
					return
				}
			}

			s.mx.Lock()
			s.authUser = user
			s.mx.Unlock()

			if s.acceptAuth {
				reply("235 2.7.0 Authentication successful")
			} else {
				reply("535 5.7.8 Username and Password not accepted")
			}
		case line == "*":
			reply("501 5.0.0 Authentication cancelled")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			reply("250 2.1.0 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			if s.rejectRcpt {
				reply("550 5.1.1 No such user here")
			} else {
				reply("250 2.1.5 OK")
			}
		case upper == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")

			var msg strings.Builder
			for {
				dataLine, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				if dataLine == ".\r\n" {
					break
				}
				msg.WriteString(strings.TrimPrefix(dataLine, "."))
			}

			s.mx.Lock()
			s.messages = append(s.messages, msg.String())
			s.mx.Unlock()
			reply("250 2.0.0 OK queued")
		case upper == "NOOP", upper == "RSET":
			reply("250 2.0.0 OK")
		case upper == "QUIT":
			reply("221 2.0.0 Bye")
			return
		default:
			reply("500 5.5.1 Unrecognized command")
		}
	}
}

func (s *testServer) mechanisms() []string {
	if len(s.authMechs) == 0 {
		return []string{"PLAIN", "LOGIN"}
	}
	return s.authMechs
}

func (s *testServer) offers(mech string) bool {
	for _, m := range s.mechanisms() {
		if strings.EqualFold(m, mech) {
			return true
		}
	}
	return false
}

func (s *testServer) authenticatedAs() string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.authUser
}

func (s *testServer) record(line string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.commands = append(s.commands, line)
}

func (s *testServer) sent() []string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]string(nil), s.messages...)
}

func (s *testServer) connections() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.conns
}

func (s *testServer) sawCommand(prefix string) bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	for _, c := range s.commands {
		if strings.HasPrefix(strings.ToUpper(c), prefix) {
			return true
		}
	}
	return false
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

// selfSignedTLS builds a server config with an in-memory certificate for 127.0.0.1.
func selfSignedTLS(t *testing.T) *tls.Config {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		MinVersion:   tls.VersionTLS12,
	}
}
