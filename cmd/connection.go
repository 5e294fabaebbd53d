// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ben Rosenfeld

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection provides a common interface for reading DMX frames from
// serial or WebSocket sources. ReadFrame returns one frame per call:
// the serial source delimits frames on line-idle gaps, the WebSocket
// source on message boundaries.
type Connection interface {
	io.Closer
	ReadFrame(p []byte) (int, error)
}

// SerialConnection wraps a serial port opened at the DMX line rate.
type SerialConnection struct {
	port serial.Port
}

// ReadFrame accumulates octets until the line goes idle. A break
// arriving as a leading zero octet after silence is stripped so the
// returned frame starts at the start code.
func (s *SerialConnection) ReadFrame(p []byte) (int, error) {
	buf := make([]byte, 64)
	n := 0
	for {
		k, err := s.port.Read(buf)
		if err != nil {
			return n, err
		}
		if k == 0 {
			// Read timeout: frame boundary if we have data.
			if n > 0 {
				return n, nil
			}
			continue
		}
		data := buf[:k]
		if n == 0 && data[0] == 0 && k > 1 {
			data = data[1:]
		}
		n += copy(p[n:], data)
		if n == len(p) {
			return n, nil
		}
	}
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection wraps a WebSocket capture feed that delivers one
// DMX frame per binary message.
type WebSocketConnection struct {
	conn   *websocket.Conn
	closed bool // Track if connection has failed/closed
}

func (w *WebSocketConnection) ReadFrame(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		// Only binary messages carry frames.
		if messageType != websocket.BinaryMessage {
			continue
		}
		return copy(p, data), nil
	}
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port at the DMX line rate (8N2)
// with a short read timeout used for frame delimiting.
func OpenSerialConnection(portName string) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: 250000,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %v", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("DMX_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection based on flags
func OpenConnection() (Connection, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		conn, err := OpenSerialConnection(portName)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ 250000 baud", portName), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}
