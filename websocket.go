package loom

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// UpgradeWebSocket performs the RFC 6455 handshake over req/res and, on
// success, hijacks the connection and hands it to gorilla/websocket's
// frame reader/writer. loom itself implements only the handshake (request
// validation, Sec-WebSocket-Accept computation, the 101 response); actual
// message framing after the handshake is gorilla/websocket's, since
// implementing a second WebSocket frame codec alongside an established
// one would add nothing. Grounded on the teacher's response.go
// WebSocket() method, adapted from upgrading an http.ResponseWriter to
// upgrading loom's own hijacked net.Conn.
func UpgradeWebSocket(req *Request, res *Response, subprotocols []string) (*websocket.Conn, error) {
	if !strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		return nil, NewError(KindBadRequest, "loom: missing Upgrade: websocket header", nil)
	}
	if !req.Header.HasToken("Connection", "Upgrade") {
		return nil, NewError(KindBadRequest, "loom: missing Connection: Upgrade header", nil)
	}
	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return nil, NewError(KindBadRequest, "loom: missing Sec-WebSocket-Key header", nil)
	}
	if req.Header.Get("Sec-WebSocket-Version") != "13" {
		return nil, NewError(KindBadRequest, "loom: unsupported Sec-WebSocket-Version", nil)
	}

	accept := computeAcceptKey(key)

	nc, br, err := req.Hijack()
	if err != nil {
		return nil, err
	}

	proto := negotiateSubprotocol(req.Header.Get("Sec-WebSocket-Protocol"), subprotocols)

	if err := writeHandshakeResponse(nc, accept, proto); err != nil {
		nc.Close()
		return nil, NewError(KindNetwork, "loom: writing WebSocket handshake response failed", err)
	}

	return websocket.NewConn(nc, true, 4096, 4096, br, nil), nil
}

func computeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func negotiateSubprotocol(requested string, supported []string) string {
	if requested == "" || len(supported) == 0 {
		return ""
	}
	for _, want := range strings.Split(requested, ",") {
		want = strings.TrimSpace(want)
		for _, have := range supported {
			if strings.EqualFold(want, have) {
				return have
			}
		}
	}
	return ""
}

func writeHandshakeResponse(nc net.Conn, accept, proto string) error {
	h := NewHeader()
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Sec-WebSocket-Accept", accept)
	if proto != "" {
		h.Set("Sec-WebSocket-Protocol", proto)
	}

	w := bufio.NewWriter(nc)
	if _, err := w.WriteString("HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return err
	}
	if _, err := h.WriteTo(w); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}
