package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Session status codes reported by LastErrorCode. Negative values are
// local conditions, positive values are CONNACK return codes from the
// broker.
const (
	CodeConnectionTimeout = -4
	CodeConnectionLost    = -3
	CodeConnectFailed     = -2
	CodeDisconnected      = -1
	CodeConnected         = 0

	CodeBadProtocol    = 1
	CodeBadClientID    = 2
	CodeUnavailable    = 3
	CodeBadCredentials = 4
	CodeUnauthorized   = 5
)

// CodeText returns a short description of a status code.
func CodeText(code int) string {
	switch code {
	case CodeConnectionTimeout:
		return "connection timeout"
	case CodeConnectionLost:
		return "connection lost"
	case CodeConnectFailed:
		return "connect failed"
	case CodeDisconnected:
		return "disconnected"
	case CodeConnected:
		return "connected"
	case CodeBadProtocol:
		return "bad protocol version"
	case CodeBadClientID:
		return "client id rejected"
	case CodeUnavailable:
		return "server unavailable"
	case CodeBadCredentials:
		return "bad username or password"
	case CodeUnauthorized:
		return "not authorized"
	default:
		return fmt.Sprintf("code %d", code)
	}
}

// connectCode maps the outcome of a connect token to a status code.
func connectCode(token pahomqtt.Token, completed bool) int {
	if !completed {
		return CodeConnectionTimeout
	}
	if token.Error() == nil {
		return CodeConnected
	}
	if ct, ok := token.(*pahomqtt.ConnectToken); ok {
		if rc := int(ct.ReturnCode()); rc > 0 {
			return rc
		}
	}
	return CodeConnectFailed
}
