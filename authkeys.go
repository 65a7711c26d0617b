package botmaster

import (
	_ "embed"
	"strings"
	"sync"
)

// authkeys.txt holds 512 "challenge:response" pairs for the join auth
// handshake. The table is small enough that a linear scan is fine.
//
//go:embed authkeys.txt
var authKeyData string

var (
	authKeysOnce sync.Once
	authKeys     [][2]string
)

func loadAuthKeys() {
	for _, line := range strings.Split(authKeyData, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		challenge, response, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		authKeys = append(authKeys, [2]string{challenge, response})
	}
}

// authKeyResponse resolves the auth salt sent by the server to its
// expected answer. Unknown salts return false and the connection attempt
// is left to time out.
func authKeyResponse(salt string) (string, bool) {
	authKeysOnce.Do(loadAuthKeys)
	for _, kv := range authKeys {
		if kv[0] == salt {
			return kv[1], true
		}
	}
	return "", false
}
