package botmaster

import (
	"context"
	"net"
	"sort"
	"sync"
	"testing"
	"time"
)

// startFakeQueryServer answers info and rules queries on a loopback UDP
// socket, echoing the 11-byte request prefix the way real servers do.
func startFakeQueryServer(t *testing.T, info ServerInfo, rules map[string]string) (string, int) {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pc.Close() })

	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			if n < queryReplyHeader {
				continue
			}
			var body []byte
			switch buf[10] {
			case queryInfo:
				pw := uint8(0)
				if info.Passworded {
					pw = 1
				}
				body = NewWriter().
					U8(pw).
					U16(uint16(info.Players)).
					U16(uint16(info.MaxPlayers)).
					String32(info.Hostname).
					String32(info.Gamemode).
					String32(info.Language).
					Bytes()
			case queryRules:
				keys := make([]string, 0, len(rules))
				for k := range rules {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				w := NewWriter().U16(uint16(len(keys)))
				for _, k := range keys {
					w.String8(k).String8(rules[k])
				}
				body = w.Bytes()
			default:
				continue
			}
			reply := append(append([]byte(nil), buf[:queryReplyHeader]...), body...)
			pc.WriteTo(reply, addr)
		}
	}()

	return "127.0.0.1", pc.LocalAddr().(*net.UDPAddr).Port
}

type recordingServerStore struct {
	mu      sync.Mutex
	servers []ServerRecord
	updates map[int64]ServerInfo
	rules   map[int64]string
}

func (s *recordingServerStore) ListServers(ctx context.Context) ([]ServerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ServerRecord(nil), s.servers...), nil
}

func (s *recordingServerStore) UpdateServerStatus(ctx context.Context, id int64, info ServerInfo, rule string, ping time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = make(map[int64]ServerInfo)
		s.rules = make(map[int64]string)
	}
	s.updates[id] = info
	s.rules[id] = rule
	return nil
}

func TestQueryClientInfo(t *testing.T) {
	want := ServerInfo{
		Passworded: true,
		Players:    5,
		MaxPlayers: 50,
		Hostname:   "Test Server",
		Gamemode:   "freeroam",
		Language:   "English",
	}
	host, port := startFakeQueryServer(t, want, nil)

	c := NewQueryClient(2*time.Second, nil)
	got, ping, err := c.Info(host, port)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Info = %+v, want %+v", got, want)
	}
	if ping <= 0 {
		t.Errorf("ping = %v", ping)
	}
}

func TestQueryClientRules(t *testing.T) {
	host, port := startFakeQueryServer(t, ServerInfo{}, map[string]string{
		"weather": "10",
		"mapname": "SA",
	})

	c := NewQueryClient(2*time.Second, nil)
	rules, err := c.Rules(host, port)
	if err != nil {
		t.Fatal(err)
	}
	if rules["weather"] != "10" || rules["mapname"] != "SA" {
		t.Errorf("rules = %v", rules)
	}
}

func TestQuerierRefreshAll(t *testing.T) {
	info := ServerInfo{Players: 3, MaxPlayers: 20, Hostname: "Up", Gamemode: "dm", Language: "en"}
	host, port := startFakeQueryServer(t, info, map[string]string{"weather": "1"})

	store := &recordingServerStore{
		servers: []ServerRecord{
			{ID: 1, Host: host, Port: port},
			// Nothing listens here; the pass must continue past it.
			{ID: 2, Host: "127.0.0.1", Port: 1},
		},
	}
	q := NewQuerier(store, NewQueryClient(500*time.Millisecond, nil), time.Minute)
	q.RefreshAll(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	if got, ok := store.updates[1]; !ok || got != info {
		t.Errorf("server 1 update = %+v ok=%v", got, ok)
	}
	if store.rules[1] != "weather=1" {
		t.Errorf("server 1 rule = %q", store.rules[1])
	}
	if _, ok := store.updates[2]; ok {
		t.Error("unreachable server received an update")
	}
}
