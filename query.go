package botmaster

import (
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"
)

// Query opcodes understood by game servers.
const (
	queryInfo    = 'i'
	queryRules   = 'r'
	queryPlayers = 'c'
	queryRcon    = 'x'
)

// queryReplyHeader is the echo of the request prefix a server prepends
// to every reply.
const queryReplyHeader = 11

// ServerInfo is the result of an info query.
type ServerInfo struct {
	Passworded bool
	Players    int
	MaxPlayers int
	Hostname   string
	Gamemode   string
	Language   string
}

// PlayerEntry is one row of a player-list query.
type PlayerEntry struct {
	ID    int
	Name  string
	Score int
	Ping  int
}

// QueryClient speaks the UDP query protocol game servers answer on
// their listen port.
type QueryClient struct {
	timeout time.Duration
	decoder *TextDecoder
}

// NewQueryClient builds a client with the given per-request timeout.
func NewQueryClient(timeout time.Duration, decoder *TextDecoder) *QueryClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if decoder == nil {
		decoder = NewTextDecoder("GBK")
	}
	return &QueryClient{timeout: timeout, decoder: decoder}
}

// buildPacket frames a query request: magic, the server's address, and
// the opcode. The address octets go out reversed (the protocol carries
// the host-order IP least significant byte first); the port is little
// endian. Extra is appended verbatim for rcon.
func buildPacket(ip net.IP, port int, opcode byte, extra []byte) []byte {
	p := make([]byte, 0, 11+len(extra))
	p = append(p, 'S', 'A', 'M', 'P')
	ip4 := ip.To4()
	p = append(p, ip4[3], ip4[2], ip4[1], ip4[0])
	p = append(p, byte(port&0xFF), byte(port>>8&0xFF))
	p = append(p, opcode)
	return append(p, extra...)
}

func (c *QueryClient) roundTrip(host string, port int, opcode byte, extra []byte) ([]byte, time.Duration, error) {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, 0, fmt.Errorf("resolve %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, 0, fmt.Errorf("dial %s:%d: %w", host, port, err)
	}
	defer conn.Close()

	start := time.Now()
	conn.SetDeadline(start.Add(c.timeout))
	if _, err := conn.Write(buildPacket(addr.IP, port, opcode, extra)); err != nil {
		return nil, 0, fmt.Errorf("send query: %w", err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, 0, fmt.Errorf("read query reply: %w", err)
	}
	ping := time.Since(start)
	if n < queryReplyHeader {
		return nil, 0, fmt.Errorf("query reply too short: %d bytes", n)
	}
	return buf[queryReplyHeader:n], ping, nil
}

// Info fetches the basic server description.
func (c *QueryClient) Info(host string, port int) (ServerInfo, time.Duration, error) {
	body, ping, err := c.roundTrip(host, port, queryInfo, nil)
	if err != nil {
		return ServerInfo{}, 0, err
	}
	info, err := ParseInfoReply(body, c.decoder)
	return info, ping, err
}

// ParseInfoReply decodes the body of an info reply, header already
// stripped.
func ParseInfoReply(body []byte, decoder *TextDecoder) (ServerInfo, error) {
	r := NewReader(body)
	info := ServerInfo{
		Passworded: r.U8() != 0,
		Players:    int(r.U16()),
		MaxPlayers: int(r.U16()),
	}
	info.Hostname = decoder.EnsureUTF8(r.String32())
	info.Gamemode = decoder.EnsureUTF8(r.String32())
	info.Language = decoder.EnsureUTF8(r.String32())
	if r.Truncated() {
		return ServerInfo{}, fmt.Errorf("truncated info reply")
	}
	return info, nil
}

// Rules fetches the server rule table.
func (c *QueryClient) Rules(host string, port int) (map[string]string, error) {
	body, _, err := c.roundTrip(host, port, queryRules, nil)
	if err != nil {
		return nil, err
	}
	return ParseRulesReply(body, c.decoder)
}

// ParseRulesReply decodes the body of a rules reply.
func ParseRulesReply(body []byte, decoder *TextDecoder) (map[string]string, error) {
	r := NewReader(body)
	count := int(r.U16())
	rules := make(map[string]string, count)
	for i := 0; i < count && !r.Truncated(); i++ {
		key := decoder.EnsureUTF8(r.String8())
		value := decoder.EnsureUTF8(r.String8())
		rules[key] = value
	}
	if r.Truncated() {
		return nil, fmt.Errorf("truncated rules reply")
	}
	return rules, nil
}

// Players fetches the connected player list.
func (c *QueryClient) Players(host string, port int) ([]PlayerEntry, error) {
	body, _, err := c.roundTrip(host, port, queryPlayers, nil)
	if err != nil {
		return nil, err
	}
	return ParsePlayersReply(body, c.decoder)
}

// ParsePlayersReply decodes the body of a player-list reply.
func ParsePlayersReply(body []byte, decoder *TextDecoder) ([]PlayerEntry, error) {
	r := NewReader(body)
	count := int(r.U16())
	players := make([]PlayerEntry, 0, count)
	for i := 0; i < count && !r.Truncated(); i++ {
		id := int(r.U8())
		name := decoder.EnsureUTF8(r.String8())
		score := int(int32(r.U32()))
		ping := int(int32(r.U32()))
		players = append(players, PlayerEntry{ID: id, Name: name, Score: score, Ping: ping})
	}
	if r.Truncated() {
		return nil, fmt.Errorf("truncated players reply")
	}
	return players, nil
}

// Rcon runs a remote console command and returns the output lines.
func (c *QueryClient) Rcon(host string, port int, password, command string) ([]string, error) {
	var extra []byte
	extra = binary.LittleEndian.AppendUint16(extra, uint16(len(password)))
	extra = append(extra, password...)
	extra = binary.LittleEndian.AppendUint16(extra, uint16(len(command)))
	extra = append(extra, command...)

	body, _, err := c.roundTrip(host, port, queryRcon, extra)
	if err != nil {
		return nil, err
	}
	return ParseRconReply(body, c.decoder), nil
}

// ParseRconReply decodes the body of an rcon reply. A zero-length
// record terminates the output.
func ParseRconReply(body []byte, decoder *TextDecoder) []string {
	r := NewReader(body)
	var lines []string
	for r.Remaining() > 0 {
		line := decoder.EnsureUTF8(r.String16())
		if r.Truncated() || line == "" {
			break
		}
		lines = append(lines, line)
	}
	return lines
}

// FormatRules flattens a rule table into a stable display string.
func FormatRules(rules map[string]string) string {
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+rules[k])
	}
	return strings.Join(parts, ", ")
}
