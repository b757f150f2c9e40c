package redis

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is used when an address has no port.
const DefaultPort = "6379"

// ConnectionInfo holds everything needed to open a connection.
// It is resolved once and not modified afterwards.
type ConnectionInfo struct {
	// Network is "tcp" or "unix".
	Network string

	// Address is host:port for tcp or the socket path for unix.
	Address string

	// Username and Password are sent with AUTH when Password is set.
	// Username is optional (servers before ACLs only accept a password).
	Username string
	Password string

	// DB is selected right after connecting when non-zero.
	DB int
}

// TCP returns the ConnectionInfo for a host:port address on database 0.
func TCP(addr string) ConnectionInfo {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}
	return ConnectionInfo{Network: "tcp", Address: addr}
}

func (i ConnectionInfo) String() string {
	if i.Network == "unix" {
		return "unix://" + i.Address + "?db=" + strconv.Itoa(i.DB)
	}
	return "redis://" + i.Address + "/" + strconv.Itoa(i.DB)
}

// ParseURL parses redis:// and unix:// URLs.
//
//	redis://[[user]:password@]host[:port][/db]
//	unix://[[user]:password@]/path/to/socket[?db=N]
func ParseURL(raw string) (ConnectionInfo, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ConnectionInfo{}, fmt.Errorf("redis: invalid url: %w", err)
	}

	var info ConnectionInfo
	if u.User != nil {
		if password, ok := u.User.Password(); ok {
			info.Username = u.User.Username()
			info.Password = password
		} else {
			// redis://secret@host is a password without a username
			info.Password = u.User.Username()
		}
	}

	switch u.Scheme {
	case "redis":
		if u.Hostname() == "" {
			return ConnectionInfo{}, fmt.Errorf("redis: missing host in url %q", raw)
		}
		port := u.Port()
		if port == "" {
			port = DefaultPort
		}
		info.Network = "tcp"
		info.Address = net.JoinHostPort(u.Hostname(), port)

		if path := strings.Trim(u.Path, "/"); path != "" {
			info.DB, err = parseDB(path)
			if err != nil {
				return ConnectionInfo{}, err
			}
		}

	case "unix", "redis+unix":
		if u.Path == "" {
			return ConnectionInfo{}, fmt.Errorf("redis: missing socket path in url %q", raw)
		}
		info.Network = "unix"
		info.Address = u.Path

	default:
		return ConnectionInfo{}, fmt.Errorf("redis: unsupported url scheme %q", u.Scheme)
	}

	if db := u.Query().Get("db"); db != "" {
		info.DB, err = parseDB(db)
		if err != nil {
			return ConnectionInfo{}, err
		}
	}

	return info, nil
}

func parseDB(s string) (int, error) {
	db, err := strconv.Atoi(s)
	if err != nil || db < 0 {
		return 0, fmt.Errorf("redis: invalid database index %q", s)
	}
	return db, nil
}
