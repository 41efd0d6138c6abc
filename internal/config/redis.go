package config

import (
	"net"
	neturl "net/url"
	"strconv"
	"strings"
)

// URLValue returns the go-redis URL used by the saved hint cache and the
// session store. An explicit url wins over the structured fields.
func (c RedisRuntimeConfig) URLValue() string {
	if u := normalizeRedisRawURL(c.URL); u != "" {
		return u
	}
	u := &neturl.URL{
		Scheme:   c.scheme(),
		Host:     c.addr(),
		Path:     "/" + strconv.Itoa(c.db()),
		User:     c.userinfo(),
		RawQuery: c.query(),
	}
	return u.String()
}

func (c RedisRuntimeConfig) addr() string {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultRedisHost
	}
	port := c.Port
	if port == 0 {
		port = defaultRedisPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (c RedisRuntimeConfig) db() int {
	if c.DB < 0 {
		return defaultRedisDB
	}
	return c.DB
}

// scheme honours an explicit redis/rediss scheme, otherwise TLS decides.
func (c RedisRuntimeConfig) scheme() string {
	switch s := strings.ToLower(strings.TrimSpace(c.Scheme)); s {
	case "redis", "rediss":
		return s
	}
	if c.TLS {
		return "rediss"
	}
	return "redis"
}

func (c RedisRuntimeConfig) userinfo() *neturl.Userinfo {
	username := strings.TrimSpace(c.Username)
	password := strings.TrimSpace(c.Password)
	switch {
	case password != "":
		return neturl.UserPassword(username, password)
	case username != "":
		return neturl.User(username)
	}
	return nil
}

func (c RedisRuntimeConfig) query() string {
	query := neturl.Values{}
	for key, value := range c.Params {
		k, v := strings.TrimSpace(key), strings.TrimSpace(value)
		if k != "" && v != "" {
			query.Set(k, v)
		}
	}
	return query.Encode()
}

func normalizeRedisRawURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
		return trimmed
	}
	return "redis://" + trimmed
}
