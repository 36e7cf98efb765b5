package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/loykin/librebrowser"
	"github.com/loykin/librebrowser/pkg/client"
)

// apiBaseURL resolves the daemon URL from --api-url or the config's
// [server] section.
func apiBaseURL(g *GlobalFlags) (string, error) {
	if g.APIUrl != "" {
		return strings.TrimRight(g.APIUrl, "/"), nil
	}
	cfg, err := librebrowser.LoadConfig(g.ConfigPath)
	if err != nil {
		return "", fmt.Errorf("error loading config: %w", err)
	}
	host, port, err := net.SplitHostPort(cfg.Server.Listen)
	if err != nil {
		return "", fmt.Errorf("server.listen %q: %w", cfg.Server.Listen, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + cfg.Server.BasePath, nil
}

func newClient(g *GlobalFlags) (*client.Client, error) {
	base, err := apiBaseURL(g)
	if err != nil {
		return nil, err
	}
	return client.New(client.Config{BaseURL: base, Timeout: g.APITimeout}), nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
