package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/SmartBin/SmartBin-Backend/internal/binsession"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newSessionCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Drive deposit sessions through the backend",
	}

	open := &cobra.Command{
		Use:   "open <bin-id>",
		Short: "Open a bin and follow the session until it closes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" {
				return errors.New("--token is required to open a session")
			}
			return followSession(cmd.Context(), opts.api, opts.token, args[0], cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(open)
	return cmd
}

// followSession opens a session on binID and prints every snapshot streamed
// back until the session is done.
func followSession(ctx context.Context, api, token, binID string, out io.Writer) error {
	snap, err := openSession(ctx, api, token, binID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "session %s opened on %s\n", snap.ID, snap.BinName)

	wsURL, err := streamURL(api, snap.ID)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("stream %s: %s", snap.ID, resp.Status)
		}
		return fmt.Errorf("stream %s: %w", snap.ID, err)
	}
	defer conn.Close()

	var last binsession.State
	for {
		var s binsession.Snapshot
		if err := conn.ReadJSON(&s); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read snapshot: %w", err)
		}
		printSnapshot(out, s, s.State != last)
		last = s.State
		if s.Done {
			return nil
		}
	}
}

func openSession(ctx context.Context, api, token, binID string) (*binsession.Snapshot, error) {
	body, err := json.Marshal(map[string]string{"bin_id": binID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(api, "/")+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return nil, fmt.Errorf("open session: %s", e.Error)
	}

	var snap binsession.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &snap, nil
}

// streamURL maps the backend base URL onto the session's websocket endpoint.
func streamURL(api, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(api, "/"))
	if err != nil {
		return "", fmt.Errorf("parse --api: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/api/sessions/" + url.PathEscape(sessionID) + "/stream"
	return u.String(), nil
}

func printSnapshot(out io.Writer, s binsession.Snapshot, changed bool) {
	if changed {
		fmt.Fprintf(out, "-> %s\n", s.State)
	}
	if s.State == binsession.StateOpen && s.CountdownRemaining > 0 && !changed {
		fmt.Fprintf(out, "   %ds left\n", s.CountdownRemaining)
	}
	if s.Detection != nil && changed && s.State == binsession.StateDetecting {
		fmt.Fprintf(out, "   detected %s (%.0f%%), +%d points\n",
			s.Detection.MaterialType, s.Detection.Confidence*100, s.Detection.PointsAwarded)
	}
	if s.Done {
		fmt.Fprintf(out, "session closed (%s)\n", s.CloseReason)
		if s.PointsAfter != nil {
			fmt.Fprintf(out, "balance: %d points\n", *s.PointsAfter)
		}
		for _, w := range s.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
	}
}
