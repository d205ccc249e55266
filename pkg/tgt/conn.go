package tgt

import (
	"context"
	"strings"

	"k8s.io/klog/v2"
)

// Connections enumerates the target's iSCSI sessions as a mapping of
// initiator IP to session id to connection ids, optionally filtered to one
// initiator address.
func (t *Target) Connections(ctx context.Context, initiatorIP string) (map[string]map[string][]string, error) {
	out := t.execute(ctx, "conn", "--op", "show", "--tid", t.id)

	conns := map[string]map[string][]string{}
	var session, connection string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if v, ok := strings.CutPrefix(line, "Session: "); ok {
			session = v
			connection = ""
			continue
		}
		if v, ok := strings.CutPrefix(line, "Connection: "); ok {
			connection = v
			continue
		}
		v, ok := strings.CutPrefix(line, "IP Address: ")
		if !ok || session == "" || connection == "" {
			continue
		}
		if initiatorIP != "" && v != initiatorIP {
			continue
		}
		if conns[v] == nil {
			conns[v] = map[string][]string{}
		}
		conns[v][session] = append(conns[v][session], connection)
	}
	return conns, nil
}

// CloseConnection tears down one connection of one session.
func (t *Target) CloseConnection(ctx context.Context, sessionID, connectionID string) error {
	return t.mutate(ctx, "conn", "--op", "delete", "--tid", t.id,
		"--sid", sessionID, "--cid", connectionID)
}

// CloseInitiatorConnections tears down every connection held by the given
// initiator IP.
func (t *Target) CloseInitiatorConnections(ctx context.Context, initiatorIP string) error {
	conns, err := t.Connections(ctx, initiatorIP)
	if err != nil {
		return err
	}
	return t.closeConnections(ctx, conns)
}

// CloseAllConnections tears down every connection of the target.
func (t *Target) CloseAllConnections(ctx context.Context) error {
	conns, err := t.Connections(ctx, "")
	if err != nil {
		return err
	}
	return t.closeConnections(ctx, conns)
}

func (t *Target) closeConnections(ctx context.Context, conns map[string]map[string][]string) error {
	for ip, sessions := range conns {
		for sid, cids := range sessions {
			for _, cid := range cids {
				klog.V(4).Infof("Closing connection %s/%s of %s on target %s", sid, cid, ip, t.id)
				if err := t.CloseConnection(ctx, sid, cid); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
