package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/magiconair/properties"
	"github.com/spf13/afero"
)

const (
	serverKeyPrefix = "server"
	myIDKey         = "myid"
)

// parsed is the outcome of the single read of the configuration file.
type parsed struct {
	topology Topology
	topoErr  error

	myID    uint16
	hasMyID bool
	myIDErr error
}

// readEntries loads every key=value pair of a properties file. Keys keep
// their case and dots; ${...} references are not expanded.
func readEntries(fs afero.Fs, path string) (map[string]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}

	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEntry, path, err)
	}

	entries := make(map[string]string, props.Len())
	for _, key := range props.Keys() {
		value, _ := props.Get(key)
		entries[key] = strings.TrimSpace(value)
	}
	return entries, nil
}

// parseEntries builds the topology and captures myid in one pass.
func parseEntries(entries map[string]string, heartbeatOffset int) parsed {
	var out parsed

	keys := make([]string, 0, len(entries))
	for key := range entries {
		if strings.HasPrefix(key, serverKeyPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	nodes := make([]Node, 0, len(keys))
	seen := make(map[uint16]string, len(keys))
	for _, key := range keys {
		value := entries[key]
		n, err := parseServer(key, value, heartbeatOffset)
		if err != nil {
			out.topoErr = err
			break
		}
		if prev, dup := seen[n.ID]; dup {
			out.topoErr = &EntryError{Key: key, Value: value, Err: fmt.Errorf("node id %d already declared by %s", n.ID, prev)}
			break
		}
		seen[n.ID] = key
		nodes = append(nodes, n)
	}
	if out.topoErr == nil {
		out.topology = newTopology(nodes)
	}

	if raw, ok := entries[myIDKey]; ok {
		id, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			out.myIDErr = &EntryError{Key: myIDKey, Value: raw, Err: err}
		} else {
			out.myID = uint16(id)
			out.hasMyID = true
		}
	}
	return out
}

// parseServer decodes "server<N>=ip:port" and "server.<N>=ip:port".
func parseServer(key, value string, heartbeatOffset int) (Node, error) {
	suffix := strings.TrimPrefix(strings.TrimPrefix(key, serverKeyPrefix), ".")
	id, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return Node{}, &EntryError{Key: key, Value: value, Err: fmt.Errorf("node id: %w", err)}
	}

	i := strings.Index(value, ":")
	if i < 0 {
		return Node{}, &EntryError{Key: key, Value: value, Err: errors.New("missing ':' between ip and port")}
	}
	port, err := strconv.ParseInt(strings.TrimSpace(value[i+1:]), 10, 32)
	if err != nil {
		return Node{}, &EntryError{Key: key, Value: value, Err: fmt.Errorf("client port: %w", err)}
	}

	return Node{
		ID:            uint16(id),
		IP:            strings.TrimSpace(value[:i]),
		ClientPort:    int(port),
		HeartbeatPort: int(port) - heartbeatOffset,
	}, nil
}
