package store

import (
	"encoding/json"
	"sort"
	"time"
)

// SchemaVersion is the current on-disk catalog version (see §6.2).
const SchemaVersion = 1

// ProcessRecord is one supervised process, persisted verbatim across
// invocations of the control tool (spec §3.1).
type ProcessRecord struct {
	ID         int               `json:"id"`
	Name       string            `json:"name"`
	Command    string            `json:"command"`
	PID        int               `json:"pid"`
	StartedAt  time.Time         `json:"started_at"`
	Cwd        string            `json:"cwd"`
	Env        map[string]string `json:"env"`
	Restart    bool              `json:"restart"`
	Group      string            `json:"group,omitempty"`
	StdoutPath string            `json:"stdout_path"`
	StderrPath string            `json:"stderr_path"`

	// extra holds fields a newer Sentinel wrote that this version doesn't
	// know about. Round-tripped verbatim through UnmarshalJSON/MarshalJSON
	// so an older binary never silently discards them (spec §4.1).
	extra map[string]json.RawMessage
}

var processRecordKnownKeys = map[string]bool{
	"id": true, "name": true, "command": true, "pid": true, "started_at": true,
	"cwd": true, "env": true, "restart": true, "group": true,
	"stdout_path": true, "stderr_path": true,
}

// UnmarshalJSON decodes the known fields normally and stashes anything else
// under extra so a later MarshalJSON can re-emit it untouched.
func (p *ProcessRecord) UnmarshalJSON(data []byte) error {
	type alias ProcessRecord
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = ProcessRecord(a)
	p.extra = extractUnknown(data, processRecordKnownKeys)
	return nil
}

// MarshalJSON re-emits the known fields plus whatever extra carried in from
// a newer schema, so a load-then-save cycle never drops data this version
// doesn't understand the shape of.
func (p ProcessRecord) MarshalJSON() ([]byte, error) {
	type alias ProcessRecord
	return mergeExtra(alias(p), p.extra)
}

// GroupRecord is a named set of process IDs sharing an environment overlay
// (spec §3.2). Members is kept in the order IDs were added.
type GroupRecord struct {
	Name    string            `json:"name"`
	Env     map[string]string `json:"env"`
	Members []int             `json:"members"`

	extra map[string]json.RawMessage
}

var groupRecordKnownKeys = map[string]bool{
	"name": true, "env": true, "members": true,
}

func (g *GroupRecord) UnmarshalJSON(data []byte) error {
	type alias GroupRecord
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*g = GroupRecord(a)
	g.extra = extractUnknown(data, groupRecordKnownKeys)
	return nil
}

func (g GroupRecord) MarshalJSON() ([]byte, error) {
	type alias GroupRecord
	return mergeExtra(alias(g), g.extra)
}

// HasMember reports whether id is a member of the group.
func (g GroupRecord) HasMember(id int) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

// PortRecord is one reserved TCP port (spec §3.3).
type PortRecord struct {
	Port        int       `json:"port"`
	Name        string    `json:"name"`
	AllocatedAt time.Time `json:"allocated_at"`

	extra map[string]json.RawMessage
}

var portRecordKnownKeys = map[string]bool{
	"port": true, "name": true, "allocated_at": true,
}

func (p *PortRecord) UnmarshalJSON(data []byte) error {
	type alias PortRecord
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = PortRecord(a)
	p.extra = extractUnknown(data, portRecordKnownKeys)
	return nil
}

func (p PortRecord) MarshalJSON() ([]byte, error) {
	type alias PortRecord
	return mergeExtra(alias(p), p.extra)
}

// extractUnknown decodes data as a flat object and returns every key not in
// known, or nil if there are none. Used by each record type's UnmarshalJSON
// to preserve fields a newer schema version added.
func extractUnknown(data []byte, known map[string]bool) map[string]json.RawMessage {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	for k := range raw {
		if known[k] {
			delete(raw, k)
		}
	}
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// mergeExtra marshals known (a type-aliased copy of a record with no custom
// MarshalJSON of its own) and overlays extra's fields back on top of it.
func mergeExtra(known interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	out, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return out, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(out, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Catalog is the full persisted document: processes, groups, ports and the
// next-ID counter, as one logical unit (spec §4.1, §6.2).
type Catalog struct {
	Version   int             `json:"version"`
	NextID    int             `json:"next_id"`
	Processes []ProcessRecord `json:"processes"`
	Groups    []GroupRecord   `json:"groups"`
	Ports     []PortRecord    `json:"ports"`

	// unknownRecordTypes lists top-level document keys this version has no
	// field for at all — as opposed to extra, which preserves unknown
	// fields *within* a known record. Spec §4.1 treats these differently:
	// unknown fields round-trip silently, but an unknown record type means
	// this version cannot represent the document faithfully, so Save
	// refuses rather than silently dropping it.
	unknownRecordTypes []string
}

var catalogKnownKeys = map[string]bool{
	"version": true, "next_id": true, "processes": true, "groups": true, "ports": true,
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	type alias Catalog
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = Catalog(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if !catalogKnownKeys[key] {
			c.unknownRecordTypes = append(c.unknownRecordTypes, key)
		}
	}
	sort.Strings(c.unknownRecordTypes)
	return nil
}

// UnknownRecordTypes reports the top-level document keys, if any, that this
// version of Sentinel loaded but has no record type for.
func (c Catalog) UnknownRecordTypes() []string {
	return c.unknownRecordTypes
}

// Empty returns a fresh catalog as used when the state file is absent.
func Empty() Catalog {
	return Catalog{
		Version:   SchemaVersion,
		NextID:    1,
		Processes: []ProcessRecord{},
		Groups:    []GroupRecord{},
		Ports:     []PortRecord{},
	}
}

// Clone returns a deep copy of the catalog, suitable for handing to a caller
// to iterate outside the Registry's lock (spec §4.2 snapshot()).
func (c Catalog) Clone() Catalog {
	out := Catalog{
		Version:            c.Version,
		NextID:             c.NextID,
		unknownRecordTypes: append([]string(nil), c.unknownRecordTypes...),
	}

	out.Processes = make([]ProcessRecord, len(c.Processes))
	for i, p := range c.Processes {
		out.Processes[i] = p.clone()
	}

	out.Groups = make([]GroupRecord, len(c.Groups))
	for i, g := range c.Groups {
		out.Groups[i] = g.clone()
	}

	out.Ports = make([]PortRecord, len(c.Ports))
	copy(out.Ports, c.Ports)

	return out
}

func (p ProcessRecord) clone() ProcessRecord {
	out := p
	out.Env = make(map[string]string, len(p.Env))
	for k, v := range p.Env {
		out.Env[k] = v
	}
	return out
}

func (g GroupRecord) clone() GroupRecord {
	out := g
	out.Env = make(map[string]string, len(g.Env))
	for k, v := range g.Env {
		out.Env[k] = v
	}
	out.Members = append([]int(nil), g.Members...)
	return out
}
