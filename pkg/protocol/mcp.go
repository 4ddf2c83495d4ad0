package protocol

import (
	"encoding/json"
)

// ClientInfo identifies the diagnostic client during the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      ClientInfo             `json:"clientInfo"`
}

// NewInitializeParams builds the handshake params with the capabilities this
// client declares (tools only).
func NewInitializeParams(clientName, clientVersion string) *InitializeParams {
	return &InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		ClientInfo: ClientInfo{
			Name:    clientName,
			Version: clientVersion,
		},
	}
}

// ServerImplementation is the serverInfo block of an initialize result.
type ServerImplementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the payload of a successful initialize response.
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion,omitempty"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ServerInfo      *ServerImplementation  `json:"serverInfo,omitempty"`
	Instructions    string                 `json:"instructions,omitempty"`
}

// ServerInfo is the client-facing view of what the handshake (or a REST info
// endpoint) revealed about the server.
type ServerInfo struct {
	ProtocolVersion string                 `json:"protocol_version,omitempty"`
	ServerName      string                 `json:"server_name,omitempty"`
	ServerVersion   string                 `json:"server_version,omitempty"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	Instructions    string                 `json:"instructions,omitempty"`
}

// ServerInfoFromInitialize converts an initialize result into a ServerInfo,
// filling the given defaults for anything the server left out. Stdio servers
// routinely return an empty serverInfo block.
func ServerInfoFromInitialize(res *InitializeResult, defaultName string) *ServerInfo {
	info := &ServerInfo{
		ProtocolVersion: ProtocolVersion,
		ServerName:      defaultName,
		ServerVersion:   "unknown",
		Capabilities:    map[string]interface{}{},
	}
	if res == nil {
		return info
	}
	if res.ProtocolVersion != "" {
		info.ProtocolVersion = res.ProtocolVersion
	}
	if res.ServerInfo != nil {
		if res.ServerInfo.Name != "" {
			info.ServerName = res.ServerInfo.Name
		}
		if res.ServerInfo.Version != "" {
			info.ServerVersion = res.ServerInfo.Version
		}
	}
	if res.Capabilities != nil {
		info.Capabilities = res.Capabilities
	}
	info.Instructions = res.Instructions
	return info
}

// Tool describes a single callable tool advertised by a server. InputSchema
// and Parameters are kept as raw JSON: tool schemas are arbitrary documents
// and servers disagree on which field carries them.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// CallToolParams is the payload of a tools/call request.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Resource describes an entry from resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ParseTools extracts tool descriptors from a tools/list result. Malformed
// entries are skipped rather than failing the whole listing: a bare string is
// treated as a tool name, an object without a usable name is dropped. The
// second return value is the number of entries skipped.
func ParseTools(result json.RawMessage) ([]Tool, int) {
	var envelope struct {
		Tools []json.RawMessage `json:"tools"`
	}
	if len(result) == 0 || json.Unmarshal(result, &envelope) != nil {
		return nil, 0
	}

	tools := make([]Tool, 0, len(envelope.Tools))
	skipped := 0
	for _, raw := range envelope.Tools {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			if name == "" {
				skipped++
				continue
			}
			tools = append(tools, Tool{Name: name})
			continue
		}

		var tool Tool
		if err := json.Unmarshal(raw, &tool); err != nil || tool.Name == "" {
			skipped++
			continue
		}
		tools = append(tools, tool)
	}
	return tools, skipped
}

// ParseResources extracts resource descriptors from a resources/list result,
// with the same skip-don't-fail policy as ParseTools.
func ParseResources(result json.RawMessage) ([]Resource, int) {
	var envelope struct {
		Resources []json.RawMessage `json:"resources"`
	}
	if len(result) == 0 || json.Unmarshal(result, &envelope) != nil {
		return nil, 0
	}

	resources := make([]Resource, 0, len(envelope.Resources))
	skipped := 0
	for _, raw := range envelope.Resources {
		var res Resource
		if err := json.Unmarshal(raw, &res); err != nil || res.URI == "" {
			skipped++
			continue
		}
		resources = append(resources, res)
	}
	return resources, skipped
}
