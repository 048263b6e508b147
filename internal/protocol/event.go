// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package protocol implements the upstream wire protocol: framed JSON
// events exchanged with the remote speech-to-speech inference stream.
package protocol

// ContentType enumerates the three content-block kinds the upstream
// protocol supports.
type ContentType string

const (
	ContentTypeText  ContentType = "TEXT"
	ContentTypeAudio ContentType = "AUDIO"
	ContentTypeTool  ContentType = "TOOL"
)

// Role enumerates who a content block is attributed to.
type Role string

const (
	RoleSystem    Role = "SYSTEM"
	RoleUser      Role = "USER"
	RoleTool      Role = "TOOL"
	RoleAssistant Role = "ASSISTANT"
)

// InferenceConfiguration carries the generation parameters sent once in
// sessionStart.
type InferenceConfiguration struct {
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
	Temperature float64 `json:"temperature"`
}

// TextOutputConfiguration declares the media type of assistant text.
type TextOutputConfiguration struct {
	MediaType string `json:"mediaType"`
}

// AudioOutputConfiguration declares the synthesized audio format.
type AudioOutputConfiguration struct {
	AudioType       string `json:"audioType"`
	Encoding        string `json:"encoding"`
	MediaType       string `json:"mediaType"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	SampleSizeBits  int    `json:"sampleSizeBits"`
	ChannelCount    int    `json:"channelCount"`
	VoiceID         string `json:"voiceId"`
}

// ToolUseOutputConfiguration declares the media type of tool_use payloads.
type ToolUseOutputConfiguration struct {
	MediaType string `json:"mediaType"`
}

// ToolSpec describes one callable tool's name, description, and schema.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

// Tool wraps a ToolSpec the way the upstream protocol nests it.
type Tool struct {
	ToolSpec ToolSpec `json:"toolSpec"`
}

// ToolConfiguration lists the tools available to the model for this prompt.
type ToolConfiguration struct {
	Tools []Tool `json:"tools"`
}

// TextInputConfiguration declares the media type of a TEXT content block.
type TextInputConfiguration struct {
	MediaType string `json:"mediaType"`
}

// AudioInputConfiguration declares the format of inbound microphone audio.
type AudioInputConfiguration struct {
	AudioType       string `json:"audioType"`
	Encoding        string `json:"encoding"`
	MediaType       string `json:"mediaType"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	SampleSizeBits  int    `json:"sampleSizeBits"`
	ChannelCount    int    `json:"channelCount"`
}

// ToolResultInputConfiguration declares how a tool's JSON result is framed.
type ToolResultInputConfiguration struct {
	ToolUseID string `json:"toolUseId"`
	Type      string `json:"type"`
}

// SessionStart is the first event of every session.
type SessionStart struct {
	InferenceConfiguration InferenceConfiguration `json:"inferenceConfiguration"`
}

// PromptStart opens the single prompt a session runs.
type PromptStart struct {
	PromptName                 string                     `json:"promptName"`
	TextOutputConfiguration    TextOutputConfiguration    `json:"textOutputConfiguration"`
	AudioOutputConfiguration   AudioOutputConfiguration   `json:"audioOutputConfiguration"`
	ToolUseOutputConfiguration ToolUseOutputConfiguration `json:"toolUseOutputConfiguration"`
	ToolConfiguration          ToolConfiguration          `json:"toolConfiguration"`
}

// ContentStart opens a content block within a prompt.
type ContentStart struct {
	PromptName                   string                        `json:"promptName"`
	ContentName                  string                        `json:"contentName"`
	Type                         ContentType                   `json:"type"`
	Interactive                  bool                          `json:"interactive"`
	Role                         Role                          `json:"role"`
	TextInputConfiguration       *TextInputConfiguration       `json:"textInputConfiguration,omitempty"`
	AudioInputConfiguration      *AudioInputConfiguration      `json:"audioInputConfiguration,omitempty"`
	ToolResultInputConfiguration *ToolResultInputConfiguration `json:"toolResultInputConfiguration,omitempty"`
}

// TextInput carries a UTF-8 text payload into an open TEXT content block.
type TextInput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
}

// AudioInput carries a base64 PCM chunk into an open AUDIO content block.
type AudioInput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
}

// ToolResult carries a stringified JSON result into an open TOOL content block.
type ToolResult struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
}

// ContentEnd closes a content block.
type ContentEnd struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
}

// PromptEnd closes a prompt.
type PromptEnd struct {
	PromptName string `json:"promptName"`
}

// SessionEnd is the last outbound event of a normally-closed session.
type SessionEnd struct{}

// TextOutput is an inbound assistant text chunk.
type TextOutput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
	Role        Role   `json:"role,omitempty"`
}

// AudioOutput is an inbound synthesized audio chunk (base64 PCM).
type AudioOutput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
}

// ToolUse is an inbound tool invocation request from the model.
type ToolUse struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	ToolUseID   string `json:"toolUseId"`
	ToolName    string `json:"toolName"`
	Content     string `json:"content"`
}

// InboundContentStart announces an inbound content block opening.
type InboundContentStart struct {
	PromptName  string      `json:"promptName"`
	ContentName string      `json:"contentName"`
	Type        ContentType `json:"type,omitempty"`
	Role        Role        `json:"role,omitempty"`
}

// InboundContentEnd closes an inbound content block, optionally naming why.
type InboundContentEnd struct {
	PromptName  string      `json:"promptName"`
	ContentName string      `json:"contentName"`
	Type        ContentType `json:"type,omitempty"`
	StopReason  string      `json:"stopReason,omitempty"`
}

// ModelStreamErrorException is an upstream validation/runtime failure.
type ModelStreamErrorException struct {
	Message string `json:"message"`
}

// InternalServerException is an upstream transient failure.
type InternalServerException struct {
	Message string `json:"message"`
}
