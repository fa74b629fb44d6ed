package models

type IntentKind string

const (
	IntentCreateAgent    IntentKind = "create_agent"
	IntentDefineTool     IntentKind = "define_tool"
	IntentCreateWorkflow IntentKind = "create_workflow"
	IntentUnknown        IntentKind = "unknown"
)

type Intent struct {
	Intent   IntentKind        `json:"intent"`
	Params   map[string]string `json:"params"`
	Original string            `json:"original"`
}
