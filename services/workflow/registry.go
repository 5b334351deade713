package workflow

// Category groups node types for the canvas palette.
type Category string

const (
	CategoryTriggers Category = "triggers"
	CategoryActions  Category = "actions"
	CategoryLogic    Category = "logic"
	CategorySystem   Category = "system"
)

// Node type identifiers.
const (
	NodeTypeWebhookTrigger = "trigger:webhook"
	NodeTypeIntentTrigger  = "trigger:intent"
	NodeTypeFormTrigger    = "trigger:form_submission"
	NodeTypeSendEmail      = "action:send_email"
	NodeTypeUpdateContact  = "action:update_contact"
	NodeTypeHTTPRequest    = "action:http_request"
	NodeTypeRouter         = "logic:router"
	NodeTypeUnrecognized   = "generic:unrecognized"

	// Retired type, rewritten to logic:router on migration.
	nodeTypeLegacyFilter = "logic:filter"
)

// NodeTypeDefinition describes one node type: how it renders in the palette
// and the data a freshly added node of that type starts with. Definitions are
// process-wide and immutable after init.
type NodeTypeDefinition struct {
	Type        string   `json:"type"`
	Category    Category `json:"category"`
	Icon        string   `json:"icon"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DefaultData func() NodeData `json:"-"`
}

var nodeTypeDefinitions = map[string]NodeTypeDefinition{
	NodeTypeWebhookTrigger: {
		Type: NodeTypeWebhookTrigger, Category: CategoryTriggers,
		Icon: "webhook", Name: "Webhook",
		Description: "Start this workflow when an external system calls a URL",
		DefaultData: func() NodeData {
			return NodeData{
				NodeType: NodeTypeWebhookTrigger,
				Label:    "Webhook",
				Config:   map[string]any{"method": "POST"},
			}
		},
	},
	NodeTypeIntentTrigger: {
		Type: NodeTypeIntentTrigger, Category: CategoryTriggers,
		Icon: "radar", Name: "Intent Signal",
		Description: "Start this workflow when a matching buyer-intent signal is detected",
		DefaultData: func() NodeData {
			return NodeData{
				NodeType: NodeTypeIntentTrigger,
				Label:    "Intent Signal",
				Config: map[string]any{
					"topics":              []any{},
					"minScore":            60.0,
					"pollIntervalMinutes": 15.0,
				},
			}
		},
	},
	NodeTypeFormTrigger: {
		Type: NodeTypeFormTrigger, Category: CategoryTriggers,
		Icon: "form", Name: "Form Submission",
		Description: "Start this workflow when a form is submitted",
		DefaultData: func() NodeData {
			return NodeData{
				NodeType: NodeTypeFormTrigger,
				Label:    "Form Submission",
				Config:   map[string]any{"formId": ""},
			}
		},
	},
	NodeTypeSendEmail: {
		Type: NodeTypeSendEmail, Category: CategoryActions,
		Icon: "mail", Name: "Send Email",
		Description: "Send a templated email to the contact",
		DefaultData: func() NodeData {
			return NodeData{
				NodeType: NodeTypeSendEmail,
				Label:    "Send Email",
				Config: map[string]any{
					"subject": "",
					"body":    "",
				},
			}
		},
	},
	NodeTypeUpdateContact: {
		Type: NodeTypeUpdateContact, Category: CategoryActions,
		Icon: "user-edit", Name: "Update Contact",
		Description: "Set CRM fields on the contact this run belongs to",
		DefaultData: func() NodeData {
			return NodeData{
				NodeType: NodeTypeUpdateContact,
				Label:    "Update Contact",
				Config:   map[string]any{"fields": map[string]any{}},
			}
		},
	},
	NodeTypeHTTPRequest: {
		Type: NodeTypeHTTPRequest, Category: CategoryActions,
		Icon: "globe", Name: "HTTP Request",
		Description: "Call an external API with the run's data",
		DefaultData: func() NodeData {
			return NodeData{
				NodeType: NodeTypeHTTPRequest,
				Label:    "HTTP Request",
				Config:   map[string]any{"url": "", "method": "POST"},
			}
		},
	},
	NodeTypeRouter: {
		Type: NodeTypeRouter, Category: CategoryLogic,
		Icon: "split", Name: "Router",
		Description: "Route the run down a branch based on its data",
		DefaultData: func() NodeData {
			return NodeData{
				NodeType: NodeTypeRouter,
				Label:    "Router",
				Config: map[string]any{
					"routes":       []any{},
					"defaultRoute": "default",
				},
			}
		},
	},
	NodeTypeUnrecognized: {
		Type: NodeTypeUnrecognized, Category: CategorySystem,
		Icon: "question", Name: "Unrecognized",
		Description: "This node's type is not supported by this version",
		DefaultData: func() NodeData {
			return NodeData{
				NodeType: NodeTypeUnrecognized,
				Label:    "Unrecognized",
			}
		},
	},
}

// Definition returns the definition for a node type. Unknown types resolve to
// the generic:unrecognized definition so rendering and execution always have
// a usable shape; this never fails.
func Definition(nodeType string) NodeTypeDefinition {
	if def, ok := nodeTypeDefinitions[nodeType]; ok {
		return def
	}
	return nodeTypeDefinitions[NodeTypeUnrecognized]
}

// IsRegistered reports whether nodeType has its own definition.
func IsRegistered(nodeType string) bool {
	_, ok := nodeTypeDefinitions[nodeType]
	return ok
}

// DefinitionsByCategory lists the definitions in a palette category. System
// definitions are internal fallbacks and are never offered to end users.
func DefinitionsByCategory(category Category) []NodeTypeDefinition {
	if category == CategorySystem {
		return nil
	}
	ordered := []string{
		NodeTypeWebhookTrigger, NodeTypeIntentTrigger, NodeTypeFormTrigger,
		NodeTypeSendEmail, NodeTypeUpdateContact, NodeTypeHTTPRequest,
		NodeTypeRouter,
	}
	var defs []NodeTypeDefinition
	for _, t := range ordered {
		if def := nodeTypeDefinitions[t]; def.Category == category {
			defs = append(defs, def)
		}
	}
	return defs
}
