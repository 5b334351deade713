package workflow

// legacyAliases maps node type identifiers from older releases to their
// current names. Types absent from both this table and the registry migrate
// to generic:unrecognized.
var legacyAliases = map[string]string{
	"webhook": NodeTypeWebhookTrigger,
	"form":    NodeTypeFormTrigger,
	"intent":  NodeTypeIntentTrigger,
	"email":   NodeTypeSendEmail,
	"http":    NodeTypeHTTPRequest,
	"crm":     NodeTypeUpdateContact,
}

// MigrateNode upgrades a persisted node's data to the current node-type
// schema. It is pure and idempotent: nodes already on a registered type pass
// through unchanged, so migrating twice is a no-op.
func MigrateNode(node Node) Node {
	if node.Data.isZero() {
		return node
	}

	// Legacy filter nodes are semantically routers. Their config shapes
	// differ, so defaults come from the router definition; only the
	// user-visible label survives.
	if node.Data.NodeType == nodeTypeLegacyFilter {
		data := Definition(NodeTypeRouter).DefaultData()
		if node.Data.Label != "" {
			data.Label = node.Data.Label
		}
		data.NodeType = NodeTypeRouter
		node.Data = data
		return node
	}

	if IsRegistered(node.Data.NodeType) {
		return node
	}

	target, ok := legacyAliases[node.Data.NodeType]
	if !ok {
		target = NodeTypeUnrecognized
	}

	// Layer: new-type defaults, then the original data, then the forced
	// type tag. User-authored fields win over defaults; the tag is
	// authoritative.
	data := Definition(target).DefaultData()
	if node.Data.Label != "" {
		data.Label = node.Data.Label
	}
	if node.Data.Description != "" {
		data.Description = node.Data.Description
	}
	if len(node.Data.Config) > 0 {
		if data.Config == nil {
			data.Config = make(map[string]any, len(node.Data.Config))
		}
		for k, v := range node.Data.Config {
			data.Config[k] = v
		}
	}
	data.NodeType = target
	node.Data = data
	return node
}

// MigrateNodes applies MigrateNode to every node of a workflow.
func MigrateNodes(nodes []Node) []Node {
	if len(nodes) == 0 {
		return nodes
	}
	migrated := make([]Node, len(nodes))
	for i, n := range nodes {
		migrated[i] = MigrateNode(n)
	}
	return migrated
}
