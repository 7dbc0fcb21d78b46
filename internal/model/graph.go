package model

// NodeType is one of the eight closed node categories.
type NodeType string

const (
	NodeDomain         NodeType = "domain"
	NodeContaminant    NodeType = "contaminant"
	NodeHealthEffect   NodeType = "health-effect"
	NodeSolution       NodeType = "solution"
	NodeProduct        NodeType = "product"
	NodeRecommendation NodeType = "recommendation"
	NodeContext        NodeType = "context"
	NodeInvestigation  NodeType = "investigation"
)

var validNodeTypes = map[NodeType]bool{
	NodeDomain: true, NodeContaminant: true, NodeHealthEffect: true,
	NodeSolution: true, NodeProduct: true, NodeRecommendation: true,
	NodeContext: true, NodeInvestigation: true,
}

// EdgeType is one of the seven closed edge categories.
// Legacy aliases solution/context/investigation normalize to
// addresses/contextualizes/investigates respectively — see NormalizeEdgeType.
type EdgeType string

const (
	EdgeCausation      EdgeType = "causation"
	EdgeEvidence       EdgeType = "evidence"
	EdgeComposition    EdgeType = "composition"
	EdgeAddresses      EdgeType = "addresses"
	EdgeGap            EdgeType = "gap"
	EdgeContextualizes EdgeType = "contextualizes"
	EdgeInvestigates   EdgeType = "investigates"
)

var validEdgeTypes = map[EdgeType]bool{
	EdgeCausation: true, EdgeEvidence: true, EdgeComposition: true,
	EdgeAddresses: true, EdgeGap: true, EdgeContextualizes: true,
	EdgeInvestigates: true,
}

// legacyEdgeAliases maps deprecated edge-type spellings to their canonical
// replacement.
var legacyEdgeAliases = map[EdgeType]EdgeType{
	"solution":     EdgeAddresses,
	"context":      EdgeContextualizes,
	"investigation": EdgeInvestigates,
}

// NormalizeEdgeType resolves a legacy alias to its canonical type. It
// returns the input unchanged if it is already canonical or unrecognized —
// callers validate recognition separately via IsValidEdgeType.
func NormalizeEdgeType(t EdgeType) EdgeType {
	if canonical, ok := legacyEdgeAliases[t]; ok {
		return canonical
	}
	return t
}

// IsValidNodeType reports whether t is one of the eight closed node types.
func IsValidNodeType(t NodeType) bool { return validNodeTypes[t] }

// IsValidEdgeType reports whether t (after alias normalization) is one of
// the seven closed edge types.
func IsValidEdgeType(t EdgeType) bool { return validEdgeTypes[NormalizeEdgeType(t)] }

// Node is one vertex of the knowledge graph.
type Node struct {
	ID                    string   `json:"id"`
	Label                 string   `json:"label"`
	Type                  NodeType `json:"type"`
	Parent                string   `json:"parent,omitempty"`
	Summary               string   `json:"summary,omitempty"`
	KeyStats              []string `json:"keyStats,omitempty"`
	Confidence            Confidence `json:"confidence,omitempty"`
	ConfidenceScore       *float64 `json:"confidenceScore,omitempty"`
	ConfidenceRationale   string   `json:"confidenceRationale,omitempty"`
	InvestigationPathway  string   `json:"investigationPathway,omitempty"`
	Severity              string   `json:"severity,omitempty"`
}

// Edge is one directed connection between two nodes.
type Edge struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Label      string   `json:"label"`
	Type       EdgeType `json:"type"`
	Citation   string   `json:"citation,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
}

// Topic is the write-up attached to a non-domain node.
type Topic struct {
	Title      string   `json:"title"`
	Sections   []string `json:"sections"`
	Citations  []string `json:"citations,omitempty"`
}

// KnowledgeGraph is the single artifact the pipeline produces per project.
type KnowledgeGraph struct {
	Nodes  []Node           `json:"nodes"`
	Edges  []Edge           `json:"edges"`
	Topics map[string]Topic `json:"topics"`
}

// EdgeTypeConstraint documents, per edge type, which node types may appear
// at the source and target ends. "*" (represented by an empty allow-list)
// means unconstrained. Violations are warnings, never errors.
type EdgeTypeConstraint struct {
	AllowedSources []NodeType
	AllowedTargets []NodeType
}

// EdgeConstraints gives the allowed source/target node types per edge type.
var EdgeConstraints = map[EdgeType]EdgeTypeConstraint{
	EdgeCausation: {
		AllowedSources: []NodeType{NodeContaminant, NodeContext},
		AllowedTargets: []NodeType{NodeHealthEffect},
	},
	EdgeEvidence: {},
	EdgeComposition: {
		AllowedSources: []NodeType{NodeDomain},
		AllowedTargets: []NodeType{NodeContaminant, NodeSolution, NodeContext, NodeHealthEffect, NodeProduct, NodeRecommendation, NodeInvestigation},
	},
	EdgeAddresses: {
		AllowedSources: []NodeType{NodeSolution, NodeProduct, NodeRecommendation},
		AllowedTargets: []NodeType{NodeHealthEffect, NodeContaminant},
	},
	EdgeGap: {},
	EdgeContextualizes: {
		AllowedSources: []NodeType{NodeContext},
	},
	EdgeInvestigates: {
		AllowedSources: []NodeType{NodeInvestigation},
	},
}
