// ABOUTME: Graphviz rendering of a conference sponsor pipeline
// ABOUTME: Draws status columns as a funnel with each sponsor attached to its current stage
package viz

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/render"
	"github.com/harperreed/sponsordesk/status"
)

type GraphGenerator struct {
	db *sql.DB
}

func NewGraphGenerator(database *sql.DB) *GraphGenerator {
	return &GraphGenerator{db: database}
}

// signatureColors fills sponsor nodes by where their contract stands.
var signatureColors = map[string]string{
	status.SignatureNotStarted: "white",
	status.SignaturePending:    "lightyellow",
	status.SignatureSigned:     "lightgreen",
	status.SignatureRejected:   "lightpink",
	status.SignatureExpired:    "lightgrey",
}

// GeneratePipelineGraph renders the board of a conference as DOT.
func (g *GraphGenerator) GeneratePipelineGraph(ctx context.Context, conferenceID uuid.UUID) (string, error) {
	conf, err := db.GetConference(ctx, g.db, conferenceID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch conference: %w", err)
	}
	cards, err := db.ListBoard(ctx, g.db, conferenceID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch board: %w", err)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create graphviz: %w", err)
	}
	defer func() { _ = gv.Close() }()

	graph, err := gv.Graph()
	if err != nil {
		return "", fmt.Errorf("failed to create graph: %w", err)
	}
	defer func() { _ = graph.Close() }()

	graph.SetLabel(conf.Title + " sponsor pipeline")
	graph.SetRankDir(cgraph.LRRank)

	counts := map[string]int{}
	for _, c := range cards {
		counts[c.Record.Status]++
	}

	stages := make(map[string]*cgraph.Node)
	var previous *cgraph.Node
	for _, s := range status.Values(status.AxisPipeline) {
		node, err := graph.CreateNodeByName("stage:" + s)
		if err != nil {
			return "", fmt.Errorf("failed to create stage node: %w", err)
		}
		node.SetLabel(fmt.Sprintf("%s\n(%d)", s, counts[s]))
		node.SetShape("box")
		node.SetStyle("filled")
		node.SetFillColor("lightblue")
		stages[s] = node

		// closed-lost hangs off negotiating rather than closed-won
		from := previous
		if s == status.ClosedLost {
			from = stages[status.Negotiating]
		}
		if from != nil {
			edge, err := graph.CreateEdgeByName("", from, node)
			if err != nil {
				return "", fmt.Errorf("failed to create stage edge: %w", err)
			}
			edge.SetStyle("bold")
		}
		if s != status.ClosedLost {
			previous = node
		}
	}

	for _, c := range cards {
		node, err := graph.CreateNodeByName("record:" + c.Record.ID.String())
		if err != nil {
			return "", fmt.Errorf("failed to create sponsor node: %w", err)
		}
		label := c.SponsorName
		if c.Record.ContractValue > 0 {
			label += "\n" + render.FormatMoney(c.Record.ContractValue, c.Record.ContractCurrency)
		}
		node.SetLabel(label)
		node.SetShape("ellipse")
		node.SetStyle("filled")
		color, ok := signatureColors[c.Record.SignatureStatus]
		if !ok {
			color = "white"
		}
		node.SetFillColor(color)

		stage, ok := stages[c.Record.Status]
		if !ok {
			continue
		}
		edge, err := graph.CreateEdgeByName("", node, stage)
		if err != nil {
			return "", fmt.Errorf("failed to create sponsor edge: %w", err)
		}
		edge.SetStyle("dashed")
		edge.SetDir("none")
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("failed to render graph: %w", err)
	}

	return buf.String(), nil
}
