package risk

import (
	"fmt"
	"sort"
)

// queueItem pairs a not-yet-expanded decision node with its place in the
// graph so BFS can process nodes breadth-first while respecting the node
// and depth caps.
type queueItem struct {
	node *Node
}

// Expand runs the bounded BFS and returns the full
// result bundle: the expanded graph, truncation status, risk bounds, cost
// estimates, and constraint verdict.
func Expand(initial State, actions []Action, model RiskModel, invariants []SafetyInvariant, goal func(State) bool, cfg Config) *Result {
	ordered := make([]Action, len(actions))
	copy(ordered, actions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Cost != ordered[j].Cost {
			return ordered[i].Cost < ordered[j].Cost
		}
		return ordered[i].ID < ordered[j].ID
	})

	root := &Node{Kind: NodeDecision, State: initial.Clone(), Depth: 0}
	nodeCount := 1
	wasTruncated := false
	truncationReason := ""
	var rejected []RejectedAction
	var explanation []ExplanationEntry
	safetyViolatedAnywhere := false

	queue := []queueItem{{root}}
	horizon := cfg.HorizonDepth
	if horizon <= 0 || horizon > MaxScenarioDepth {
		horizon = MaxScenarioDepth
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		node := item.node

		if node.Kind != NodeDecision {
			continue
		}

		if node.Depth >= horizon {
			node.Kind = NodeTerminal
			node.Terminal = TerminalHorizonReached
			wasTruncated = true
			if truncationReason == "" {
				truncationReason = "depth_cap"
			}
			continue
		}
		if nodeCount >= MaxScenarioNodes {
			node.Kind = NodeTerminal
			node.Terminal = TerminalNodeCapReached
			wasTruncated = true
			if truncationReason == "" {
				truncationReason = "node_cap"
			}
			continue
		}
		if goal != nil && goal(node.State) {
			node.Kind = NodeTerminal
			node.Terminal = TerminalGoalReached
			continue
		}

		anyAccepted := false
		for _, action := range ordered {
			if action.Preconditions != nil && !action.Preconditions(node.State) {
				continue
			}
			if nodeCount >= MaxScenarioNodes {
				break
			}

			outcomes, err := model.GetOutcomeMasses(node.State, action.ID)
			if err != nil {
				rejected = append(rejected, RejectedAction{ActionID: action.ID, Reason: fmt.Sprintf("model_error: %v", err)})
				explanation = append(explanation, ExplanationEntry{ActionID: action.ID, Accepted: false, Reason: "model_error"})
				continue
			}
			if len(outcomes) > MaxOutcomesPerAction {
				rejected = append(rejected, RejectedAction{ActionID: action.ID, Reason: "too_many_outcomes"})
				explanation = append(explanation, ExplanationEntry{ActionID: action.ID, Accepted: false, Reason: "too_many_outcomes"})
				continue
			}
			if sumMasses(outcomes) != MassTotal {
				rejected = append(rejected, RejectedAction{ActionID: action.ID, Reason: "mass_not_conserved"})
				explanation = append(explanation, ExplanationEntry{ActionID: action.ID, Accepted: false, Reason: "mass_not_conserved"})
				continue
			}

			failureMassByKind := make(map[string]int64)
			outcomeEdges := make([]*OutcomeEdge, 0, len(outcomes))
			resultStates := make([]State, len(outcomes))
			failedFlags := make([]bool, len(outcomes))

			for i, o := range outcomes {
				var result State
				if action.Effects != nil {
					result = action.Effects(node.State, o.OutcomeID)
				} else {
					result = node.State.Clone()
				}
				failed := false
				for _, inv := range invariants {
					if inv.Violated != nil && inv.Violated(result) {
						failed = true
						failureMassByKind[inv.RiskKind] += o.MassPpm
					}
				}
				resultStates[i] = result
				failedFlags[i] = failed
			}

			newLedger := make(map[string]int64, len(node.State.Ledger))
			riskDelta := make(map[string]int64)
			negative := false
			for kind, before := range node.State.Ledger {
				after := aggregate(cfg.Aggregation, before, failureMassByKind[kind])
				if after < 0 {
					negative = true
				}
				newLedger[kind] = after
				riskDelta[kind] = before - after
			}

			if negative {
				rejected = append(rejected, RejectedAction{ActionID: action.ID, Reason: "risk_budget_exceeded"})
				explanation = append(explanation, ExplanationEntry{ActionID: action.ID, Accepted: false, Reason: "risk_budget_exceeded", RiskDelta: riskDelta})
				continue
			}

			chanceNode := &Node{Kind: NodeChance, State: node.State, Depth: node.Depth}
			nodeCount++

			for i, o := range outcomes {
				if nodeCount >= MaxScenarioNodes {
					wasTruncated = true
					if truncationReason == "" {
						truncationReason = "node_cap"
					}
					break
				}
				childState := resultStates[i].Clone()
				childState.Ledger = newLedger
				var childNode *Node
				if failedFlags[i] {
					childNode = &Node{Kind: NodeTerminal, State: childState, Depth: node.Depth + 1, Terminal: TerminalSafetyViolated}
					safetyViolatedAnywhere = true
				} else {
					childNode = &Node{Kind: NodeDecision, State: childState, Depth: node.Depth + 1}
					queue = append(queue, queueItem{childNode})
				}
				nodeCount++
				outcomeEdges = append(outcomeEdges, &OutcomeEdge{
					OutcomeID: o.OutcomeID,
					MassPpm:   o.MassPpm,
					LossPpm:   o.LossPpm,
					Failed:    failedFlags[i],
					Result:    childNode,
				})
			}
			chanceNode.Outcomes = outcomeEdges

			node.Decision = append(node.Decision, &DecisionEdge{ActionID: action.ID, Cost: action.Cost, Chance: chanceNode})
			explanation = append(explanation, ExplanationEntry{ActionID: action.ID, Accepted: true, RiskDelta: riskDelta})
			anyAccepted = true
		}

		if !anyAccepted && node.Kind == NodeDecision {
			node.Kind = NodeTerminal
			node.Terminal = TerminalNoFeasibleActions
		}
	}

	result := &Result{
		Root:              root,
		WasTruncated:      wasTruncated,
		TruncationReason:  truncationReason,
		RejectedActions:   rejected,
		Explanation:       explanation,
	}

	result.PolicyFailureUpperBoundPpm = maxDepletion(root, initial.Ledger, true)
	result.GraphWideCumulativeFailurePpm = maxDepletion(root, initial.Ledger, false)
	result.ExpectedCost = expectedCost(root)
	result.CVaRCost = cvarCost(root, cfg.AlphaPpm)

	budgetSource, epsilon, warnings := resolveBudget(initial, cfg)
	result.BudgetSource = budgetSource
	result.MismatchWarnings = warnings

	result.ConstraintStatus, result.ViolatedConstraints = classify(result, cfg, epsilon, safetyViolatedAnywhere)
	result.SafetyVerified = result.ConstraintStatus == "satisfied"

	return result
}

// maxDepletion walks the graph and returns the worst-case ledger depletion
// (initial - final, maxed across risk kinds) over reachable terminals.
// policyOnly restricts decision nodes to their first (prescribed) action:
// PolicyFailureUpperBoundPpm is worst-case along prescribed edges, while
// GraphWideCumulativeFailurePpm is worst-case across all expanded edges.
func maxDepletion(n *Node, initialLedger map[string]int64, policyOnly bool) int64 {
	var walk func(n *Node) int64
	walk = func(n *Node) int64 {
		if n == nil {
			return 0
		}
		switch n.Kind {
		case NodeTerminal:
			var worst int64
			for kind, before := range initialLedger {
				after, ok := n.State.Ledger[kind]
				if !ok {
					after = before
				}
				d := before - after
				if d > worst {
					worst = d
				}
			}
			return worst
		case NodeChance:
			var worst int64
			for _, o := range n.Outcomes {
				if d := walk(o.Result); d > worst {
					worst = d
				}
			}
			return worst
		case NodeDecision:
			edges := n.Decision
			if policyOnly && len(edges) > 1 {
				edges = edges[:1]
			}
			var worst int64
			for _, e := range edges {
				if d := walk(e.Chance); d > worst {
					worst = d
				}
			}
			return worst
		}
		return 0
	}
	return walk(n)
}

// expectedCost computes the expected cost-to-terminal under the prescribed
// policy (first accepted action per decision node), weighting chance-node
// branches by outcome probability.
func expectedCost(n *Node) float64 {
	var walk func(n *Node) float64
	walk = func(n *Node) float64 {
		if n == nil {
			return 0
		}
		switch n.Kind {
		case NodeTerminal:
			return 0
		case NodeChance:
			var sum float64
			for _, o := range n.Outcomes {
				p := float64(o.MassPpm) / float64(MassTotal)
				sum += p * (float64(o.LossPpm)/float64(MassTotal) + walk(o.Result))
			}
			return sum
		case NodeDecision:
			if len(n.Decision) == 0 {
				return 0
			}
			e := n.Decision[0]
			return e.Cost + walk(e.Chance)
		}
		return 0
	}
	return walk(n)
}

type leafProb struct {
	prob float64
	loss float64
}

// cvarCost collects every root-to-terminal path's probability and total
// loss, then tail-averages the worst alphaPpm/MassTotal fraction of
// probability mass, apportioning the boundary leaf's contribution
// proportionally to how much of it falls inside the tail (the same
// largest-remainder spirit as updateRiskModel, applied to a continuous
// cutoff rather than an integer count).
func cvarCost(root *Node, alphaPpm int64) *float64 {
	if alphaPpm <= 0 {
		return nil
	}
	var leaves []leafProb
	var walk func(n *Node, prob, loss float64)
	walk = func(n *Node, prob, loss float64) {
		if n == nil {
			return
		}
		switch n.Kind {
		case NodeTerminal:
			leaves = append(leaves, leafProb{prob: prob, loss: loss})
		case NodeChance:
			for _, o := range n.Outcomes {
				p := prob * float64(o.MassPpm) / float64(MassTotal)
				walk(o.Result, p, loss+float64(o.LossPpm)/float64(MassTotal))
			}
		case NodeDecision:
			if len(n.Decision) == 0 {
				return
			}
			walk(n.Decision[0].Chance, prob, loss)
		}
	}
	walk(root, 1.0, 0.0)

	if len(leaves) == 0 {
		zero := 0.0
		return &zero
	}

	sort.Slice(leaves, func(i, j int) bool { return leaves[i].loss > leaves[j].loss })

	tailFraction := float64(alphaPpm) / float64(MassTotal)
	var accumulated, weighted float64
	for _, l := range leaves {
		remaining := tailFraction - accumulated
		if remaining <= 0 {
			break
		}
		take := l.prob
		if take > remaining {
			take = remaining
		}
		weighted += take * l.loss
		accumulated += take
	}
	if accumulated == 0 {
		zero := 0.0
		return &zero
	}
	avg := weighted / accumulated
	return &avg
}

// resolveBudget decides whether the binding risk budget comes from the
// initial state's ledger or the config default, and flags any mismatch
// between the two.
func resolveBudget(initial State, cfg Config) (source string, epsilon int64, warnings []string) {
	if cfg.Measure != MeasureChanceConstraint {
		return "config_default", cfg.EpsilonPpm, nil
	}
	if len(initial.Ledger) == 0 {
		return "config_default", cfg.EpsilonPpm, nil
	}

	var minLedger int64 = -1
	for _, v := range initial.Ledger {
		if minLedger == -1 || v < minLedger {
			minLedger = v
		}
	}
	if cfg.EpsilonPpm > 0 && cfg.EpsilonPpm != minLedger {
		warnings = append(warnings, fmt.Sprintf("state ledger budget %d ppm disagrees with config epsilon %d ppm", minLedger, cfg.EpsilonPpm))
	}
	return "state", minLedger, warnings
}

func classify(result *Result, cfg Config, epsilon int64, safetyViolatedAnywhere bool) (string, []string) {
	if result.WasTruncated {
		return "unknown", nil
	}
	if cfg.Measure != MeasureChanceConstraint {
		if safetyViolatedAnywhere {
			return "violated", []string{"safety"}
		}
		return "satisfied", nil
	}

	if result.PolicyFailureUpperBoundPpm > epsilon {
		return "violated", []string{"risk_budget"}
	}
	return "satisfied", nil
}
