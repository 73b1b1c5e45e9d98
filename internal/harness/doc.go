// Package harness runs conformance scenarios: a model, a set of traces with
// their expected outcomes, and assertions on the counts the replay leaves on
// the model.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: approval
//	description: "Both approval paths replay"
//	model_file: ../models/approval.cue   # or an inline model: block
//	options:
//	  max_width: 10
//	  strict: true
//	simplify: false
//	traces:
//	  - events: [register, approve]
//	    count: 3
//	    expect: fit
//	assertions:
//	  - type: node_count
//	    node: approve
//	    count: 3
//	  - type: valid_counts
//
// Paths are relative to the scenario file.
//
// # Assertion Types
//
//   - node_count: the node's count equals count
//   - edge_count: the edge "src->dst" has the given count
//   - instances: the weighted fit/unfit tally equals fit and unfit
//   - valid_counts: every node's counts balance
//   - node_absent: the node is not in the final graph (after simplify)
//
// Every scenario runs on a freshly built graph. Golden reports are compared
// with goldie; regenerate them with go test ./internal/harness -update.
package harness
