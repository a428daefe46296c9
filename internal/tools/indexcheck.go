package tools

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/mcperrors"
)

// checkNotCollscan runs explain on command and fails with
// ForbiddenCollscan if the winning plan is a full collection scan, the
// gate config.indexCheck enables for read/update/delete tools that take
// a filter.
func checkNotCollscan(ctx context.Context, handle driver.Handle, database string, command bson.D) error {
	raw, err := handle.Explain(ctx, database, command)
	if err != nil {
		return err
	}
	if winningPlanIsCollscan(raw) {
		return mcperrors.WithHint(
			mcperrors.KindForbiddenCollscan,
			"this query would perform a full collection scan",
			"create an index covering the filter, or disable indexCheck if a collection scan is acceptable here",
		)
	}
	return nil
}

// winningPlanIsCollscan walks the explain output's queryPlanner.winningPlan
// tree (and any nested shard/stage arrays) looking for a COLLSCAN stage.
func winningPlanIsCollscan(raw bson.Raw) bool {
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return false
	}
	planner, ok := doc["queryPlanner"].(bson.M)
	if !ok {
		return false
	}
	winning, ok := planner["winningPlan"].(bson.M)
	if !ok {
		return false
	}
	return stageTreeHasCollscan(winning)
}

func stageTreeHasCollscan(stage bson.M) bool {
	if stage == nil {
		return false
	}
	if name, _ := stage["stage"].(string); name == "COLLSCAN" {
		return true
	}
	if input, ok := stage["inputStage"].(bson.M); ok && stageTreeHasCollscan(input) {
		return true
	}
	if inputs, ok := stage["inputStages"].(bson.A); ok {
		for _, in := range inputs {
			if s, ok := in.(bson.M); ok && stageTreeHasCollscan(s) {
				return true
			}
		}
	}
	return false
}
