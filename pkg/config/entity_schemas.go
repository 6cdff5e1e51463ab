package config

import (
	"github.com/loomworks/loom/pkg/entity"
)

// entitySchemas are the merge-directing schemas attached to stored
// entities, keyed by kind. They govern how later facets combine with
// earlier ones: endpoints merge by name so a later file can refine a
// single endpoint, environment variable lists append, everything else
// follows the default object-merge and array-replace rules.
var entitySchemas = map[string]*entity.Schema{
	"Component": {
		Type: "object",
		Properties: map[string]*entity.Schema{
			"endpoints": {
				Type:          "array",
				MergeStrategy: entity.StrategyArrayMergeByID,
				MergeID:       "name",
			},
			"environment": {
				Type:          "array",
				MergeStrategy: entity.StrategyAppend,
			},
			"config": {Type: "object"},
		},
	},
	"Interface": {
		Type: "object",
		Properties: map[string]*entity.Schema{
			"roles": {
				Type:          "array",
				MergeStrategy: entity.StrategyArrayMergeByID,
				MergeID:       "name",
			},
		},
	},
	"Graph": {
		Type: "object",
		Properties: map[string]*entity.Schema{
			"services": {
				Type:          "array",
				MergeStrategy: entity.StrategyArrayMergeByID,
				MergeID:       "name",
			},
			"relations": {
				Type:          "array",
				MergeStrategy: entity.StrategyAppend,
			},
		},
	},
	"Runtime": {
		Type: "object",
		Properties: map[string]*entity.Schema{
			"plugins": {
				Type:          "array",
				MergeStrategy: entity.StrategyArrayMergeByID,
				MergeID:       "name",
			},
		},
	},
	"Environment": {
		Type: "object",
		Properties: map[string]*entity.Schema{
			"config":   {Type: "object"},
			"services": {Type: "object"},
		},
	},
}

// EntitySchema returns the merge schema for a kind, nil for user-defined
// kinds that merge with default rules.
func EntitySchema(kind string) *entity.Schema {
	return entitySchemas[kind]
}
