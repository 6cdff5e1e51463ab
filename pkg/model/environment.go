package model

import (
	"github.com/loomworks/loom/pkg/entity"
)

// Environment is the per-deployment configuration and override layer.
type Environment struct {
	GraphObj
}

// NewEnvironment wraps an Environment entity.
func NewEnvironment(e *entity.Entity) *Environment {
	return &Environment{GraphObj: newGraphObj("Environment", e.Name(), e)}
}

// Config returns the free-form environment configuration.
func (e *Environment) Config() map[string]interface{} {
	cfg, ok := e.entity.GetDefault("config", map[string]interface{}{}).(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return cfg
}

// ServiceConfig returns the environment-level override block for one
// service, or an empty map when none is declared.
func (e *Environment) ServiceConfig(name string) map[string]interface{} {
	services, ok := e.entity.GetDefault("services", map[string]interface{}{}).(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	m, ok := services[name].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return m
}
